package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/mkarlsen/knotscore/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// NewWithDB wraps an existing database handle. Used by tests that drive
// the handle through a mock.
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			starts_at DATETIME NOT NULL,
			ends_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			display_order INTEGER NOT NULL,
			FOREIGN KEY (event_id) REFERENCES events(id),
			UNIQUE(event_id, code)
		)`,
		`CREATE TABLE IF NOT EXISTS nodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			is_relay BOOLEAN NOT NULL DEFAULT 0,
			counts_to_overall BOOLEAN NOT NULL DEFAULT 1,
			max_centiseconds INTEGER,
			FOREIGN KEY (event_id) REFERENCES events(id)
		)`,
		`CREATE TABLE IF NOT EXISTS category_nodes (
			category_id INTEGER NOT NULL,
			node_id INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			PRIMARY KEY (category_id, node_id),
			FOREIGN KEY (category_id) REFERENCES categories(id),
			FOREIGN KEY (node_id) REFERENCES nodes(id)
		)`,
		`CREATE TABLE IF NOT EXISTS competitors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			category_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			start_number INTEGER,
			access_token TEXT UNIQUE,
			FOREIGN KEY (event_id) REFERENCES events(id),
			FOREIGN KEY (category_id) REFERENCES categories(id),
			UNIQUE(event_id, start_number)
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			competitor_id INTEGER NOT NULL,
			node_id INTEGER NOT NULL,
			attempt_number INTEGER NOT NULL CHECK(attempt_number IN (1, 2)),
			result_kind TEXT NOT NULL,
			centiseconds INTEGER,
			fault_code TEXT,
			locked BOOLEAN NOT NULL DEFAULT 1,
			note TEXT NOT NULL DEFAULT '',
			recorded_by INTEGER NOT NULL,
			recorded_role TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (event_id) REFERENCES events(id),
			FOREIGN KEY (competitor_id) REFERENCES competitors(id),
			FOREIGN KEY (node_id) REFERENCES nodes(id),
			UNIQUE(event_id, competitor_id, node_id, attempt_number)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			attempt_id INTEGER,
			competitor_id INTEGER,
			previous_value TEXT,
			new_value TEXT NOT NULL,
			actor_user_id INTEGER NOT NULL,
			actor_role TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (event_id) REFERENCES events(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_event ON attempts(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_competitor ON attempts(competitor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_event ON audit_log(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_competitors_event ON competitors(event_id)`,
	}

	for _, m := range migrations {
		if _, err := r.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// translateErr maps sqlite constraint violations onto repository errors.
func translateErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return ErrDuplicate
		}
	}
	return err
}

// --- events ---

func (r *Repository) CreateEvent(ctx context.Context, slug, name string, startsAt, endsAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (slug, name, starts_at, ends_at) VALUES (?, ?, ?, ?)`,
		slug, name, startsAt.UTC(), endsAt.UTC())
	if err != nil {
		return 0, translateErr(err)
	}
	return res.LastInsertId()
}

func (r *Repository) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return r.getEvent(ctx, `WHERE id = ?`, id)
}

func (r *Repository) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return r.getEvent(ctx, `WHERE slug = ?`, slug)
}

func (r *Repository) getEvent(ctx context.Context, where string, arg interface{}) (*models.Event, error) {
	var e models.Event
	err := r.db.QueryRowContext(ctx,
		`SELECT id, slug, name, starts_at, ends_at, created_at FROM events `+where, arg).
		Scan(&e.ID, &e.Slug, &e.Name, &e.StartsAt, &e.EndsAt, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) UpdateEvent(ctx context.Context, id int64, name string, startsAt, endsAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = ?, starts_at = ?, ends_at = ? WHERE id = ?`,
		name, startsAt.UTC(), endsAt.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- categories and nodes ---

func (r *Repository) CreateCategory(ctx context.Context, eventID int64, code, name string, displayOrder int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (event_id, code, name, display_order) VALUES (?, ?, ?, ?)`,
		eventID, code, name, displayOrder)
	if err != nil {
		return 0, translateErr(err)
	}
	return res.LastInsertId()
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, code, name, display_order FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.EventID, &c.Code, &c.Name, &c.DisplayOrder)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListCategories(ctx context.Context, eventID int64) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, code, name, display_order FROM categories
		 WHERE event_id = ? ORDER BY display_order, code`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.EventID, &c.Code, &c.Name, &c.DisplayOrder); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) CreateNode(ctx context.Context, node models.Node) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO nodes (event_id, name, sequence, is_relay, counts_to_overall, max_centiseconds)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		node.EventID, node.Name, node.Sequence, node.IsRelay, node.CountsToOverall, node.MaxCentiseconds)
	if err != nil {
		return 0, translateErr(err)
	}
	return res.LastInsertId()
}

func (r *Repository) GetNode(ctx context.Context, id int64) (*models.Node, error) {
	var n models.Node
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, name, sequence, is_relay, counts_to_overall, max_centiseconds
		 FROM nodes WHERE id = ?`, id).
		Scan(&n.ID, &n.EventID, &n.Name, &n.Sequence, &n.IsRelay, &n.CountsToOverall, &n.MaxCentiseconds)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repository) ListNodes(ctx context.Context, eventID int64) ([]models.Node, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, name, sequence, is_relay, counts_to_overall, max_centiseconds
		 FROM nodes WHERE event_id = ? ORDER BY sequence, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		var n models.Node
		if err := rows.Scan(&n.ID, &n.EventID, &n.Name, &n.Sequence, &n.IsRelay, &n.CountsToOverall, &n.MaxCentiseconds); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (r *Repository) AssignNodeToCategory(ctx context.Context, categoryID, nodeID int64, sequence int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO category_nodes (category_id, node_id, sequence) VALUES (?, ?, ?)`,
		categoryID, nodeID, sequence)
	return translateErr(err)
}

func (r *Repository) ListCategoryNodes(ctx context.Context, eventID int64) ([]models.CategoryNode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cn.category_id, cn.node_id, cn.sequence
		 FROM category_nodes cn
		 JOIN categories c ON c.id = cn.category_id
		 WHERE c.event_id = ? ORDER BY cn.category_id, cn.sequence`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []models.CategoryNode
	for rows.Next() {
		var m models.CategoryNode
		if err := rows.Scan(&m.CategoryID, &m.NodeID, &m.Sequence); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// --- competitors ---

func (r *Repository) CreateCompetitor(ctx context.Context, c models.Competitor) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO competitors (event_id, category_id, name, start_number, access_token)
		 VALUES (?, ?, ?, ?, ?)`,
		c.EventID, c.CategoryID, c.Name, c.StartNumber, c.AccessToken)
	if err != nil {
		return 0, translateErr(err)
	}
	return res.LastInsertId()
}

func (r *Repository) GetCompetitor(ctx context.Context, id int64) (*models.Competitor, error) {
	return r.getCompetitor(ctx, `WHERE id = ?`, id)
}

func (r *Repository) GetCompetitorByToken(ctx context.Context, token string) (*models.Competitor, error) {
	return r.getCompetitor(ctx, `WHERE access_token = ?`, token)
}

func (r *Repository) getCompetitor(ctx context.Context, where string, arg interface{}) (*models.Competitor, error) {
	var c models.Competitor
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, category_id, name, start_number, access_token FROM competitors `+where, arg).
		Scan(&c.ID, &c.EventID, &c.CategoryID, &c.Name, &c.StartNumber, &c.AccessToken)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListCompetitors(ctx context.Context, eventID int64) ([]models.Competitor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, category_id, name, start_number, access_token
		 FROM competitors WHERE event_id = ? ORDER BY start_number, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var competitors []models.Competitor
	for rows.Next() {
		var c models.Competitor
		if err := rows.Scan(&c.ID, &c.EventID, &c.CategoryID, &c.Name, &c.StartNumber, &c.AccessToken); err != nil {
			return nil, err
		}
		competitors = append(competitors, c)
	}
	return competitors, rows.Err()
}

// RotateCompetitorToken replaces the competitor's active token and writes
// the audit entry in the same transaction.
func (r *Repository) RotateCompetitorToken(ctx context.Context, competitorID int64, token string, entry models.AuditLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE competitors SET access_token = ? WHERE id = ?`, token, competitorID)
	if err != nil {
		return translateErr(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// --- attempts ---

const attemptColumns = `id, event_id, competitor_id, node_id, attempt_number,
	result_kind, centiseconds, fault_code, locked, note, recorded_by, recorded_role,
	created_at, updated_at`

func (r *Repository) GetAttempt(ctx context.Context, id int64) (*models.Attempt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) FindAttempt(ctx context.Context, competitorID, nodeID int64, attemptNumber int) (*models.Attempt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE competitor_id = ? AND node_id = ? AND attempt_number = ?`,
		competitorID, nodeID, attemptNumber)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) ListAttemptsByEvent(ctx context.Context, eventID int64) ([]models.Attempt, error) {
	return r.listAttempts(ctx, `WHERE event_id = ?`, eventID)
}

func (r *Repository) ListAttemptsByCompetitor(ctx context.Context, competitorID int64) ([]models.Attempt, error) {
	return r.listAttempts(ctx, `WHERE competitor_id = ?`, competitorID)
}

func (r *Repository) listAttempts(ctx context.Context, where string, arg interface{}) ([]models.Attempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// CreateAttempt inserts the attempt and its audit entry atomically. A
// uniqueness violation on the attempt tuple surfaces as ErrDuplicate; the
// caller must not retry.
func (r *Repository) CreateAttempt(ctx context.Context, a models.Attempt, entry models.AuditLogEntry) (*models.Attempt, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	kind, cs, fault := resultColumns(a.Result)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO attempts (event_id, competitor_id, node_id, attempt_number,
			result_kind, centiseconds, fault_code, locked, note, recorded_by, recorded_role,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.EventID, a.CompetitorID, a.NodeID, a.AttemptNumber,
		kind, cs, fault, a.Locked, a.Note, a.RecordedBy, a.RecordedRole,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return nil, translateErr(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	a.ID = id
	entry.AttemptID = &id

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAttempt rewrites the attempt's result and note in place and writes
// the audit entry atomically. The lock flag is always left set.
func (r *Repository) UpdateAttempt(ctx context.Context, a models.Attempt, entry models.AuditLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	kind, cs, fault := resultColumns(a.Result)
	res, err := tx.ExecContext(ctx,
		`UPDATE attempts SET result_kind = ?, centiseconds = ?, fault_code = ?,
			locked = ?, note = ?, updated_at = ? WHERE id = ?`,
		kind, cs, fault, a.Locked, a.Note, a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// --- audit ---

func insertAuditEntry(ctx context.Context, tx *sql.Tx, entry models.AuditLogEntry) error {
	var prev interface{}
	if entry.PreviousValue != nil {
		prev = string(entry.PreviousValue)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (event_id, action, attempt_id, competitor_id,
			previous_value, new_value, actor_user_id, actor_role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EventID, entry.Action, entry.AttemptID, entry.CompetitorID,
		prev, string(entry.NewValue), entry.ActorUserID, entry.ActorRole, createdAt.UTC())
	return err
}

func (r *Repository) ListAuditEntries(ctx context.Context, eventID int64) ([]models.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, action, attempt_id, competitor_id, previous_value,
			new_value, actor_user_id, actor_role, created_at
		 FROM audit_log WHERE event_id = ? ORDER BY id DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		var prev, next sql.NullString
		if err := rows.Scan(&e.ID, &e.EventID, &e.Action, &e.AttemptID, &e.CompetitorID,
			&prev, &next, &e.ActorUserID, &e.ActorRole, &e.CreatedAt); err != nil {
			return nil, err
		}
		if prev.Valid {
			e.PreviousValue = []byte(prev.String)
		}
		if next.Valid {
			e.NewValue = []byte(next.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (*models.Attempt, error) {
	var a models.Attempt
	var kind string
	var cs sql.NullInt64
	var fault sql.NullString
	err := row.Scan(&a.ID, &a.EventID, &a.CompetitorID, &a.NodeID, &a.AttemptNumber,
		&kind, &cs, &fault, &a.Locked, &a.Note, &a.RecordedBy, &a.RecordedRole,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Result = resultFromColumns(kind, cs, fault)
	return &a, nil
}

// resultColumns splits a result into its nullable storage columns.
func resultColumns(r models.Result) (kind string, cs sql.NullInt64, fault sql.NullString) {
	kind = string(r.Kind())
	if v, ok := r.Centiseconds(); ok {
		cs = sql.NullInt64{Int64: int64(v), Valid: true}
	}
	if v, ok := r.FaultCode(); ok {
		fault = sql.NullString{String: v, Valid: true}
	}
	return kind, cs, fault
}

// resultFromColumns rebuilds the result sum type from storage columns.
// A row that satisfies neither variant yields the zero result, which the
// ranking pipeline treats as an incomplete attempt.
func resultFromColumns(kind string, cs sql.NullInt64, fault sql.NullString) models.Result {
	switch models.ResultKind(kind) {
	case models.ResultTime:
		if cs.Valid {
			if res, err := models.TimeResult(int(cs.Int64)); err == nil {
				return res
			}
		}
	case models.ResultFault:
		if fault.Valid {
			if res, err := models.FaultResult(fault.String); err == nil {
				return res
			}
		}
	}
	return models.Result{}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
