package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkarlsen/knotscore/internal/handlers"
	"github.com/mkarlsen/knotscore/internal/logger"
	"github.com/mkarlsen/knotscore/internal/models"
	"github.com/mkarlsen/knotscore/internal/repository"
	"github.com/mkarlsen/knotscore/internal/services"
	"github.com/mkarlsen/knotscore/internal/testutil"
	"github.com/mkarlsen/knotscore/internal/websocket"
	"github.com/mkarlsen/knotscore/pkg/metrics"
)

type env struct {
	router       chi.Router
	repo         *repository.Repository
	eventID      int64
	categoryID   int64
	nodeID       int64
	competitorID int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	log := logger.New()

	ledger := services.NewLedgerService(log, repo)
	rankings := services.NewRankingService(log, repo)
	tokens := services.NewTokenService(log, repo)
	catalog := services.NewCatalogService(log, repo)

	hub := websocket.New(log)
	hub.Start()
	ledger.SetBroadcaster(hub)

	m := metrics.New()
	rankings.SetObserver(m)

	h := handlers.New(log, ledger, rankings, tokens, catalog, hub, m, repo)

	ctx := context.Background()
	eventID, err := repo.CreateEvent(ctx, "summer-camp", "Summer Camp 2026",
		time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 1, 17, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	categoryID, err := repo.CreateCategory(ctx, eventID, "scouts", "Scouts", 1)
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	nodeID, err := repo.CreateNode(ctx, models.Node{
		EventID: eventID, Name: "Bowline", Sequence: 1, CountsToOverall: true,
	})
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	if err := repo.AssignNodeToCategory(ctx, categoryID, nodeID, 1); err != nil {
		t.Fatalf("AssignNodeToCategory failed: %v", err)
	}
	start := 1
	competitorID, err := repo.CreateCompetitor(ctx, models.Competitor{
		EventID: eventID, CategoryID: categoryID, Name: "Alva", StartNumber: &start,
	})
	if err != nil {
		t.Fatalf("CreateCompetitor failed: %v", err)
	}

	return &env{
		router: h.Router(), repo: repo,
		eventID: eventID, categoryID: categoryID,
		nodeID: nodeID, competitorID: competitorID,
	}
}

func (e *env) do(t *testing.T, method, path string, body interface{}, actor *models.Actor) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != nil {
		req.Header.Set(handlers.HeaderActorUser, strconv.FormatInt(actor.UserID, 10))
		req.Header.Set(handlers.HeaderActorRole, string(actor.Role))
		req.Header.Set(handlers.HeaderActorEvent, strconv.FormatInt(actor.EventID, 10))
		var cats string
		for i, c := range actor.AllowedCategoryCodes {
			if i > 0 {
				cats += ","
			}
			cats += c
		}
		req.Header.Set(handlers.HeaderActorCategories, cats)
		var nodes string
		for i, id := range actor.AssignedNodeIDs {
			if i > 0 {
				nodes += ","
			}
			nodes += strconv.FormatInt(id, 10)
		}
		req.Header.Set(handlers.HeaderActorNodes, nodes)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) judge() *models.Actor {
	return &models.Actor{
		UserID: 42, Role: models.RoleJudge, EventID: e.eventID,
		AllowedCategoryCodes: []string{"scouts"},
		AssignedNodeIDs:      []int64{e.nodeID},
	}
}

func (e *env) admin() *models.Actor {
	return &models.Actor{
		UserID: 44, Role: models.RoleAdmin, EventID: e.eventID,
		AllowedCategoryCodes: []string{"scouts"},
	}
}

func recordBody(e *env, number, cs int) map[string]interface{} {
	return map[string]interface{}{
		"competitor_id":  e.competitorID,
		"node_id":        e.nodeID,
		"attempt_number": number,
		"result":         map[string]interface{}{"kind": "time", "centiseconds": cs},
	}
}

func TestRecordAttempt_Created(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, 6542), e.judge())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID      int64  `json:"id"`
		Locked  bool   `json:"locked"`
		Display string `json:"display"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Locked {
		t.Error("response attempt not locked")
	}
	if resp.Display != "01:05.42" {
		t.Errorf("display = %q, want 01:05.42", resp.Display)
	}
}

func TestRecordAttempt_MissingActorHeaders(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, 1500), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRecordAttempt_ScopeForbidden(t *testing.T) {
	e := newEnv(t)

	actor := e.judge()
	actor.AllowedCategoryCodes = []string{"rovers"}
	rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, 1500), actor)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403, body %s", rec.Code, rec.Body.String())
	}
}

func TestRecordAttempt_DuplicateConflicts(t *testing.T) {
	e := newEnv(t)

	if rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, 1500), e.judge()); rec.Code != http.StatusCreated {
		t.Fatalf("first record status = %d", rec.Code)
	}
	rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, 1400), e.judge())
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
}

func TestRecordAttempt_ValidationError(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, models.MaxAttemptCentiseconds+1), e.judge())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
	var apiErr struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
}

func TestAmendAttempt(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, 1500), e.judge())
	if rec.Code != http.StatusCreated {
		t.Fatalf("record status = %d", rec.Code)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	amend := map[string]interface{}{
		"result": map[string]interface{}{"kind": "time", "centiseconds": 1450},
		"note":   "stopwatch misread",
	}

	// Judges cannot amend.
	path := fmt.Sprintf("/api/attempts/%d", created.ID)
	if rec := e.do(t, http.MethodPut, path, amend, e.judge()); rec.Code != http.StatusForbidden {
		t.Errorf("judge amend status = %d, want 403", rec.Code)
	}

	calculator := &models.Actor{UserID: 43, Role: models.RoleCalculator, EventID: e.eventID}
	rec = e.do(t, http.MethodPut, path, amend, calculator)
	if rec.Code != http.StatusOK {
		t.Fatalf("amend status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	e := newEnv(t)

	body := map[string]interface{}{
		"slug": "winter-camp", "name": "Winter Camp",
		"starts_at": "2026-12-01T09:00:00Z", "ends_at": "2026-12-01T17:00:00Z",
	}
	if rec := e.do(t, http.MethodPost, "/api/admin/events", body, e.judge()); rec.Code != http.StatusForbidden {
		t.Errorf("judge create event status = %d, want 403", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/admin/events", body, e.admin()); rec.Code != http.StatusCreated {
		t.Errorf("admin create event status = %d, want 201", rec.Code)
	}
}

func TestIssueTokenAndStationOverview(t *testing.T) {
	e := newEnv(t)

	path := fmt.Sprintf("/api/admin/competitors/%d/token", e.competitorID)
	rec := e.do(t, http.MethodPost, path, nil, e.admin())
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue token status = %d, body %s", rec.Code, rec.Body.String())
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if tok.AccessToken == "" {
		t.Fatal("empty access token")
	}

	rec = e.do(t, http.MethodGet, "/api/station/"+tok.AccessToken, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("station status = %d, body %s", rec.Code, rec.Body.String())
	}
	var overview struct {
		Competitor struct {
			ID int64 `json:"id"`
		} `json:"competitor"`
		Nodes []json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if overview.Competitor.ID != e.competitorID {
		t.Errorf("competitor = %d, want %d", overview.Competitor.ID, e.competitorID)
	}
	if len(overview.Nodes) != 1 {
		t.Errorf("got %d nodes, want 1", len(overview.Nodes))
	}

	if rec := e.do(t, http.MethodGet, "/api/station/bogus", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("bogus token status = %d, want 404", rec.Code)
	}
}

func TestLeaderboardBySlug(t *testing.T) {
	e := newEnv(t)

	if rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, 1500), e.judge()); rec.Code != http.StatusCreated {
		t.Fatalf("record status = %d", rec.Code)
	}

	rec := e.do(t, http.MethodGet, "/api/events/summer-camp/leaderboard", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status = %d, body %s", rec.Code, rec.Body.String())
	}
	var entries []struct {
		CompetitorID    int64  `json:"competitor_id"`
		OverallRank     int    `json:"overall_rank"`
		TieBreakDisplay string `json:"tie_break_display"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].OverallRank != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].TieBreakDisplay != "00:15.00" {
		t.Errorf("tie-break display = %q, want 00:15.00", entries[0].TieBreakDisplay)
	}

	if rec := e.do(t, http.MethodGet, "/api/events/no-such-event/leaderboard", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown slug status = %d, want 404", rec.Code)
	}
}

func TestNodeRankingsBySlug(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/events/summer-camp/node-rankings?category=scouts", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var rows []struct {
		Status    string `json:"status"`
		Placement int    `json:"placement"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode rankings: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "missing" {
		t.Errorf("rows = %+v, want one missing row", rows)
	}
}

func TestAuditTrailEndpoint(t *testing.T) {
	e := newEnv(t)

	if rec := e.do(t, http.MethodPost, "/api/attempts", recordBody(e, 1, 1500), e.judge()); rec.Code != http.StatusCreated {
		t.Fatalf("record status = %d", rec.Code)
	}

	path := fmt.Sprintf("/api/admin/events/%d/audit", e.eventID)
	rec := e.do(t, http.MethodGet, path, nil, e.admin())
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d, body %s", rec.Code, rec.Body.String())
	}
	var entries []struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "attempt_created" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	if rec := e.do(t, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/metrics", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", rec.Code)
	}

	// A leaderboard query feeds the ranking histogram.
	if rec := e.do(t, http.MethodGet, "/api/events/summer-camp/leaderboard", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status = %d, want 200", rec.Code)
	}
	rec := e.do(t, http.MethodGet, "/metrics", nil, nil)
	if !strings.Contains(rec.Body.String(), `knotscore_ranking_query_duration_seconds_count{view="category_leaderboard"} 1`) {
		t.Error("ranking query histogram has no category_leaderboard sample")
	}
}
