package scoring_test

import (
	"reflect"
	"testing"

	"github.com/mkarlsen/knotscore/internal/models"
	"github.com/mkarlsen/knotscore/internal/scoring"
)

func timeResult(t *testing.T, cs int) models.Result {
	t.Helper()
	r, err := models.TimeResult(cs)
	if err != nil {
		t.Fatalf("TimeResult(%d) failed: %v", cs, err)
	}
	return r
}

func faultResult(t *testing.T, code string) models.Result {
	t.Helper()
	r, err := models.FaultResult(code)
	if err != nil {
		t.Fatalf("FaultResult(%q) failed: %v", code, err)
	}
	return r
}

// singleCategorySnapshot builds one category with the given nodes all
// assigned, and a roster of n competitors with IDs 1..n.
func singleCategorySnapshot(nodes []models.Node, competitorCount int) scoring.Snapshot {
	snap := scoring.Snapshot{
		EventID:    1,
		Categories: []models.Category{{ID: 10, EventID: 1, Code: "scouts", Name: "Scouts", DisplayOrder: 1}},
		Nodes:      nodes,
	}
	for i, n := range nodes {
		snap.CategoryNodes = append(snap.CategoryNodes, models.CategoryNode{CategoryID: 10, NodeID: n.ID, Sequence: i + 1})
	}
	names := []string{"Alva", "Birk", "Cleo", "Dina", "Egil", "Frida"}
	for i := 0; i < competitorCount; i++ {
		snap.Competitors = append(snap.Competitors, models.Competitor{
			ID: int64(i + 1), EventID: 1, CategoryID: 10, Name: names[i],
		})
	}
	return snap
}

func findRanking(t *testing.T, rankings []scoring.NodeRanking, competitorID, nodeID int64) scoring.NodeRanking {
	t.Helper()
	for _, r := range rankings {
		if r.CompetitorID == competitorID && r.NodeID == nodeID {
			return r
		}
	}
	t.Fatalf("no ranking for competitor %d at node %d", competitorID, nodeID)
	return scoring.NodeRanking{}
}

func TestNodeRankings_DenseRanksWithSharedTimes(t *testing.T) {
	node := models.Node{ID: 100, EventID: 1, Name: "Bowline", CountsToOverall: true}
	snap := singleCategorySnapshot([]models.Node{node}, 4)
	// Two competitors share the best time; the next gets rank 2, not 3.
	times := map[int64]int{1: 1500, 2: 1500, 3: 1800, 4: 2000}
	for compID, cs := range times {
		snap.Attempts = append(snap.Attempts, models.Attempt{
			ID: compID, EventID: 1, CompetitorID: compID, NodeID: 100,
			AttemptNumber: 1, Result: timeResult(t, cs), Locked: true,
		})
	}

	rankings := scoring.NodeRankings(snap)
	if len(rankings) != 4 {
		t.Fatalf("got %d rankings, want 4", len(rankings))
	}

	wantRanks := map[int64]int{1: 1, 2: 1, 3: 2, 4: 3}
	for compID, want := range wantRanks {
		r := findRanking(t, rankings, compID, 100)
		if r.TimeRank == nil || *r.TimeRank != want {
			t.Errorf("competitor %d time rank = %v, want %d", compID, r.TimeRank, want)
		}
		if r.Placement != want {
			t.Errorf("competitor %d placement = %d, want %d", compID, r.Placement, want)
		}
		if r.CompetitorCount != 4 {
			t.Errorf("competitor %d group size = %d, want 4", compID, r.CompetitorCount)
		}
	}
}

func TestNodeRankings_BestOfTwoAttempts(t *testing.T) {
	node := models.Node{ID: 100, EventID: 1, Name: "Clove Hitch", CountsToOverall: true}
	snap := singleCategorySnapshot([]models.Node{node}, 1)
	snap.Attempts = []models.Attempt{
		{ID: 1, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 2200), Locked: true},
		{ID: 2, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 2, Result: timeResult(t, 1900), Locked: true},
	}

	r := findRanking(t, scoring.NodeRankings(snap), 1, 100)
	if r.BestCentiseconds == nil || *r.BestCentiseconds != 1900 {
		t.Errorf("best = %v, want 1900", r.BestCentiseconds)
	}
	if r.Status != scoring.StatusTime {
		t.Errorf("status = %q, want time", r.Status)
	}
}

// TestNodeRankings_NonFinisherFlattening: in a group of five where three
// finish, the faulted and the absent competitor both land on placement 5
// with zero tie-break contribution.
func TestNodeRankings_NonFinisherFlattening(t *testing.T) {
	node := models.Node{ID: 100, EventID: 1, Name: "Sheet Bend", CountsToOverall: true}
	snap := singleCategorySnapshot([]models.Node{node}, 5)
	snap.Attempts = []models.Attempt{
		{ID: 1, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1000), Locked: true},
		{ID: 2, EventID: 1, CompetitorID: 2, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1100), Locked: true},
		{ID: 3, EventID: 1, CompetitorID: 3, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1200), Locked: true},
		{ID: 4, EventID: 1, CompetitorID: 4, NodeID: 100, AttemptNumber: 1, Result: faultResult(t, "slipped"), Locked: true},
		// competitor 5 never attempted
	}

	rankings := scoring.NodeRankings(snap)

	faulted := findRanking(t, rankings, 4, 100)
	if faulted.Status != scoring.StatusFault {
		t.Errorf("faulted status = %q, want fault", faulted.Status)
	}
	if faulted.Placement != 5 {
		t.Errorf("faulted placement = %d, want group size 5", faulted.Placement)
	}
	if faulted.TimeRank != nil {
		t.Errorf("faulted competitor has a time rank: %d", *faulted.TimeRank)
	}
	if faulted.TieBreakCentiseconds != 0 {
		t.Errorf("faulted tie-break = %d, want 0", faulted.TieBreakCentiseconds)
	}

	missing := findRanking(t, rankings, 5, 100)
	if missing.Status != scoring.StatusMissing {
		t.Errorf("missing status = %q, want missing", missing.Status)
	}
	if missing.Placement != 5 {
		t.Errorf("missing placement = %d, want group size 5", missing.Placement)
	}
}

func TestNodeRankings_NobodyFinished(t *testing.T) {
	node := models.Node{ID: 100, EventID: 1, Name: "Figure Eight", CountsToOverall: true}
	snap := singleCategorySnapshot([]models.Node{node}, 3)
	snap.Attempts = []models.Attempt{
		{ID: 1, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 1, Result: faultResult(t, "wrong_knot"), Locked: true},
	}

	for _, r := range scoring.NodeRankings(snap) {
		if r.Placement != 3 {
			t.Errorf("competitor %d placement = %d, want 3", r.CompetitorID, r.Placement)
		}
		if r.TimeRank != nil {
			t.Errorf("competitor %d has a time rank with no finishers", r.CompetitorID)
		}
	}
}

func TestNodeRankings_IncompleteStatus(t *testing.T) {
	node := models.Node{ID: 100, EventID: 1, Name: "Bowline", CountsToOverall: true}
	snap := singleCategorySnapshot([]models.Node{node}, 1)
	// Zero-value result, as a malformed storage row produces.
	snap.Attempts = []models.Attempt{
		{ID: 1, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 1, Locked: true},
	}

	r := findRanking(t, scoring.NodeRankings(snap), 1, 100)
	if r.Status != scoring.StatusIncomplete {
		t.Errorf("status = %q, want incomplete", r.Status)
	}
}

// TestCategoryLeaderboard_TieBreakBeatsEqualSums reproduces the canonical
// two-node comparison: A finishes both nodes slowly, B finishes one node
// fast and misses the other. Equal placement sums resolve on cumulative
// centiseconds, so B wins.
func TestCategoryLeaderboard_TieBreakBeatsEqualSums(t *testing.T) {
	nodes := []models.Node{
		{ID: 100, EventID: 1, Name: "Bowline", CountsToOverall: true},
		{ID: 200, EventID: 1, Name: "Sheet Bend", CountsToOverall: true},
	}
	snap := singleCategorySnapshot(nodes, 2)
	// A: node1 = 1500, node2 = 1800. B: node1 = 1200, node2 missing.
	// Node 1: B rank 1, A rank 2. Node 2: A rank 1, B placement = 2.
	// Sums: A = 3 with tie-break 3300, B = 3 with tie-break 1200.
	snap.Attempts = []models.Attempt{
		{ID: 1, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1500), Locked: true},
		{ID: 2, EventID: 1, CompetitorID: 1, NodeID: 200, AttemptNumber: 1, Result: timeResult(t, 1800), Locked: true},
		{ID: 3, EventID: 1, CompetitorID: 2, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1200), Locked: true},
	}

	entries := scoring.CategoryLeaderboard(snap)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	first, second := entries[0], entries[1]
	if first.CompetitorID != 2 {
		t.Fatalf("winner = competitor %d, want 2", first.CompetitorID)
	}
	if first.PlacementSum != 3 || second.PlacementSum != 3 {
		t.Errorf("placement sums = %d, %d, want 3, 3", first.PlacementSum, second.PlacementSum)
	}
	if first.TieBreakSum != 1200 {
		t.Errorf("winner tie-break = %d, want 1200", first.TieBreakSum)
	}
	if second.TieBreakSum != 3300 {
		t.Errorf("runner-up tie-break = %d, want 3300", second.TieBreakSum)
	}
	if first.OverallRank != 1 || second.OverallRank != 2 {
		t.Errorf("overall ranks = %d, %d, want 1, 2", first.OverallRank, second.OverallRank)
	}
	if !first.HasNonTime {
		t.Error("winner missed a node but HasNonTime is false")
	}
	if second.HasNonTime {
		t.Error("runner-up finished everything but HasNonTime is true")
	}
}

func TestCategoryLeaderboard_ExcludesNonCountingNodes(t *testing.T) {
	nodes := []models.Node{
		{ID: 100, EventID: 1, Name: "Bowline", CountsToOverall: true},
		{ID: 200, EventID: 1, Name: "Fun Station", CountsToOverall: false},
	}
	snap := singleCategorySnapshot(nodes, 2)
	snap.Attempts = []models.Attempt{
		{ID: 1, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1000), Locked: true},
		{ID: 2, EventID: 1, CompetitorID: 2, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 2000), Locked: true},
		// The non-counting node would invert the order if it leaked in.
		{ID: 3, EventID: 1, CompetitorID: 1, NodeID: 200, AttemptNumber: 1, Result: timeResult(t, 9000), Locked: true},
		{ID: 4, EventID: 1, CompetitorID: 2, NodeID: 200, AttemptNumber: 1, Result: timeResult(t, 100), Locked: true},
	}

	entries := scoring.CategoryLeaderboard(snap)
	if entries[0].CompetitorID != 1 {
		t.Errorf("winner = competitor %d, want 1", entries[0].CompetitorID)
	}
	for _, e := range entries {
		if e.CountedNodes != 1 {
			t.Errorf("competitor %d counted nodes = %d, want 1", e.CompetitorID, e.CountedNodes)
		}
	}
}

// TestRelayLeaderboard_FlagIndependence: a node that is both relay and
// counting feeds both leaderboards; a relay-only node feeds only the relay
// one.
func TestRelayLeaderboard_FlagIndependence(t *testing.T) {
	nodes := []models.Node{
		{ID: 100, EventID: 1, Name: "Relay and Overall", CountsToOverall: true, IsRelay: true},
		{ID: 200, EventID: 1, Name: "Relay Only", CountsToOverall: false, IsRelay: true},
		{ID: 300, EventID: 1, Name: "Overall Only", CountsToOverall: true, IsRelay: false},
	}
	snap := singleCategorySnapshot(nodes, 1)
	for i, nodeID := range []int64{100, 200, 300} {
		snap.Attempts = append(snap.Attempts, models.Attempt{
			ID: int64(i + 1), EventID: 1, CompetitorID: 1, NodeID: nodeID,
			AttemptNumber: 1, Result: timeResult(t, 1000), Locked: true,
		})
	}

	relay := scoring.RelayLeaderboard(snap)
	if len(relay) != 1 || relay[0].CountedNodes != 2 {
		t.Fatalf("relay counted nodes = %+v, want one entry over 2 nodes", relay)
	}
	overall := scoring.CategoryLeaderboard(snap)
	if len(overall) != 1 || overall[0].CountedNodes != 2 {
		t.Fatalf("overall counted nodes = %+v, want one entry over 2 nodes", overall)
	}
}

func TestRelayLeaderboard_NoRelayNodesYieldsNoEntries(t *testing.T) {
	nodes := []models.Node{{ID: 100, EventID: 1, Name: "Bowline", CountsToOverall: true}}
	snap := singleCategorySnapshot(nodes, 2)
	snap.Attempts = []models.Attempt{
		{ID: 1, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1000), Locked: true},
	}

	if entries := scoring.RelayLeaderboard(snap); len(entries) != 0 {
		t.Errorf("got %d relay entries with no relay nodes, want 0", len(entries))
	}
}

func TestLeaderboard_SharedRankOnFullTie(t *testing.T) {
	node := models.Node{ID: 100, EventID: 1, Name: "Bowline", CountsToOverall: true}
	snap := singleCategorySnapshot([]models.Node{node}, 3)
	snap.Attempts = []models.Attempt{
		{ID: 1, EventID: 1, CompetitorID: 1, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1000), Locked: true},
		{ID: 2, EventID: 1, CompetitorID: 2, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1000), Locked: true},
		{ID: 3, EventID: 1, CompetitorID: 3, NodeID: 100, AttemptNumber: 1, Result: timeResult(t, 1400), Locked: true},
	}

	entries := scoring.CategoryLeaderboard(snap)
	if entries[0].OverallRank != 1 || entries[1].OverallRank != 1 {
		t.Errorf("tied ranks = %d, %d, want 1, 1", entries[0].OverallRank, entries[1].OverallRank)
	}
	if entries[2].OverallRank != 2 {
		t.Errorf("next rank = %d, want dense 2", entries[2].OverallRank)
	}
}

// TestDeterminism: two runs over the same snapshot produce identical output.
func TestDeterminism(t *testing.T) {
	nodes := []models.Node{
		{ID: 100, EventID: 1, Name: "Bowline", CountsToOverall: true, IsRelay: true},
		{ID: 200, EventID: 1, Name: "Sheet Bend", CountsToOverall: true},
	}
	snap := singleCategorySnapshot(nodes, 6)
	times := []int{1500, 1500, 900, 2100, 1500, 700}
	for i, cs := range times {
		snap.Attempts = append(snap.Attempts, models.Attempt{
			ID: int64(i + 1), EventID: 1, CompetitorID: int64(i + 1), NodeID: 100,
			AttemptNumber: 1, Result: timeResult(t, cs), Locked: true,
		})
	}

	if !reflect.DeepEqual(scoring.NodeRankings(snap), scoring.NodeRankings(snap)) {
		t.Error("node rankings differ between runs")
	}
	if !reflect.DeepEqual(scoring.CategoryLeaderboard(snap), scoring.CategoryLeaderboard(snap)) {
		t.Error("category leaderboard differs between runs")
	}
	if !reflect.DeepEqual(scoring.RelayLeaderboard(snap), scoring.RelayLeaderboard(snap)) {
		t.Error("relay leaderboard differs between runs")
	}
}

func TestNodeRankings_CategoriesInDisplayOrder(t *testing.T) {
	node := models.Node{ID: 100, EventID: 1, Name: "Bowline", CountsToOverall: true}
	snap := scoring.Snapshot{
		EventID: 1,
		Categories: []models.Category{
			{ID: 20, EventID: 1, Code: "rovers", Name: "Rovers", DisplayOrder: 2},
			{ID: 10, EventID: 1, Code: "scouts", Name: "Scouts", DisplayOrder: 1},
		},
		Nodes: []models.Node{node},
		CategoryNodes: []models.CategoryNode{
			{CategoryID: 10, NodeID: 100, Sequence: 1},
			{CategoryID: 20, NodeID: 100, Sequence: 1},
		},
		Competitors: []models.Competitor{
			{ID: 1, EventID: 1, CategoryID: 20, Name: "Rover Rae"},
			{ID: 2, EventID: 1, CategoryID: 10, Name: "Scout Sam"},
		},
	}

	rankings := scoring.NodeRankings(snap)
	if len(rankings) != 2 {
		t.Fatalf("got %d rankings, want 2", len(rankings))
	}
	if rankings[0].CategoryCode != "scouts" || rankings[1].CategoryCode != "rovers" {
		t.Errorf("category order = %s, %s, want scouts, rovers",
			rankings[0].CategoryCode, rankings[1].CategoryCode)
	}
}
