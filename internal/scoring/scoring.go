// Package scoring computes the derived ranking views over a snapshot of
// ledger state. Everything here is a pure function of its input: rankings
// are recomputed from scratch per query and never cached, so a result
// always reflects the snapshot it was given.
package scoring

import (
	"sort"

	"github.com/mkarlsen/knotscore/internal/models"
)

// Status describes what a competitor's attempts at one node amount to.
type Status string

const (
	// StatusTime means at least one attempt carries a clean time.
	StatusTime Status = "time"
	// StatusFault means attempts exist but none timed; at least one faulted.
	StatusFault Status = "fault"
	// StatusIncomplete means attempts exist but none carries a usable result.
	StatusIncomplete Status = "incomplete"
	// StatusMissing means no attempt exists for the competitor at the node.
	StatusMissing Status = "missing"
)

// Snapshot is the ledger and catalog state a ranking run operates on.
type Snapshot struct {
	EventID       int64
	Categories    []models.Category
	Nodes         []models.Node
	CategoryNodes []models.CategoryNode
	Competitors   []models.Competitor
	Attempts      []models.Attempt
}

// NodeRanking is one competitor's standing at one node within its category.
type NodeRanking struct {
	EventID              int64  `json:"event_id"`
	CategoryID           int64  `json:"category_id"`
	CategoryCode         string `json:"category_code"`
	NodeID               int64  `json:"node_id"`
	NodeName             string `json:"node_name"`
	CompetitorID         int64  `json:"competitor_id"`
	CompetitorName       string `json:"competitor_name"`
	StartNumber          *int   `json:"start_number,omitempty"`
	Status               Status `json:"status"`
	BestCentiseconds     *int   `json:"best_centiseconds,omitempty"`
	TimeRank             *int   `json:"time_rank,omitempty"`
	Placement            int    `json:"placement"`
	TieBreakCentiseconds int    `json:"tie_break_centiseconds"`
	CompetitorCount      int    `json:"competitor_count"`
}

// LeaderboardEntry is one competitor's overall standing within its category.
type LeaderboardEntry struct {
	EventID         int64  `json:"event_id"`
	CategoryID      int64  `json:"category_id"`
	CategoryCode    string `json:"category_code"`
	CompetitorID    int64  `json:"competitor_id"`
	CompetitorName  string `json:"competitor_name"`
	StartNumber     *int   `json:"start_number,omitempty"`
	PlacementSum    int    `json:"placement_sum"`
	TieBreakSum     int    `json:"tie_break_sum"`
	CountedNodes    int    `json:"counted_nodes"`
	HasNonTime      bool   `json:"has_non_time"`
	CompetitorCount int    `json:"competitor_count"`
	OverallRank     int    `json:"overall_rank"`
}

// NodeRankings ranks every competitor at every node assigned to its
// category. Finishers get a dense rank by best time; competitors without a
// clean time get no rank and a placement equal to the full group size.
func NodeRankings(snap Snapshot) []NodeRanking {
	idx := buildIndex(snap)

	var out []NodeRanking
	for _, cat := range idx.categories {
		roster := idx.roster[cat.ID]
		for _, node := range idx.categoryNodes[cat.ID] {
			out = append(out, rankGroup(snap.EventID, cat, node, roster, idx)...)
		}
	}
	return out
}

// CategoryLeaderboard ranks competitors within each category by placement
// sum over the nodes that count to the overall score, tie-broken by
// cumulative centiseconds.
func CategoryLeaderboard(snap Snapshot) []LeaderboardEntry {
	return leaderboard(snap, func(n models.Node) bool { return n.CountsToOverall })
}

// RelayLeaderboard runs the identical pipeline restricted to relay nodes.
// The relay flag is independent of countsToOverall: a relay node that also
// counts feeds both leaderboards.
func RelayLeaderboard(snap Snapshot) []LeaderboardEntry {
	return leaderboard(snap, func(n models.Node) bool { return n.IsRelay })
}

// --- internals ---

type index struct {
	categories    []models.Category
	roster        map[int64][]models.Competitor   // category id -> competitors
	categoryNodes map[int64][]models.Node         // category id -> assigned nodes in per-category order
	attempts      map[[2]int64][]models.Attempt   // (competitor id, node id) -> attempts
}

func buildIndex(snap Snapshot) index {
	idx := index{
		roster:        make(map[int64][]models.Competitor),
		categoryNodes: make(map[int64][]models.Node),
		attempts:      make(map[[2]int64][]models.Attempt),
	}

	idx.categories = append(idx.categories, snap.Categories...)
	sort.SliceStable(idx.categories, func(i, j int) bool {
		if idx.categories[i].DisplayOrder != idx.categories[j].DisplayOrder {
			return idx.categories[i].DisplayOrder < idx.categories[j].DisplayOrder
		}
		return idx.categories[i].Code < idx.categories[j].Code
	})

	for _, c := range snap.Competitors {
		idx.roster[c.CategoryID] = append(idx.roster[c.CategoryID], c)
	}

	nodeByID := make(map[int64]models.Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodeByID[n.ID] = n
	}
	mappings := append([]models.CategoryNode(nil), snap.CategoryNodes...)
	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].CategoryID != mappings[j].CategoryID {
			return mappings[i].CategoryID < mappings[j].CategoryID
		}
		return mappings[i].Sequence < mappings[j].Sequence
	})
	for _, m := range mappings {
		if n, ok := nodeByID[m.NodeID]; ok {
			idx.categoryNodes[m.CategoryID] = append(idx.categoryNodes[m.CategoryID], n)
		}
	}

	for _, a := range snap.Attempts {
		key := [2]int64{a.CompetitorID, a.NodeID}
		idx.attempts[key] = append(idx.attempts[key], a)
	}

	return idx
}

// groupStatus derives a competitor's status and best time at one node.
func groupStatus(attempts []models.Attempt) (Status, *int) {
	var best *int
	sawFault := false
	for _, a := range attempts {
		if cs, ok := a.Result.Centiseconds(); ok {
			if best == nil || cs < *best {
				v := cs
				best = &v
			}
			continue
		}
		if _, ok := a.Result.FaultCode(); ok {
			sawFault = true
		}
	}
	switch {
	case best != nil:
		return StatusTime, best
	case sawFault:
		return StatusFault, nil
	case len(attempts) > 0:
		return StatusIncomplete, nil
	default:
		return StatusMissing, nil
	}
}

// rankGroup computes the rankings for one (category, node) group. The group
// spans the whole category roster so non-finisher placement always equals
// the roster size, even when nobody finished.
func rankGroup(eventID int64, cat models.Category, node models.Node, roster []models.Competitor, idx index) []NodeRanking {
	groupSize := len(roster)

	rankings := make([]NodeRanking, 0, groupSize)
	var finisherTimes []int
	for _, comp := range roster {
		status, best := groupStatus(idx.attempts[[2]int64{comp.ID, node.ID}])
		r := NodeRanking{
			EventID:         eventID,
			CategoryID:      cat.ID,
			CategoryCode:    cat.Code,
			NodeID:          node.ID,
			NodeName:        node.Name,
			CompetitorID:    comp.ID,
			CompetitorName:  comp.Name,
			StartNumber:     comp.StartNumber,
			Status:          status,
			BestCentiseconds: best,
			CompetitorCount: groupSize,
		}
		if best != nil {
			finisherTimes = append(finisherTimes, *best)
		}
		rankings = append(rankings, r)
	}

	rankByTime := denseRanks(finisherTimes)
	for i := range rankings {
		if best := rankings[i].BestCentiseconds; best != nil {
			rank := rankByTime[*best]
			rankings[i].TimeRank = &rank
			rankings[i].Placement = rank
			rankings[i].TieBreakCentiseconds = *best
		} else {
			// Non-finishers all flatten to last place; the tie-break
			// contribution stays zero.
			rankings[i].Placement = groupSize
		}
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].Placement != rankings[j].Placement {
			return rankings[i].Placement < rankings[j].Placement
		}
		if rankings[i].TieBreakCentiseconds != rankings[j].TieBreakCentiseconds {
			return rankings[i].TieBreakCentiseconds < rankings[j].TieBreakCentiseconds
		}
		return rankings[i].CompetitorName < rankings[j].CompetitorName
	})
	return rankings
}

// denseRanks maps each distinct time to its dense rank: the smallest time
// ranks 1, equal times share a rank, and no rank integer is skipped.
func denseRanks(times []int) map[int]int {
	if len(times) == 0 {
		return nil
	}
	sorted := append([]int(nil), times...)
	sort.Ints(sorted)

	ranks := make(map[int]int)
	rank := 0
	for _, t := range sorted {
		if _, seen := ranks[t]; !seen {
			rank++
			ranks[t] = rank
		}
	}
	return ranks
}

func leaderboard(snap Snapshot, include func(models.Node) bool) []LeaderboardEntry {
	filtered := snap
	filtered.Nodes = nil
	for _, n := range snap.Nodes {
		if include(n) {
			filtered.Nodes = append(filtered.Nodes, n)
		}
	}

	rankings := NodeRankings(filtered)

	idx := buildIndex(filtered)
	scoreByCompetitor := make(map[int64]*LeaderboardEntry)
	for _, r := range rankings {
		e, ok := scoreByCompetitor[r.CompetitorID]
		if !ok {
			e = &LeaderboardEntry{
				EventID:        r.EventID,
				CategoryID:     r.CategoryID,
				CategoryCode:   r.CategoryCode,
				CompetitorID:   r.CompetitorID,
				CompetitorName: r.CompetitorName,
				StartNumber:    r.StartNumber,
			}
			scoreByCompetitor[r.CompetitorID] = e
		}
		e.PlacementSum += r.Placement
		e.TieBreakSum += r.TieBreakCentiseconds
		e.CountedNodes++
		if r.Status != StatusTime {
			e.HasNonTime = true
		}
	}

	var out []LeaderboardEntry
	for _, cat := range idx.categories {
		// A category with none of the included nodes assigned has no
		// leaderboard of this kind (e.g. no relay node).
		if len(idx.categoryNodes[cat.ID]) == 0 {
			continue
		}
		roster := idx.roster[cat.ID]
		entries := make([]LeaderboardEntry, 0, len(roster))
		for _, comp := range roster {
			if e, ok := scoreByCompetitor[comp.ID]; ok {
				e.CompetitorCount = len(roster)
				entries = append(entries, *e)
			}
		}

		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].PlacementSum != entries[j].PlacementSum {
				return entries[i].PlacementSum < entries[j].PlacementSum
			}
			if entries[i].TieBreakSum != entries[j].TieBreakSum {
				return entries[i].TieBreakSum < entries[j].TieBreakSum
			}
			return entries[i].CompetitorName < entries[j].CompetitorName
		})

		rank := 0
		for i := range entries {
			if i == 0 || entries[i].PlacementSum != entries[i-1].PlacementSum ||
				entries[i].TieBreakSum != entries[i-1].TieBreakSum {
				rank++
			}
			entries[i].OverallRank = rank
		}
		out = append(out, entries...)
	}
	return out
}
