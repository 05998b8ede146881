package handlers

import (
	"github.com/mkarlsen/knotscore/internal/models"
	"github.com/mkarlsen/knotscore/internal/scoring"
	"github.com/mkarlsen/knotscore/internal/timefmt"
)

// AttemptResponse is an attempt plus the human display form of its time.
type AttemptResponse struct {
	models.Attempt
	Display string `json:"display,omitempty"`
}

func newAttemptResponse(a models.Attempt) AttemptResponse {
	resp := AttemptResponse{Attempt: a}
	if cs, ok := a.Result.Centiseconds(); ok {
		resp.Display = timefmt.Format(cs)
	}
	return resp
}

func newAttemptResponses(attempts []models.Attempt) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, newAttemptResponse(a))
	}
	return out
}

// NodeRankingResponse is a node ranking row with display times attached.
type NodeRankingResponse struct {
	scoring.NodeRanking
	BestDisplay string `json:"best_display,omitempty"`
}

func newNodeRankingResponses(rankings []scoring.NodeRanking) []NodeRankingResponse {
	out := make([]NodeRankingResponse, 0, len(rankings))
	for _, r := range rankings {
		resp := NodeRankingResponse{NodeRanking: r}
		if r.BestCentiseconds != nil {
			resp.BestDisplay = timefmt.Format(*r.BestCentiseconds)
		}
		out = append(out, resp)
	}
	return out
}

// LeaderboardEntryResponse is a leaderboard row with the tie-break sum
// rendered as mm:ss.cc.
type LeaderboardEntryResponse struct {
	scoring.LeaderboardEntry
	TieBreakDisplay string `json:"tie_break_display"`
}

func newLeaderboardResponses(entries []scoring.LeaderboardEntry) []LeaderboardEntryResponse {
	out := make([]LeaderboardEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LeaderboardEntryResponse{
			LeaderboardEntry: e,
			TieBreakDisplay:  timefmt.Format(e.TieBreakSum),
		})
	}
	return out
}

// TokenResponse carries a freshly issued competitor access token.
type TokenResponse struct {
	CompetitorID int64  `json:"competitor_id"`
	AccessToken  string `json:"access_token"`
}
