package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/scoring"
)

// ScoringService is the slice of the scoring layer the leaderboard handler
// needs.
type ScoringService interface {
	Leaderboard(ctx context.Context, cohortID *string) ([]domain.AgentStats, error)
	Clusters(ctx context.Context, cohortID *string) (map[string]string, error)
	CalibrationCurve(ctx context.Context, agentID string, cohortID *string) ([]scoring.CalibrationBucket, error)
	Decomposition(ctx context.Context, agentID string, cohortID *string) (scoring.Decomposition, error)
}

// LeaderboardHandler serves agent rankings and skill diagnostics.
type LeaderboardHandler struct {
	scoring ScoringService
	logger  *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(scoring ScoringService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{scoring: scoring, logger: logger}
}

type leaderboardRow struct {
	AgentID       string  `json:"agent_id"`
	DisplayName   string  `json:"display_name"`
	Provider      string  `json:"provider"`
	Bankroll      float64 `json:"bankroll"`
	TotalPnL      float64 `json:"total_pnl"`
	ROIPct        float64 `json:"roi_pct"`
	BrierScore    float64 `json:"brier_score"`
	TotalBets     int     `json:"total_bets"`
	WinRate       float64 `json:"win_rate"`
	PassRate      float64 `json:"pass_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgBetSize    float64 `json:"avg_bet_size"`
	TotalAPICost  float64 `json:"total_api_cost"`
	AvgDifficulty float64 `json:"avg_difficulty"`
	AdjustedPnL   float64 `json:"adjusted_pnl"`
}

// Leaderboard returns the ranked agent table, optionally scoped to one
// cohort.
// GET /api/leaderboard?cohort=2026-W10
func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scoring.Leaderboard(r.Context(), cohortScope(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build leaderboard")
		return
	}

	rows := make([]leaderboardRow, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, leaderboardRow{
			AgentID:       s.AgentID,
			DisplayName:   s.DisplayName,
			Provider:      s.Provider,
			Bankroll:      s.Bankroll,
			TotalPnL:      s.TotalPnL,
			ROIPct:        s.ROIPct,
			BrierScore:    s.BrierScore,
			TotalBets:     s.TotalBets,
			WinRate:       s.WinRate,
			PassRate:      s.PassRate,
			AvgConfidence: s.AvgConfidence,
			AvgBetSize:    s.AvgBetSize,
			TotalAPICost:  s.TotalAPICost,
			AvgDifficulty: s.AvgDifficulty,
			AdjustedPnL:   s.AdjustedPnL,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}

// Clusters returns the market correlation-cluster assignment.
// GET /api/clusters?cohort=2026-W10
func (h *LeaderboardHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.scoring.Clusters(r.Context(), cohortScope(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "clusters failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute clusters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

// Calibration returns an agent's decile calibration curve.
// GET /api/agents/{id}/calibration?cohort=2026-W10
func (h *LeaderboardHandler) Calibration(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	curve, err := h.scoring.CalibrationCurve(r.Context(), agentID, cohortScope(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "calibration failed",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute calibration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id": agentID,
		"curve":    curve,
	})
}

// Decomposition returns the Murphy decomposition of an agent's Brier score.
// GET /api/agents/{id}/decomposition?cohort=2026-W10
func (h *LeaderboardHandler) Decomposition(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	dec, err := h.scoring.Decomposition(r.Context(), agentID, cohortScope(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "decomposition failed",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute decomposition")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":    agentID,
		"reliability": dec.Reliability,
		"resolution":  dec.Resolution,
		"uncertainty": dec.Uncertainty,
	})
}
