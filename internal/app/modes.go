package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/server"
	"github.com/alanyoungcy/forecastarena/internal/server/handler"
)

// ServerMode runs the HTTP API until the context is cancelled. Rounds,
// settlement, and cohort rollover happen only when an external scheduler
// hits the trigger endpoints.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps); err != nil {
		return fmt.Errorf("server mode: %w", err)
	}
	return g.Wait()
}

// RoundMode runs a single round end to end: the weekly cohort is created if
// due, the market snapshot is refreshed, and one round is executed.
func (a *App) RoundMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting round mode")

	cohort, created, err := deps.CohortSvc.CreateCohortIfDue(ctx)
	if err != nil {
		return fmt.Errorf("round mode: cohort: %w", err)
	}
	if created {
		a.logger.InfoContext(ctx, "cohort created", slog.String("cohort_id", cohort.ID))
	}

	result, err := deps.RoundSvc.RunRound(ctx)
	if err != nil {
		return fmt.Errorf("round mode: %w", err)
	}
	a.logger.InfoContext(ctx, "round completed",
		slog.String("round_id", result.Round.ID),
		slog.Int("markets", len(result.Round.MarketIDs)),
		slog.Int("bets", len(result.Bets)),
	)
	return nil
}

// SettleMode runs a single settlement pass.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settle mode")

	result, err := deps.Settlement.SettleMarkets(ctx)
	if err != nil {
		return fmt.Errorf("settle mode: %w", err)
	}
	a.logger.InfoContext(ctx, "settlement completed",
		slog.Int("markets_resolved", result.ResolvedMarkets),
		slog.Int("bets_settled", result.SettledBets),
		slog.Int64("cohorts_completed", result.CompletedCohorts),
	)
	return nil
}

// CohortMode creates the weekly cohort if due and exits.
func (a *App) CohortMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting cohort mode")

	cohort, created, err := deps.CohortSvc.CreateCohortIfDue(ctx)
	if err != nil {
		return fmt.Errorf("cohort mode: %w", err)
	}
	a.logger.InfoContext(ctx, "cohort rollover done",
		slog.String("cohort_id", cohort.ID),
		slog.Bool("created", created),
	)
	return nil
}

// SyncMode refreshes the market snapshot from the feed and exits.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	n, err := deps.MarketSvc.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync mode: %w", err)
	}
	a.logger.InfoContext(ctx, "markets synced", slog.Int("count", n))
	return nil
}

// LeaderboardMode prints the current standings to stdout. When an active
// cohort exists the board is scoped to it, otherwise it covers all time.
func (a *App) LeaderboardMode(ctx context.Context, deps *Dependencies) error {
	var cohortID *string
	cohort, err := deps.Cohorts.GetActive(ctx)
	switch {
	case err == nil:
		cohortID = &cohort.ID
		fmt.Printf("Cohort %s (%s to %s)\n\n",
			cohort.ID,
			cohort.StartDate.Format("2006-01-02"),
			cohort.EndDate.Format("2006-01-02"),
		)
	case errors.Is(err, domain.ErrNoActiveCohort):
		fmt.Println("All-time standings (no active cohort)")
	default:
		return fmt.Errorf("leaderboard mode: active cohort: %w", err)
	}

	stats, err := deps.Scoring.Leaderboard(ctx, cohortID)
	if err != nil {
		return fmt.Errorf("leaderboard mode: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Agent", "Bankroll", "PnL", "Adj PnL", "ROI %", "Brier", "Win %", "Pass %", "Bets", "Cost $")
	for i, s := range stats {
		table.Append(
			fmt.Sprintf("%d", i+1),
			s.DisplayName,
			fmt.Sprintf("%.2f", s.Bankroll),
			fmt.Sprintf("%+.2f", s.TotalPnL),
			fmt.Sprintf("%+.2f", s.AdjustedPnL),
			fmt.Sprintf("%+.1f", s.ROIPct),
			fmt.Sprintf("%.4f", s.BrierScore),
			fmt.Sprintf("%.1f", s.WinRate*100),
			fmt.Sprintf("%.1f", s.PassRate*100),
			fmt.Sprintf("%d", s.TotalBets),
			fmt.Sprintf("%.2f", s.TotalAPICost),
		)
	}
	table.Render()

	summary, err := deps.Budget.Summary(ctx)
	if err != nil {
		return fmt.Errorf("leaderboard mode: budget: %w", err)
	}
	fmt.Printf("\nSpend: $%.2f of $%.2f (%.1f%%)\n",
		summary.TotalSpent, summary.BudgetCap, summary.BudgetPctUsed)
	return nil
}

// FullMode runs everything in one process: the HTTP API plus internal
// schedulers for market sync, rounds, and settlement.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.Duration("round_interval", a.cfg.Arena.RoundInterval.Duration),
		slog.Duration("settle_interval", a.cfg.Arena.SettleInterval.Duration),
		slog.Duration("sync_interval", a.cfg.Arena.SyncInterval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startHTTPServer(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	// Prime the market snapshot so the first round does not start cold.
	if _, err := deps.MarketSvc.Sync(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial market sync failed",
			slog.String("error", err.Error()),
		)
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Arena.SyncInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := deps.MarketSvc.Sync(ctx); err != nil {
					a.logger.ErrorContext(ctx, "scheduled market sync failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Arena.RoundInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.runScheduledRound(ctx, deps)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Arena.SettleInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				result, err := deps.Settlement.SettleMarkets(ctx)
				if err != nil {
					if errors.Is(err, domain.ErrLockHeld) {
						continue
					}
					a.logger.ErrorContext(ctx, "scheduled settlement failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if result.SettledBets > 0 {
					a.logger.InfoContext(ctx, "scheduled settlement done",
						slog.Int("markets_resolved", result.ResolvedMarkets),
						slog.Int("bets_settled", result.SettledBets),
					)
				}
			}
		}
	})

	return g.Wait()
}

// runScheduledRound performs one cohort-check-then-round cycle. Budget
// exhaustion stops new rounds but is not an error; settlement keeps running
// until the open bets drain.
func (a *App) runScheduledRound(ctx context.Context, deps *Dependencies) {
	if _, _, err := deps.CohortSvc.CreateCohortIfDue(ctx); err != nil {
		if errors.Is(err, domain.ErrBudgetExhausted) {
			a.logger.WarnContext(ctx, "budget exhausted, skipping cohort rollover")
			return
		}
		a.logger.ErrorContext(ctx, "cohort rollover failed",
			slog.String("error", err.Error()),
		)
		return
	}

	result, err := deps.RoundSvc.RunRound(ctx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBudgetExhausted):
			a.logger.WarnContext(ctx, "budget exhausted, skipping round")
		case errors.Is(err, domain.ErrNoMarkets):
			a.logger.WarnContext(ctx, "no admissible markets, skipping round")
		case errors.Is(err, domain.ErrLockHeld):
			a.logger.InfoContext(ctx, "round already running elsewhere")
		default:
			a.logger.ErrorContext(ctx, "scheduled round failed",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	a.logger.InfoContext(ctx, "scheduled round completed",
		slog.String("round_id", result.Round.ID),
		slog.Int("markets", len(result.Round.MarketIDs)),
		slog.Int("bets", len(result.Bets)),
	)
}

// startHTTPServer adds the HTTP API server and its shutdown watcher to the
// given errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	cronSecret, err := a.cfg.CronSecret()
	if err != nil {
		return err
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.PG,
			"redis":    deps.Redis,
		}, a.logger),
		Leaderboard: handler.NewLeaderboardHandler(deps.Scoring, a.logger),
		Costs:       handler.NewCostHandler(deps.Budget, a.logger),
		Rounds:      handler.NewRoundHandler(deps.RoundSvc, deps.Rounds, deps.Bets, deps.BlobReader, a.logger),
		Cohorts:     handler.NewCohortHandler(deps.CohortSvc, deps.Ledgers, a.logger),
		Settlement:  handler.NewSettlementHandler(deps.Settlement, a.logger),
		Markets:     handler.NewMarketHandler(deps.MarketSvc, deps.Markets, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		CronSecret:  cronSecret,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return nil
}
