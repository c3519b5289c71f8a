package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/forecast"
	"github.com/alanyoungcy/forecastarena/internal/notify"
)

// roundLockKey serializes round execution across processes; running a round
// is not idempotent (it debits ledgers), so overlapping triggers must not
// double-run.
const roundLockKey = "round"

// RoundArchiver persists a completed round's audit bundle (prompts and raw
// model output per bet) to durable storage.
type RoundArchiver interface {
	ArchiveRound(ctx context.Context, cohortID, roundID string, bets []domain.Bet) error
}

// RoundConfig holds the tunable parameters for round execution.
type RoundConfig struct {
	MarketsPerRound  int
	MinYesPrice      float64
	MaxYesPrice      float64
	PreviousBetLimit int
	LockTTL          time.Duration
}

// DefaultRoundConfig returns the standard round parameters.
func DefaultRoundConfig() RoundConfig {
	return RoundConfig{
		MarketsPerRound:  15,
		MinYesPrice:      0.05,
		MaxYesPrice:      0.95,
		PreviousBetLimit: 3,
		LockTTL:          10 * time.Minute,
	}
}

// RoundResult is the outcome of one round execution.
type RoundResult struct {
	Round domain.Round
	Bets  []domain.Bet
}

// RoundService executes rounds: it selects markets, fans each one out to all
// forecasting agents concurrently, records their bets, and derives the
// ensemble bet per market.
type RoundService struct {
	cohorts     domain.CohortStore
	marketStore domain.MarketStore
	rounds      domain.RoundStore
	bets        domain.BetStore
	ledgers     domain.LedgerStore
	agents      domain.AgentStore
	markets     *MarketService
	forecaster  *forecast.Client
	budget      *BudgetService
	locks       domain.LockManager
	archiver    RoundArchiver
	notifier    *notify.Notifier
	cfg         RoundConfig
	logger      *slog.Logger
}

// NewRoundService creates a RoundService. markets, locks, archiver, and
// notifier are optional; a nil markets service skips the pre-round feed sync
// and a nil lock manager skips distributed locking.
func NewRoundService(
	cohorts domain.CohortStore,
	marketStore domain.MarketStore,
	rounds domain.RoundStore,
	bets domain.BetStore,
	ledgers domain.LedgerStore,
	agents domain.AgentStore,
	markets *MarketService,
	forecaster *forecast.Client,
	budget *BudgetService,
	locks domain.LockManager,
	archiver RoundArchiver,
	notifier *notify.Notifier,
	cfg RoundConfig,
	logger *slog.Logger,
) *RoundService {
	return &RoundService{
		cohorts:     cohorts,
		marketStore: marketStore,
		rounds:      rounds,
		bets:        bets,
		ledgers:     ledgers,
		agents:      agents,
		markets:     markets,
		forecaster:  forecaster,
		budget:      budget,
		locks:       locks,
		archiver:    archiver,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "round")),
	}
}

// RunRound executes one full round against the active cohort. Markets are
// processed sequentially; within each market every forecasting agent runs
// concurrently and the ensemble bet is derived after the join barrier.
//
// If ctx expires mid-round the partial result is returned with the round
// left in_progress. Interrupted rounds are not resumed: each call opens a
// fresh round, because a (market, agent) pair debits the bankroll before
// its bet row lands and replaying the pair would debit twice.
func (s *RoundService) RunRound(ctx context.Context) (RoundResult, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, roundLockKey, s.cfg.LockTTL)
		if err != nil {
			return RoundResult{}, fmt.Errorf("round: acquire lock: %w", err)
		}
		defer unlock()
	}

	ok, err := s.budget.CanAffordRound(ctx)
	if err != nil {
		return RoundResult{}, err
	}
	if !ok {
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, notify.EventBudgetExhausted,
				"Budget exhausted",
				fmt.Sprintf("Round skipped: spend cap %.2f USD reached.", s.budget.Cap()))
		}
		return RoundResult{}, fmt.Errorf("round: %w", domain.ErrBudgetExhausted)
	}

	cohort, err := s.cohorts.GetActive(ctx)
	if err != nil {
		return RoundResult{}, fmt.Errorf("round: active cohort: %w", err)
	}

	if s.markets != nil {
		if _, err := s.markets.Sync(ctx); err != nil {
			// A stale store is still usable; the feed may just be down.
			s.logger.WarnContext(ctx, "pre-round sync failed",
				slog.String("error", err.Error()),
			)
		}
	}

	selected, err := s.selectMarkets(ctx)
	if err != nil {
		return RoundResult{}, err
	}
	if len(selected) == 0 {
		return RoundResult{}, fmt.Errorf("round: %w", domain.ErrNoMarkets)
	}

	marketIDs := make([]string, 0, len(selected))
	for _, m := range selected {
		marketIDs = append(marketIDs, m.ID)
	}

	round := domain.Round{
		ID:        uuid.New().String(),
		CohortID:  cohort.ID,
		MarketIDs: marketIDs,
		Status:    domain.RoundStatusInProgress,
	}
	if err := s.rounds.Create(ctx, round); err != nil {
		return RoundResult{}, fmt.Errorf("round: create: %w", err)
	}

	forecasters, err := s.agents.ListForecasters(ctx)
	if err != nil {
		return RoundResult{}, fmt.Errorf("round: list forecasters: %w", err)
	}

	result := RoundResult{Round: round}
	for _, market := range selected {
		if ctx.Err() != nil {
			// Deadline hit: leave the round in_progress with what we have.
			s.logger.WarnContext(ctx, "round interrupted",
				slog.String("round_id", round.ID),
				slog.Int("bets", len(result.Bets)),
			)
			return result, fmt.Errorf("round: interrupted: %w", ctx.Err())
		}

		marketBets, err := s.runMarket(ctx, cohort.ID, round.ID, market, forecasters)
		if err != nil {
			return result, err
		}
		result.Bets = append(result.Bets, marketBets...)
	}

	if err := s.rounds.SetStatus(ctx, round.ID, domain.RoundStatusCompleted); err != nil {
		return result, fmt.Errorf("round: complete: %w", err)
	}
	result.Round.Status = domain.RoundStatusCompleted

	if err := s.cohorts.IncrementMarketCount(ctx, cohort.ID, len(selected)); err != nil {
		return result, fmt.Errorf("round: bump market count: %w", err)
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveRound(ctx, cohort.ID, round.ID, result.Bets); err != nil {
			// The store already holds every bet; the archive is a convenience copy.
			s.logger.WarnContext(ctx, "round archive failed",
				slog.String("round_id", round.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "round completed",
		slog.String("round_id", round.ID),
		slog.String("cohort_id", cohort.ID),
		slog.Int("markets", len(selected)),
		slog.Int("bets", len(result.Bets)),
	)
	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, notify.EventRoundCompleted,
			"Round completed",
			fmt.Sprintf("Round %s: %d markets, %d bets recorded.", round.ID, len(selected), len(result.Bets)))
	}

	return result, nil
}

// selectMarkets returns up to MarketsPerRound unresolved markets whose
// implied yes-probability sits inside the uncertainty band, ranked by 24h
// volume descending.
func (s *RoundService) selectMarkets(ctx context.Context) ([]domain.Market, error) {
	open, err := s.marketStore.ListOpen(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("round: list open markets: %w", err)
	}

	selected := make([]domain.Market, 0, s.cfg.MarketsPerRound)
	for _, m := range open {
		if m.YesPrice < s.cfg.MinYesPrice || m.YesPrice > s.cfg.MaxYesPrice {
			continue
		}
		selected = append(selected, m)
		if len(selected) == s.cfg.MarketsPerRound {
			break
		}
	}
	return selected, nil
}

// runMarket fans one market out to every forecaster concurrently, waits for
// all of them, then derives and records the ensemble bet.
func (s *RoundService) runMarket(
	ctx context.Context,
	cohortID, roundID string,
	market domain.Market,
	forecasters []domain.Agent,
) ([]domain.Bet, error) {
	results := make([]domain.Bet, len(forecasters))

	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range forecasters {
		g.Go(func() error {
			bet, err := s.placeBet(gctx, cohortID, roundID, market, agent)
			if err != nil {
				return err
			}
			results[i] = bet
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bets := results
	ensemble, ok, err := s.placeEnsembleBet(ctx, cohortID, roundID, market, results)
	if err != nil {
		return nil, err
	}
	if ok {
		bets = append(bets, ensemble)
	}
	return bets, nil
}

// placeBet runs one (agent, market) forecast and records the resulting bet.
// Gateway failures become forced passes with the accumulated cost attached;
// only storage failures and context cancellation propagate.
func (s *RoundService) placeBet(
	ctx context.Context,
	cohortID, roundID string,
	market domain.Market,
	agent domain.Agent,
) (domain.Bet, error) {
	bankroll, err := s.ledgers.Bankroll(ctx, cohortID, agent.ID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("round: bankroll %s: %w", agent.ID, err)
	}

	previous, err := s.bets.ListRecentForMarket(ctx, agent.ID, market.ID, cohortID, s.cfg.PreviousBetLimit)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("round: previous bets %s: %w", agent.ID, err)
	}

	bet := domain.Bet{
		AgentID:          agent.ID,
		MarketID:         market.ID,
		CohortID:         cohortID,
		RoundID:          roundID,
		Action:           domain.ActionPass,
		MarketPriceAtBet: market.YesPrice,
		PromptText:       forecast.BuildPrompt(market, previous),
	}

	res, err := s.forecaster.Forecast(ctx, agent, market, previous)
	bet.RawResponse = res.RawText
	bet.APICost = res.Cost
	bet.APILatencyMs = res.LatencyMs
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Bet{}, err
		}
		// Gateway exhausted its retries: forced pass, cost still recorded.
		s.logger.WarnContext(ctx, "forecast failed, forcing pass",
			slog.String("agent_id", agent.ID),
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
	} else if res.Prediction != nil {
		p := res.Prediction
		bet.Action = p.Action
		bet.Confidence = &p.Confidence
		bet.BetSizePct = &p.BetSizePct
		bet.EstimatedProbability = &p.EstimatedProbability
		bet.Reasoning = p.Reasoning
		bet.KeyFactors = p.KeyFactors

		if !bet.IsPass() {
			amount := bankroll * p.BetSizePct / 100
			bet.BetAmount = &amount
			if err := s.ledgers.Add(ctx, cohortID, agent.ID, -amount); err != nil {
				return domain.Bet{}, fmt.Errorf("round: debit %s: %w", agent.ID, err)
			}
		}
	}

	if err := s.bets.Insert(ctx, &bet); err != nil {
		return domain.Bet{}, fmt.Errorf("round: insert bet %s/%s: %w", agent.ID, market.ID, err)
	}
	return bet, nil
}

// placeEnsembleBet derives the synthetic ensemble bet from the concrete
// agents' bets on one market: majority vote on direction (tie passes),
// arithmetic means over the non-pass bets for the numeric fields. No bet is
// recorded when every agent passed.
func (s *RoundService) placeEnsembleBet(
	ctx context.Context,
	cohortID, roundID string,
	market domain.Market,
	agentBets []domain.Bet,
) (domain.Bet, bool, error) {
	var yesCount, noCount int
	var sumProb, sumConf, sumPct float64
	nonPass := 0
	for _, b := range agentBets {
		switch b.Action {
		case domain.ActionBetYes:
			yesCount++
		case domain.ActionBetNo:
			noCount++
		default:
			continue
		}
		nonPass++
		if b.EstimatedProbability != nil {
			sumProb += *b.EstimatedProbability
		}
		if b.Confidence != nil {
			sumConf += *b.Confidence
		}
		if b.BetSizePct != nil {
			sumPct += *b.BetSizePct
		}
	}
	if nonPass == 0 {
		return domain.Bet{}, false, nil
	}

	action := domain.ActionPass
	if yesCount > noCount {
		action = domain.ActionBetYes
	} else if noCount > yesCount {
		action = domain.ActionBetNo
	}

	avgProb := sumProb / float64(nonPass)
	avgConf := sumConf / float64(nonPass)
	avgPct := sumPct / float64(nonPass)
	passCount := len(agentBets) - nonPass

	reasoning := fmt.Sprintf("Ensemble of %d models: %d bet YES, %d bet NO, %d passed. Avg probability: %.3f",
		len(agentBets), yesCount, noCount, passCount, avgProb)

	bet := domain.Bet{
		AgentID:              domain.EnsembleAgentID,
		MarketID:             market.ID,
		CohortID:             cohortID,
		RoundID:              roundID,
		Action:               action,
		Confidence:           &avgConf,
		BetSizePct:           &avgPct,
		EstimatedProbability: &avgProb,
		MarketPriceAtBet:     market.YesPrice,
		Reasoning:            reasoning,
	}

	if action != domain.ActionPass {
		bankroll, err := s.ledgers.Bankroll(ctx, cohortID, domain.EnsembleAgentID)
		if err != nil {
			return domain.Bet{}, false, fmt.Errorf("round: ensemble bankroll: %w", err)
		}
		amount := bankroll * avgPct / 100
		bet.BetAmount = &amount
		if err := s.ledgers.Add(ctx, cohortID, domain.EnsembleAgentID, -amount); err != nil {
			return domain.Bet{}, false, fmt.Errorf("round: debit ensemble: %w", err)
		}
	}

	if err := s.bets.Insert(ctx, &bet); err != nil {
		return domain.Bet{}, false, fmt.Errorf("round: insert ensemble bet %s: %w", market.ID, err)
	}
	return bet, true, nil
}

// ListRecent returns the latest rounds.
func (s *RoundService) ListRecent(ctx context.Context, limit int) ([]domain.Round, error) {
	return s.rounds.ListRecent(ctx, limit)
}
