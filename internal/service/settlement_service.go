package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/notify"
	"github.com/alanyoungcy/forecastarena/internal/scoring"
)

const settlementLockKey = "settlement"

// SettleResult summarizes one settlement pass.
type SettleResult struct {
	SettledBets      int
	ResolvedMarkets  int
	CompletedCohorts int64
}

// SettlementService resolves markets and settles the bets on them. A full
// pass is idempotent: the settled transition fires at most once per bet, a
// market's resolution is terminal, and re-running after a crash picks up
// exactly the work that remains.
type SettlementService struct {
	bets     domain.BetStore
	markets  domain.MarketStore
	cohorts  domain.CohortStore
	ledgers  domain.LedgerStore
	oracle   domain.MarketFeed
	locks    domain.LockManager
	notifier *notify.Notifier
	logger   *slog.Logger

	lockTTL time.Duration
	now     func() time.Time
}

// NewSettlementService creates a SettlementService. locks and notifier are
// optional.
func NewSettlementService(
	bets domain.BetStore,
	markets domain.MarketStore,
	cohorts domain.CohortStore,
	ledgers domain.LedgerStore,
	oracle domain.MarketFeed,
	locks domain.LockManager,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		bets:     bets,
		markets:  markets,
		cohorts:  cohorts,
		ledgers:  ledgers,
		oracle:   oracle,
		locks:    locks,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "settlement")),
		lockTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// SettleMarkets runs one settlement pass: it collects the markets referenced
// by unsettled non-pass bets, asks the oracle which of them resolved, and
// settles every bet on each resolved market. Finally, settling cohorts with
// no unsettled bets left are moved to completed.
func (s *SettlementService) SettleMarkets(ctx context.Context) (SettleResult, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, settlementLockKey, s.lockTTL)
		if err != nil {
			return SettleResult{}, fmt.Errorf("settlement: acquire lock: %w", err)
		}
		defer unlock()
	}

	unsettled, err := s.bets.ListUnsettled(ctx)
	if err != nil {
		return SettleResult{}, fmt.Errorf("settlement: list unsettled: %w", err)
	}

	var result SettleResult
	if len(unsettled) > 0 {
		byMarket := make(map[string][]domain.Bet)
		marketIDs := make([]string, 0)
		for _, b := range unsettled {
			if _, seen := byMarket[b.MarketID]; !seen {
				marketIDs = append(marketIDs, b.MarketID)
			}
			byMarket[b.MarketID] = append(byMarket[b.MarketID], b)
		}

		for _, marketID := range marketIDs {
			if ctx.Err() != nil {
				return result, fmt.Errorf("settlement: interrupted: %w", ctx.Err())
			}

			outcome, ok, err := s.resolveMarket(ctx, marketID)
			if err != nil {
				// One stuck market must not block the rest of the pass.
				s.logger.WarnContext(ctx, "resolution check failed",
					slog.String("market_id", marketID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !ok {
				continue
			}

			settled, err := s.settleMarketBets(ctx, marketID, outcome, byMarket[marketID])
			if err != nil {
				return result, err
			}
			result.SettledBets += settled
			result.ResolvedMarkets++
		}
	}

	completed, err := s.cohorts.CompleteSettled(ctx)
	if err != nil {
		return result, fmt.Errorf("settlement: complete cohorts: %w", err)
	}
	result.CompletedCohorts = completed

	if result.SettledBets > 0 {
		s.logger.InfoContext(ctx, "markets settled",
			slog.Int("markets", result.ResolvedMarkets),
			slog.Int("bets", result.SettledBets),
			slog.Int64("cohorts_completed", result.CompletedCohorts),
		)
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, notify.EventMarketsSettled,
				"Markets settled",
				fmt.Sprintf("%d markets resolved, %d bets settled.", result.ResolvedMarkets, result.SettledBets))
		}
	}

	return result, nil
}

// resolveMarket determines a market's terminal outcome. A market already
// recorded as resolved (crash recovery) skips the oracle; otherwise the
// oracle is consulted and a terminal answer is persisted.
func (s *SettlementService) resolveMarket(ctx context.Context, marketID string) (domain.MarketResolution, bool, error) {
	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	if market.Resolution.Terminal() {
		return market.Resolution, true, nil
	}

	check, err := s.oracle.CheckResolution(ctx, marketID)
	if err != nil {
		return "", false, err
	}
	if !check.Resolved {
		return "", false, nil
	}

	if err := s.markets.SetResolution(ctx, marketID, check.Outcome, s.now().UTC()); err != nil {
		return "", false, err
	}
	return check.Outcome, true, nil
}

// settleMarketBets settles the given unsettled non-pass bets on one resolved
// market, credits the ledgers, and closes out any open pass bets.
//
// Every settled non-pass bet credits bet_amount + pnl back to its ledger:
// a win returns the stake plus net winnings, a loss (pnl = -bet_amount)
// credits nothing, and a voided bet (pnl = 0) gets its stake refunded.
func (s *SettlementService) settleMarketBets(
	ctx context.Context,
	marketID string,
	outcome domain.MarketResolution,
	bets []domain.Bet,
) (int, error) {
	voided := outcome == domain.ResolutionVoided

	settled := 0
	for _, bet := range bets {
		var pnl float64
		var brier *float64
		if !voided {
			amount := 0.0
			if bet.BetAmount != nil {
				amount = *bet.BetAmount
			}
			pnl = scoring.PnL(bet.Action, amount, bet.MarketPriceAtBet, outcome)
			if bet.EstimatedProbability != nil {
				b := scoring.BrierScore(*bet.EstimatedProbability, outcome)
				brier = &b
			}
		}

		if err := s.bets.Settle(ctx, bet.ID, pnl, brier); err != nil {
			return settled, fmt.Errorf("settlement: settle bet %d: %w", bet.ID, err)
		}

		credit := pnl
		if bet.BetAmount != nil {
			credit += *bet.BetAmount
		}
		if credit != 0 {
			if err := s.ledgers.Add(ctx, bet.CohortID, bet.AgentID, credit); err != nil {
				return settled, fmt.Errorf("settlement: credit %s: %w", bet.AgentID, err)
			}
		}
		settled++
	}

	if _, err := s.bets.SettleOpenPasses(ctx, marketID); err != nil {
		return settled, fmt.Errorf("settlement: settle passes %s: %w", marketID, err)
	}
	return settled, nil
}
