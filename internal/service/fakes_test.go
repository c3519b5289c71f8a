package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/forecast"
)

// memDB is a shared in-memory backing store for the fake store
// implementations below.
type memDB struct {
	mu sync.Mutex

	agents  []domain.Agent
	cohorts map[string]*domain.Cohort
	ledgers map[string]float64 // cohortID + "|" + agentID
	markets map[string]*domain.Market
	rounds  map[string]*domain.Round
	bets    []*domain.Bet

	nextBetID int64
	nowTick   time.Time
}

func newMemDB() *memDB {
	return &memDB{
		cohorts: make(map[string]*domain.Cohort),
		ledgers: make(map[string]float64),
		markets: make(map[string]*domain.Market),
		rounds:  make(map[string]*domain.Round),
		nowTick: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func (db *memDB) ledgerKey(cohortID, agentID string) string {
	return cohortID + "|" + agentID
}

// tick returns a strictly increasing timestamp for bet ordering.
func (db *memDB) tick() time.Time {
	db.nowTick = db.nowTick.Add(time.Second)
	return db.nowTick
}

// --- AgentStore ---

type memAgentStore struct{ db *memDB }

func (s *memAgentStore) Seed(_ context.Context, agents []domain.Agent) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
outer:
	for _, a := range agents {
		for _, existing := range s.db.agents {
			if existing.ID == a.ID {
				continue outer
			}
		}
		s.db.agents = append(s.db.agents, a)
	}
	return nil
}

func (s *memAgentStore) GetByID(_ context.Context, id string) (domain.Agent, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.agents {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Agent{}, domain.ErrNotFound
}

func (s *memAgentStore) List(_ context.Context) ([]domain.Agent, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return append([]domain.Agent(nil), s.db.agents...), nil
}

func (s *memAgentStore) ListForecasters(_ context.Context) ([]domain.Agent, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Agent
	for _, a := range s.db.agents {
		if !a.IsEnsemble() {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- CohortStore ---

type memCohortStore struct{ db *memDB }

func (s *memCohortStore) Rollover(_ context.Context, c domain.Cohort, agentIDs []string, bankroll float64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, exists := s.db.cohorts[c.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.db.cohorts {
		if existing.Status == domain.CohortStatusActive {
			existing.Status = domain.CohortStatusSettling
		}
	}
	c.Status = domain.CohortStatusActive
	s.db.cohorts[c.ID] = &c
	for _, agentID := range agentIDs {
		s.db.ledgers[s.db.ledgerKey(c.ID, agentID)] = bankroll
	}
	return nil
}

func (s *memCohortStore) GetByID(_ context.Context, id string) (domain.Cohort, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if c, ok := s.db.cohorts[id]; ok {
		return *c, nil
	}
	return domain.Cohort{}, domain.ErrNotFound
}

func (s *memCohortStore) GetActive(_ context.Context) (domain.Cohort, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, c := range s.db.cohorts {
		if c.Status == domain.CohortStatusActive {
			return *c, nil
		}
	}
	return domain.Cohort{}, domain.ErrNoActiveCohort
}

func (s *memCohortStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Cohort, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Cohort
	for _, c := range s.db.cohorts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (s *memCohortStore) IncrementMarketCount(_ context.Context, id string, delta int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.cohorts[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.MarketCount += delta
	return nil
}

func (s *memCohortStore) CompleteSettled(_ context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var moved int64
	for _, c := range s.db.cohorts {
		if c.Status != domain.CohortStatusSettling {
			continue
		}
		unsettled := false
		for _, b := range s.db.bets {
			if b.CohortID == c.ID && !b.Settled {
				unsettled = true
				break
			}
		}
		if !unsettled {
			c.Status = domain.CohortStatusCompleted
			moved++
		}
	}
	return moved, nil
}

// --- LedgerStore ---

type memLedgerStore struct{ db *memDB }

func (s *memLedgerStore) Bankroll(_ context.Context, cohortID, agentID string) (float64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.ledgers[s.db.ledgerKey(cohortID, agentID)]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return v, nil
}

func (s *memLedgerStore) Add(_ context.Context, cohortID, agentID string, delta float64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := s.db.ledgerKey(cohortID, agentID)
	if _, ok := s.db.ledgers[key]; !ok {
		return domain.ErrNotFound
	}
	s.db.ledgers[key] += delta
	return nil
}

func (s *memLedgerStore) ListByCohort(_ context.Context, cohortID string) ([]domain.Ledger, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Ledger
	for key, bankroll := range s.db.ledgers {
		cid, aid, _ := strings.Cut(key, "|")
		if cid == cohortID {
			out = append(out, domain.Ledger{CohortID: cid, AgentID: aid, Bankroll: bankroll})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bankroll > out[j].Bankroll })
	return out, nil
}

// --- MarketStore ---

type memMarketStore struct{ db *memDB }

func (s *memMarketStore) UpsertBatch(_ context.Context, markets []domain.Market) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, m := range markets {
		if existing, ok := s.db.markets[m.ID]; ok {
			m.Resolution = existing.Resolution
			m.ResolvedAt = existing.ResolvedAt
		}
		cp := m
		s.db.markets[m.ID] = &cp
	}
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if m, ok := s.db.markets[id]; ok {
		return *m, nil
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *memMarketStore) ListOpen(_ context.Context, limit int) ([]domain.Market, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Market
	for _, m := range s.db.markets {
		if m.Resolution == domain.ResolutionOpen {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Volume24h > out[j].Volume24h })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memMarketStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Market
	for _, m := range s.db.markets {
		out = append(out, *m)
	}
	return out, nil
}

func (s *memMarketStore) SetResolution(_ context.Context, id string, res domain.MarketResolution, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Resolution != domain.ResolutionOpen {
		return nil
	}
	m.Resolution = res
	m.ResolvedAt = &at
	return nil
}

func (s *memMarketStore) Count(_ context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return int64(len(s.db.markets)), nil
}

// --- RoundStore ---

type memRoundStore struct{ db *memDB }

func (s *memRoundStore) Create(_ context.Context, r domain.Round) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, exists := s.db.rounds[r.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.CreatedAt = s.db.tick()
	s.db.rounds[r.ID] = &r
	return nil
}

func (s *memRoundStore) SetStatus(_ context.Context, id string, status domain.RoundStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rounds[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	return nil
}

func (s *memRoundStore) GetByID(_ context.Context, id string) (domain.Round, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if r, ok := s.db.rounds[id]; ok {
		return *r, nil
	}
	return domain.Round{}, domain.ErrNotFound
}

func (s *memRoundStore) ListRecent(_ context.Context, limit int) ([]domain.Round, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Round
	for _, r := range s.db.rounds {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- BetStore ---

type memBetStore struct{ db *memDB }

func (s *memBetStore) Insert(_ context.Context, b *domain.Bet) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.bets {
		if existing.AgentID == b.AgentID && existing.MarketID == b.MarketID && existing.RoundID == b.RoundID {
			b.ID = existing.ID
			return nil
		}
	}
	s.db.nextBetID++
	b.ID = s.db.nextBetID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.db.tick()
	}
	cp := *b
	s.db.bets = append(s.db.bets, &cp)
	return nil
}

func (s *memBetStore) ListByRound(_ context.Context, roundID string) ([]domain.Bet, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Bet
	for _, b := range s.db.bets {
		if b.RoundID == roundID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memBetStore) ListUnsettled(_ context.Context) ([]domain.Bet, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Bet
	for _, b := range s.db.bets {
		if !b.Settled && !b.IsPass() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memBetStore) ListRecentForMarket(_ context.Context, agentID, marketID, cohortID string, limit int) ([]domain.Bet, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Bet
	for _, b := range s.db.bets {
		if b.AgentID == agentID && b.MarketID == marketID && b.CohortID == cohortID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memBetStore) Settle(_ context.Context, betID int64, pnl float64, brier *float64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.db.bets {
		if b.ID == betID {
			if b.Settled {
				return nil
			}
			b.Settled = true
			b.PnL = pnl
			b.BrierScore = brier
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memBetStore) SettleOpenPasses(_ context.Context, marketID string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, b := range s.db.bets {
		if b.MarketID == marketID && b.IsPass() && !b.Settled {
			b.Settled = true
			b.PnL = 0
			n++
		}
	}
	return n, nil
}

func (s *memBetStore) TotalAPICost(_ context.Context) (float64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var total float64
	for _, b := range s.db.bets {
		total += b.APICost
	}
	return total, nil
}

func (s *memBetStore) CostByAgent(_ context.Context) ([]domain.AgentCost, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	byAgent := make(map[string]float64)
	for _, b := range s.db.bets {
		byAgent[b.AgentID] += b.APICost
	}
	var out []domain.AgentCost
	for id, cost := range byAgent {
		out = append(out, domain.AgentCost{AgentID: id, DisplayName: id, Cost: cost})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cost > out[j].Cost })
	return out, nil
}

func (s *memBetStore) CostByRound(_ context.Context) ([]domain.RoundCost, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	byRound := make(map[string]float64)
	for _, b := range s.db.bets {
		byRound[b.RoundID] += b.APICost
	}
	var out []domain.RoundCost
	for id, cost := range byRound {
		out = append(out, domain.RoundCost{RoundID: id, Cost: cost})
	}
	return out, nil
}

func (s *memBetStore) CostByDay(_ context.Context) ([]domain.DailyCost, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	byDay := make(map[string]float64)
	for _, b := range s.db.bets {
		byDay[b.CreatedAt.UTC().Format("2006-01-02")] += b.APICost
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)
	var out []domain.DailyCost
	var cumulative float64
	for _, d := range days {
		cumulative += byDay[d]
		out = append(out, domain.DailyCost{Date: d, Cost: byDay[d], Cumulative: cumulative})
	}
	return out, nil
}

func (s *memBetStore) AgentStats(_ context.Context, cohortID *string) ([]domain.AgentStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.AgentStats
	for _, a := range s.db.agents {
		st := domain.AgentStats{AgentID: a.ID, DisplayName: a.DisplayName, Provider: a.Provider}
		var brierSum float64
		var brierN, scored, won, passes, all int
		for _, b := range s.db.bets {
			if b.AgentID != a.ID {
				continue
			}
			if cohortID != nil && b.CohortID != *cohortID {
				continue
			}
			all++
			if b.IsPass() {
				passes++
			} else {
				st.TotalBets++
				if b.Settled {
					st.TotalPnL += b.PnL
				}
			}
			if b.Settled && b.BrierScore != nil {
				brierSum += *b.BrierScore
				brierN++
				scored++
				if b.PnL > 0 {
					won++
				}
			}
			st.TotalAPICost += b.APICost
		}
		if brierN > 0 {
			st.BrierScore = brierSum / float64(brierN)
		}
		if scored > 0 {
			st.WinRate = float64(won) / float64(scored)
		}
		if all > 0 {
			st.PassRate = float64(passes) / float64(all)
		}
		st.ROIPct = st.TotalPnL / domain.DefaultInitialBankroll * 100
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPnL > out[j].TotalPnL })
	return out, nil
}

func (s *memBetStore) ListNonPassPrices(_ context.Context, agentID string, cohortID *string) ([]float64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []float64
	for _, b := range s.db.bets {
		if b.AgentID != agentID || b.IsPass() {
			continue
		}
		if cohortID != nil && b.CohortID != *cohortID {
			continue
		}
		out = append(out, b.MarketPriceAtBet)
	}
	return out, nil
}

func (s *memBetStore) ListCalibrationSamples(_ context.Context, agentID, cohortID *string) ([]domain.CalibrationSample, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.CalibrationSample
	for _, b := range s.db.bets {
		if !b.Settled || b.BrierScore == nil || b.EstimatedProbability == nil {
			continue
		}
		if agentID != nil && b.AgentID != *agentID {
			continue
		}
		if cohortID != nil && b.CohortID != *cohortID {
			continue
		}
		m, ok := s.db.markets[b.MarketID]
		if !ok || (m.Resolution != domain.ResolutionYes && m.Resolution != domain.ResolutionNo) {
			continue
		}
		out = append(out, domain.CalibrationSample{
			Probability: *b.EstimatedProbability,
			ResolvedYes: m.Resolution == domain.ResolutionYes,
		})
	}
	return out, nil
}

func (s *memBetStore) ListSettled(_ context.Context, cohortID *string) ([]domain.SettledBet, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.SettledBet
	for _, b := range s.db.bets {
		if !b.Settled || b.IsPass() {
			continue
		}
		if cohortID != nil && b.CohortID != *cohortID {
			continue
		}
		question := ""
		if m, ok := s.db.markets[b.MarketID]; ok {
			question = m.Question
		}
		out = append(out, domain.SettledBet{
			AgentID:   b.AgentID,
			MarketID:  b.MarketID,
			Question:  question,
			PnL:       b.PnL,
			CreatedAt: b.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- MarketFeed / oracle ---

type fakeOracle struct {
	mu          sync.Mutex
	resolutions map[string]domain.ResolutionCheck
	errs        map[string]error
	admissible  []domain.Market
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		resolutions: make(map[string]domain.ResolutionCheck),
		errs:        make(map[string]error),
	}
}

func (f *fakeOracle) ListAdmissibleMarkets(_ context.Context) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Market(nil), f.admissible...), nil
}

func (f *fakeOracle) CheckResolution(_ context.Context, marketID string) (domain.ResolutionCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[marketID]; ok {
		return domain.ResolutionCheck{}, err
	}
	if check, ok := f.resolutions[marketID]; ok {
		return check, nil
	}
	return domain.ResolutionCheck{Resolved: false, Outcome: domain.ResolutionOpen}, nil
}

// --- Gateway ---

// scriptedGateway returns a canned response per (model, market) pair, keyed
// by model ID. Unknown models get an error.
type scriptedGateway struct {
	mu        sync.Mutex
	responses map[string]forecast.GatewayResponse
	errs      map[string]error
	calls     int
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{
		responses: make(map[string]forecast.GatewayResponse),
		errs:      make(map[string]error),
	}
}

func (g *scriptedGateway) scriptPrediction(model, action string, confidence, pct, prob float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[model] = forecast.GatewayResponse{
		RawText: fmt.Sprintf(
			`{"action":%q,"confidence":%v,"bet_size_pct":%v,"estimated_probability":%v,"reasoning":"scripted","key_factors":["a","b"]}`,
			action, confidence, pct, prob),
		Cost:      0.01,
		LatencyMs: 5,
	}
}

func (g *scriptedGateway) Invoke(_ context.Context, req forecast.GatewayRequest) (forecast.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if err, ok := g.errs[req.Model]; ok {
		return forecast.GatewayResponse{Cost: 0.005}, err
	}
	if resp, ok := g.responses[req.Model]; ok {
		return resp, nil
	}
	return forecast.GatewayResponse{}, fmt.Errorf("no script for model %s", req.Model)
}

// --- misc fakes ---

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.held[key] = false
	}, nil
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []string // cohortID + "/" + roundID
	err      error
}

func (f *fakeArchiver) ArchiveRound(_ context.Context, cohortID, roundID string, _ []domain.Bet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, cohortID+"/"+roundID)
	return nil
}
