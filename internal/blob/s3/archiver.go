package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// Archiver uploads a completed round's audit bundle, every bet with its full
// prompt and raw model output, as one JSON document per round. The primary
// store keeps the same data; the archive is the cheap long-term copy that
// lets bet rows be pruned eventually without losing the audit trail.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	now    func() time.Time
}

// NewArchiver creates an Archiver. reader may be nil; it is only used to
// skip re-uploading a round that was already archived.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		now:    time.Now,
	}
}

// roundArchive is the serialized document layout.
type roundArchive struct {
	RoundID    string        `json:"round_id"`
	CohortID   string        `json:"cohort_id"`
	ArchivedAt time.Time     `json:"archived_at"`
	Bets       []archivedBet `json:"bets"`
}

type archivedBet struct {
	AgentID              string   `json:"agent_id"`
	MarketID             string   `json:"market_id"`
	Action               string   `json:"action"`
	Confidence           *float64 `json:"confidence,omitempty"`
	BetSizePct           *float64 `json:"bet_size_pct,omitempty"`
	BetAmount            *float64 `json:"bet_amount,omitempty"`
	EstimatedProbability *float64 `json:"estimated_probability,omitempty"`
	MarketPriceAtBet     float64  `json:"market_price_at_bet"`
	Reasoning            string   `json:"reasoning,omitempty"`
	KeyFactors           []string `json:"key_factors,omitempty"`
	PromptText           string   `json:"prompt_text,omitempty"`
	RawResponse          string   `json:"raw_response,omitempty"`
	APICost              float64  `json:"api_cost"`
	APILatencyMs         int64    `json:"api_latency_ms"`
}

// ArchiveRound uploads the round's bets to rounds/<cohort>/<round>.json.
// A round that already has an archive object is left untouched.
func (a *Archiver) ArchiveRound(ctx context.Context, cohortID, roundID string, bets []domain.Bet) error {
	path := RoundArchivePath(cohortID, roundID)

	if a.reader != nil {
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return fmt.Errorf("s3blob: archive round %s: %w", roundID, err)
		}
		if exists {
			return nil
		}
	}

	doc := roundArchive{
		RoundID:    roundID,
		CohortID:   cohortID,
		ArchivedAt: a.now().UTC(),
		Bets:       make([]archivedBet, 0, len(bets)),
	}
	for _, b := range bets {
		doc.Bets = append(doc.Bets, archivedBet{
			AgentID:              b.AgentID,
			MarketID:             b.MarketID,
			Action:               string(b.Action),
			Confidence:           b.Confidence,
			BetSizePct:           b.BetSizePct,
			BetAmount:            b.BetAmount,
			EstimatedProbability: b.EstimatedProbability,
			MarketPriceAtBet:     b.MarketPriceAtBet,
			Reasoning:            b.Reasoning,
			KeyFactors:           b.KeyFactors,
			PromptText:           b.PromptText,
			RawResponse:          b.RawResponse,
			APICost:              b.APICost,
			APILatencyMs:         b.APILatencyMs,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("s3blob: marshal round %s: %w", roundID, err)
	}

	if err := a.writer.Put(ctx, path, &buf, "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive round %s: %w", roundID, err)
	}
	return nil
}

// RoundArchivePath builds the object key for one round's archive.
func RoundArchivePath(cohortID, roundID string) string {
	return fmt.Sprintf("rounds/%s/%s.json", cohortID, roundID)
}
