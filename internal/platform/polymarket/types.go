package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// gammaMarket represents a market as returned by the Polymarket Gamma API.
type gammaMarket struct {
	ID            json.Number `json:"id"`
	Question      string      `json:"question"`
	Description   string      `json:"description"`
	Slug          string      `json:"slug"`
	ConditionID   string      `json:"conditionId"`
	OutcomePrices string      `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.62\",\"0.38\"]"
	Volume24h     float64     `json:"volume24hr"`
	Active        flexBool    `json:"active"`
	Closed        bool        `json:"closed"`
	EndDateISO    string      `json:"endDateIso"`
}

// yesNoPrices decodes the JSON-encoded outcomePrices field. The Gamma API
// returns binary markets as a two-element array of price strings with the
// Yes price first.
func (m *gammaMarket) yesNoPrices() (yes, no float64, err error) {
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil {
		return 0, 0, err
	}
	if len(raw) < 2 {
		return 0, 0, errMalformedPrices
	}
	yes, err = strconv.ParseFloat(raw[0], 64)
	if err != nil {
		return 0, 0, err
	}
	no, err = strconv.ParseFloat(raw[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return yes, no, nil
}

// toDomainMarket converts a Gamma API market to a domain.Market. Prices that
// cannot be decoded are left at zero; callers filter those out.
func (m *gammaMarket) toDomainMarket(fetchedAt time.Time) domain.Market {
	dm := domain.Market{
		ID:          m.ID.String(),
		Question:    m.Question,
		Description: m.Description,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		Volume24h:   m.Volume24h,
		Resolution:  domain.ResolutionOpen,
		FetchedAt:   fetchedAt,
	}
	if yes, no, err := m.yesNoPrices(); err == nil {
		dm.YesPrice = yes
		dm.NoPrice = no
	}
	if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
		dm.EndDate = &t
	}
	return dm
}
