package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

var feedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func marketJSON(id int, active bool, closed bool, volume float64, yesPrice float64, end time.Time) string {
	return fmt.Sprintf(`{
		"id": %d,
		"question": "Market %d?",
		"description": "desc",
		"slug": "market-%d",
		"conditionId": "0xc%d",
		"outcomePrices": "[\"%.2f\",\"%.2f\"]",
		"volume24hr": %f,
		"active": %t,
		"closed": %t,
		"endDateIso": %q
	}`, id, id, id, id, yesPrice, 1-yesPrice, volume, active, closed, end.Format(time.RFC3339))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *GammaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewGammaClient(DefaultFeedConfig(srv.URL))
	c.now = func() time.Time { return feedNow }
	return c
}

func TestListAdmissibleMarkets_Filters(t *testing.T) {
	in10d := feedNow.Add(10 * 24 * time.Hour)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "false", q.Get("closed"))
		assert.Equal(t, "volume24hr", q.Get("order"))

		payload := "[" +
			marketJSON(1, true, false, 5000, 0.62, in10d) + "," + // admissible
			marketJSON(2, true, false, 500, 0.50, in10d) + "," + // volume too low
			marketJSON(3, true, false, 9000, 0.97, in10d) + "," + // price out of band
			marketJSON(4, true, false, 9000, 0.03, in10d) + "," + // price out of band
			marketJSON(5, false, false, 9000, 0.50, in10d) + "," + // inactive
			marketJSON(6, true, true, 9000, 0.50, in10d) + "," + // closed
			marketJSON(7, true, false, 9000, 0.50, feedNow.Add(2*time.Hour)) + "," + // ends too soon
			marketJSON(8, true, false, 9000, 0.50, feedNow.Add(90*24*time.Hour)) + "," + // ends too late
			marketJSON(9, true, false, 7000, 0.30, in10d) + // admissible
			"]"
		_, _ = w.Write([]byte(payload))
	})

	markets, err := c.ListAdmissibleMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2)

	// Sorted by 24h volume descending.
	assert.Equal(t, "9", markets[0].ID)
	assert.Equal(t, "1", markets[1].ID)

	m := markets[1]
	assert.Equal(t, "Market 1?", m.Question)
	assert.InDelta(t, 0.62, m.YesPrice, 1e-9)
	assert.InDelta(t, 0.38, m.NoPrice, 1e-9)
	assert.Equal(t, domain.ResolutionOpen, m.Resolution)
	require.NotNil(t, m.EndDate)
	assert.True(t, m.EndDate.Equal(in10d))
	assert.True(t, m.FetchedAt.Equal(feedNow))
}

func TestListAdmissibleMarkets_BoundaryPrices(t *testing.T) {
	in10d := feedNow.Add(10 * 24 * time.Hour)
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		payload := "[" +
			marketJSON(1, true, false, 5000, 0.05, in10d) + "," +
			marketJSON(2, true, false, 4000, 0.95, in10d) +
			"]"
		_, _ = w.Write([]byte(payload))
	})

	markets, err := c.ListAdmissibleMarkets(context.Background())
	require.NoError(t, err)
	assert.Len(t, markets, 2, "price bounds are inclusive")
}

func TestListAdmissibleMarkets_StringBoolActive(t *testing.T) {
	in10d := feedNow.Add(10 * 24 * time.Hour)
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		m := marketJSON(1, true, false, 5000, 0.50, in10d)
		// Some Gamma responses encode booleans as strings.
		payload := `[{"id": 1, "question": "q", "outcomePrices": "[\"0.50\",\"0.50\"]",
			"volume24hr": 5000, "active": "true", "closed": false,
			"endDateIso": "` + in10d.Format(time.RFC3339) + `"},` + m + "]"
		_, _ = w.Write([]byte(payload))
	})

	markets, err := c.ListAdmissibleMarkets(context.Background())
	require.NoError(t, err)
	assert.Len(t, markets, 2)
}

func TestListAdmissibleMarkets_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.ListAdmissibleMarkets(context.Background())
	assert.Error(t, err)
}

func TestCheckResolution(t *testing.T) {
	tests := []struct {
		name   string
		closed bool
		prices string
		want   domain.ResolutionCheck
	}{
		{"still open", false, `[\"0.62\",\"0.38\"]`, domain.ResolutionCheck{Resolved: false, Outcome: domain.ResolutionOpen}},
		{"yes wins", true, `[\"1.00\",\"0.00\"]`, domain.ResolutionCheck{Resolved: true, Outcome: domain.ResolutionYes}},
		{"no wins", true, `[\"0.00\",\"1.00\"]`, domain.ResolutionCheck{Resolved: true, Outcome: domain.ResolutionNo}},
		{"yes at threshold", true, `[\"0.99\",\"0.01\"]`, domain.ResolutionCheck{Resolved: true, Outcome: domain.ResolutionYes}},
		{"closed without convergence", true, `[\"0.60\",\"0.40\"]`, domain.ResolutionCheck{Resolved: true, Outcome: domain.ResolutionVoided}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/markets/42", r.URL.Path)
				_, _ = fmt.Fprintf(w, `{"id": 42, "closed": %t, "outcomePrices": "%s"}`, tt.closed, tt.prices)
			})

			check, err := c.CheckResolution(context.Background(), "42")
			require.NoError(t, err)
			assert.Equal(t, tt.want, check)
		})
	}
}

func TestCheckResolution_MalformedPricesVoided(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": 42, "closed": true, "outcomePrices": "not json"}`))
	})

	check, err := c.CheckResolution(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, check.Resolved)
	assert.Equal(t, domain.ResolutionVoided, check.Outcome)
}

func TestCheckResolution_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.CheckResolution(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
