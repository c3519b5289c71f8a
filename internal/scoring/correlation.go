package scoring

import (
	"strings"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// correlationThreshold is the minimum Jaccard similarity between two market
// question token sets for the markets to be treated as correlated.
const correlationThreshold = 0.5

// stopwords are excluded from question tokens before comparison.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an the is are was were be been being
		have has had do does did will would could should may might shall can
		need dare ought to of in for on with at by from as into through during
		before after above below between out off over under again further then
		once and but or nor not so yet both either neither each every all any
		few more most other some such no only own same than too very just
		because if when where how what which who whom this that these those it
		its he she they them their we you i me my your his her our`) {
		stopwords[w] = struct{}{}
	}
}

// Tokenize lowercases text, splits on non-alphanumeric boundaries, and drops
// single-character tokens and stopwords.
func Tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

// Jaccard computes |a ∩ b| / |a ∪ b|; 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// unionFind is an index arena with path compression. Clustering through it is
// transitive: A~B and B~C places A and C in one cluster even when A and C are
// individually below threshold.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	root := x
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[x] != root {
		uf.parent[x], x = root, uf.parent[x]
	}
	return root
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[rb] = ra
	}
}

// DetectClusters groups near-duplicate markets by question-text similarity.
// Every market maps to a cluster identifier; uncorrelated markets form
// singleton clusters.
func DetectClusters(markets []domain.Market) map[string]string {
	tokens := make([]map[string]struct{}, len(markets))
	for i, m := range markets {
		tokens[i] = Tokenize(m.Question)
	}

	uf := newUnionFind(len(markets))
	for i := 0; i < len(markets); i++ {
		for j := i + 1; j < len(markets); j++ {
			if Jaccard(tokens[i], tokens[j]) >= correlationThreshold {
				uf.union(i, j)
			}
		}
	}

	clusters := make(map[string]string, len(markets))
	for i, m := range markets {
		clusters[m.ID] = "cluster_" + markets[uf.find(i)].ID
	}
	return clusters
}

// AdjustedPnL sums, per agent, only the chronologically earliest settled
// bet's pnl within each correlation cluster. bets must be ordered by
// placement time ascending. A market absent from clusters counts as its own
// singleton cluster.
func AdjustedPnL(bets []domain.SettledBet, clusters map[string]string) map[string]float64 {
	type seenKey struct{ agent, cluster string }
	seen := map[seenKey]struct{}{}
	out := map[string]float64{}

	for _, b := range bets {
		cluster, ok := clusters[b.MarketID]
		if !ok {
			cluster = "cluster_" + b.MarketID
		}
		k := seenKey{b.AgentID, cluster}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out[b.AgentID] += b.PnL
	}
	return out
}
