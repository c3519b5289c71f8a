package scoring

import (
	"math"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// decileBuckets is the number of equal-width probability buckets used by both
// the Murphy decomposition and the calibration curve.
const decileBuckets = 10

// Decomposition is the Murphy decomposition of a mean Brier score. The parts
// satisfy reliability - resolution + uncertainty ≈ mean Brier.
type Decomposition struct {
	Reliability float64
	Resolution  float64
	Uncertainty float64
}

// Decompose buckets forecasts into ten equal-width deciles [k/10,(k+1)/10)
// and computes the Murphy decomposition. Forecasts of exactly 1.0 fall into
// the top bucket. An empty input yields the zero decomposition.
func Decompose(samples []domain.CalibrationSample) Decomposition {
	if len(samples) == 0 {
		return Decomposition{}
	}

	n := float64(len(samples))
	baseRate := 0.0
	for _, s := range samples {
		if s.ResolvedYes {
			baseRate++
		}
	}
	baseRate /= n

	type bucket struct {
		count        int
		forecastSum  float64
		outcomeCount int
	}
	var buckets [decileBuckets]bucket

	for _, s := range samples {
		idx := bucketIndex(s.Probability)
		buckets[idx].count++
		buckets[idx].forecastSum += s.Probability
		if s.ResolvedYes {
			buckets[idx].outcomeCount++
		}
	}

	var reliability, resolution float64
	for _, b := range buckets {
		if b.count == 0 {
			continue
		}
		nk := float64(b.count)
		meanForecast := b.forecastSum / nk
		meanOutcome := float64(b.outcomeCount) / nk
		reliability += (nk / n) * (meanForecast - meanOutcome) * (meanForecast - meanOutcome)
		resolution += (nk / n) * (meanOutcome - baseRate) * (meanOutcome - baseRate)
	}

	return Decomposition{
		Reliability: reliability,
		Resolution:  resolution,
		Uncertainty: baseRate * (1 - baseRate),
	}
}

// MeanBrier is the mean squared forecast error over the samples; 0 for an
// empty input.
func MeanBrier(samples []domain.CalibrationSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		actual := 0.0
		if s.ResolvedYes {
			actual = 1.0
		}
		d := s.Probability - actual
		sum += d * d
	}
	return sum / float64(len(samples))
}

// CalibrationBucket is one decile of the calibration curve.
type CalibrationBucket struct {
	Low          float64 // inclusive lower bound
	High         float64 // exclusive upper bound (inclusive for the top bucket)
	Count        int
	MeanForecast float64
	MeanOutcome  float64
}

// CalibrationCurve groups samples into the same ten deciles as Decompose and
// reports the mean forecast and observed frequency per bucket. Empty buckets
// are included with zero counts so callers can render a fixed axis.
func CalibrationCurve(samples []domain.CalibrationSample) []CalibrationBucket {
	out := make([]CalibrationBucket, decileBuckets)
	sums := make([]float64, decileBuckets)
	hits := make([]int, decileBuckets)
	for i := range out {
		out[i].Low = float64(i) / decileBuckets
		out[i].High = float64(i+1) / decileBuckets
	}
	for _, s := range samples {
		idx := bucketIndex(s.Probability)
		out[idx].Count++
		sums[idx] += s.Probability
		if s.ResolvedYes {
			hits[idx]++
		}
	}
	for i := range out {
		if out[i].Count == 0 {
			continue
		}
		out[i].MeanForecast = sums[i] / float64(out[i].Count)
		out[i].MeanOutcome = float64(hits[i]) / float64(out[i].Count)
	}
	return out
}

// MarketDifficulty is the binary entropy of the market's implied probability
// at bet time: H(p) = -p*log2(p) - (1-p)*log2(1-p). Markets near 50/50 score
// 1; boundary prices score 0.
func MarketDifficulty(yesPrice float64) float64 {
	if yesPrice <= 0 || yesPrice >= 1 {
		return 0
	}
	return -yesPrice*math.Log2(yesPrice) - (1-yesPrice)*math.Log2(1-yesPrice)
}

func bucketIndex(p float64) int {
	idx := int(p * decileBuckets)
	if idx >= decileBuckets {
		idx = decileBuckets - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
