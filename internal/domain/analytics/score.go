package analytics

import "math"

const (
	minAnomalySamples = 5
	criticalWeight    = 0.1
	criticalCap       = 0.4
	warningWeight     = 0.05
	warningCap        = 0.2
)

// RiskScore combines the baseline tier with recent alert counts, clamped to [0,1].
func RiskScore(base float64, critical, warning int) float64 {
	score := base +
		math.Min(criticalCap, float64(critical)*criticalWeight) +
		math.Min(warningCap, float64(warning)*warningWeight)
	return clamp01(score)
}

// TrendOf labels recent alert volume. Two criticals override the volume check.
func TrendOf(total, critical int) Trend {
	trend := TrendStable
	if total >= 3 {
		trend = TrendDeteriorating
	}
	if critical >= 2 {
		trend = TrendCritical
	}
	return trend
}

// Stats returns the mean, minimum and maximum of values. Empty input gives zeros.
func Stats(values []float64) MetricStats {
	if len(values) == 0 {
		return MetricStats{}
	}
	s := MetricStats{Min: values[0], Max: values[0]}
	sum := 0.0
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Avg = sum / float64(len(values))
	return s
}

// AnomalyScore scores the last value of an oldest-first series against the
// series mean using the population standard deviation.
func AnomalyScore(values []float64) float64 {
	if len(values) < minAnomalySamples {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(variance / float64(len(values)))
	if sd == 0 {
		sd = 1
	}
	z := math.Abs(values[len(values)-1]-mean) / sd
	return math.Min(1, z/5)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
