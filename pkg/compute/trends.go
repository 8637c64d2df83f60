package compute

import (
	"math"
	"time"

	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

// TrendParams holds the window defaults and thresholds driving trend
// detection. Values mirror the TrendConfig rule kind.
type TrendParams struct {
	// WindowSize caps the number of samples considered per feature.
	WindowSize int
	// MinDataPoints is required before a z-score is computed.
	MinDataPoints int
	// ZScoreTrigger carries the TrendConfig z_score_trigger value.
	// TrendFromSeries does not read it; direction comes from
	// UpThreshold and DownThreshold.
	ZScoreTrigger float64
	// UpThreshold / DownThreshold classify direction (z above up → Up,
	// z below -down → Down).
	UpThreshold   float64
	DownThreshold float64
	// Ascending severity boundaries on |z|.
	NotableThreshold     float64
	SignificantThreshold float64
	CriticalThreshold    float64
}

// DefaultTrendParams returns the built-in trend configuration.
func DefaultTrendParams() TrendParams {
	return TrendParams{
		WindowSize:           168,
		MinDataPoints:        12,
		ZScoreTrigger:        2.0,
		UpThreshold:          1.0,
		DownThreshold:        1.0,
		NotableThreshold:     2.0,
		SignificantThreshold: 3.0,
		CriticalThreshold:    4.0,
	}
}

// TrendSeverity grades a detected trend.
type TrendSeverity int

const (
	TrendSeverityNone TrendSeverity = iota
	TrendSeverityNotable
	TrendSeveritySignificant
	TrendSeverityCritical
)

func (s TrendSeverity) String() string {
	switch s {
	case TrendSeverityNotable:
		return "Notable"
	case TrendSeveritySignificant:
		return "Significant"
	case TrendSeverityCritical:
		return "Critical"
	}
	return "None"
}

// Severity buckets a z-score magnitude by the ascending thresholds.
func (p TrendParams) Severity(z float64) TrendSeverity {
	abs := math.Abs(z)
	switch {
	case abs >= p.CriticalThreshold:
		return TrendSeverityCritical
	case abs >= p.SignificantThreshold:
		return TrendSeveritySignificant
	case abs >= p.NotableThreshold:
		return TrendSeverityNotable
	}
	return TrendSeverityNone
}

// TrendFromSeries computes sliding-window statistics for one feature.
// The latest sample is scored against the mean and deviation of the
// preceding window. Returns ok=false when the series is shorter than the
// minimum data points.
func TrendFromSeries(feature string, series []float64, params TrendParams) (knowledge.TrendStats, bool) {
	if len(series) < params.MinDataPoints || len(series) < 2 {
		return knowledge.TrendStats{}, false
	}

	if params.WindowSize > 0 && len(series) > params.WindowSize {
		series = series[len(series)-params.WindowSize:]
	}

	latest := series[len(series)-1]
	baseline := series[:len(series)-1]

	mean := 0.0
	for _, v := range baseline {
		mean += v
	}
	mean /= float64(len(baseline))

	variance := 0.0
	for _, v := range baseline {
		diff := v - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(len(baseline)))

	z := 0.0
	if stddev > 0 {
		z = (latest - mean) / stddev
	}

	direction := knowledge.TrendStable
	switch {
	case z > params.UpThreshold:
		direction = knowledge.TrendUp
	case z < -params.DownThreshold:
		direction = knowledge.TrendDown
	}

	return knowledge.TrendStats{
		Feature:    feature,
		Mean:       mean,
		StdDev:     stddev,
		Latest:     latest,
		ZScore:     z,
		Direction:  direction,
		Samples:    len(series),
		ComputedAt: time.Now().UTC(),
	}, true
}
