package corrstream

import (
	"fmt"
	"math"
)

// Severity is the classification tier assigned to an insight.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// ClassifierConfig holds the adaptive thresholds used for severity
// classification. Values arrive from upstream (the adaptive_thresholds
// block) and may change between ingestion cycles; classification is a pure
// function of (stats, confidence, thresholds) with no hidden state.
type ClassifierConfig struct {
	// CriticalThreshold is the primary-metric floor for the critical tier.
	CriticalThreshold float64 `json:"critical_threshold" yaml:"critical_threshold"`

	// HighThreshold is the primary-metric floor for the high tier.
	HighThreshold float64 `json:"high_threshold" yaml:"high_threshold"`

	// ZScoreThreshold is the upstream burst-detection z-score threshold,
	// carried for reporting alongside the other adaptive values.
	ZScoreThreshold float64 `json:"zscore_threshold" yaml:"zscore_threshold"`

	// CorrelationThreshold is the significance floor for correlation-style
	// metrics (lead-lag, change attribution).
	CorrelationThreshold float64 `json:"correlation_threshold" yaml:"correlation_threshold"`

	// PMIThreshold is the significance floor for PMI scores.
	PMIThreshold float64 `json:"pmi_threshold" yaml:"pmi_threshold"`

	// MinSampleCount is the minimum support/sample size for a record to be
	// considered statistically significant; it also marks the sparse-support
	// boundary used by aggregation.
	MinSampleCount int `json:"min_sample_count" yaml:"min_sample_count"`
}

// DefaultClassifierConfig returns the thresholds recommended by the upstream
// severity context.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		CriticalThreshold:    0.8,
		HighThreshold:        0.6,
		ZScoreThreshold:      2.5,
		CorrelationThreshold: 0.3,
		PMIThreshold:         1.0,
		MinSampleCount:       3,
	}
}

// Validate rejects threshold configurations that would make classification
// meaningless. A rejected configuration never replaces the last valid one.
func (c ClassifierConfig) Validate() error {
	if c.CriticalThreshold <= 0 || c.CriticalThreshold > 1 {
		return fmt.Errorf("%w: critical_threshold %v outside (0,1]", ErrThresholdConfigInvalid, c.CriticalThreshold)
	}
	if c.HighThreshold <= 0 || c.HighThreshold >= c.CriticalThreshold {
		return fmt.Errorf("%w: high_threshold %v must be in (0, critical_threshold)", ErrThresholdConfigInvalid, c.HighThreshold)
	}
	if c.CorrelationThreshold < 0 || c.PMIThreshold < 0 || c.ZScoreThreshold < 0 {
		return fmt.Errorf("%w: significance thresholds must be non-negative", ErrThresholdConfigInvalid)
	}
	if c.MinSampleCount < 1 {
		return fmt.Errorf("%w: min_sample_count %d must be at least 1", ErrThresholdConfigInvalid, c.MinSampleCount)
	}
	return nil
}

// SeverityContext is the system-wide signal supplied by the external
// severity-context collaborator. Recommended thresholds, when present,
// override the configured tier floors.
type SeverityContext struct {
	Level               string  `json:"context_level" yaml:"level"`
	ErrorRate           float64 `json:"overall_error_rate" yaml:"error_rate"`
	CriticalRate        float64 `json:"critical_rate" yaml:"critical_rate"`
	RecommendedCritical float64 `json:"recommended_critical" yaml:"recommended_critical"`
	RecommendedHigh     float64 `json:"recommended_high" yaml:"recommended_high"`
}

// Validate rejects recommended thresholds that could not order the tiers.
// Zero values mean "no recommendation" and always pass.
func (s SeverityContext) Validate() error {
	if s.RecommendedCritical < 0 || s.RecommendedCritical > 1 {
		return fmt.Errorf("%w: recommended_critical %v outside [0,1]", ErrThresholdConfigInvalid, s.RecommendedCritical)
	}
	if s.RecommendedHigh < 0 || s.RecommendedHigh > 1 {
		return fmt.Errorf("%w: recommended_high %v outside [0,1]", ErrThresholdConfigInvalid, s.RecommendedHigh)
	}
	if s.RecommendedCritical > 0 && s.RecommendedHigh > 0 && s.RecommendedHigh >= s.RecommendedCritical {
		return fmt.Errorf("%w: recommended_high %v must be below recommended_critical %v", ErrThresholdConfigInvalid, s.RecommendedHigh, s.RecommendedCritical)
	}
	return nil
}

// primaryMetric returns the kind-specific strength metric used for tier
// comparison. PMI scores live on a log scale; they are mapped into
// correlation space the same way upstream derives PMI confidence
// (score/2, capped at 1).
func primaryMetric(kind InsightKind, stats CoreStats) float64 {
	switch kind {
	case KindBurstCorrelation, KindLeadLag:
		return stats.Correlation
	case KindPmiCooccurrence:
		return math.Min(1, stats.PMIScore/2)
	case KindChangeAttribution:
		return stats.CorrelationCoefficient
	}
	return 0
}

// isSignificant reports whether the record passes the external significance
// gate: the upstream is_significant flag for bursts, and support/sample
// thresholds for the other kinds.
func isSignificant(kind InsightKind, stats CoreStats, cfg ClassifierConfig) bool {
	switch kind {
	case KindBurstCorrelation:
		return stats.IsSignificant
	case KindLeadLag:
		return stats.Correlation >= cfg.CorrelationThreshold && stats.SampleSize >= cfg.MinSampleCount
	case KindPmiCooccurrence:
		return stats.PMIScore >= cfg.PMIThreshold && stats.Support >= cfg.MinSampleCount
	case KindChangeAttribution:
		return math.Abs(stats.CorrelationCoefficient) >= cfg.CorrelationThreshold && stats.ChangeCount >= cfg.MinSampleCount
	}
	return false
}

// Classify assigns a severity tier. The tiers, top down:
//
//	critical: primary metric at or above the critical floor AND
//	          confidence >= 0 (negative confidence never yields critical)
//	high:     primary metric at or above the high floor
//	medium:   statistically significant but below the high floor
//	low:      everything else, including records that fail significance
//	          regardless of raw magnitude
//
// For a fixed confidence >= 0, raising the primary metric never lowers the
// assigned tier.
func Classify(kind InsightKind, stats CoreStats, cfg ClassifierConfig, sctx SeverityContext) Severity {
	critical := cfg.CriticalThreshold
	high := cfg.HighThreshold
	if sctx.RecommendedCritical > 0 {
		critical = sctx.RecommendedCritical
	}
	if sctx.RecommendedHigh > 0 {
		high = sctx.RecommendedHigh
	}
	if high >= critical {
		// Recommendations that invert the configured tier order are
		// ignored as a pair; the validated floors stay in effect.
		critical = cfg.CriticalThreshold
		high = cfg.HighThreshold
	}

	metric := primaryMetric(kind, stats)
	switch {
	case metric >= critical && stats.Confidence >= 0:
		return SeverityCritical
	case metric >= high:
		return SeverityHigh
	case isSignificant(kind, stats, cfg):
		return SeverityMedium
	default:
		return SeverityLow
	}
}
