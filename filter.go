package corrstream

import (
	"sort"
	"strings"
	"time"
)

// Filter selects insights for a presentation-layer query. All set fields are
// conjunctive; a nil pointer or zero value means "no constraint".
type Filter struct {
	// Kind restricts results to one insight kind.
	Kind *InsightKind `json:"kind,omitempty"`

	// MinCorrelation is the floor for the correlation-style metric
	// (correlation for burst and lead-lag, correlation_coefficient for
	// change attribution). PMI insights are unconstrained by it; use
	// MinPMIScore for those.
	MinCorrelation *float64 `json:"min_correlation,omitempty"`

	// MinSupport is the floor for support (PMI) / sample size (others).
	MinSupport *int `json:"min_support,omitempty"`

	// MinAlignedBursts is the floor for aligned burst count.
	MinAlignedBursts *int `json:"min_aligned_bursts,omitempty"`

	// MinPMIScore is the floor for PMI scores.
	MinPMIScore *float64 `json:"min_pmi_score,omitempty"`

	// SignificantOnly keeps only statistically significant insights.
	SignificantOnly bool `json:"significant_only,omitempty"`

	// Cluster and Namespace restrict by parsed participant scope; an insight
	// matches when either participant's scope matches.
	Cluster   string `json:"cluster,omitempty"`
	Namespace string `json:"namespace,omitempty"`

	// TextSearch matches case-insensitively against any participant
	// identifier substring.
	TextSearch string `json:"text_search,omitempty"`

	// BucketSize echoes the bucket size the view is aligned to (30s or
	// 60s). It does not constrain results.
	BucketSize time.Duration `json:"bucket_size,omitempty"`
}

// Summary holds the aggregate counts for a filtered view.
type Summary struct {
	Total         int            `json:"total"`
	PerKind       map[string]int `json:"per_kind"`
	Significant   int            `json:"significant"`
	SparseSupport int            `json:"sparse_support"`
	UniqueSignals int            `json:"unique_signals"`
}

// supportOf returns the kind-appropriate support/sample count.
func supportOf(in *Insight) int {
	switch in.Kind {
	case KindPmiCooccurrence:
		return in.Stats.Support
	case KindBurstCorrelation, KindLeadLag:
		return in.Stats.SampleSize
	case KindChangeAttribution:
		return in.Stats.ChangeCount
	}
	return 0
}

// correlationOf returns the correlation-style metric the MinCorrelation
// constraint applies to. PMI has none.
func correlationOf(in *Insight) (float64, bool) {
	switch in.Kind {
	case KindBurstCorrelation, KindLeadLag:
		return in.Stats.Correlation, true
	case KindChangeAttribution:
		return in.Stats.CorrelationCoefficient, true
	}
	return 0, false
}

func (f Filter) matches(in *Insight) bool {
	if f.Kind != nil && in.Kind != *f.Kind {
		return false
	}
	if f.MinCorrelation != nil {
		if corr, ok := correlationOf(in); ok && corr < *f.MinCorrelation {
			return false
		}
	}
	if f.MinSupport != nil && supportOf(in) < *f.MinSupport {
		return false
	}
	if f.MinAlignedBursts != nil && in.Stats.AlignedBursts < *f.MinAlignedBursts {
		return false
	}
	if f.MinPMIScore != nil && in.Kind == KindPmiCooccurrence && in.Stats.PMIScore < *f.MinPMIScore {
		return false
	}
	if f.SignificantOnly && !in.Significant {
		return false
	}
	if f.Cluster != "" && in.Participants[0].Scope.Cluster != f.Cluster && in.Participants[1].Scope.Cluster != f.Cluster {
		return false
	}
	if f.Namespace != "" && in.Participants[0].Scope.Namespace != f.Namespace && in.Participants[1].Scope.Namespace != f.Namespace {
		return false
	}
	if f.TextSearch != "" {
		needle := strings.ToLower(f.TextSearch)
		if !strings.Contains(strings.ToLower(in.Participants[0].Identifier), needle) &&
			!strings.Contains(strings.ToLower(in.Participants[1].Identifier), needle) {
			return false
		}
	}
	return true
}

// FilterInsights applies the filter to a store snapshot and aggregates
// summary counts. It is a pure function: the snapshot is not modified, and
// the result ordering is deterministic (observedAt descending, ties broken
// by id ascending) for stable pagination. Semantic duplicates are kept in
// the result but excluded from the unique-signal count; insights whose
// support falls below sparseBelow are flagged in the summary, not excluded.
func FilterInsights(snapshot []Insight, f Filter, sparseBelow int) ([]Insight, Summary) {
	items := make([]Insight, 0, len(snapshot))
	sum := Summary{PerKind: make(map[string]int)}

	for i := range snapshot {
		in := &snapshot[i]
		if !f.matches(in) {
			continue
		}
		items = append(items, *in)
		sum.Total++
		sum.PerKind[in.Kind.String()]++
		if in.Significant {
			sum.Significant++
		}
		if supportOf(in) < sparseBelow {
			sum.SparseSupport++
		}
		if !in.Dedup.IsSemanticDuplicate {
			sum.UniqueSignals++
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].ObservedAt.Equal(items[j].ObservedAt) {
			return items[i].ObservedAt.After(items[j].ObservedAt)
		}
		return items[i].ID < items[j].ID
	})

	return items, sum
}

// AggregateStats is the store-wide rollup exposed to the presentation layer
// for badges and headline numbers.
type AggregateStats struct {
	PerKindCounts        map[string]int `json:"per_kind_counts"`
	TotalInsights        int            `json:"total_insights"`
	UniqueSignals        int            `json:"unique_signals"`
	SignificantCount     int            `json:"significant_count"`
	SignificanceRate     float64        `json:"significance_rate"`
	SparseCount          int            `json:"sparse_count"`
	ProcessingEfficiency float64        `json:"processing_efficiency"`
	ContextLevel         string         `json:"context_level,omitempty"`
}

// aggregate computes store-wide stats from a snapshot plus the stream
// counters. Rate ratios are derived here, not stored per insight.
func aggregate(snapshot []Insight, raw, processed int64, sparseBelow int, sctx SeverityContext) AggregateStats {
	stats := AggregateStats{PerKindCounts: make(map[string]int), ContextLevel: sctx.Level}
	for i := range snapshot {
		in := &snapshot[i]
		stats.TotalInsights++
		stats.PerKindCounts[in.Kind.String()]++
		if in.Significant {
			stats.SignificantCount++
		}
		if supportOf(in) < sparseBelow {
			stats.SparseCount++
		}
		if !in.Dedup.IsSemanticDuplicate {
			stats.UniqueSignals++
		}
	}
	stats.SignificanceRate = RateRatio(int64(stats.SignificantCount), int64(stats.TotalInsights))
	stats.ProcessingEfficiency = RateRatio(processed, raw)
	return stats
}
