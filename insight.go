package corrstream

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// InsightKind classifies the underlying correlation signal.
type InsightKind int

const (
	// KindBurstCorrelation is a burst co-spike correlation.
	KindBurstCorrelation InsightKind = iota
	// KindLeadLag is a temporal precedence relationship.
	KindLeadLag
	// KindPmiCooccurrence is a PMI token co-occurrence.
	KindPmiCooccurrence
	// KindChangeAttribution links a change to a downstream effect.
	KindChangeAttribution
)

func (k InsightKind) String() string {
	switch k {
	case KindBurstCorrelation:
		return "burst_correlation"
	case KindLeadLag:
		return "lead_lag"
	case KindPmiCooccurrence:
		return "pmi_cooccurrence"
	case KindChangeAttribution:
		return "change_attribution"
	default:
		return "unknown"
	}
}

// ParseInsightKind maps a kind name back to its enum value. The bool is
// false for unrecognized names.
func ParseInsightKind(s string) (InsightKind, bool) {
	switch s {
	case "burst_correlation":
		return KindBurstCorrelation, true
	case "lead_lag":
		return KindLeadLag, true
	case "pmi_cooccurrence":
		return KindPmiCooccurrence, true
	case "change_attribution":
		return KindChangeAttribution, true
	}
	return 0, false
}

// Participant is one side of a correlation pair: the raw identifier string
// plus its parsed scope.
type Participant struct {
	Identifier string   `json:"identifier"`
	Scope      ScopeRef `json:"scope"`
}

// CoreStats carries the kind-specific numeric payload, preserved verbatim
// from the raw record. Which fields are meaningful is determined by the
// insight's Kind; unused fields stay at their zero values.
type CoreStats struct {
	// Burst correlation
	AlignedBursts      int       `json:"aligned_bursts,omitempty"`
	TotalBuckets       int       `json:"total_buckets,omitempty"`
	AlignmentStrength  float64   `json:"alignment_strength,omitempty"`
	PValue             float64   `json:"p_value,omitempty"`
	ConfidenceInterval []float64 `json:"confidence_interval,omitempty"`
	IsSignificant      bool      `json:"is_significant,omitempty"`
	HasErrorSeries     bool      `json:"has_error_series,omitempty"`
	Strategy           string    `json:"strategy,omitempty"`
	Means              []float64 `json:"means,omitempty"`
	Stds               []float64 `json:"stds,omitempty"`

	// Shared by burst, lead-lag
	Correlation float64 `json:"correlation,omitempty"`
	SampleSize  int     `json:"sample_size,omitempty"`

	// Lead-lag
	LagBuckets      int     `json:"lag_buckets,omitempty"`
	LagSeconds      float64 `json:"lag_seconds,omitempty"`
	GrangerScore    float64 `json:"granger_score,omitempty"`
	PrecedenceScore float64 `json:"precedence_score,omitempty"`
	Direction       string  `json:"direction,omitempty"`

	// PMI. Confidence is shared with lead-lag and change attribution; it is
	// not clamped to [0,1] because upstream emits negative values for
	// lead-lag records and the classifier depends on the sign.
	Confidence float64 `json:"confidence,omitempty"`
	PMIScore   float64 `json:"pmi_score,omitempty"`
	Support    int     `json:"support,omitempty"`
	CountA     int     `json:"count_a,omitempty"`
	CountB     int     `json:"count_b,omitempty"`
	PA         float64 `json:"p_a,omitempty"`
	PB         float64 `json:"p_b,omitempty"`
	PAB        float64 `json:"p_ab,omitempty"`

	// Change attribution
	CorrelationCoefficient float64 `json:"correlation_coefficient,omitempty"`
	LagMinutes             float64 `json:"lag_minutes,omitempty"`
	LagMS                  int64   `json:"lag_ms,omitempty"`
	ChangeCount            int     `json:"change_count,omitempty"`
	EffectCount            int     `json:"effect_count,omitempty"`
	Method                 string  `json:"method,omitempty"`
}

// DerivedMetrics are fields computed from the core stats rather than read
// from the input. Lift is NaN when the marginal probabilities are zero;
// callers must treat that as "insufficient data", not "low lift".
type DerivedMetrics struct {
	Lift          float64 `json:"-"`
	LagDisplay    string  `json:"lag_display,omitempty"`
	DurationHours float64 `json:"duration_hours,omitempty"`
}

type derivedMetricsJSON struct {
	Lift          any     `json:"lift,omitempty"`
	LagDisplay    string  `json:"lag_display,omitempty"`
	DurationHours float64 `json:"duration_hours,omitempty"`
}

// MarshalJSON encodes an undefined lift (NaN) as an explicit null;
// encoding/json cannot represent NaN and would otherwise fail the whole
// insight.
func (d DerivedMetrics) MarshalJSON() ([]byte, error) {
	out := derivedMetricsJSON{LagDisplay: d.LagDisplay, DurationHours: d.DurationHours}
	switch {
	case math.IsNaN(d.Lift):
		out.Lift = json.RawMessage("null")
	case d.Lift != 0:
		out.Lift = d.Lift
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the NaN sentinel from an explicit null lift; an
// absent key decodes to zero.
func (d *DerivedMetrics) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lift          *float64 `json:"lift"`
		LagDisplay    string   `json:"lag_display"`
		DurationHours float64  `json:"duration_hours"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.LagDisplay = raw.LagDisplay
	d.DurationHours = raw.DurationHours
	d.Lift = 0
	if raw.Lift != nil {
		d.Lift = *raw.Lift
		return nil
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	if _, present := keys["lift"]; present {
		d.Lift = math.NaN()
	}
	return nil
}

// DedupInfo annotates an insight that describes the same real-world entity
// as another insight under a different naming convention. Deduplication only
// annotates; duplicate insights remain retrievable.
type DedupInfo struct {
	IsSemanticDuplicate bool   `json:"is_semantic_duplicate"`
	CanonicalID         string `json:"canonical_id,omitempty"`
	Note                string `json:"note,omitempty"`
}

// Insight is the unified, classified representation of one correlation
// signal. Its ID is a deterministic function of kind, participant
// identifiers, and the time bucket, so re-ingestion of the same logical
// signal is idempotent.
type Insight struct {
	ID           string         `json:"id"`
	Kind         InsightKind    `json:"kind"`
	KindName     string         `json:"kind_name"`
	Participants [2]Participant `json:"participants"`
	Stats        CoreStats      `json:"core_stats"`
	Derived      DerivedMetrics `json:"derived"`
	Severity     Severity       `json:"severity"`
	SeverityName string         `json:"severity_name"`
	Significant  bool           `json:"significant"`
	Dedup        DedupInfo      `json:"dedup"`
	ObservedAt   time.Time      `json:"observed_at"`
	FirstSeenAt  time.Time      `json:"first_seen_at"`
	LastSeenAt   time.Time      `json:"last_seen_at"`
}

// insightID derives the stable insight identifier from the record kind, the
// ordered participant identifiers, and the time-bucket index.
func insightID(kind InsightKind, a, b string, bucket int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", kind, a, b, bucket)))
	return hex.EncodeToString(sum[:8])
}
