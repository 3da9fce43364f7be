package corrstream

import (
	"encoding/json"
)

// Record type discriminants used by the upstream analysis engine. The field
// names on the record variants are a compatibility contract with that engine
// and must not be renamed.
const (
	RecordTypeBurst             = "burst"
	RecordTypeLeadLag           = "lead_lag"
	RecordTypePMI               = "pmi"
	RecordTypeChangeAttribution = "change_attribution"
)

// BurstRecord is a burst co-spike correlation between two series.
type BurstRecord struct {
	Series1            string    `json:"series1"`
	Series2            string    `json:"series2"`
	AlignedBursts      int       `json:"aligned_bursts"`
	TotalBuckets       int       `json:"total_buckets"`
	AlignmentStrength  float64   `json:"alignment_strength"`
	Correlation        float64   `json:"correlation"`
	PValue             float64   `json:"p_value"`
	ConfidenceInterval []float64 `json:"confidence_interval"`
	SampleSize         int       `json:"sample_size"`
	IsSignificant      bool      `json:"is_significant"`
	HasErrorSeries     bool      `json:"has_error_series"`
	Strategy           string    `json:"strategy"`
	Means              []float64 `json:"means"`
	Stds               []float64 `json:"stds"`
}

// LeadLagRecord is a temporal precedence relationship between two series.
// Confidence can be negative in real upstream data and is preserved as-is.
type LeadLagRecord struct {
	Series1         string  `json:"series1"`
	Series2         string  `json:"series2"`
	LagBuckets      int     `json:"lag_buckets"`
	LagSeconds      float64 `json:"lag_seconds"`
	Correlation     float64 `json:"correlation"`
	GrangerScore    float64 `json:"granger_score"`
	PrecedenceScore float64 `json:"precedence_score"`
	Confidence      float64 `json:"confidence"`
	SampleSize      int     `json:"sample_size"`
	Direction       string  `json:"direction"`
}

// DedupHint is the precomputed semantic-equivalence annotation carried on
// some PMI records.
type DedupHint struct {
	Semantic bool   `json:"semantic"`
	Note     string `json:"note"`
}

// PMIRecord is a pointwise-mutual-information co-occurrence between two tokens.
type PMIRecord struct {
	TokenA       string     `json:"token_a"`
	TokenB       string     `json:"token_b"`
	TokenAType   string     `json:"token_a_type"`
	TokenBType   string     `json:"token_b_type"`
	PMIScore     float64    `json:"pmi_score"`
	Support      int        `json:"support"`
	CountA       int        `json:"count_a"`
	CountB       int        `json:"count_b"`
	TotalBuckets int        `json:"total_buckets"`
	Confidence   float64    `json:"confidence"`
	HasErrorTok  bool       `json:"has_error_token"`
	PA           float64    `json:"p_a"`
	PB           float64    `json:"p_b"`
	PAB          float64    `json:"p_ab"`
	Dedup        *DedupHint `json:"_deduplication,omitempty"`
}

// ChangeAttributionRecord links an observed change to a downstream effect.
type ChangeAttributionRecord struct {
	ChangeSeries           string  `json:"change_series"`
	EffectSeries           string  `json:"effect_series"`
	CorrelationCoefficient float64 `json:"correlation_coefficient"`
	LagMinutes             float64 `json:"lag_minutes"`
	LagMS                  int64   `json:"lag_ms"`
	ChangeCount            int     `json:"change_count"`
	EffectCount            int     `json:"effect_count"`
	Confidence             float64 `json:"confidence"`
	Method                 string  `json:"method"`
}

// RawRecord is one line of the upstream NDJSON stream, a tagged union over
// the four record variants. Exactly one variant field is non-nil after a
// successful decode.
type RawRecord struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds of the triggering window

	Burst   *BurstRecord             `json:"-"`
	LeadLag *LeadLagRecord           `json:"-"`
	PMI     *PMIRecord               `json:"-"`
	Change  *ChangeAttributionRecord `json:"-"`
}

// recordEnvelope captures the discriminant before variant decoding.
type recordEnvelope struct {
	Type      *string `json:"type"`
	Timestamp int64   `json:"timestamp"`
}

// DecodeRecord parses one NDJSON line into a RawRecord. It returns an
// *IngestError for malformed JSON, a missing type discriminant, or an
// unknown type value. Missing variant fields are not errors; they decode to
// their zero values.
func DecodeRecord(line []byte, lineNo int) (*RawRecord, error) {
	var env recordEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, &IngestError{Type: IngestErrorTypeParse, Line: lineNo, Cause: err}
	}
	if env.Type == nil || *env.Type == "" {
		return nil, &IngestError{Type: IngestErrorTypeMissingField, Field: "type", Line: lineNo}
	}

	rec := &RawRecord{Type: *env.Type, Timestamp: env.Timestamp}

	var err error
	switch *env.Type {
	case RecordTypeBurst:
		var v BurstRecord
		err = json.Unmarshal(line, &v)
		rec.Burst = &v
	case RecordTypeLeadLag:
		var v LeadLagRecord
		err = json.Unmarshal(line, &v)
		rec.LeadLag = &v
	case RecordTypePMI:
		var v PMIRecord
		err = json.Unmarshal(line, &v)
		rec.PMI = &v
	case RecordTypeChangeAttribution:
		var v ChangeAttributionRecord
		err = json.Unmarshal(line, &v)
		rec.Change = &v
	default:
		return nil, &IngestError{Type: IngestErrorTypeUnknownType, Field: *env.Type, Line: lineNo}
	}
	if err != nil {
		return nil, &IngestError{Type: IngestErrorTypeParse, Line: lineNo, Cause: err}
	}
	return rec, nil
}

// participants returns the ordered pair of participant identifiers for the
// record. For lead-lag records the leader comes first, per the direction
// field. The bool reports whether participants[0] leads.
func (r *RawRecord) participants() (a, b string, aLeads bool) {
	switch r.Type {
	case RecordTypeBurst:
		return r.Burst.Series1, r.Burst.Series2, false
	case RecordTypeLeadLag:
		if r.LeadLag.Direction == "series2_leads" || r.LeadLag.Direction == "backward" {
			return r.LeadLag.Series2, r.LeadLag.Series1, true
		}
		return r.LeadLag.Series1, r.LeadLag.Series2, true
	case RecordTypePMI:
		return r.PMI.TokenA, r.PMI.TokenB, false
	case RecordTypeChangeAttribution:
		return r.Change.ChangeSeries, r.Change.EffectSeries, true
	}
	return "", "", false
}
