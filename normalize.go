package corrstream

import "time"

// Normalizer converts raw records into Insights using a fixed time-bucket
// size. The bucket index derived from a record's timestamp is used only for
// id derivation and alignment display; the raw timestamp itself is stored
// unchanged.
type Normalizer struct {
	bucket time.Duration
}

// NewNormalizer creates a normalizer for the given bucket size. Sizes other
// than 30s and 60s fall back to the 60s default.
func NewNormalizer(bucket time.Duration) *Normalizer {
	if bucket != 30*time.Second && bucket != 60*time.Second {
		bucket = 60 * time.Second
	}
	return &Normalizer{bucket: bucket}
}

// BucketSize returns the active bucket size.
func (n *Normalizer) BucketSize() time.Duration {
	return n.bucket
}

// bucketIndex floor-divides a millisecond timestamp by the bucket size.
func (n *Normalizer) bucketIndex(tsMillis int64) int64 {
	return tsMillis / n.bucket.Milliseconds()
}

// Normalize maps one raw record to one Insight. The record has already
// passed discriminant validation in DecodeRecord; missing numeric or string
// fields have decoded to their identity values, which is not an error.
func (n *Normalizer) Normalize(rec *RawRecord, now time.Time) Insight {
	a, b, aLeads := rec.participants()

	var kind InsightKind
	var stats CoreStats
	var dedup DedupInfo

	switch rec.Type {
	case RecordTypeBurst:
		kind = KindBurstCorrelation
		v := rec.Burst
		stats = CoreStats{
			Correlation:        v.Correlation,
			AlignedBursts:      v.AlignedBursts,
			TotalBuckets:       v.TotalBuckets,
			AlignmentStrength:  v.AlignmentStrength,
			PValue:             v.PValue,
			ConfidenceInterval: v.ConfidenceInterval,
			SampleSize:         v.SampleSize,
			IsSignificant:      v.IsSignificant,
			HasErrorSeries:     v.HasErrorSeries,
			Strategy:           v.Strategy,
			Means:              v.Means,
			Stds:               v.Stds,
		}
	case RecordTypeLeadLag:
		kind = KindLeadLag
		v := rec.LeadLag
		stats = CoreStats{
			LagSeconds:      v.LagSeconds,
			LagBuckets:      v.LagBuckets,
			Correlation:     v.Correlation,
			GrangerScore:    v.GrangerScore,
			PrecedenceScore: v.PrecedenceScore,
			Confidence:      v.Confidence,
			SampleSize:      v.SampleSize,
			Direction:       v.Direction,
		}
	case RecordTypePMI:
		kind = KindPmiCooccurrence
		v := rec.PMI
		stats = CoreStats{
			PMIScore:     v.PMIScore,
			Support:      v.Support,
			CountA:       v.CountA,
			CountB:       v.CountB,
			TotalBuckets: v.TotalBuckets,
			Confidence:   v.Confidence,
			PA:           v.PA,
			PB:           v.PB,
			PAB:          v.PAB,
		}
		if v.Dedup != nil {
			dedup.IsSemanticDuplicate = v.Dedup.Semantic
			dedup.Note = v.Dedup.Note
		}
	case RecordTypeChangeAttribution:
		kind = KindChangeAttribution
		v := rec.Change
		stats = CoreStats{
			CorrelationCoefficient: v.CorrelationCoefficient,
			LagMinutes:             v.LagMinutes,
			LagMS:                  v.LagMS,
			ChangeCount:            v.ChangeCount,
			EffectCount:            v.EffectCount,
			Confidence:             v.Confidence,
			Method:                 v.Method,
		}
	}

	observed := now
	if rec.Timestamp > 0 {
		observed = time.UnixMilli(rec.Timestamp).UTC()
	}

	in := Insight{
		ID:       insightID(kind, a, b, n.bucketIndex(observed.UnixMilli())),
		Kind:     kind,
		KindName: kind.String(),
		Participants: [2]Participant{
			{Identifier: a, Scope: ParseScope(a)},
			{Identifier: b, Scope: ParseScope(b)},
		},
		Stats:      stats,
		Dedup:      dedup,
		ObservedAt: observed,
	}
	in.Derived = computeDerived(kind, stats, aLeads)
	return in
}
