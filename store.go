package corrstream

import (
	"sync"
	"time"
)

// Store holds the current normalized, classified insight set. Reads observe
// either the pre- or post-cycle state but never a partially-updated insight:
// each ingestion cycle commits its batch under a single lock covering the
// whole commit, and all read paths return copies.
type Store struct {
	mu       sync.RWMutex
	insights map[string]*Insight

	// Stream-level counters for rate ratios computed at aggregation time.
	rawRecords    int64
	processedRecs int64

	newestSeen time.Time
}

// NewStore creates an empty insight store.
func NewStore() *Store {
	return &Store{insights: make(map[string]*Insight)}
}

// CommitResult reports what a cycle commit changed.
type CommitResult struct {
	Created int
	Updated int
}

// Commit applies a normalized, classified, deduplicated batch as one atomic
// set. Re-ingestion of an existing id updates lastSeenAt, severity, and the
// dedup annotation but never creates a duplicate; firstSeenAt is preserved.
func (s *Store) Commit(batch []*Insight, raw int, now time.Time) CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res CommitResult
	for _, in := range batch {
		if existing, ok := s.insights[in.ID]; ok {
			existing.Stats = in.Stats
			existing.Derived = in.Derived
			existing.Severity = in.Severity
			existing.SeverityName = in.SeverityName
			existing.Significant = in.Significant
			existing.Dedup = in.Dedup
			existing.LastSeenAt = now
			res.Updated++
		} else {
			cp := *in
			cp.FirstSeenAt = now
			cp.LastSeenAt = now
			s.insights[cp.ID] = &cp
			res.Created++
		}
		if now.After(s.newestSeen) {
			s.newestSeen = now
		}
	}
	s.rawRecords += int64(raw)
	s.processedRecs += int64(len(batch))
	return res
}

// Get returns a copy of the insight with the given id.
func (s *Store) Get(id string) (Insight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.insights[id]
	if !ok {
		return Insight{}, false
	}
	return *in, true
}

// Snapshot returns a copy of every insight currently in the store.
func (s *Store) Snapshot() []Insight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Insight, 0, len(s.insights))
	for _, in := range s.insights {
		out = append(out, *in)
	}
	return out
}

// Len returns the number of insights in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.insights)
}

// Counters returns the raw and processed record counters used for
// rate-ratio aggregation.
func (s *Store) Counters() (raw, processed int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawRecords, s.processedRecs
}

// Freshness returns how long ago the most recent insight was last seen.
// A zero store reports a negative duration meaning "never".
func (s *Store) Freshness(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.newestSeen.IsZero() {
		return -1
	}
	return now.Sub(s.newestSeen)
}

// Reclassify recomputes severity and significance for every stored insight
// under the given thresholds. It runs as one atomic pass; readers see either
// all old or all new severities.
func (s *Store) Reclassify(cfg ClassifierConfig, sctx SeverityContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range s.insights {
		in.Severity = Classify(in.Kind, in.Stats, cfg, sctx)
		in.SeverityName = in.Severity.String()
		in.Significant = isSignificant(in.Kind, in.Stats, cfg)
	}
}
