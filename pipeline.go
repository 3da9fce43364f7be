package corrstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CycleReport summarizes one ingestion cycle.
type CycleReport struct {
	// At is when the cycle ran.
	At time.Time
	// RecordsRead is the number of complete lines seen, valid or not.
	RecordsRead int
	// Created and Updated count the store changes the commit produced.
	Created int
	Updated int
	// Errors holds the per-record failures; these never abort a cycle.
	Errors []*IngestError
	// SourceErr is set when the cycle could not read input at all: a
	// source failure, or ErrClosed after the pipeline was stopped.
	SourceErr error
}

// Pipeline ties the ingestion stages together: decode, normalize, classify,
// deduplicate, commit, then fan out to the audit log and stream hub. It is
// safe for concurrent use.
type Pipeline struct {
	store   *Store
	norm    *Normalizer
	hub     *StreamHub
	metrics *Metrics
	audit   *AuditStore
	source  RecordSource
	poller  *Poller

	mu         sync.RWMutex
	classifier ClassifierConfig
	sctx       SeverityContext

	closeOnce sync.Once
	closed    bool
}

// New creates a pipeline from the given configuration. When an ingest path
// or S3 source is configured a poller is attached; otherwise records are
// fed in directly via IngestBatch.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:      NewStore(),
		norm:       NewNormalizer(cfg.Ingest.BucketSize),
		hub:        NewStreamHub(cfg.Stream),
		metrics:    NewMetrics(),
		classifier: cfg.Classifier,
		sctx:       cfg.Context,
	}

	if cfg.Audit.Enabled {
		audit, err := NewAuditStore(cfg.Audit)
		if err != nil {
			return nil, fmt.Errorf("cannot open audit store: %w", err)
		}
		p.audit = audit
	}

	switch {
	case cfg.Ingest.S3 != nil:
		src, err := NewS3Source(*cfg.Ingest.S3)
		if err != nil {
			if p.audit != nil {
				p.audit.Close()
			}
			return nil, err
		}
		p.source = src
	case cfg.Ingest.Path != "":
		p.source = NewFileSource(cfg.Ingest.Path)
	}

	if p.source != nil {
		p.poller = NewPoller(p.source, p, cfg.Ingest)
	}

	return p, nil
}

// Start begins background polling. It is a no-op when no source is
// configured.
func (p *Pipeline) Start() {
	if p.poller != nil {
		p.poller.Start()
	}
}

// Stop halts polling and releases resources. Safe to call more than once.
func (p *Pipeline) Stop() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		if p.poller != nil {
			p.poller.Stop()
		}
		if p.source != nil {
			err = p.source.Close()
		}
		if p.audit != nil {
			if cerr := p.audit.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

// IngestBatch runs one ingestion cycle over a chunk of NDJSON. Unlike the
// poller path, a trailing line without a newline is treated as complete.
// After Stop it reports ErrClosed and ingests nothing.
func (p *Pipeline) IngestBatch(data []byte) CycleReport {
	if p.isClosed() {
		return CycleReport{At: time.Now().UTC(), SourceErr: ErrClosed}
	}
	lines, consumed := splitLines(data)
	if rest := data[consumed:]; len(rest) > 0 {
		lines = append(lines, rest)
	}
	return p.ingestLines(lines, time.Now().UTC())
}

// ingestLines is the shared cycle body used by both the poller and
// IngestBatch.
func (p *Pipeline) ingestLines(lines [][]byte, now time.Time) CycleReport {
	report := CycleReport{At: now, RecordsRead: len(lines)}
	if len(lines) == 0 {
		p.metrics.cyclesRun.Inc()
		p.metrics.lastCycleUnix.Set(float64(now.Unix()))
		return report
	}

	p.mu.RLock()
	cfg := p.classifier
	sctx := p.sctx
	p.mu.RUnlock()

	batch := make([]*Insight, 0, len(lines))
	for i, line := range lines {
		rec, err := DecodeRecord(line, i)
		if err != nil {
			var ingErr *IngestError
			if errors.As(err, &ingErr) {
				report.Errors = append(report.Errors, ingErr)
				p.metrics.recordIngestError(ingErr)
			} else {
				report.Errors = append(report.Errors, &IngestError{Line: i, Cause: err})
				p.metrics.ingestErrors.WithLabelValues("other").Inc()
			}
			continue
		}

		in := p.norm.Normalize(rec, now)
		in.Severity = Classify(in.Kind, in.Stats, cfg, sctx)
		in.SeverityName = in.Severity.String()
		in.Significant = isSignificant(in.Kind, in.Stats, cfg)
		batch = append(batch, &in)
	}
	p.metrics.recordsRead.Add(float64(len(lines)))

	dedupeBatch(batch, p.store.Snapshot(), now)

	res := p.store.Commit(batch, len(lines), now)
	report.Created = res.Created
	report.Updated = res.Updated

	committed := make([]Insight, 0, len(batch))
	for _, in := range batch {
		if got, ok := p.store.Get(in.ID); ok {
			committed = append(committed, got)
		}
	}

	if p.audit != nil {
		if err := p.audit.Record(committed, now); err != nil {
			slog.Error("audit record failed", "err", err)
		}
	}
	p.hub.Publish(committed)

	p.metrics.insightsTotal.Set(float64(p.store.Len()))
	p.metrics.cyclesRun.Inc()
	p.metrics.lastCycleUnix.Set(float64(now.Unix()))
	return report
}

// RunCycle triggers one synchronous poll cycle against the configured
// source. It returns a zero report when no source is configured.
func (p *Pipeline) RunCycle() CycleReport {
	if p.isClosed() {
		return CycleReport{At: time.Now().UTC(), SourceErr: ErrClosed}
	}
	if p.poller == nil {
		return CycleReport{At: time.Now().UTC()}
	}
	return p.poller.RunCycle(context.Background())
}

func (p *Pipeline) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// ListInsights filters and sorts the current snapshot. The result is a
// point-in-time view; it never reflects a half-committed cycle.
func (p *Pipeline) ListInsights(f Filter) ([]Insight, Summary) {
	p.mu.RLock()
	sparse := p.classifier.MinSampleCount
	p.mu.RUnlock()
	return FilterInsights(p.store.Snapshot(), f, sparse)
}

// GetInsight returns one insight by id.
func (p *Pipeline) GetInsight(id string) (Insight, error) {
	in, ok := p.store.Get(id)
	if !ok {
		return Insight{}, ErrNotFound
	}
	return in, nil
}

// AggregateStats computes the store-wide rollup.
func (p *Pipeline) AggregateStats() AggregateStats {
	p.mu.RLock()
	sparse := p.classifier.MinSampleCount
	sctx := p.sctx
	p.mu.RUnlock()
	raw, processed := p.store.Counters()
	return aggregate(p.store.Snapshot(), raw, processed, sparse, sctx)
}

// UpdateThresholds replaces the classifier configuration and reclassifies
// every stored insight atomically. An invalid configuration is rejected and
// the last valid one stays in effect.
func (p *Pipeline) UpdateThresholds(cfg ClassifierConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.classifier = cfg
	sctx := p.sctx
	p.mu.Unlock()

	p.store.Reclassify(cfg, sctx)
	slog.Info("classifier thresholds updated",
		"critical", cfg.CriticalThreshold, "high", cfg.HighThreshold)
	return nil
}

// SetSeverityContext installs a new system-wide severity context and
// reclassifies the store under it. A context with out-of-range recommended
// thresholds is rejected and the last valid one stays in effect.
func (p *Pipeline) SetSeverityContext(sctx SeverityContext) error {
	if err := sctx.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.sctx = sctx
	cfg := p.classifier
	p.mu.Unlock()

	p.store.Reclassify(cfg, sctx)
	return nil
}

// Thresholds returns the active classifier configuration.
func (p *Pipeline) Thresholds() ClassifierConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.classifier
}

// SeverityContextValue returns the active severity context.
func (p *Pipeline) SeverityContextValue() SeverityContext {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sctx
}

// Freshness reports how long ago the newest insight was seen; negative
// means nothing has been ingested yet.
func (p *Pipeline) Freshness() time.Duration {
	return p.store.Freshness(time.Now().UTC())
}

// Hub exposes the stream hub for subscriptions.
func (p *Pipeline) Hub() *StreamHub {
	return p.hub
}

// Metrics exposes the Prometheus metric set.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// History returns the audit revisions for an insight, or ErrNotFound-style
// empties when auditing is disabled.
func (p *Pipeline) History(id string) ([]InsightRevision, error) {
	if p.audit == nil {
		return nil, nil
	}
	return p.audit.History(id)
}
