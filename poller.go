package corrstream

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Poller drives periodic ingestion cycles against a RecordSource. Cycles
// never overlap: if a tick fires while the previous cycle is still running
// the tick is skipped and counted, not queued. Source failures open a
// circuit breaker after repeated consecutive failures so an unreachable
// source is probed, not hammered.
type Poller struct {
	source   RecordSource
	pipeline *Pipeline
	interval time.Duration
	retryer  *Retryer
	breaker  *CircuitBreaker

	mu      sync.Mutex
	offset  int64
	running bool
	started bool
	skipped int64
	lastErr error

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewPoller creates a poller feeding decoded records into the pipeline.
func NewPoller(source RecordSource, pipeline *Pipeline, cfg IngestConfig) *Poller {
	return &Poller{
		source:   source,
		pipeline: pipeline,
		interval: cfg.PollInterval,
		retryer:  NewRetryer(cfg.Retry),
		breaker:  NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins polling on the configured interval. The first cycle runs
// immediately.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()
	go p.loop()
}

func (p *Poller) loop() {
	defer close(p.done)

	p.tick()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	p.mu.Lock()
	if p.running {
		p.skipped++
		p.mu.Unlock()
		p.pipeline.metrics.cyclesSkipped.Inc()
		return
	}
	p.running = true
	p.mu.Unlock()

	report := p.RunCycle(context.Background())
	if report.SourceErr != nil {
		slog.Warn("ingestion cycle failed", "err", report.SourceErr)
	} else if report.RecordsRead > 0 {
		slog.Debug("ingestion cycle complete",
			"records", report.RecordsRead,
			"created", report.Created,
			"updated", report.Updated,
			"errors", len(report.Errors))
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// RunCycle performs one read-and-ingest cycle synchronously. A source
// failure leaves the offset where it was and is reported on the returned
// CycleReport; per-record errors never abort the cycle.
func (p *Poller) RunCycle(ctx context.Context) CycleReport {
	p.mu.Lock()
	offset := p.offset
	p.mu.Unlock()

	var data []byte
	var newOffset int64
	err := p.breaker.Execute(func() error {
		return p.retryer.Do(ctx, func() error {
			var readErr error
			data, newOffset, readErr = p.source.Read(ctx, offset)
			return readErr
		})
	})
	if err != nil {
		p.pipeline.metrics.sourceUp.Set(0)
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return CycleReport{At: time.Now().UTC(), SourceErr: err}
	}
	p.pipeline.metrics.sourceUp.Set(1)

	lines, consumed := splitLines(data)

	// The source may have rebased the offset (file truncation); derive the
	// base from what it actually returned and advance only past complete
	// lines, deferring any trailing partial line to the next cycle.
	base := newOffset - int64(len(data))

	report := p.pipeline.ingestLines(lines, time.Now().UTC())

	p.mu.Lock()
	p.offset = base + consumed
	p.lastErr = nil
	p.mu.Unlock()

	return report
}

// Offset returns the current read offset into the source.
func (p *Poller) Offset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// SkippedCycles returns how many ticks were skipped due to an in-flight
// cycle.
func (p *Poller) SkippedCycles() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// LastError returns the most recent cycle-level source error, or nil when
// the last cycle succeeded.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Stop halts polling and waits for any in-flight cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })
	if started {
		<-p.done
	}
}
