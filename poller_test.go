package corrstream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testIngestConfig() IngestConfig {
	cfg := DefaultConfig().Ingest
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.InitialBackoff = time.Millisecond
	return cfg
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { p.Stop() })
	return p
}

func TestPollerRunCycle(t *testing.T) {
	p := newTestPipeline(t)
	src := NewMemorySource()
	poller := NewPoller(src, p, testIngestConfig())

	src.AppendLine(`{"type":"burst","timestamp":1700000000000,"series1":"metric:a","series2":"metric:b","correlation":0.91,"is_significant":true}`)
	src.AppendLine(`{"type":"lead_lag","timestamp":1700000000000,"series1":"metric:a","series2":"metric:b","correlation":0.72,"lag_seconds":120,"sample_size":30,"direction":"series1_leads"}`)

	report := poller.RunCycle(context.Background())
	if report.SourceErr != nil {
		t.Fatalf("cycle failed: %v", report.SourceErr)
	}
	if report.RecordsRead != 2 || report.Created != 2 {
		t.Errorf("report = %+v", report)
	}
	if p.store.Len() != 2 {
		t.Errorf("store has %d insights, want 2", p.store.Len())
	}

	// No new data on the next cycle.
	report = poller.RunCycle(context.Background())
	if report.RecordsRead != 0 || report.Created != 0 {
		t.Errorf("empty cycle report = %+v", report)
	}
}

func TestPollerMalformedLineDoesNotAbortBatch(t *testing.T) {
	p := newTestPipeline(t)
	src := NewMemorySource()
	poller := NewPoller(src, p, testIngestConfig())

	src.AppendLine(`{"type":"burst","timestamp":1700000000000,"series1":"metric:a","series2":"metric:b","correlation":0.9}`)
	src.AppendLine(`{"type":"burst","broken`)
	src.AppendLine(`{"type":"unheard_of"}`)
	src.AppendLine(`{"type":"burst","timestamp":1700000000000,"series1":"metric:c","series2":"metric:d","correlation":0.5}`)

	report := poller.RunCycle(context.Background())
	if report.SourceErr != nil {
		t.Fatalf("cycle failed: %v", report.SourceErr)
	}
	if report.Created != 2 {
		t.Errorf("created = %d, want 2", report.Created)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(report.Errors))
	}
	if !errors.Is(report.Errors[0], ErrParse) {
		t.Errorf("first error: %v", report.Errors[0])
	}
	if !errors.Is(report.Errors[1], ErrUnknownRecordType) {
		t.Errorf("second error: %v", report.Errors[1])
	}
}

func TestPollerDefersPartialTrailingLine(t *testing.T) {
	p := newTestPipeline(t)
	src := NewMemorySource()
	poller := NewPoller(src, p, testIngestConfig())

	src.AppendLine(`{"type":"burst","timestamp":1700000000000,"series1":"metric:a","series2":"metric:b"}`)
	src.Append([]byte(`{"type":"burst","timestamp":1700000060001,"series1":"metric:c",`))

	report := poller.RunCycle(context.Background())
	if report.RecordsRead != 1 || len(report.Errors) != 0 {
		t.Fatalf("partial line must be deferred, report = %+v", report)
	}

	// The rest of the line arrives before the next cycle.
	src.Append([]byte(`"series2":"metric:d"}` + "\n"))

	report = poller.RunCycle(context.Background())
	if report.RecordsRead != 1 || report.Created != 1 || len(report.Errors) != 0 {
		t.Fatalf("completed line must parse cleanly, report = %+v", report)
	}
	if p.store.Len() != 2 {
		t.Errorf("store has %d insights, want 2", p.store.Len())
	}
}

func TestPollerSourceFailureLeavesOffset(t *testing.T) {
	p := newTestPipeline(t)
	src := NewMemorySource()
	poller := NewPoller(src, p, testIngestConfig())

	src.AppendLine(`{"type":"burst","timestamp":1700000000000,"series1":"metric:a","series2":"metric:b"}`)
	poller.RunCycle(context.Background())
	wantOffset := poller.Offset()

	src.SetError(errors.New("boom"))
	report := poller.RunCycle(context.Background())
	if report.SourceErr == nil {
		t.Fatal("expected a source error")
	}
	if !errors.Is(report.SourceErr, ErrSourceUnavailable) {
		t.Errorf("source err = %v", report.SourceErr)
	}
	if poller.Offset() != wantOffset {
		t.Errorf("offset moved on failure: %d != %d", poller.Offset(), wantOffset)
	}
	if poller.LastError() == nil {
		t.Error("LastError must report the degraded state")
	}

	// Recovery on a later cycle clears the error.
	src.SetError(nil)
	src.AppendLine(`{"type":"burst","timestamp":1700000060001,"series1":"metric:c","series2":"metric:d"}`)
	report = poller.RunCycle(context.Background())
	if report.SourceErr != nil {
		t.Fatalf("recovery cycle failed: %v", report.SourceErr)
	}
	if poller.LastError() != nil {
		t.Error("LastError must clear after a successful cycle")
	}
}

func TestPollerStartStop(t *testing.T) {
	p := newTestPipeline(t)
	src := NewMemorySource()
	src.AppendLine(`{"type":"burst","timestamp":1700000000000,"series1":"metric:a","series2":"metric:b"}`)

	cfg := testIngestConfig()
	cfg.PollInterval = 10 * time.Millisecond
	poller := NewPoller(src, p, cfg)

	poller.Start()
	deadline := time.After(time.Second)
	for p.store.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("poller never ingested the record")
		case <-time.After(time.Millisecond):
		}
	}
	poller.Stop()

	// Stop is idempotent and safe without Start.
	poller.Stop()
	NewPoller(src, p, cfg).Stop()
}
