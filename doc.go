// Package corrstream ingests the append-only correlation record stream
// produced by an upstream statistical analysis engine and turns it into a
// queryable set of normalized, severity-classified insights.
//
// The pipeline reads newline-delimited JSON records (burst co-spikes,
// lead-lag relationships, PMI co-occurrences, change attributions),
// normalizes each variant into a single Insight shape, computes derived
// metrics, classifies severity against adaptive thresholds, annotates
// semantic duplicates, and serves filtered views to a presentation layer.
//
// # Basic Usage
//
// Open a pipeline with default configuration and a local record file:
//
//	cfg := corrstream.DefaultConfig()
//	cfg.Ingest.Path = "public/vl_insights.jsonl"
//	p, err := corrstream.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Stop()
//	p.Start()
//
// Query insights:
//
//	minCorr := 0.5
//	items, summary := p.ListInsights(corrstream.Filter{
//	    MinCorrelation:  &minCorr,
//	    SignificantOnly: true,
//	})
//
// # Features
//
// Ingestion:
//   - Offset-tracked NDJSON tailing with partial-line deferral
//   - File, in-memory, and S3 record sources (snappy segments supported)
//   - Skip-if-running poll cycles; per-record failures never abort a cycle
//   - Retry with backoff and a circuit breaker around source reads
//
// Normalization & Classification:
//   - Tagged-variant record decoding with the upstream field contract
//   - Compound identifier parsing into cluster/namespace/pod scope
//   - Deterministic insight ids; re-ingestion is idempotent
//   - Adaptive severity thresholds, reclassified on configuration change
//   - Semantic duplicate annotation with canonical-id linking
//
// Query & Observability:
//   - Conjunctive filtering with summary counts and stable ordering
//   - HTTP API for the presentation layer plus WebSocket streaming
//   - SQLite-backed audit history of every insight revision,
//     optionally encrypted at rest
//   - Prometheus metrics for cycles, errors, and store size
package corrstream
