package corrstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// InsightLister provides filtered insight listing.
// This interface allows HTTP handlers to be tested independently of the pipeline.
type InsightLister interface {
	ListInsights(f Filter) ([]Insight, Summary)
}

// InsightGetter provides single-insight lookup.
type InsightGetter interface {
	GetInsight(id string) (Insight, error)
	History(id string) ([]InsightRevision, error)
}

// StatsProvider provides aggregate stats and freshness.
type StatsProvider interface {
	AggregateStats() AggregateStats
	Freshness() time.Duration
}

// ThresholdManager provides runtime threshold control.
type ThresholdManager interface {
	Thresholds() ClassifierConfig
	UpdateThresholds(cfg ClassifierConfig) error
	SetSeverityContext(sctx SeverityContext) error
}

// Ensure Pipeline implements the interfaces
var (
	_ InsightLister    = (*Pipeline)(nil)
	_ InsightGetter    = (*Pipeline)(nil)
	_ StatsProvider    = (*Pipeline)(nil)
	_ ThresholdManager = (*Pipeline)(nil)
)

// httpMaxBodySize is the maximum allowed request body size (1MB)
const httpMaxBodySize = 1 << 20

// HTTPServer serves the query API over HTTP.
type HTTPServer struct {
	srv      *http.Server
	pipeline *Pipeline
}

// NewHTTPServer builds the API server for a pipeline.
func NewHTTPServer(p *Pipeline, cfg HTTPConfig) *HTTPServer {
	s := &HTTPServer{pipeline: p}

	mux := http.NewServeMux()
	mux.HandleFunc("/insights", s.handleInsights)
	mux.HandleFunc("/insights/", s.handleInsightByID)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/thresholds", s.handleThresholds)
	mux.HandleFunc("/context", s.handleContext)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/stream", p.Hub())
	mux.Handle("/metrics", p.Metrics().Handler())

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *HTTPServer) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseFilter builds a Filter from query parameters. Unknown parameters are
// ignored; malformed numeric values are an error.
func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()

	if v := q.Get("kind"); v != "" {
		kind, ok := ParseInsightKind(v)
		if !ok {
			return f, fmt.Errorf("unknown kind %q", v)
		}
		f.Kind = &kind
	}
	if v := q.Get("min_correlation"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("invalid min_correlation: %w", err)
		}
		f.MinCorrelation = &n
	}
	if v := q.Get("min_support"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid min_support: %w", err)
		}
		f.MinSupport = &n
	}
	if v := q.Get("min_aligned_bursts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid min_aligned_bursts: %w", err)
		}
		f.MinAlignedBursts = &n
	}
	if v := q.Get("min_pmi_score"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("invalid min_pmi_score: %w", err)
		}
		f.MinPMIScore = &n
	}
	if v := q.Get("bucket_size"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || (d != 30*time.Second && d != 60*time.Second) {
			return f, fmt.Errorf("bucket_size must be 30s or 60s, got %q", v)
		}
		f.BucketSize = d
	}
	f.SignificantOnly = q.Get("significant") == "true"
	f.Cluster = q.Get("cluster")
	f.Namespace = q.Get("namespace")
	f.TextSearch = q.Get("q")
	return f, nil
}

type insightsResponse struct {
	Insights []Insight `json:"insights"`
	Summary  Summary   `json:"summary"`
}

func (s *HTTPServer) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	insights, summary := s.pipeline.ListInsights(f)
	if insights == nil {
		insights = []Insight{}
	}
	writeJSON(w, http.StatusOK, insightsResponse{Insights: insights, Summary: summary})
}

func (s *HTTPServer) handleInsightByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/insights/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing insight id")
		return
	}

	switch sub {
	case "":
		in, err := s.pipeline.GetInsight(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "insight not found")
			return
		}
		writeJSON(w, http.StatusOK, in)
	case "history":
		revisions, err := s.pipeline.History(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if revisions == nil {
			revisions = []InsightRevision{}
		}
		writeJSON(w, http.StatusOK, revisions)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.AggregateStats())
}

func (s *HTTPServer) handleThresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.pipeline.Thresholds())
	case http.MethodPut, http.MethodPost:
		var cfg ClassifierConfig
		body := http.MaxBytesReader(w, r.Body, httpMaxBodySize)
		if err := json.NewDecoder(body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid threshold payload")
			return
		}
		if err := s.pipeline.UpdateThresholds(cfg); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.pipeline.Thresholds())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleContext(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.pipeline.SeverityContextValue())
	case http.MethodPut, http.MethodPost:
		var sctx SeverityContext
		body := http.MaxBytesReader(w, r.Body, httpMaxBodySize)
		if err := json.NewDecoder(body).Decode(&sctx); err != nil {
			writeError(w, http.StatusBadRequest, "invalid context payload")
			return
		}
		if err := s.pipeline.SetSeverityContext(sctx); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.pipeline.SeverityContextValue())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type healthResponse struct {
	Status           string  `json:"status"`
	Insights         int     `json:"insights"`
	FreshnessSeconds float64 `json:"freshness_seconds"`
	SourceDegraded   bool    `json:"source_degraded,omitempty"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := healthResponse{Status: "ok", Insights: s.pipeline.store.Len()}
	if fresh := s.pipeline.Freshness(); fresh >= 0 {
		resp.FreshnessSeconds = fresh.Seconds()
	} else {
		resp.FreshnessSeconds = -1
	}
	if s.pipeline.poller != nil && s.pipeline.poller.LastError() != nil {
		resp.Status = "degraded"
		resp.SourceDegraded = true
	}
	writeJSON(w, http.StatusOK, resp)
}
