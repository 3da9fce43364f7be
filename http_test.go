package corrstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) (*Pipeline, http.Handler) {
	t.Helper()
	p := newTestPipeline(t)
	p.IngestBatch([]byte(pipelineFixture))
	srv := NewHTTPServer(p, DefaultConfig().HTTP)
	return p, srv.Handler()
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPInsights(t *testing.T) {
	_, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/insights", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp insightsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Insights) != 4 || resp.Summary.Total != 4 {
		t.Errorf("insights = %d, summary = %+v", len(resp.Insights), resp.Summary)
	}
}

func TestHTTPInsightsFiltered(t *testing.T) {
	_, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/insights?kind=burst_correlation&min_correlation=0.5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp insightsResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Insights) != 1 || resp.Insights[0].KindName != "burst_correlation" {
		t.Errorf("filtered insights = %+v", resp.Insights)
	}

	rec = doRequest(t, h, http.MethodGet, "/insights?kind=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/insights?min_correlation=high", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad number: status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/insights?bucket_size=30s", "")
	if rec.Code != http.StatusOK {
		t.Errorf("bucket_size=30s: status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/insights?bucket_size=45s", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bucket_size=45s: status = %d", rec.Code)
	}
}

func TestHTTPInsightByID(t *testing.T) {
	p, h := newTestServer(t)

	insights, _ := p.ListInsights(Filter{})
	id := insights[0].ID

	rec := doRequest(t, h, http.MethodGet, "/insights/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got Insight
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if got.ID != id {
		t.Errorf("id = %s, want %s", got.ID, id)
	}

	rec = doRequest(t, h, http.MethodGet, "/insights/doesnotexist", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing insight: status = %d", rec.Code)
	}
}

func TestHTTPStats(t *testing.T) {
	_, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats AggregateStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if stats.TotalInsights != 4 {
		t.Errorf("total = %d", stats.TotalInsights)
	}
}

func TestHTTPThresholds(t *testing.T) {
	_, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/thresholds", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPut, "/thresholds",
		`{"critical_threshold":0.7,"high_threshold":0.5,"correlation_threshold":0.3,"pmi_threshold":1.0,"min_sample_count":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	var got ClassifierConfig
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.CriticalThreshold != 0.7 {
		t.Errorf("critical = %v", got.CriticalThreshold)
	}

	// Invalid thresholds are rejected and the previous config survives.
	rec = doRequest(t, h, http.MethodPut, "/thresholds",
		`{"critical_threshold":0.5,"high_threshold":0.9,"min_sample_count":3}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid update status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/thresholds", "")
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.CriticalThreshold != 0.7 {
		t.Errorf("rejected config replaced the active one: %v", got.CriticalThreshold)
	}
}

func TestHTTPContext(t *testing.T) {
	p, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/context",
		`{"context_level":"elevated","recommended_critical":0.7,"recommended_high":0.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if p.SeverityContextValue().Level != "elevated" {
		t.Error("context not applied")
	}

	rec = doRequest(t, h, http.MethodPost, "/context",
		`{"context_level":"storm","recommended_critical":1.5}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid context: status = %d", rec.Code)
	}
	if p.SeverityContextValue().Level != "elevated" {
		t.Error("last valid context not retained")
	}
}

func TestHTTPHealth(t *testing.T) {
	_, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if health.Status != "ok" || health.Insights != 4 {
		t.Errorf("health = %+v", health)
	}
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t)

	for _, target := range []string{"/insights", "/stats", "/health"} {
		rec := doRequest(t, h, http.MethodDelete, target, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestHTTPMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "corrstream_records_read_total") {
		t.Error("expected pipeline metrics in scrape output")
	}
}
