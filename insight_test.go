package corrstream

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestInsightIDStable(t *testing.T) {
	a := insightID(KindBurstCorrelation, "metric:a", "metric:b", 28333333)
	b := insightID(KindBurstCorrelation, "metric:a", "metric:b", 28333333)
	if a != b {
		t.Errorf("id not deterministic: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("id length = %d, want 16 hex chars", len(a))
	}

	if insightID(KindLeadLag, "metric:a", "metric:b", 28333333) == a {
		t.Error("kind must participate in the id")
	}
	if insightID(KindBurstCorrelation, "metric:b", "metric:a", 28333333) == a {
		t.Error("participant order must participate in the id")
	}
}

func TestDerivedMetricsJSONRoundTrip(t *testing.T) {
	// An undefined lift must serialize (encoding/json rejects NaN) and
	// survive a round trip as the NaN sentinel, not as zero.
	d := DerivedMetrics{Lift: math.NaN(), LagDisplay: "+2.0m"}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"lift":null`) {
		t.Errorf("undefined lift should encode as null, got %s", data)
	}

	var back DerivedMetrics
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !math.IsNaN(back.Lift) {
		t.Errorf("lift = %v, want NaN", back.Lift)
	}
	if back.LagDisplay != "+2.0m" {
		t.Errorf("lag display = %q", back.LagDisplay)
	}

	// A defined lift round-trips as a number; an absent key is zero.
	d = DerivedMetrics{Lift: 6.5}
	data, _ = json.Marshal(d)
	json.Unmarshal(data, &back)
	if back.Lift != 6.5 {
		t.Errorf("lift = %v, want 6.5", back.Lift)
	}

	if err := json.Unmarshal([]byte(`{"lag_display":"+1.0m"}`), &back); err != nil {
		t.Fatal(err)
	}
	if back.Lift != 0 {
		t.Errorf("absent lift = %v, want 0", back.Lift)
	}
}

func TestInsightJSONWithNaNLift(t *testing.T) {
	in := Insight{
		ID:      "aaa",
		Kind:    KindPmiCooccurrence,
		Derived: DerivedMetrics{Lift: math.NaN()},
	}
	if _, err := json.Marshal(in); err != nil {
		t.Fatalf("insight with undefined lift must serialize: %v", err)
	}
}
