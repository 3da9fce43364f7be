package corrstream

import (
	"math"
	"testing"
)

func TestLift(t *testing.T) {
	got := Lift(0.3, 0.25, 0.5)
	want := 0.5 / (0.3 * 0.25)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Lift = %v, want %v", got, want)
	}

	if !math.IsNaN(Lift(0, 0.25, 0.5)) {
		t.Error("expected NaN when p_a is zero")
	}
	if !math.IsNaN(Lift(0.3, 0, 0.5)) {
		t.Error("expected NaN when p_b is zero")
	}
}

func TestFormatLag(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "simultaneous"},
		{120, "+2.0m"},
		{-90, "-1.5m"},
		{30, "+0.5m"},
		{61, "+1.0m"},
	}
	for _, tt := range tests {
		if got := FormatLag(tt.seconds); got != tt.want {
			t.Errorf("FormatLag(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestDurationHours(t *testing.T) {
	if got := DurationHours(7_200_000); got != 2 {
		t.Errorf("DurationHours(7200000) = %v, want 2", got)
	}
	// Full precision is kept; rounding is a display concern.
	got := DurationHours(5_000_000)
	if math.Abs(got-1.3888888888888888) > 1e-12 {
		t.Errorf("DurationHours(5000000) = %v", got)
	}
	if RoundHours(got) != 1.4 {
		t.Errorf("RoundHours(%v) = %v, want 1.4", got, RoundHours(got))
	}
}

func TestRateRatio(t *testing.T) {
	if got := RateRatio(3, 4); got != 0.75 {
		t.Errorf("RateRatio(3, 4) = %v, want 0.75", got)
	}
	if got := RateRatio(3, 0); got != 0 {
		t.Errorf("RateRatio(3, 0) = %v, want 0", got)
	}
}

func TestComputeDerived(t *testing.T) {
	d := computeDerived(KindPmiCooccurrence, CoreStats{PA: 0.3, PB: 0.25, PAB: 0.5}, false)
	if math.Abs(d.Lift-6.666666666666667) > 1e-9 {
		t.Errorf("pmi lift = %v", d.Lift)
	}

	d = computeDerived(KindLeadLag, CoreStats{LagSeconds: 120}, true)
	if d.LagDisplay != "+2.0m" {
		t.Errorf("lead-lag display = %q, want +2.0m", d.LagDisplay)
	}

	d = computeDerived(KindChangeAttribution, CoreStats{LagMS: 7_200_000}, true)
	if d.LagDisplay != "+120.0m" {
		t.Errorf("change display = %q, want +120.0m", d.LagDisplay)
	}
	if d.DurationHours != 2 {
		t.Errorf("duration hours = %v, want 2", d.DurationHours)
	}

	d = computeDerived(KindBurstCorrelation, CoreStats{Correlation: 0.9}, false)
	if d.Lift != 0 || d.LagDisplay != "" {
		t.Errorf("burst insights carry no derived metrics, got %+v", d)
	}
}

func TestComputeDerivedLagSignFollowsLeader(t *testing.T) {
	// A raw negative lag with the leader stored first still reads as the
	// leader being ahead.
	d := computeDerived(KindLeadLag, CoreStats{LagSeconds: -120}, true)
	if d.LagDisplay != "+2.0m" {
		t.Errorf("leader-first display = %q, want +2.0m", d.LagDisplay)
	}

	d = computeDerived(KindLeadLag, CoreStats{LagSeconds: 120}, false)
	if d.LagDisplay != "-2.0m" {
		t.Errorf("follower-first display = %q, want -2.0m", d.LagDisplay)
	}

	d = computeDerived(KindLeadLag, CoreStats{LagSeconds: 0}, true)
	if d.LagDisplay != "simultaneous" {
		t.Errorf("zero lag display = %q, want simultaneous", d.LagDisplay)
	}
}
