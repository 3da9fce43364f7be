package corrstream

import (
	"errors"
	"testing"
)

func TestDecodeRecordBurst(t *testing.T) {
	line := []byte(`{"type":"burst","timestamp":1700000000000,` +
		`"series1":"resource:prod-eu/checkout-7d9f","series2":"resource:prod-eu/payments-5c4a",` +
		`"aligned_bursts":4,"total_buckets":120,"alignment_strength":0.42,"correlation":0.91,` +
		`"p_value":0.002,"confidence_interval":[0.74,0.97],"sample_size":118,"is_significant":true,` +
		`"strategy":"pearson","means":[12.1,9.8],"stds":[3.2,2.9]}`)

	rec, err := DecodeRecord(line, 0)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if rec.Type != RecordTypeBurst || rec.Burst == nil {
		t.Fatalf("expected burst variant, got %+v", rec)
	}
	if rec.Burst.Correlation != 0.91 {
		t.Errorf("correlation = %v, want 0.91", rec.Burst.Correlation)
	}
	if rec.Burst.AlignedBursts != 4 || rec.Burst.TotalBuckets != 120 {
		t.Errorf("counts = %d/%d, want 4/120", rec.Burst.AlignedBursts, rec.Burst.TotalBuckets)
	}
	if !rec.Burst.IsSignificant {
		t.Error("expected is_significant to decode as true")
	}
	if len(rec.Burst.ConfidenceInterval) != 2 {
		t.Errorf("confidence_interval length = %d, want 2", len(rec.Burst.ConfidenceInterval))
	}
}

func TestDecodeRecordMissingOptionalFields(t *testing.T) {
	// A minimal record is valid; absent stats decode to zero values.
	rec, err := DecodeRecord([]byte(`{"type":"pmi","token_a":"metric:cpu","token_b":"evt_name:OOMKilled"}`), 0)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if rec.PMI.PMIScore != 0 || rec.PMI.Support != 0 {
		t.Errorf("expected zero stats, got %+v", rec.PMI)
	}
	if rec.PMI.Dedup != nil {
		t.Error("expected no dedup hint")
	}
}

func TestDecodeRecordPMIDedupHint(t *testing.T) {
	line := []byte(`{"type":"pmi","token_a":"pod_name:checkout-7d9f","token_b":"resource:prod-eu/checkout-7d9f",` +
		`"pmi_score":1.8,"support":6,"_deduplication":{"semantic":true,"note":"same pod"}}`)

	rec, err := DecodeRecord(line, 0)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if rec.PMI.Dedup == nil || !rec.PMI.Dedup.Semantic {
		t.Fatalf("expected semantic dedup hint, got %+v", rec.PMI.Dedup)
	}
	if rec.PMI.Dedup.Note != "same pod" {
		t.Errorf("note = %q, want %q", rec.PMI.Dedup.Note, "same pod")
	}
}

func TestDecodeRecordErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"malformed json", `{"type":"burst",`, ErrParse},
		{"missing type", `{"series1":"a","series2":"b"}`, ErrMissingRequiredField},
		{"empty type", `{"type":""}`, ErrMissingRequiredField},
		{"unknown type", `{"type":"seasonal_decomposition"}`, ErrUnknownRecordType},
		{"wrong field type", `{"type":"burst","correlation":"high"}`, ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(tt.line), 7)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			var ingErr *IngestError
			if !errors.As(err, &ingErr) {
				t.Fatalf("expected *IngestError, got %T", err)
			}
			if ingErr.Line != 7 {
				t.Errorf("line = %d, want 7", ingErr.Line)
			}
		})
	}
}

func TestLeadLagParticipantOrder(t *testing.T) {
	tests := []struct {
		direction string
		wantA     string
		wantB     string
	}{
		{"series1_leads", "metric:requests", "metric:errors"},
		{"forward", "metric:requests", "metric:errors"},
		{"series2_leads", "metric:errors", "metric:requests"},
		{"backward", "metric:errors", "metric:requests"},
	}

	for _, tt := range tests {
		rec := &RawRecord{
			Type: RecordTypeLeadLag,
			LeadLag: &LeadLagRecord{
				Series1:   "metric:requests",
				Series2:   "metric:errors",
				Direction: tt.direction,
			},
		}
		a, b, leads := rec.participants()
		if a != tt.wantA || b != tt.wantB {
			t.Errorf("direction %q: participants = (%q, %q), want (%q, %q)",
				tt.direction, a, b, tt.wantA, tt.wantB)
		}
		if !leads {
			t.Errorf("direction %q: expected leader-first ordering", tt.direction)
		}
	}
}
