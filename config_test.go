package corrstream

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrstream.yaml")
	content := `
ingest:
  path: /var/log/corr/records.ndjson
  poll_interval: 10s
  bucket_size: 30s
classifier:
  critical_threshold: 0.9
  high_threshold: 0.7
  min_sample_count: 5
context:
  level: elevated
  recommended_critical: 0.85
http:
  enabled: true
  port: 9000
audit:
  enabled: true
  path: /var/lib/corr/audit.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Ingest.Path != "/var/log/corr/records.ndjson" {
		t.Errorf("path = %q", cfg.Ingest.Path)
	}
	if cfg.Ingest.PollInterval != 10*time.Second {
		t.Errorf("poll interval = %v", cfg.Ingest.PollInterval)
	}
	if cfg.Ingest.BucketSize != 30*time.Second {
		t.Errorf("bucket size = %v", cfg.Ingest.BucketSize)
	}
	if cfg.Classifier.CriticalThreshold != 0.9 || cfg.Classifier.MinSampleCount != 5 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	// Omitted classifier fields keep their defaults.
	if cfg.Classifier.PMIThreshold != 1.0 {
		t.Errorf("pmi threshold = %v, want default", cfg.Classifier.PMIThreshold)
	}
	if cfg.Context.Level != "elevated" || cfg.Context.RecommendedCritical != 0.85 {
		t.Errorf("context = %+v", cfg.Context)
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Port != 9000 {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if !cfg.Audit.Enabled || cfg.Audit.Path != "/var/lib/corr/audit.db" {
		t.Errorf("audit = %+v", cfg.Audit)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrstream.yaml")
	if err := os.WriteFile(path, []byte("ingest:\n  path: r.ndjson\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Ingest.PollInterval != 30*time.Second {
		t.Errorf("poll interval = %v, want 30s default", cfg.Ingest.PollInterval)
	}
	if cfg.Ingest.BucketSize != 60*time.Second {
		t.Errorf("bucket size = %v, want 60s default", cfg.Ingest.BucketSize)
	}
	if cfg.HTTP.Port != 8099 {
		t.Errorf("port = %d, want 8099 default", cfg.HTTP.Port)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("ingest:\n  bucket_size: 45s\n"), 0o644)
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected error for unsupported bucket size")
	}

	notYAML := filepath.Join(dir, "not.yaml")
	os.WriteFile(notYAML, []byte("{{{{"), 0o644)
	if _, err := LoadConfig(notYAML); err == nil {
		t.Error("expected error for unparseable yaml")
	}

	badDur := filepath.Join(dir, "dur.yaml")
	os.WriteFile(badDur, []byte("ingest:\n  poll_interval: soon\n"), 0o644)
	if _, err := LoadConfig(badDur); err == nil {
		t.Error("expected error for unparseable duration")
	}
}
