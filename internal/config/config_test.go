package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Learning.LearningRate != 0.1 {
		t.Errorf("learningRate = %v, want 0.1", cfg.Learning.LearningRate)
	}
	if cfg.Store.MaxOpenConns != 8 {
		t.Errorf("maxOpenConns = %d, want 8", cfg.Store.MaxOpenConns)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qbank.json")

	cfg := DefaultConfig()
	cfg.Server.LogLevel = "debug"
	cfg.Learning.ExplorationRate = 0.5
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Server.LogLevel != "debug" {
		t.Errorf("logLevel = %q, want debug", loaded.Server.LogLevel)
	}
	if loaded.Learning.ExplorationRate != 0.5 {
		t.Errorf("explorationRate = %v, want 0.5", loaded.Learning.ExplorationRate)
	}
}

func TestLoadAppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qbank.json")
	minimal := `{"server": {"dataDir": "` + strings.ReplaceAll(dir, `\`, `\\`) + `"}}`
	if err := os.WriteFile(path, []byte(minimal), 0o640); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.DataDir != dir {
		t.Errorf("dataDir = %q, want %q", cfg.Server.DataDir, dir)
	}
	if cfg.Learning.DiscountFactor != 0.9 {
		t.Errorf("discountFactor = %v, want default 0.9", cfg.Learning.DiscountFactor)
	}
	if cfg.Store.BusyTimeoutMs != 5000 {
		t.Errorf("busyTimeoutMs = %d, want default 5000", cfg.Store.BusyTimeoutMs)
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qbank.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o640); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty dataDir", func(c *Config) { c.Server.DataDir = "" }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"zero open conns", func(c *Config) { c.Store.MaxOpenConns = 0 }},
		{"idle above open", func(c *Config) { c.Store.MaxIdleConns = 99 }},
		{"zero retries", func(c *Config) { c.Store.MaxRetries = 0 }},
		{"alpha too big", func(c *Config) { c.Learning.LearningRate = 1.5 }},
		{"negative epsilon", func(c *Config) { c.Learning.ExplorationRate = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStoreConfigConversion(t *testing.T) {
	sc := StoreConfig{
		Path:             "/tmp/q.db",
		MaxOpenConns:     4,
		MaxIdleConns:     1,
		BusyTimeoutMs:    2500,
		OpTimeoutMs:      8000,
		MaxRetries:       3,
		RetryBaseDelayMs: 25,
	}
	qc := sc.ToStoreConfig()
	if qc.BusyTimeout.Milliseconds() != 2500 {
		t.Errorf("busyTimeout = %v", qc.BusyTimeout)
	}
	if qc.OpTimeout.Milliseconds() != 8000 {
		t.Errorf("opTimeout = %v", qc.OpTimeout)
	}
	if qc.MaxRetries != 3 || qc.Path != "/tmp/q.db" {
		t.Errorf("conversion mismatch: %+v", qc)
	}
}
