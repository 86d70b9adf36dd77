package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestNewWritesJSONByDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{Level: "info", Output: buf})
	l.Info().Str("folder", "inbox").Msg("import started")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if out["message"] != "import started" {
		t.Fatalf("message = %v, want %q", out["message"], "import started")
	}
	if out["folder"] != "inbox" {
		t.Fatalf("folder = %v, want %q", out["folder"], "inbox")
	}
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{Level: "warn", Output: buf})
	l.Info().Msg("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected info line to be filtered at warn level, got %q", buf.String())
	}
	l.Warn().Msg("should appear")
	if buf.Len() == 0 {
		t.Fatalf("expected warn line to be written")
	}
}

func TestComponentTagsSubsequentLines(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{Level: "info", Output: buf}).Component("importer")
	l.Info().Msg("hi")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if out["component"] != "importer" {
		t.Fatalf("component = %v, want %q", out["component"], "importer")
	}
}

func TestDefaultConfigIsPrettyToStderr(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Pretty {
		t.Fatalf("expected default config to be pretty for CLI use")
	}
	if cfg.Level != "info" {
		t.Fatalf("Level = %q, want %q", cfg.Level, "info")
	}
	if cfg.Output != os.Stderr {
		t.Fatalf("Output = %v, want os.Stderr", cfg.Output)
	}
}
