package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("score_spectrum", "scan_id", 17)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output %q is not a single JSON record: %v", buf.String(), err)
	}
	if rec["msg"] != "score_spectrum" || rec["scan_id"] != float64(17) {
		t.Errorf("record %v", rec)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "text")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("database created", "peptides", 3)
	if !strings.Contains(buf.String(), "msg=\"database created\" peptides=3") {
		t.Errorf("text output %q", buf.String())
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]string{
		"error":   "ERROR",
		"WARNING": "WARN",
		" debug ": "DEBUG",
		"info":    "INFO",
		"":        "INFO",
	}
	for in, want := range tests {
		if got := levelFromString(in).String(); got != want {
			t.Errorf("levelFromString(%q) = %s, want %s", in, got, want)
		}
	}
}
