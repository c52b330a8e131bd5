package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecisionLoggerWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDecisionLogger(&buf)

	decision := Decision{
		Timestamp:  time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		RequestID:  "req-1",
		Action:     "block",
		Reason:     "component",
		Component:  "header",
		DenyCode:   83,
		StatusCode: 403,
		Query:      strings.Repeat("a", 400),
	}

	if err := logger.Write(decision); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := logger.Write(Decision{RequestID: "req-2", Action: "allow", Reason: "no_match"}); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var parsed Decision
	if err := json.Unmarshal([]byte(lines[0]), &parsed); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if parsed.Component != "header" || parsed.DenyCode != 83 {
		t.Fatalf("unexpected decision %+v", parsed)
	}
	if len(parsed.Query) != maxQuery {
		t.Fatalf("expected query length %d, got %d", maxQuery, len(parsed.Query))
	}

	if strings.Contains(lines[1], "deny_code") || strings.Contains(lines[1], "\"component\"") {
		t.Fatalf("allowed decision should omit deny fields: %s", lines[1])
	}
}

func TestOpenDecisionLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "decisions.jsonl")

	for i := 0; i < 2; i++ {
		logger, closeFn, err := OpenDecisionLog(path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := logger.Write(Decision{RequestID: "r"}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := closeFn(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Fatalf("expected 2 lines, got %d", n)
	}
}

func TestNilDecisionLogger(t *testing.T) {
	var logger *DecisionLogger
	if err := logger.Write(Decision{}); err != nil {
		t.Fatalf("expected nil logger to discard, got %v", err)
	}
}
