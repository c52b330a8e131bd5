package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bastionwaf/bastion/internal/logging"
)

func sampleDecisions() []logging.Decision {
	return []logging.Decision{
		{Timestamp: time.Unix(0, 0), Action: "allow", Reason: "no_match", DurationMS: 10},
		{Timestamp: time.Unix(1, 0), Action: "block", Reason: "component", Component: "header", DenyCode: 83, ClientIP: "203.0.113.9", DurationMS: 30},
		{Timestamp: time.Unix(2, 0), Action: "shadow", Reason: "component", Component: "header", DenyCode: 83, ClientIP: "203.0.113.9", DurationMS: 20},
		{Timestamp: time.Unix(3, 0), Action: "block", Reason: "component", Component: "ip", DenyCode: 81, ClientIP: "198.51.100.1", DurationMS: 5},
		{Timestamp: time.Unix(4, 0), Action: "allow", Reason: "exclusion", Exclusion: "/public/", ExclusionKind: "path", DurationMS: 15},
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleDecisions())
	if summary.Total != 5 {
		t.Fatalf("expected total 5, got %d", summary.Total)
	}
	if summary.Allowed != 2 || summary.Blocked != 2 || summary.Shadowed != 1 || summary.Excluded != 1 {
		t.Fatalf("unexpected action counts: %+v", summary)
	}
	if len(summary.TopComponents) != 2 || summary.TopComponents[0].Key != "header" || summary.TopComponents[0].Count != 2 {
		t.Fatalf("expected header as top component, got %+v", summary.TopComponents)
	}
	if len(summary.TopDenyCodes) != 2 || summary.TopDenyCodes[0].Key != "83" {
		t.Fatalf("expected 83 as top deny code, got %+v", summary.TopDenyCodes)
	}
	if len(summary.TopExclusions) != 1 || summary.TopExclusions[0].Key != "path /public/" {
		t.Fatalf("unexpected exclusions %+v", summary.TopExclusions)
	}
	if summary.TopClients[0].Key != "203.0.113.9" {
		t.Fatalf("unexpected clients %+v", summary.TopClients)
	}
	if !summary.Start.Equal(time.Unix(0, 0)) || !summary.End.Equal(time.Unix(4, 0)) {
		t.Fatalf("unexpected span %v .. %v", summary.Start, summary.End)
	}
	if summary.Latency.P50 != 15 {
		t.Fatalf("expected p50 15, got %v", summary.Latency.P50)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Total != 0 || summary.TopComponents != nil {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestReaderSince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	logger := logging.NewDecisionLogger(file)
	for _, d := range sampleDecisions() {
		if err := logger.Write(d); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	file.Close()

	reader := Reader{Since: time.Unix(3, 0)}
	decisions, err := reader.Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions since t=3, got %d", len(decisions))
	}
}

func TestRenderText(t *testing.T) {
	out := RenderText(Summarize(sampleDecisions()))
	for _, want := range []string{"Total: 5", "Excluded: 1", "- header: 2", "- 83: 2", "Top exclusion rules:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	md := RenderMarkdown(Summarize(sampleDecisions()))
	if !strings.HasPrefix(md, "# Bastion Report") {
		t.Fatalf("unexpected markdown header:\n%s", md)
	}
}

func TestRenderJSON(t *testing.T) {
	out, err := RenderJSON(Summary{Total: 1})
	if err != nil {
		t.Fatalf("expected json render ok: %v", err)
	}
	if !strings.Contains(string(out), `"total": 1`) {
		t.Fatalf("unexpected json %s", out)
	}
}
