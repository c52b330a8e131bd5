package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const maxQuery = 256

// Decision is written as a single JSON object per request.
type Decision struct {
	Timestamp  time.Time `json:"ts"`
	RequestID  string    `json:"request_id"`
	ClientIP   string    `json:"client_ip"`
	Host       string    `json:"host"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Query      string    `json:"query"`
	RouteID    string    `json:"route_id"`
	Mode       string    `json:"mode"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason"`
	Component  string    `json:"component,omitempty"`
	DenyCode   int       `json:"deny_code,omitempty"`
	Exclusion  string    `json:"exclusion,omitempty"`
	// ExclusionKind is "path" or "queryParamSet" when Reason is "exclusion".
	ExclusionKind string `json:"exclusion_kind,omitempty"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `json:"duration_ms"`
	UpstreamMS int64     `json:"upstream_ms"`
}

// DecisionLogger appends decisions to w. Safe for concurrent use.
type DecisionLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewDecisionLogger(w io.Writer) *DecisionLogger {
	return &DecisionLogger{w: w}
}

func OpenDecisionLog(path string) (*DecisionLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewDecisionLogger(file), file.Close, nil
}

func (l *DecisionLogger) Write(decision Decision) error {
	if l == nil || l.w == nil {
		return nil
	}
	if len(decision.Query) > maxQuery {
		decision.Query = decision.Query[:maxQuery]
	}

	data, err := json.Marshal(decision)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(append(data, '\n'))
	return err
}
