// Command app is a small upstream for trying the gateway locally. It echoes
// what it received so exclusion and component behaviour can be observed.
package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bastionwaf/bastion/internal/logging"
)

type echo struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	QueryNames []string          `json:"query_names"`
	Headers    map[string]string `json:"headers"`
}

func main() {
	logger, err := logging.NewLogger("info", "console")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(describe(r))
	})
	mux.HandleFunc("/public/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("public content\n"))
	})

	srv := &http.Server{
		Addr:              ":9000",
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("Demo app listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Demo app stopped", zap.Error(err))
	}
}

func describe(r *http.Request) echo {
	out := echo{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: make(map[string]string, len(r.Header)),
	}
	for name := range r.URL.Query() {
		out.QueryNames = append(out.QueryNames, name)
	}
	sort.Strings(out.QueryNames)
	for name := range r.Header {
		out.Headers[name] = r.Header.Get(name)
	}
	return out
}
