// Package admin exposes exclusion rule management over HTTP.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bastionwaf/bastion/internal/config"
	"github.com/bastionwaf/bastion/internal/exclusion"
	"github.com/bastionwaf/bastion/internal/observability"
	"github.com/bastionwaf/bastion/internal/ratelimit"
)

// ExclusionStore is the subset of *exclusion.Store the API needs.
type ExclusionStore interface {
	AddPathRule(prefix string) error
	AddQueryParamSetRule(names []string) error
	RemoveRule(kind exclusion.RuleKind, index int) error
	PathRules() []exclusion.PathRule
	QueryParamSetRules() []exclusion.QueryParamSetRule
}

type Options struct {
	Token   string
	RPS     float64
	Burst   int
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

func OptionsFromConfig(cfg config.AdminConfig) Options {
	return Options{Token: cfg.Token, RPS: cfg.RPS, Burst: cfg.Burst}
}

// NewRouter builds the admin gin engine.
func NewRouter(store ExclusionStore, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{store: store, logger: logger}

	router := gin.New()
	// Throttling keys on the peer address; forwarded headers are ignored.
	_ = router.SetTrustedProxies(nil)
	router.Use(recoveryMiddleware(logger), loggingMiddleware(logger))

	adminGroup := router.Group("/admin")
	adminGroup.GET("/health", h.health)

	rules := adminGroup.Group("/exclusions",
		rateLimitMiddleware(ratelimit.NewLimiter(opts.RPS, opts.Burst), opts.Metrics),
		tokenMiddleware(opts.Token),
	)
	rules.GET("", h.listExclusions)
	rules.POST("/paths", h.addPathRule)
	rules.POST("/query-params", h.addQueryParamSetRule)
	rules.DELETE("/:kind/:index", h.removeRule)

	return router
}

// Server runs the admin API until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(addr string, store ExclusionStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(store, opts),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Admin API listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
