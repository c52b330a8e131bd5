package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bastionwaf/bastion/internal/component"
	"github.com/bastionwaf/bastion/internal/config"
	"github.com/bastionwaf/bastion/internal/logging"
	"github.com/bastionwaf/bastion/internal/observability"
	"github.com/bastionwaf/bastion/internal/policy"
	"github.com/bastionwaf/bastion/internal/request"
)

const (
	headerDenyCode  = "X-Bastion-Deny-Code"
	headerRequestID = "X-Request-Id"

	defaultBlockBody = "request blocked"
)

// firewallSettings is the part of the configuration that can change on
// reload without rebuilding the proxies.
type firewallSettings struct {
	mode            string
	blockStatusCode int
	blockBody       string
}

type Gateway struct {
	router  *Router
	proxies map[string]*httputil.ReverseProxy

	evaluator         *policy.Evaluator
	firewall          atomic.Pointer[firewallSettings]
	trustForwardedFor bool
	timeout           time.Duration

	decisionLog *logging.DecisionLogger
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// New builds the gateway for cfg. Requests are evaluated by evaluator; its
// component chain is replaced from cfg.Firewall.
func New(cfg *config.Config, evaluator *policy.Evaluator) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}

	router, err := NewRouter(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Server.EffectiveTimeout()
	transport := newTransport(timeout)

	proxies := make(map[string]*httputil.ReverseProxy, len(cfg.Upstreams))
	for _, upstream := range cfg.Upstreams {
		target, err := url.Parse(upstream.URL)
		if err != nil {
			return nil, fmt.Errorf("parse upstream %s: %w", upstream.Name, err)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.Transport = transport
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			switch {
			case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
				http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
			default:
				http.Error(w, "upstream error", http.StatusBadGateway)
			}
		}
		proxies[upstream.Name] = proxy
	}

	g := &Gateway{
		router:            router,
		proxies:           proxies,
		evaluator:         evaluator,
		trustForwardedFor: cfg.Server.TrustForwardedFor,
		timeout:           timeout,
		logger:            zap.NewNop(),
	}
	if err := g.ApplyFirewall(cfg.Firewall); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) SetDecisionLogger(logger *logging.DecisionLogger) {
	g.decisionLog = logger
}

func (g *Gateway) SetMetrics(metrics *observability.Metrics) {
	g.metrics = metrics
}

func (g *Gateway) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g.logger = logger
}

// ApplyFirewall rebuilds the component chain from fw and publishes it
// together with the mode and block response. On error nothing changes.
func (g *Gateway) ApplyFirewall(fw config.Firewall) error {
	chain, err := component.Build(fw)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}

	g.evaluator.SetChain(chain)
	g.firewall.Store(&firewallSettings{
		mode:            fw.EffectiveMode(),
		blockStatusCode: fw.BlockStatusCode,
		blockBody:       fw.BlockBody,
	})
	return nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, proxy, ok := g.resolveRoute(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	start := time.Now()
	fw := g.firewall.Load()
	snap := request.FromHTTP(r, g.trustForwardedFor)
	requestID := uuid.NewString()

	decision := logging.Decision{
		Timestamp: start.UTC(),
		RequestID: requestID,
		ClientIP:  snap.IP(),
		Host:      r.Host,
		Method:    r.Method,
		Path:      snap.Path(),
		Query:     r.URL.RawQuery,
		RouteID:   route.ID,
		Mode:      fw.mode,
	}

	outcome := g.evaluator.Evaluate(snap)
	decision.Reason = string(outcome.Reason)
	if outcome.Denied {
		decision.Component = outcome.Component
		decision.DenyCode = outcome.StatusCode
	}
	if outcome.Exclusion != nil {
		decision.Exclusion = outcome.Exclusion.Value
		decision.ExclusionKind = string(outcome.Exclusion.Kind)
	}

	w.Header().Set(headerRequestID, requestID)

	action, shouldBlock := policy.DecideAction(fw.mode, outcome)
	decision.Action = string(action)
	if shouldBlock {
		decision.StatusCode = blockStatus(fw)
		g.writeDecision(decision, start, 0)

		w.Header().Set(headerDenyCode, strconv.Itoa(outcome.StatusCode))
		http.Error(w, blockBody(fw), decision.StatusCode)
		return
	}
	if action == policy.ActionShadow {
		g.logger.Debug("Shadowed denial",
			zap.String("request_id", requestID),
			zap.String("component", outcome.Component),
			zap.Int("deny_code", outcome.StatusCode))
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
	defer cancel()

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	upstreamStart := time.Now()
	proxy.ServeHTTP(rec, r.WithContext(ctx))
	decision.StatusCode = rec.status
	g.writeDecision(decision, start, time.Since(upstreamStart).Milliseconds())
}

func (g *Gateway) resolveRoute(r *http.Request) (Route, *httputil.ReverseProxy, bool) {
	route, ok := g.router.Match(r)
	if !ok {
		return Route{}, nil, false
	}
	proxy, ok := g.proxies[route.Upstream]
	if !ok {
		return Route{}, nil, false
	}
	return route, proxy, true
}

func (g *Gateway) writeDecision(decision logging.Decision, start time.Time, upstreamMS int64) {
	decision.DurationMS = time.Since(start).Milliseconds()
	decision.UpstreamMS = upstreamMS
	if g.decisionLog != nil {
		if err := g.decisionLog.Write(decision); err != nil {
			g.logger.Warn("Failed to write decision log", zap.Error(err))
		}
	}
	if g.metrics != nil {
		g.metrics.Observe(decision)
	}
}

func blockStatus(fw *firewallSettings) int {
	if fw.blockStatusCode > 0 {
		return fw.blockStatusCode
	}
	return http.StatusForbidden
}

func blockBody(fw *firewallSettings) string {
	if fw.blockBody != "" {
		return fw.blockBody
	}
	return defaultBlockBody
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func newTransport(timeout time.Duration) *http.Transport {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
}
