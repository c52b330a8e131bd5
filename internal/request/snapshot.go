// Package request holds the read-only view of an inbound request that
// detectors and exclusion rules are evaluated against.
package request

import (
	"net"
	"net/http"
	"net/netip"
	"sort"
	"strings"

	"github.com/bastionwaf/bastion/internal/normalize"
)

// Snapshot is built once per request and never modified afterwards.
// All accessors return copies.
type Snapshot struct {
	method  string
	host    string
	path    string
	ip      string
	headers map[string]string
	query   map[string]struct{}
}

// Fields describes a snapshot without an *http.Request. Header names are
// canonicalized and Path is normalized the same way FromHTTP does.
type Fields struct {
	Method  string
	Host    string
	Path    string
	IP      string
	Headers map[string]string
	Query   []string
}

func New(f Fields) *Snapshot {
	s := &Snapshot{
		method:  f.Method,
		host:    f.Host,
		path:    normalize.RequestPath(f.Path),
		ip:      f.IP,
		headers: make(map[string]string, len(f.Headers)),
		query:   make(map[string]struct{}, len(f.Query)),
	}
	for name, value := range f.Headers {
		s.headers[http.CanonicalHeaderKey(name)] = value
	}
	for _, name := range f.Query {
		s.query[name] = struct{}{}
	}
	return s
}

// FromHTTP captures r. When trustForwardedFor is set the first hop of
// X-Forwarded-For is used as the client address.
func FromHTTP(r *http.Request, trustForwardedFor bool) *Snapshot {
	if r == nil {
		return New(Fields{})
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ", ")
	}

	var query []string
	var rawPath string
	if r.URL != nil {
		for name := range r.URL.Query() {
			query = append(query, name)
		}
		rawPath = r.URL.EscapedPath()
	}

	return New(Fields{
		Method:  r.Method,
		Host:    r.Host,
		Path:    rawPath,
		IP:      ClientIP(r, trustForwardedFor),
		Headers: headers,
		Query:   query,
	})
}

func (s *Snapshot) Method() string { return s.method }
func (s *Snapshot) Host() string   { return s.host }
func (s *Snapshot) Path() string   { return s.path }
func (s *Snapshot) IP() string     { return s.ip }

// Addr parses the client address. ok is false when it is missing or malformed.
func (s *Snapshot) Addr() (netip.Addr, bool) {
	if s.ip == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(s.ip)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// Header returns the value of the named header, or "" when absent.
func (s *Snapshot) Header(name string) string {
	return s.headers[http.CanonicalHeaderKey(name)]
}

func (s *Snapshot) HasHeader(name string) bool {
	_, ok := s.headers[http.CanonicalHeaderKey(name)]
	return ok
}

func (s *Snapshot) Headers() map[string]string {
	out := make(map[string]string, len(s.headers))
	for name, value := range s.headers {
		out[name] = value
	}
	return out
}

// QueryNames returns the query parameter names in sorted order.
func (s *Snapshot) QueryNames() []string {
	out := make([]string, 0, len(s.query))
	for name := range s.query {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Snapshot) HasQuery(name string) bool {
	_, ok := s.query[name]
	return ok
}

// QueryEquals reports whether the request's query parameter names are
// exactly the given set. Duplicates in names are ignored.
func (s *Snapshot) QueryEquals(names []string) bool {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := s.query[name]; !ok {
			return false
		}
		seen[name] = struct{}{}
	}
	return len(seen) == len(s.query)
}

func ClientIP(r *http.Request, trustForwardedFor bool) string {
	if r == nil {
		return ""
	}

	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
