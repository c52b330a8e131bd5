package request

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFromHTTPCapturesRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/public/../api/users?b=2&a=1&a=3", nil)
	req.RemoteAddr = "198.51.100.7:5123"
	req.Header.Set("accept-language", "en")
	req.Header.Add("Accept", "text/html")
	req.Header.Add("Accept", "application/json")

	snap := FromHTTP(req, false)

	if snap.Path() != "/api/users" {
		t.Fatalf("expected normalized path, got %q", snap.Path())
	}
	if snap.IP() != "198.51.100.7" {
		t.Fatalf("expected client ip, got %q", snap.IP())
	}
	if snap.Header("ACCEPT-LANGUAGE") != "en" {
		t.Fatalf("expected case-insensitive header lookup, got %q", snap.Header("ACCEPT-LANGUAGE"))
	}
	if snap.Header("Accept") != "text/html, application/json" {
		t.Fatalf("expected joined header values, got %q", snap.Header("Accept"))
	}
	names := snap.QueryNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("expected query names [a b], got %v", names)
	}
}

func TestSnapshotIsolatedFromSource(t *testing.T) {
	headers := map[string]string{"X-Test": "1"}
	snap := New(Fields{Headers: headers})

	headers["X-Test"] = "2"
	if snap.Header("X-Test") != "1" {
		t.Fatalf("snapshot changed after source map mutation")
	}

	copied := snap.Headers()
	copied["X-Test"] = "3"
	if snap.Header("X-Test") != "1" {
		t.Fatalf("snapshot changed after accessor copy mutation")
	}
}

func TestQueryEquals(t *testing.T) {
	snap := New(Fields{Query: []string{"a", "b"}})

	cases := []struct {
		name  string
		names []string
		want  bool
	}{
		{"same", []string{"a", "b"}, true},
		{"reordered", []string{"b", "a"}, true},
		{"duplicate", []string{"a", "b", "a"}, true},
		{"superset", []string{"a", "b", "c"}, false},
		{"subset", []string{"a"}, false},
		{"disjoint", []string{"c", "d"}, false},
	}

	for _, tt := range cases {
		if got := snap.QueryEquals(tt.names); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := ClientIP(req, false); got != "10.0.0.1" {
		t.Fatalf("expected remote addr when untrusted, got %q", got)
	}
	if got := ClientIP(req, true); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}

func TestAddr(t *testing.T) {
	if _, ok := New(Fields{}).Addr(); ok {
		t.Fatalf("expected missing ip to be invalid")
	}
	if _, ok := New(Fields{IP: "not-an-ip"}).Addr(); ok {
		t.Fatalf("expected malformed ip to be invalid")
	}
	addr, ok := New(Fields{IP: "::ffff:192.0.2.1"}).Addr()
	if !ok || addr.String() != "192.0.2.1" {
		t.Fatalf("expected unmapped ipv4, got %v %v", addr, ok)
	}
}
