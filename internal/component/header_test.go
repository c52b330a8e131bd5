package component

import (
	"testing"

	"github.com/bastionwaf/bastion/internal/request"
)

func browserHeaders() map[string]string {
	return map[string]string{
		"Accept":          "text/html",
		"Accept-Language": "en",
		"Accept-Encoding": "gzip",
	}
}

func TestHeaderEmptyConfigNeverDenies(t *testing.T) {
	snaps := []*request.Snapshot{
		request.New(request.Fields{}),
		request.New(request.Fields{Headers: browserHeaders()}),
		request.New(request.Fields{Headers: map[string]string{"User-Agent": "BadBot"}}),
	}

	h := NewHeader()
	for i, snap := range snaps {
		if h.IsDenied(snap) {
			t.Fatalf("snapshot %d: expected allow with empty config", i)
		}
	}
}

func TestHeaderStrictModeBaseline(t *testing.T) {
	h := NewHeader()
	h.SetStrict(true)

	if h.IsDenied(request.New(request.Fields{Headers: browserHeaders()})) {
		t.Fatalf("expected allow when all common headers are present")
	}

	for _, missing := range commonHeaderFields {
		headers := browserHeaders()
		delete(headers, missing)
		if !h.IsDenied(request.New(request.Fields{Headers: headers})) {
			t.Fatalf("expected deny when %s is missing", missing)
		}
	}
}

func TestHeaderStrictDeniesMissingAcceptEncoding(t *testing.T) {
	h := NewHeader()
	h.SetStrict(true)

	snap := request.New(request.Fields{Headers: map[string]string{
		"Accept":          "text/html",
		"Accept-Language": "en",
	}})

	if !h.IsDenied(snap) {
		t.Fatalf("expected deny without Accept-Encoding")
	}
	if h.DenyStatusCode() != 83 {
		t.Fatalf("expected status code 83, got %d", h.DenyStatusCode())
	}
}

func TestHeaderDeniedSubstring(t *testing.T) {
	cases := []struct {
		name    string
		list    map[string]string
		headers map[string]string
		strict  bool
		want    bool
	}{
		{
			name:    "substring",
			list:    map[string]string{"User-Agent": "BadBot"},
			headers: map[string]string{"User-Agent": "Mozilla BadBot/1.0"},
			want:    true,
		},
		{
			name:    "substring-strict",
			list:    map[string]string{"User-Agent": "BadBot"},
			headers: map[string]string{"User-Agent": "Mozilla BadBot/1.0"},
			strict:  true,
			want:    true,
		},
		{
			name:    "case-insensitive",
			list:    map[string]string{"User-Agent": "badbot"},
			headers: map[string]string{"User-Agent": "Mozilla BADBOT/1.0"},
			want:    true,
		},
		{
			name:    "header-name-case",
			list:    map[string]string{"user-agent": "BadBot"},
			headers: map[string]string{"USER-AGENT": "BadBot"},
			want:    true,
		},
		{
			name:    "absent-header",
			list:    map[string]string{"X-Scanner": "sqlmap"},
			headers: map[string]string{"User-Agent": "sqlmap/1.7"},
			want:    false,
		},
		{
			name:    "no-substring",
			list:    map[string]string{"User-Agent": "BadBot"},
			headers: map[string]string{"User-Agent": "Mozilla/5.0"},
			want:    false,
		},
		{
			name:    "empty-value-present-header",
			list:    map[string]string{"User-Agent": ""},
			headers: map[string]string{"User-Agent": "Mozilla/5.0"},
			want:    true,
		},
		{
			name:    "empty-value-absent-header",
			list:    map[string]string{"User-Agent": ""},
			headers: map[string]string{"Accept": "text/html"},
			want:    false,
		},
		{
			name: "any-of-several",
			list: map[string]string{"Referer": "casino", "User-Agent": "BadBot"},
			headers: map[string]string{
				"Referer":    "https://casino.example",
				"User-Agent": "Mozilla/5.0",
			},
			want: true,
		},
	}

	for _, tt := range cases {
		h := NewHeader()
		h.SetDeniedList(tt.list)
		h.SetStrict(tt.strict)
		if got := h.IsDenied(request.New(request.Fields{Headers: tt.headers})); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestHeaderDoesNotMutateSnapshot(t *testing.T) {
	snap := request.New(request.Fields{Headers: map[string]string{"User-Agent": "BadBot"}})
	before := snap.Headers()

	h := NewHeader()
	h.SetDeniedList(map[string]string{"User-Agent": "badbot"})
	h.SetStrict(true)
	_ = h.IsDenied(snap)

	after := snap.Headers()
	if len(before) != len(after) || after["User-Agent"] != "BadBot" {
		t.Fatalf("snapshot headers changed: %v -> %v", before, after)
	}
}

func TestHeaderNilSnapshot(t *testing.T) {
	h := NewHeader()
	h.SetStrict(true)
	if h.IsDenied(nil) {
		t.Fatalf("expected nil snapshot to be allowed")
	}
	if len(h.Headers(nil)) != 0 {
		t.Fatalf("expected no headers for nil snapshot")
	}
}

func TestDeniedListIsCopied(t *testing.T) {
	list := map[string]string{"User-Agent": "BadBot"}
	h := NewHeader()
	h.SetDeniedList(list)

	list["User-Agent"] = "Mozilla"
	got := h.DeniedList()
	if got["User-Agent"] != "BadBot" {
		t.Fatalf("expected configured value to be isolated, got %q", got["User-Agent"])
	}
}
