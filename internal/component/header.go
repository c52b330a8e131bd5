package component

import (
	"net/http"
	"strings"

	"github.com/bastionwaf/bastion/internal/request"
)

// commonHeaderFields are sent by every mainstream browser. Their absence
// points at a scripted client.
var commonHeaderFields = []string{
	"Accept",
	"Accept-Language",
	"Accept-Encoding",
}

// Header denies requests carrying a prohibited substring in a configured
// header, and in strict mode requests missing any common browser header.
type Header struct {
	settings
}

func NewHeader() *Header {
	return &Header{settings: settings{deniedList: map[string]string{}}}
}

func (h *Header) Name() string { return "header" }

func (h *Header) DenyStatusCode() int { return StatusHeader }

func (h *Header) IsDenied(snap *request.Snapshot) bool {
	if snap == nil {
		return false
	}

	for name, prohibited := range h.deniedList {
		if !snap.HasHeader(name) {
			continue
		}
		if containsFold(snap.Header(name), prohibited) {
			return true
		}
	}

	if h.strict {
		for _, field := range commonHeaderFields {
			if !snap.HasHeader(field) {
				return true
			}
		}
	}

	return false
}

// Headers returns the request headers the component inspected.
func (h *Header) Headers(snap *request.Snapshot) map[string]string {
	if snap == nil {
		return map[string]string{}
	}
	return snap.Headers()
}

func (h *Header) SetDeniedList(list map[string]string) {
	out := make(map[string]string, len(list))
	for name, value := range list {
		out[http.CanonicalHeaderKey(name)] = value
	}
	h.deniedList = out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
