// Package component defines the detector contract shared by every
// firewall component and the ordered chain the evaluator walks.
//
// A component answers a single question about a request snapshot: should
// it be denied? The answer depends only on the snapshot and the
// component's own configuration (deny list and strict mode), which is set
// before the component is published in a Chain and left alone afterwards.
package component

import "github.com/bastionwaf/bastion/internal/request"

// Deny status codes. They identify which detector fired and are reported
// in the X-Bastion-Deny-Code response header, decision logs and metrics.
const (
	StatusIP        = 81
	StatusHeader    = 83
	StatusUserAgent = 84
)

type Component interface {
	Name() string
	IsDenied(snap *request.Snapshot) bool
	DenyStatusCode() int

	SetDeniedList(list map[string]string)
	DeniedList() map[string]string
	SetStrict(on bool)
	Strict() bool
}

// settings is embedded by concrete components.
type settings struct {
	deniedList map[string]string
	strict     bool
}

func (s *settings) SetDeniedList(list map[string]string) {
	s.deniedList = copyList(list)
}

func (s *settings) DeniedList() map[string]string {
	return copyList(s.deniedList)
}

func (s *settings) SetStrict(on bool) {
	s.strict = on
}

func (s *settings) Strict() bool {
	return s.strict
}

func copyList(list map[string]string) map[string]string {
	out := make(map[string]string, len(list))
	for k, v := range list {
		out[k] = v
	}
	return out
}
