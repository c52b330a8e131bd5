package policy

import "github.com/bastionwaf/bastion/internal/exclusion"

type Reason string

const (
	ReasonExclusion Reason = "exclusion"
	ReasonNoMatch   Reason = "no_match"
	ReasonComponent Reason = "component"
)

// Outcome is the result of evaluating one request. StatusCode and
// Component are set only when Denied; Exclusion only when an exclusion
// rule let the request through.
type Outcome struct {
	Denied     bool
	StatusCode int
	Component  string
	Reason     Reason
	Exclusion  *exclusion.Match
}

func (o Outcome) Allowed() bool { return !o.Denied }
