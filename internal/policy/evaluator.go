package policy

import (
	"sync/atomic"

	"github.com/bastionwaf/bastion/internal/component"
	"github.com/bastionwaf/bastion/internal/config"
	"github.com/bastionwaf/bastion/internal/exclusion"
	"github.com/bastionwaf/bastion/internal/request"
)

type Action string

const (
	ActionAllow  Action = "allow"
	ActionBlock  Action = "block"
	ActionShadow Action = "shadow"
)

// ExclusionMatcher reports the exclusion rule, if any, that lets a request
// bypass the components.
type ExclusionMatcher interface {
	Match(*request.Snapshot) (exclusion.Match, bool)
}

// Evaluator decides whether a request passes. Exclusions are checked
// first, then the component chain in registration order.
type Evaluator struct {
	exclusions ExclusionMatcher
	chain      atomic.Pointer[component.Chain]
}

func NewEvaluator(exclusions ExclusionMatcher, chain *component.Chain) *Evaluator {
	e := &Evaluator{exclusions: exclusions}
	e.SetChain(chain)
	return e
}

// SetChain publishes a new component chain. Requests already being
// evaluated finish with the chain they started with.
func (e *Evaluator) SetChain(chain *component.Chain) {
	if chain == nil {
		chain = component.NewChain()
	}
	e.chain.Store(chain)
}

func (e *Evaluator) Chain() *component.Chain {
	return e.chain.Load()
}

func (e *Evaluator) Evaluate(snap *request.Snapshot) Outcome {
	if e.exclusions != nil {
		if m, ok := e.exclusions.Match(snap); ok {
			return Outcome{Reason: ReasonExclusion, Exclusion: &m}
		}
	}

	if c, ok := e.chain.Load().FirstDenied(snap); ok {
		return Outcome{
			Denied:     true,
			StatusCode: c.DenyStatusCode(),
			Component:  c.Name(),
			Reason:     ReasonComponent,
		}
	}

	return Outcome{Reason: ReasonNoMatch}
}

// DecideAction maps an outcome to what the gateway does with the request.
// The second result reports whether the request must be blocked.
func DecideAction(mode string, outcome Outcome) (Action, bool) {
	if !outcome.Denied {
		return ActionAllow, false
	}

	switch mode {
	case config.ModeShadow:
		return ActionShadow, false
	case config.ModeEnforce, "":
		return ActionBlock, true
	default:
		return ActionAllow, false
	}
}
