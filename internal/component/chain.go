package component

import (
	"fmt"
	"strings"

	"github.com/bastionwaf/bastion/internal/config"
	"github.com/bastionwaf/bastion/internal/request"
)

// Chain is an ordered, immutable list of configured components.
// Registration order is evaluation order.
type Chain struct {
	components []Component
}

func NewChain(components ...Component) *Chain {
	return &Chain{components: append([]Component(nil), components...)}
}

func (c *Chain) Components() []Component {
	if c == nil {
		return nil
	}
	return append([]Component(nil), c.components...)
}

func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.components)
}

// FirstDenied walks the chain and returns the first component that denies
// the request.
func (c *Chain) FirstDenied(snap *request.Snapshot) (Component, bool) {
	if c == nil {
		return nil, false
	}
	for _, comp := range c.components {
		if comp.IsDenied(snap) {
			return comp, true
		}
	}
	return nil, false
}

type factory func() Component

var factories = map[string]factory{
	config.ComponentHeader:    func() Component { return NewHeader() },
	config.ComponentIP:        func() Component { return NewIP() },
	config.ComponentUserAgent: func() Component { return NewUserAgent() },
}

// Build creates a chain from the firewall configuration, in list order.
func Build(cfg config.Firewall) (*Chain, error) {
	components := make([]Component, 0, len(cfg.Components))
	for i, raw := range cfg.Components {
		newComponent, ok := factories[strings.ToLower(strings.TrimSpace(raw.Type))]
		if !ok {
			return nil, fmt.Errorf("components[%d]: unknown type %q", i, raw.Type)
		}
		comp := newComponent()
		comp.SetDeniedList(raw.DeniedList)
		comp.SetStrict(raw.Strict)
		components = append(components, comp)
	}
	return NewChain(components...), nil
}
