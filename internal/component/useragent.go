package component

import (
	"sort"

	"github.com/bastionwaf/bastion/internal/match"
	"github.com/bastionwaf/bastion/internal/request"
)

// UserAgent denies requests whose User-Agent contains any prohibited
// substring, ignoring case. Strict mode also denies an empty User-Agent.
type UserAgent struct {
	settings
	automaton *match.Automaton
	patterns  []match.Pattern
}

func NewUserAgent() *UserAgent {
	return &UserAgent{settings: settings{deniedList: map[string]string{}}}
}

func (c *UserAgent) Name() string { return "user_agent" }

func (c *UserAgent) DenyStatusCode() int { return StatusUserAgent }

func (c *UserAgent) SetDeniedList(list map[string]string) {
	c.settings.SetDeniedList(list)

	labels := make([]string, 0, len(list))
	for label := range list {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	patterns := make([]match.Pattern, 0, len(labels))
	for _, label := range labels {
		patterns = append(patterns, match.Pattern{Label: label, Value: list[label]})
	}

	auto, kept, err := match.Compile(patterns, match.Options{CaseInsensitive: true})
	if err != nil {
		c.automaton, c.patterns = nil, nil
		return
	}
	c.automaton, c.patterns = auto, kept
}

func (c *UserAgent) IsDenied(snap *request.Snapshot) bool {
	if snap == nil {
		return false
	}

	ua := snap.Header("User-Agent")
	if ua == "" {
		return c.strict
	}

	_, found := c.automaton.Find(ua)
	return found
}

// Matched returns the label of the deny-list entry found in the request's
// User-Agent, for diagnostics.
func (c *UserAgent) Matched(snap *request.Snapshot) (string, bool) {
	if snap == nil {
		return "", false
	}
	idx, ok := c.automaton.Find(snap.Header("User-Agent"))
	if !ok {
		return "", false
	}
	return c.patterns[idx].Label, true
}
