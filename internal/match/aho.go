// Package match provides the multi-pattern substring automaton used by
// deny-list components.
package match

import (
	"errors"
	"strings"
)

// Pattern is one deny-list entry: Label identifies it in logs, Value is
// the substring searched for.
type Pattern struct {
	Label string
	Value string
}

// Automaton is an Aho-Corasick automaton over bytes. It is immutable after
// construction and safe for concurrent use.
type Automaton struct {
	nodes []node
	fold  bool
}

type node struct {
	next map[byte]int
	fail int
	// out holds the index of the first pattern ending here, -1 if none.
	out int
}

type Options struct {
	// CaseInsensitive lower-cases patterns and input before matching.
	CaseInsensitive bool
}

var ErrNoPatterns = errors.New("no non-empty patterns")

func Compile(patterns []Pattern, opts Options) (*Automaton, []Pattern, error) {
	kept := make([]Pattern, 0, len(patterns))
	nodes := []node{{next: map[byte]int{}, out: -1}}

	for _, p := range patterns {
		value := p.Value
		if opts.CaseInsensitive {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}

		current := 0
		for i := 0; i < len(value); i++ {
			b := value[i]
			next, ok := nodes[current].next[b]
			if !ok {
				nodes = append(nodes, node{next: map[byte]int{}, out: -1})
				next = len(nodes) - 1
				nodes[current].next[b] = next
			}
			current = next
		}
		if nodes[current].out < 0 {
			nodes[current].out = len(kept)
		}
		kept = append(kept, p)
	}

	if len(kept) == 0 {
		return nil, nil, ErrNoPatterns
	}

	queue := make([]int, 0, len(nodes))
	for _, child := range nodes[0].next {
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]

		for b, child := range nodes[state].next {
			fail := nodes[state].fail
			for fail != 0 {
				if _, ok := nodes[fail].next[b]; ok {
					break
				}
				fail = nodes[fail].fail
			}
			if target, ok := nodes[fail].next[b]; ok && target != child {
				nodes[child].fail = target
			}
			if nodes[child].out < 0 {
				nodes[child].out = nodes[nodes[child].fail].out
			}
			queue = append(queue, child)
		}
	}

	return &Automaton{nodes: nodes, fold: opts.CaseInsensitive}, kept, nil
}

// Find returns the index (into the kept patterns returned by Compile) of
// the first pattern found while scanning input left to right.
func (a *Automaton) Find(input string) (int, bool) {
	if a == nil {
		return -1, false
	}
	if a.fold {
		input = strings.ToLower(input)
	}

	state := 0
	for i := 0; i < len(input); i++ {
		b := input[i]
		for state != 0 {
			if _, ok := a.nodes[state].next[b]; ok {
				break
			}
			state = a.nodes[state].fail
		}
		if next, ok := a.nodes[state].next[b]; ok {
			state = next
		}
		if out := a.nodes[state].out; out >= 0 {
			return out, true
		}
	}
	return -1, false
}
