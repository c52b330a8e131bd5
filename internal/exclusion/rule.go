package exclusion

import (
	"fmt"
	"strings"
)

type RuleKind string

const (
	KindPath          RuleKind = "path"
	KindQueryParamSet RuleKind = "queryParamSet"
)

func ParseRuleKind(raw string) (RuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "path":
		return KindPath, nil
	case "queryparamset", "query_param_set", "query-params":
		return KindQueryParamSet, nil
	default:
		return "", fmt.Errorf("%w: unknown rule kind %q", ErrValidation, raw)
	}
}

// PathRule excludes every request whose normalized path starts with Prefix.
type PathRule struct {
	Prefix string `json:"prefix" yaml:"prefix"`
}

// QueryParamSetRule excludes requests whose query parameter names are
// exactly Names. Order is kept for display only.
type QueryParamSetRule struct {
	Names []string `json:"names" yaml:"names"`
}

func (r QueryParamSetRule) String() string {
	return strings.Join(r.Names, ", ")
}

// Rules is the persisted form of the store: two ordered lists.
type Rules struct {
	Paths          []PathRule          `json:"paths" yaml:"paths"`
	QueryParamSets []QueryParamSetRule `json:"query_param_sets" yaml:"query_param_sets"`
}

func (r Rules) Clone() Rules {
	out := Rules{
		Paths:          make([]PathRule, len(r.Paths)),
		QueryParamSets: make([]QueryParamSetRule, len(r.QueryParamSets)),
	}
	copy(out.Paths, r.Paths)
	for i, set := range r.QueryParamSets {
		out.QueryParamSets[i] = QueryParamSetRule{Names: append([]string(nil), set.Names...)}
	}
	return out
}

// Match identifies the rule that excluded a request.
type Match struct {
	Kind  RuleKind
	Index int
	Value string
}

// ParseQueryParamNames splits comma separated admin input into an ordered
// set: names are trimmed, empty names and repeats are dropped.
func ParseQueryParamNames(raw string) []string {
	return normalizeNames(strings.Split(raw, ","))
}

func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
