// Package exclusion stores administrator-defined bypass rules. A request
// matching any rule skips component evaluation entirely.
package exclusion

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/bastionwaf/bastion/internal/normalize"
	"github.com/bastionwaf/bastion/internal/request"
)

// Store keeps the exclusion rules in memory and writes every change
// through to a Backend.
//
// Readers never block: they load the current immutable rule set through an
// atomic pointer. Writers are serialized, persist the new set first and
// publish it only after the backend accepted it, so concurrent readers see
// either the old or the new rules in full.
//
// Each mutation starts from the backend's current contents rather than the
// in-memory copy, so a rule written by another process sharing the backend
// is kept.
type Store struct {
	mu       sync.Mutex
	current  atomic.Pointer[Rules]
	backend  Backend
	logger   *zap.Logger
	onChange func(Rules)
}

func NewStore(backend Backend, logger *zap.Logger) (*Store, error) {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{backend: backend, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// OnChange registers fn to be called with a copy of the rules after every
// successful mutation or reload.
func (s *Store) OnChange(fn func(Rules)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
	if fn != nil {
		fn(s.current.Load().Clone())
	}
}

// Reload replaces the in-memory rules with the backend's contents.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("load exclusions: %w", err)
	}
	rules := loaded.Clone()
	s.current.Store(&rules)
	s.logger.Debug("Exclusion rules loaded",
		zap.Int("path_rules", len(rules.Paths)),
		zap.Int("query_param_set_rules", len(rules.QueryParamSets)))
	s.notify(rules)
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// AddPathRule appends a prefix rule. The prefix is normalized the same way
// request paths are, so "/public//" and "/public/./" both store "/public/".
func (s *Store) AddPathRule(prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return fmt.Errorf("%w: path prefix must not be empty", ErrValidation)
	}
	prefix = normalize.RequestPath(prefix)

	return s.mutate(func(r *Rules) error {
		r.Paths = append(r.Paths, PathRule{Prefix: prefix})
		return nil
	}, zap.String("kind", string(KindPath)), zap.String("prefix", prefix))
}

func (s *Store) AddQueryParamSetRule(names []string) error {
	names = normalizeNames(names)
	if len(names) == 0 {
		return fmt.Errorf("%w: query parameter set must name at least one parameter", ErrValidation)
	}

	return s.mutate(func(r *Rules) error {
		r.QueryParamSets = append(r.QueryParamSets, QueryParamSetRule{Names: names})
		return nil
	}, zap.String("kind", string(KindQueryParamSet)), zap.Strings("names", names))
}

// RemoveRule deletes the rule at index from the list of the given kind.
// Later rules move up one position.
func (s *Store) RemoveRule(kind RuleKind, index int) error {
	return s.mutate(func(r *Rules) error {
		switch kind {
		case KindPath:
			if index < 0 || index >= len(r.Paths) {
				return fmt.Errorf("%w: %s rule %d", ErrNotFound, kind, index)
			}
			r.Paths = append(r.Paths[:index], r.Paths[index+1:]...)
		case KindQueryParamSet:
			if index < 0 || index >= len(r.QueryParamSets) {
				return fmt.Errorf("%w: %s rule %d", ErrNotFound, kind, index)
			}
			r.QueryParamSets = append(r.QueryParamSets[:index], r.QueryParamSets[index+1:]...)
		default:
			return fmt.Errorf("%w: unknown rule kind %q", ErrValidation, kind)
		}
		return nil
	}, zap.String("kind", string(kind)), zap.Int("index", index))
}

func (s *Store) PathRules() []PathRule {
	return s.Rules().Paths
}

func (s *Store) QueryParamSetRules() []QueryParamSetRule {
	return s.Rules().QueryParamSets
}

// Rules returns a copy of both lists.
func (s *Store) Rules() Rules {
	return s.current.Load().Clone()
}

func (s *Store) Matches(snap *request.Snapshot) bool {
	_, ok := s.Match(snap)
	return ok
}

// Match reports the first rule excluding snap. Path rules are checked
// before query parameter sets.
func (s *Store) Match(snap *request.Snapshot) (Match, bool) {
	if s == nil || snap == nil {
		return Match{}, false
	}
	rules := s.current.Load()

	path := snap.Path()
	for i, rule := range rules.Paths {
		if strings.HasPrefix(path, rule.Prefix) {
			return Match{Kind: KindPath, Index: i, Value: rule.Prefix}, true
		}
	}

	for i, rule := range rules.QueryParamSets {
		if snap.QueryEquals(rule.Names) {
			return Match{Kind: KindQueryParamSet, Index: i, Value: rule.String()}, true
		}
	}

	return Match{}, false
}

func (s *Store) mutate(apply func(*Rules) error, fields ...zap.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.backend.Load()
	if err != nil {
		s.logger.Error("Failed to load exclusion rules", append(fields, zap.Error(err))...)
		return fmt.Errorf("load exclusions: %w", err)
	}
	next := loaded.Clone()
	if err := apply(&next); err != nil {
		return err
	}
	if err := s.backend.Save(next); err != nil {
		s.logger.Error("Failed to persist exclusion rules", append(fields, zap.Error(err))...)
		return fmt.Errorf("persist exclusions: %w", err)
	}

	s.current.Store(&next)
	s.logger.Info("Exclusion rules updated", append(fields,
		zap.Int("path_rules", len(next.Paths)),
		zap.Int("query_param_set_rules", len(next.QueryParamSets)))...)
	s.notify(next)
	return nil
}

func (s *Store) notify(rules Rules) {
	if s.onChange != nil {
		s.onChange(rules.Clone())
	}
}
