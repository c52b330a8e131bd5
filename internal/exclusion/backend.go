package exclusion

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bastionwaf/bastion/internal/config"
)

// Backend persists the full rule set. Save replaces whatever was stored
// before.
type Backend interface {
	Load() (Rules, error)
	Save(Rules) error
	Close() error
}

// Open returns the backend named by kind, storing data at path.
func Open(kind, path string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", config.BackendMemory:
		return NewMemoryBackend(), nil
	case config.BackendFile:
		return NewFileBackend(path), nil
	case config.BackendBolt:
		b, err := OpenBoltBackend(path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendSQLite:
		b, err := OpenSQLiteBackend(path)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown exclusion backend %q", kind)
	}
}

// OpenConfigured opens the backend described by cfg, resolving relative
// paths against the config file's directory.
func OpenConfigured(cfg *config.Config) (Backend, error) {
	return Open(cfg.Exclusions.Backend, cfg.ResolvePath(cfg.Exclusions.Path))
}

// MemoryBackend keeps rules for the lifetime of the process only.
type MemoryBackend struct {
	mu    sync.Mutex
	rules Rules
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load() (Rules, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules.Clone(), nil
}

func (m *MemoryBackend) Save(rules Rules) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules.Clone()
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
