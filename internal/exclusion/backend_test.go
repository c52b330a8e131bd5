package exclusion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRules = Rules{
	Paths: []PathRule{{Prefix: "/health"}, {Prefix: "/static/"}},
	QueryParamSets: []QueryParamSetRule{
		{Names: []string{"utm_source", "utm_campaign"}},
		{Names: []string{"debug"}},
	},
}

func TestBackendsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		kind string
		path string
	}{
		{kind: "memory"},
		{kind: "file", path: filepath.Join(dir, "exclusions.yaml")},
		{kind: "file", path: filepath.Join(dir, "exclusions.json")},
		{kind: "bolt", path: filepath.Join(dir, "exclusions.db")},
		{kind: "sqlite", path: filepath.Join(dir, "exclusions.sqlite")},
	}

	for _, tt := range tests {
		t.Run(tt.kind+filepath.Ext(tt.path), func(t *testing.T) {
			backend, err := Open(tt.kind, tt.path)
			require.NoError(t, err)

			empty, err := backend.Load()
			require.NoError(t, err)
			assert.Empty(t, empty.Paths)
			assert.Empty(t, empty.QueryParamSets)

			require.NoError(t, backend.Save(sampleRules))
			got, err := backend.Load()
			require.NoError(t, err)
			assert.Equal(t, sampleRules, got)

			shorter := Rules{Paths: []PathRule{{Prefix: "/only"}}}
			require.NoError(t, backend.Save(shorter))
			got, err = backend.Load()
			require.NoError(t, err)
			assert.Equal(t, shorter.Paths, got.Paths)
			assert.Empty(t, got.QueryParamSets)

			require.NoError(t, backend.Close())
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("redis", "")
	assert.Error(t, err)
}

func TestOpenFailureReturnsNilBackend(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	for _, kind := range []string{"bolt", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			backend, err := Open(kind, filepath.Join(blocker, "data", "exclusions.db"))
			require.Error(t, err)
			assert.True(t, backend == nil)
		})
	}
}

func TestStoreSurvivesRestart(t *testing.T) {
	for _, kind := range []string{"file", "bolt", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules."+kind)

			backend, err := Open(kind, path)
			require.NoError(t, err)
			store, err := NewStore(backend, nil)
			require.NoError(t, err)
			require.NoError(t, store.AddPathRule("/a"))
			require.NoError(t, store.AddPathRule("/b"))
			require.NoError(t, store.AddQueryParamSetRule([]string{"x", "y"}))
			require.NoError(t, store.RemoveRule(KindPath, 0))
			require.NoError(t, store.Close())

			backend, err = Open(kind, path)
			require.NoError(t, err)
			reopened, err := NewStore(backend, nil)
			require.NoError(t, err)
			defer reopened.Close()

			assert.Equal(t, []PathRule{{Prefix: "/b"}}, reopened.PathRules())
			assert.Equal(t, []QueryParamSetRule{{Names: []string{"x", "y"}}}, reopened.QueryParamSetRules())
		})
	}
}

func TestFileBackendMissingAndEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "exclusions.yaml")
	backend := NewFileBackend(path)

	rules, err := backend.Load()
	require.NoError(t, err)
	assert.Empty(t, rules.Paths)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
	rules, err = backend.Load()
	require.NoError(t, err)
	assert.Empty(t, rules.Paths)
}

func TestFileBackendRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclusions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileBackend(path).Load()
	assert.Error(t, err)

	_, err = NewStore(NewFileBackend(path), nil)
	assert.Error(t, err)
}
