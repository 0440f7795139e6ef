package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryListPreservesOrder(t *testing.T) {
	r := NewRegistry()
	New(map[string]any{"v": 1}, WithID("one"), WithLabel("first"), WithRegistry(r))
	two := New(map[string]any{"v": 2}, WithID("two"), WithRegistry(r))
	New(map[string]any{"v": 3}, WithID("three"), WithRegistry(r))

	two.Set("v", 20)

	entries := r.List()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, "first", entries[0].Label)
	assert.Equal(t, 20, entries[1].Snapshot["v"])
	assert.Len(t, entries[1].History, 1)
}

func TestRegistryReRegisterKeepsPosition(t *testing.T) {
	r := NewRegistry()
	New(nil, WithID("a"), WithRegistry(r))
	New(nil, WithID("b"), WithRegistry(r))
	replacement := New(nil, WithID("a"), WithLabel("replacement"), WithRegistry(r))

	entries := r.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "replacement", entries[0].Label)
	got, _ := r.Get("a")
	assert.Same(t, replacement, got)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	New(nil, WithID("a"), WithRegistry(r))
	New(nil, WithID("b"), WithRegistry(r))

	r.Unregister("a")
	r.Unregister("unknown")

	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("a")
	assert.False(t, ok)
}

func TestRegistryPrune(t *testing.T) {
	r := NewRegistry()
	New(map[string]any{"done": true}, WithID("a"), WithRegistry(r))
	New(map[string]any{"done": false}, WithID("b"), WithRegistry(r))
	New(map[string]any{"done": true}, WithID("c"), WithRegistry(r))

	removed := r.Prune(func(s *Store) bool {
		done, _ := s.Get("done")
		return done == true
	})

	assert.Equal(t, 2, removed)
	entries := r.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].ID)
}
