package reactive

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDefaults(t *testing.T) {
	s := New(map[string]any{"count": 0})

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, s.ID(), s.Label())
	v, ok := s.Get("count")
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestStoreSetRecordsHistoryAndNotifies(t *testing.T) {
	s := New(map[string]any{"count": 0}, WithID("counter"), WithLabel("Counter"))

	var seen []Change
	var states []map[string]any
	s.Watch(func(state map[string]any, change Change) {
		states = append(states, state)
		seen = append(seen, change)
	})

	assert.True(t, s.Set("count", 1))
	assert.True(t, s.Set("count", 2))

	require.Len(t, seen, 2)
	assert.Equal(t, "count", seen[0].Property)
	assert.Equal(t, 0, seen[0].Previous)
	assert.Equal(t, 1, seen[0].Value)
	assert.Equal(t, 2, states[1]["count"])

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Value)
	assert.Equal(t, 2, history[1].Value)
	assert.False(t, history[1].Timestamp.Before(history[0].Timestamp))
}

func TestStoreIgnoresEqualWrites(t *testing.T) {
	s := New(map[string]any{
		"name": "kick",
		"tags": []string{"a"},
	})
	calls := 0
	s.Watch(func(map[string]any, Change) { calls++ })

	assert.False(t, s.Set("name", "kick"))
	assert.False(t, s.Set("tags", []string{"a"}))
	assert.False(t, s.Set("missing", nil))

	assert.Zero(t, calls)
	assert.Empty(t, s.History())
}

type account struct {
	Name  string
	Roles []string
}

type session struct {
	Token string
	Owner *account
}

type node struct {
	Name string
	Next *node
}

func TestStoreIgnoresEqualPointerWrites(t *testing.T) {
	tests := []struct {
		name   string
		value  func() any
		change func() any
	}{
		{
			name:   "pointer",
			value:  func() any { return &account{Name: "ada", Roles: []string{"admin"}} },
			change: func() any { return &account{Name: "grace"} },
		},
		{
			name:   "struct with pointer field",
			value:  func() any { return session{Token: "t1", Owner: &account{Name: "ada"}} },
			change: func() any { return session{Token: "t1", Owner: &account{Name: "grace"}} },
		},
		{
			name: "cyclic pointer",
			value: func() any {
				n := &node{Name: "loop"}
				n.Next = n
				return n
			},
			change: func() any { return &node{Name: "loop"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.value()
			s := New(map[string]any{"v": v})
			calls := 0
			s.Watch(func(map[string]any, Change) { calls++ })

			assert.False(t, s.Set("v", v), "same value")
			assert.False(t, s.Set("v", tt.value()), "equal copy")
			current, ok := s.Get("v")
			require.True(t, ok)
			assert.False(t, s.Set("v", current), "value read back")
			assert.Zero(t, calls)
			assert.Empty(t, s.History())

			assert.True(t, s.Set("v", tt.change()))
			assert.Equal(t, 1, calls)
			assert.Len(t, s.History(), 1)
		})
	}
}

func TestStoreHistoryIsBounded(t *testing.T) {
	for _, limit := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			s := New(map[string]any{"n": 0}, WithMaxHistory(limit))
			for i := 1; i <= limit+5; i++ {
				s.Set("n", i)
			}

			history := s.History()
			require.Len(t, history, limit)
			assert.Equal(t, limit+5, history[len(history)-1].Value)
			assert.Equal(t, 6, history[0].Value)
		})
	}
}

func TestStoreHistoryDisabled(t *testing.T) {
	s := New(nil, WithHistory(false))
	s.Set("a", 1)
	s.Set("a", 2)

	assert.Empty(t, s.History())
	v, _ := s.Get("a")
	assert.Equal(t, 2, v)
}

func TestStoreSnapshotIsIsolated(t *testing.T) {
	s := New(map[string]any{
		"meta": map[string]any{"user": "ada"},
		"logs": []string{"first"},
	})

	snap := s.Snapshot()
	snap["meta"].(map[string]any)["user"] = "grace"
	snap["logs"].([]string)[0] = "changed"
	snap["extra"] = true

	fresh := s.Snapshot()
	assert.Equal(t, "ada", fresh["meta"].(map[string]any)["user"])
	assert.Equal(t, "first", fresh["logs"].([]string)[0])
	assert.NotContains(t, fresh, "extra")
}

func TestStoreSnapshotIsolatesPointers(t *testing.T) {
	owner := &account{Name: "ada", Roles: []string{"admin"}}
	s := New(nil)
	s.Set("session", session{Token: "t1", Owner: owner})

	owner.Name = "mutated after write"
	snap := s.Snapshot()
	stored := snap["session"].(session)
	assert.Equal(t, "ada", stored.Owner.Name)

	stored.Owner.Name = "mutated through snapshot"
	stored.Owner.Roles[0] = "guest"

	got, _ := s.Get("session")
	assert.Equal(t, "ada", got.(session).Owner.Name)
	assert.Equal(t, []string{"admin"}, got.(session).Owner.Roles)
}

func TestStoreInitialIsCopied(t *testing.T) {
	initial := map[string]any{"meta": map[string]any{"a": 1}}
	s := New(initial)
	initial["meta"].(map[string]any)["a"] = 2

	v, _ := s.Get("meta")
	assert.Equal(t, 1, v.(map[string]any)["a"])
}

func TestStoreUnsubscribe(t *testing.T) {
	s := New(nil)
	calls := 0
	stop := s.Watch(func(map[string]any, Change) { calls++ })

	s.Set("a", 1)
	stop()
	stop()
	s.Set("a", 2)

	assert.Equal(t, 1, calls)
}

func TestStoreWatcherRemovedMidPassStillNotified(t *testing.T) {
	s := New(nil)
	var second func()
	secondCalls := 0
	s.Watch(func(map[string]any, Change) { second() })
	second = s.Watch(func(map[string]any, Change) { secondCalls++ })

	s.Set("a", 1)
	s.Set("a", 2)

	assert.Equal(t, 1, secondCalls)
}

func TestStoreWatcherMayWrite(t *testing.T) {
	s := New(map[string]any{"a": 0, "b": 0})
	s.Watch(func(state map[string]any, change Change) {
		if change.Property == "a" {
			s.Set("b", change.Value)
		}
	})

	s.Set("a", 5)

	v, _ := s.Get("b")
	assert.Equal(t, 5, v)
}

func TestStoreConcurrentUpdate(t *testing.T) {
	s := New(map[string]any{"n": 0}, WithHistory(false))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("n", func(current any, _ bool) any { return current.(int) + 1 })
		}()
	}
	wg.Wait()

	v, _ := s.Get("n")
	assert.Equal(t, 50, v)
}

func TestStoreRegistersItself(t *testing.T) {
	r := NewRegistry()
	s := New(nil, WithID("abc"), WithRegistry(r))

	got, ok := r.Get("abc")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestCloneStructs(t *testing.T) {
	type entry struct {
		Message string
		Meta    map[string]any
	}
	in := []entry{{Message: "hi", Meta: map[string]any{"k": "v"}}}

	out := Clone(in)
	out[0].Meta["k"] = "changed"

	assert.Equal(t, "v", in[0].Meta["k"])
	assert.Equal(t, "hi", out[0].Message)
}

func TestCloneCycles(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	out := Clone(a)
	require.NotSame(t, a, out)
	require.NotSame(t, b, out.Next)
	assert.Same(t, out, out.Next.Next)
	assert.Equal(t, "b", out.Next.Name)

	self := map[string]any{"name": "root"}
	self["self"] = self
	copied := Clone(self)
	copied["name"] = "changed"
	assert.Equal(t, "root", self["name"])
	assert.Equal(t, "changed", copied["self"].(map[string]any)["name"])

	s := New(nil)
	assert.True(t, s.Set("node", a))
	assert.False(t, s.Set("node", a))
}

func TestCloneKeepsSharedReferences(t *testing.T) {
	shared := &account{Name: "ada"}
	out := Clone([]*account{shared, shared})
	assert.Same(t, out[0], out[1])
	assert.NotSame(t, shared, out[0])
}
