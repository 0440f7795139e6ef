// Package reactive provides an observable key/value state store with bounded
// change history, and a registry that tracks live stores for diagnostics.
package reactive

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory is the number of changes a store keeps when no limit is given.
const DefaultMaxHistory = 100

// Change describes a single accepted write to a store.
type Change struct {
	Property  string    `json:"property"`
	Value     any       `json:"value"`
	Previous  any       `json:"previous"`
	Timestamp time.Time `json:"timestamp"`
}

// Watcher is invoked synchronously after every accepted write with a snapshot
// of the full state and the change that produced it.
type Watcher func(state map[string]any, change Change)

// Option configures a Store at construction.
type Option func(*Store)

// WithID sets the store id. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(s *Store) { s.id = id }
}

// WithLabel sets the human-readable store label. Defaults to the id.
func WithLabel(label string) Option {
	return func(s *Store) { s.label = label }
}

// WithRegistry registers the store in r once it is constructed.
func WithRegistry(r *Registry) Option {
	return func(s *Store) { s.registry = r }
}

// WithHistory turns change history recording on or off.
func WithHistory(enabled bool) Option {
	return func(s *Store) { s.trackHistory = enabled }
}

// WithMaxHistory bounds the number of recorded changes. Values below one are
// ignored.
func WithMaxHistory(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

type watcherEntry struct {
	id int
	fn Watcher
}

// Store is a mutable key/value state whose writes are observable.
// All methods are safe for concurrent use.
type Store struct {
	id           string
	label        string
	registry     *Registry
	trackHistory bool
	maxHistory   int

	mu       sync.RWMutex
	state    map[string]any
	history  []Change
	watchers []watcherEntry
	nextID   int
}

// New creates a store seeded with a deep copy of initial.
func New(initial map[string]any, opts ...Option) *Store {
	s := &Store{
		trackHistory: true,
		maxHistory:   DefaultMaxHistory,
		state:        make(map[string]any, len(initial)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.label == "" {
		s.label = s.id
	}
	for k, v := range initial {
		s.state[k] = cloneAny(v)
	}
	if s.registry != nil {
		s.registry.Register(s)
	}
	return s
}

// ID returns the store id.
func (s *Store) ID() string { return s.id }

// Label returns the store label.
func (s *Store) Label() string { return s.label }

// Get returns a deep copy of the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state[key]
	if !ok {
		return nil, false
	}
	return cloneAny(v), true
}

// Set writes value under key. Writing a value equal to the current one is a
// no-op. It reports whether the write was accepted.
func (s *Store) Set(key string, value any) bool {
	return s.Update(key, func(any, bool) any { return value })
}

// Update computes the new value for key from the current one while holding
// the write lock, so concurrent read-modify-write cycles do not interleave.
// fn receives a deep copy of the current value and must not call back into
// the store.
func (s *Store) Update(key string, fn func(current any, ok bool) any) bool {
	s.mu.Lock()
	prev, ok := s.state[key]
	value := fn(cloneAny(prev), ok)
	if equal(prev, value) {
		s.mu.Unlock()
		return false
	}
	next := cloneAny(value)
	s.state[key] = next
	change := Change{
		Property:  key,
		Value:     next,
		Previous:  prev,
		Timestamp: time.Now(),
	}
	if s.trackHistory {
		s.history = append(s.history, change)
		if over := len(s.history) - s.maxHistory; over > 0 {
			s.history = append(s.history[:0:0], s.history[over:]...)
		}
	}
	watchers := make([]watcherEntry, len(s.watchers))
	copy(watchers, s.watchers)
	var snapshot map[string]any
	if len(watchers) > 0 {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w.fn(snapshot, Change{
			Property:  change.Property,
			Value:     cloneAny(change.Value),
			Previous:  cloneAny(change.Previous),
			Timestamp: change.Timestamp,
		})
	}
	return true
}

// Watch subscribes fn to accepted writes. The returned function removes the
// subscription and is safe to call more than once. A watcher removed during
// a notification pass still receives that pass.
func (s *Store) Watch(fn Watcher) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers = append(s.watchers, watcherEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, w := range s.watchers {
				if w.id == id {
					s.watchers = append(s.watchers[:i:i], s.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() map[string]any {
	out := make(map[string]any, len(s.state))
	for k, v := range s.state {
		out[k] = cloneAny(v)
	}
	return out
}

// History returns a copy of the recorded changes, oldest first.
func (s *Store) History() []Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Change, len(s.history))
	for i, c := range s.history {
		out[i] = Change{
			Property:  c.Property,
			Value:     cloneAny(c.Value),
			Previous:  cloneAny(c.Previous),
			Timestamp: c.Timestamp,
		}
	}
	return out
}
