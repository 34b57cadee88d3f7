// Package cache is the keyed result store shared by the solve pipeline and
// the transcription session.
//
// Writes are last-write-wins. Every Set or Remove bumps the entry version and
// notifies observers synchronously on the writer's goroutine. Observers run
// without the store lock held, so they may read the store or write other keys.
package cache

import (
	"sort"
	"sync"
)

type Key string

const (
	KeyProblemStatement Key = "problem_statement"
	KeySolution         Key = "solution"
	KeyNewSolution      Key = "new_solution"
	KeyAudioResult      Key = "audio_result"
	KeyExtras           Key = "extras"
)

// Entry is one stored value and the version of the write that produced it.
type Entry struct {
	Key     Key
	Value   any
	Version uint64
}

// Change describes one write. Removed is set when the key was cleared, in
// which case Value is nil.
type Change struct {
	Key     Key
	Value   any
	Version uint64
	Removed bool
}

// Observer receives one Change per write.
type Observer func(Change)

type subscription struct {
	id  uint64
	key Key
	all bool
	fn  Observer
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	entries   map[Key]Entry
	versions  map[Key]uint64
	observers map[uint64]subscription
	nextID    uint64
}

func New() *Store {
	return &Store{
		entries:   make(map[Key]Entry),
		versions:  make(map[Key]uint64),
		observers: make(map[uint64]subscription),
	}
}

// Set overwrites key and returns the new version.
func (s *Store) Set(key Key, value any) uint64 {
	s.mu.Lock()
	version := s.bumpLocked(key)
	s.entries[key] = Entry{Key: key, Value: value, Version: version}
	observers := s.observersLocked(key)
	s.mu.Unlock()

	notify(observers, Change{Key: key, Value: value, Version: version})
	return version
}

// Remove clears key, bumps its version and notifies observers whether or
// not a value was present. It reports whether a value was cleared.
func (s *Store) Remove(key Key) bool {
	s.mu.Lock()
	_, existed := s.entries[key]
	version := s.bumpLocked(key)
	delete(s.entries, key)
	observers := s.observersLocked(key)
	s.mu.Unlock()

	notify(observers, Change{Key: key, Version: version, Removed: true})
	return existed
}

func (s *Store) Get(key Key) (any, bool) {
	entry, ok := s.Entry(key)
	return entry.Value, ok
}

func (s *Store) Entry(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Version returns the latest write version for key, including removals.
// Zero means the key was never written.
func (s *Store) Version(key Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[key]
}

// Subscribe registers fn for writes to every key. The returned func removes
// the subscription and is safe to call more than once.
func (s *Store) Subscribe(fn Observer) func() {
	return s.subscribe(subscription{all: true, fn: fn})
}

// SubscribeKey registers fn for writes to key only.
func (s *Store) SubscribeKey(key Key, fn Observer) func() {
	return s.subscribe(subscription{key: key, fn: fn})
}

func (s *Store) subscribe(sub subscription) func() {
	s.mu.Lock()
	s.nextID++
	sub.id = s.nextID
	s.observers[sub.id] = sub
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, sub.id)
			s.mu.Unlock()
		})
	}
}

// Observers reports the number of live subscriptions.
func (s *Store) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

func (s *Store) bumpLocked(key Key) uint64 {
	s.versions[key]++
	return s.versions[key]
}

// observersLocked snapshots matching observers in subscription order.
func (s *Store) observersLocked(key Key) []Observer {
	subs := make([]subscription, 0, len(s.observers))
	for _, sub := range s.observers {
		if sub.all || sub.key == key {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	out := make([]Observer, len(subs))
	for i, sub := range subs {
		out[i] = sub.fn
	}
	return out
}

func notify(observers []Observer, change Change) {
	for _, fn := range observers {
		fn(change)
	}
}

// Lookup returns the value stored under key when it holds a T.
func Lookup[T any](s *Store, key Key) (T, bool) {
	var zero T
	raw, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
