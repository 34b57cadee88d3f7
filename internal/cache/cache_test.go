package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetOverwritesAndBumpsVersion(t *testing.T) {
	s := New()

	require.Equal(t, uint64(1), s.Set(KeySolution, "first"))
	require.Equal(t, uint64(2), s.Set(KeySolution, "second"))

	value, ok := s.Get(KeySolution)
	require.True(t, ok)
	require.Equal(t, "second", value)

	entry, ok := s.Entry(KeySolution)
	require.True(t, ok)
	require.Equal(t, uint64(2), entry.Version)
	require.Equal(t, uint64(0), s.Version(KeyExtras))
}

func TestEachWriteNotifiesExactlyOnce(t *testing.T) {
	s := New()

	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) { changes = append(changes, c) })
	defer unsubscribe()

	s.Set(KeyProblemStatement, "p1")
	s.Set(KeySolution, "s1")
	require.True(t, s.Remove(KeySolution))

	require.Len(t, changes, 3)
	require.Equal(t, Change{Key: KeyProblemStatement, Value: "p1", Version: 1}, changes[0])
	require.Equal(t, Change{Key: KeySolution, Value: "s1", Version: 1}, changes[1])
	require.Equal(t, Change{Key: KeySolution, Version: 2, Removed: true}, changes[2])
}

func TestRemoveAbsentKeyStillNotifies(t *testing.T) {
	s := New()

	var changes []Change
	defer s.Subscribe(func(c Change) { changes = append(changes, c) })()

	require.False(t, s.Remove(KeyNewSolution))
	require.Equal(t, []Change{{Key: KeyNewSolution, Version: 1, Removed: true}}, changes)
	require.Equal(t, uint64(1), s.Version(KeyNewSolution))

	_, ok := s.Get(KeyNewSolution)
	require.False(t, ok)
}

func TestSubscribeKeyFilters(t *testing.T) {
	s := New()

	var seen []Key
	defer s.SubscribeKey(KeySolution, func(c Change) { seen = append(seen, c.Key) })()

	s.Set(KeyExtras, []string{})
	s.Set(KeySolution, "s")
	s.Set(KeyAudioResult, "a")

	require.Equal(t, []Key{KeySolution}, seen)
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	s := New()

	calls := 0
	unsubscribe := s.Subscribe(func(Change) { calls++ })
	require.Equal(t, 1, s.Observers())

	s.Set(KeySolution, "one")
	unsubscribe()
	unsubscribe()
	s.Set(KeySolution, "two")

	require.Equal(t, 1, calls)
	require.Zero(t, s.Observers())
}

func TestObserversMayWriteOtherKeys(t *testing.T) {
	s := New()

	defer s.SubscribeKey(KeyAudioResult, func(c Change) {
		if c.Removed {
			return
		}
		s.Set(KeyProblemStatement, "from audio: "+c.Value.(string))
	})()

	var derived []string
	defer s.SubscribeKey(KeyProblemStatement, func(c Change) {
		_, ok := s.Get(KeyAudioResult)
		require.True(t, ok)
		derived = append(derived, c.Value.(string))
	})()

	s.Set(KeyAudioResult, "hello")

	require.Equal(t, []string{"from audio: hello"}, derived)
}

func TestObserversRunInSubscriptionOrder(t *testing.T) {
	s := New()

	var order []int
	for i := 1; i <= 5; i++ {
		defer s.Subscribe(func(Change) { order = append(order, i) })()
	}

	s.Set(KeyExtras, nil)
	require.Equal(t, []int{1, 2, 3, 4, 5}, order)
}

func TestLookup(t *testing.T) {
	s := New()
	s.Set(KeyAudioResult, 42)

	n, ok := Lookup[int](s, KeyAudioResult)
	require.True(t, ok)
	require.Equal(t, 42, n)

	_, ok = Lookup[string](s, KeyAudioResult)
	require.False(t, ok)

	_, ok = Lookup[int](s, KeySolution)
	require.False(t, ok)
}

func TestConcurrentWritersKeepVersionsMonotonic(t *testing.T) {
	s := New()

	var mu sync.Mutex
	var last uint64
	defer s.SubscribeKey(KeyExtras, func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		if c.Version > last {
			last = c.Version
		}
	})()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Set(KeyExtras, j)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(800), s.Version(KeyExtras))
	require.Equal(t, uint64(800), last)
}
