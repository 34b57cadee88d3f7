// Package scope collects release funcs so a component can tear down
// everything it acquired with one call.
package scope

import (
	"errors"
	"sync"
)

// Scope releases in reverse registration order. After Close, newly added
// funcs run immediately.
type Scope struct {
	mu       sync.Mutex
	releases []func() error
	closed   bool
}

// Add registers a release func that cannot fail.
func (s *Scope) Add(release func()) {
	s.AddErr(func() error {
		release()
		return nil
	})
}

func (s *Scope) AddErr(release func() error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = release()
		return
	}
	s.releases = append(s.releases, release)
	s.mu.Unlock()
}

// Len reports the number of pending releases.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.releases)
}

// Close runs every pending release once and joins their errors.
func (s *Scope) Close() error {
	s.mu.Lock()
	releases := s.releases
	s.releases = nil
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		if err := releases[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
