package registry

import (
	"sync"

	"golang.org/x/sync/singleflight"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

// SingletonMap is the process-wide DependencyId -> ResourceId index backing
// the `singleton::register`/`singleton::lookup` hostcalls. Registration is
// insert-if-absent: the first caller to register a given DependencyId wins,
// and every later caller (including racing concurrent callers deriving the
// same DependencyId from the same stable string) observes that winner.
type SingletonMap struct {
	mu    sync.RWMutex
	byDep map[DependencyId]ResourceId

	group singleflight.Group
}

// NewSingletonMap constructs an empty singleton index.
func NewSingletonMap() *SingletonMap {
	return &SingletonMap{byDep: make(map[DependencyId]ResourceId)}
}

// Lookup returns the ResourceId registered under dep, if any.
func (s *SingletonMap) Lookup(dep DependencyId) (ResourceId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDep[dep]
	return id, ok
}

// Register records id under dep if no value is registered yet, otherwise
// returns the id of the existing registrant. Concurrent Register calls for
// the same dep are collapsed through a singleflight.Group keyed on dep so
// that only one of the provided ids is ever the one that wins — callers
// whose provided id loses the race should free it, since it was never
// installed.
//
// create is invoked at most once per unique dep among the concurrently
// racing callers, and supplies the ResourceId to install if this caller
// wins the race to register dep for the first time.
func (s *SingletonMap) Register(dep DependencyId, create func() ResourceId) (winner ResourceId, wasFirst bool) {
	key := string(dep[:])
	called := false
	v, _, _ := s.group.Do(key, func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.byDep[dep]; ok {
			return registerOutcome{id: existing, first: false}, nil
		}
		id := create()
		called = true
		s.byDep[dep] = id
		return registerOutcome{id: id, first: true}, nil
	})
	out := v.(registerOutcome)
	// callers collapsed onto another caller's flight share its outcome but
	// did not install anything themselves.
	return out.id, out.first && called
}

type registerOutcome struct {
	id    ResourceId
	first bool
}

// Remove deletes dep's registration.
func (s *SingletonMap) Remove(dep DependencyId) *kernelerr.RegistryError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byDep[dep]; !ok {
		return kernelerr.ErrRegistryNotFound()
	}
	delete(s.byDep, dep)
	return nil
}
