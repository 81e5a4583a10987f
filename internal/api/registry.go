// internal/api/registry.go
package api

import (
	"context"
	"sync/atomic"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/registration/orchestrator"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// entry is a mounted session plus what its host hooks have reported.
type entry struct {
	session *orchestrator.Session
	exited  atomic.Bool
}

// SessionRegistry holds open sessions by id. Evicted or expired sessions
// are closed.
type SessionRegistry struct {
	cache *expirable.LRU[string, *entry]
}

func NewSessionRegistry(size int, ttl time.Duration) *SessionRegistry {
	onEvict := func(_ string, e *entry) {
		if e.session != nil {
			e.session.Close(context.Background())
		}
	}
	return &SessionRegistry{cache: expirable.NewLRU[string, *entry](size, onEvict, ttl)}
}

func (r *SessionRegistry) put(e *entry) {
	r.cache.Add(e.session.ID(), e)
}

func (r *SessionRegistry) get(id string) (*entry, error) {
	e, ok := r.cache.Get(id)
	if !ok {
		return nil, errors.NewSessionNotFoundError(id)
	}
	return e, nil
}

// Remove closes and forgets the session.
func (r *SessionRegistry) Remove(id string) bool {
	return r.cache.Remove(id)
}

func (r *SessionRegistry) Len() int {
	return r.cache.Len()
}

// Purge closes every session.
func (r *SessionRegistry) Purge() {
	r.cache.Purge()
}
