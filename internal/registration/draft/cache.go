// internal/registration/draft/cache.go
package draft

import (
	"time"

	"registration-workflow/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LocalCache mirrors recently saved drafts in process. Drafts without a
// ticket are held per owner until the first save assigns one.
type LocalCache struct {
	lru *expirable.LRU[string, *models.Application]
}

func NewLocalCache(size int, ttl time.Duration) *LocalCache {
	if size <= 0 {
		size = 1024
	}
	return &LocalCache{lru: expirable.NewLRU[string, *models.Application](size, nil, ttl)}
}

func ticketKey(ticketID string) string { return "ticket:" + ticketID }
func ownerKey(ownerID string) string   { return "owner:" + ownerID }

// Get returns a copy of the cached draft for ticketID.
func (c *LocalCache) Get(ticketID string) (*models.Application, bool) {
	app, ok := c.lru.Get(ticketKey(ticketID))
	if !ok {
		return nil, false
	}
	return app.Clone(), true
}

// Put stores a copy of app under its ticket, or under its owner when the
// ticket is not assigned yet.
func (c *LocalCache) Put(app *models.Application) {
	if app == nil {
		return
	}
	if app.TicketID == "" {
		c.lru.Add(ownerKey(app.OwnerClientID), app.Clone())
		return
	}
	c.lru.Add(ticketKey(app.TicketID), app.Clone())
	c.lru.Remove(ownerKey(app.OwnerClientID))
}

// Anonymous returns the owner's pre-ticket draft, if any.
func (c *LocalCache) Anonymous(ownerID string) (*models.Application, bool) {
	app, ok := c.lru.Get(ownerKey(ownerID))
	if !ok {
		return nil, false
	}
	return app.Clone(), true
}

func (c *LocalCache) Forget(ticketID string) {
	c.lru.Remove(ticketKey(ticketID))
}

func (c *LocalCache) Len() int {
	return c.lru.Len()
}
