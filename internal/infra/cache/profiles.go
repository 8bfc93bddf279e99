// Package cache holds read-through caches in front of the record store.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
)

// Profiles caches profile lookups for ttl. Tier gating reads the profile on
// every scan start while profiles change rarely. Misses are not cached, so a
// newly created profile is visible on the next call.
type Profiles struct {
	next  profiles.Repository
	items *gocache.Cache
}

var _ profiles.Repository = (*Profiles)(nil)

// NewProfiles wraps next. A cleanup interval <= 0 disables the background
// janitor; expired items are then dropped lazily on access.
func NewProfiles(next profiles.Repository, ttl, cleanup time.Duration) *Profiles {
	return &Profiles{next: next, items: gocache.New(ttl, cleanup)}
}

func (c *Profiles) Get(ctx context.Context, user string) (*profiles.Profile, error) {
	if v, ok := c.items.Get(user); ok {
		p := *v.(*profiles.Profile)
		return &p, nil
	}
	p, err := c.next.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	cp := *p
	c.items.SetDefault(user, &cp)
	return p, nil
}

// Save writes through and invalidates the cached entry.
func (c *Profiles) Save(ctx context.Context, p *profiles.Profile) error {
	c.items.Delete(p.UserID)
	if err := c.next.Save(ctx, p); err != nil {
		return err
	}
	c.items.Delete(p.UserID)
	return nil
}

// Flush drops every cached profile.
func (c *Profiles) Flush() { c.items.Flush() }

func (c *Profiles) Len() int { return c.items.ItemCount() }
