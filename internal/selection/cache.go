package selection

import (
	"context"
	"sync"
)

// Cache is the process-wide mirror of each user's current company. It is
// written exactly once per successful coordinator run and read freely by
// every other surface. Subscribers are notified synchronously on every write,
// replacing the storage-polling the original screens relied on.
type Cache struct {
	store Store

	mu      sync.Mutex
	subs    map[string]map[int]func(companyID string)
	nextSub int
}

func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		subs:  make(map[string]map[int]func(string)),
	}
}

// Get returns the user's current company, or ErrNotSet.
func (c *Cache) Get(ctx context.Context, userID string) (string, error) {
	return c.store.Get(ctx, userID)
}

// Set records the user's current company and notifies subscribers. Only the
// coordinator's final step calls this.
func (c *Cache) Set(ctx context.Context, userID, companyID string) error {
	if err := c.store.Set(ctx, userID, companyID); err != nil {
		return err
	}
	c.notify(userID, companyID)
	return nil
}

// Clear removes the selection, e.g. on logout. Subscribers receive an empty
// company id.
func (c *Cache) Clear(ctx context.Context, userID string) error {
	if err := c.store.Clear(ctx, userID); err != nil {
		return err
	}
	c.notify(userID, "")
	return nil
}

// Subscribe registers fn to run synchronously whenever the user's selection
// changes. The returned cancel func removes the subscription.
func (c *Cache) Subscribe(userID string, fn func(companyID string)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs[userID] == nil {
		c.subs[userID] = make(map[int]func(string))
	}
	id := c.nextSub
	c.nextSub++
	c.subs[userID][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[userID], id)
		if len(c.subs[userID]) == 0 {
			delete(c.subs, userID)
		}
	}
}

func (c *Cache) notify(userID, companyID string) {
	c.mu.Lock()
	fns := make([]func(string), 0, len(c.subs[userID]))
	for _, fn := range c.subs[userID] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(companyID)
	}
}
