package purchase

import (
	"context"
	"sync"
)

// Guard keeps at most one purchase per listing in flight. Acquire returns
// false when another owner holds the listing.
type Guard interface {
	Acquire(ctx context.Context, listingID, owner string) (bool, error)
	Release(ctx context.Context, listingID, owner string) error
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{owners: make(map[string]string)}
}

func (g *MemoryGuard) Acquire(_ context.Context, listingID, owner string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.owners[listingID]; held {
		return false, nil
	}
	g.owners[listingID] = owner
	return true, nil
}

// Release is a no-op unless owner holds the listing.
func (g *MemoryGuard) Release(_ context.Context, listingID, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owners[listingID] == owner {
		delete(g.owners, listingID)
	}
	return nil
}
