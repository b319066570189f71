package rules

import (
	"context"
	"fmt"
	"sync"
)

// IdentityLoader fetches the bot's own account id from the gateway.
type IdentityLoader func(ctx context.Context) (string, error)

// Identity holds the bot's own account id. It is learned lazily: either
// observed on an inbound frame or fetched through the loader on first use.
type Identity struct {
	mu     sync.RWMutex
	id     string
	loader IdentityLoader

	loadMu sync.Mutex
}

func NewIdentity(loader IdentityLoader) *Identity {
	return &Identity{loader: loader}
}

func (i *Identity) current() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id
}

// Get returns the known id, loading it once if necessary.
func (i *Identity) Get(ctx context.Context) (string, error) {
	if id := i.current(); id != "" {
		return id, nil
	}

	i.loadMu.Lock()
	defer i.loadMu.Unlock()

	if id := i.current(); id != "" {
		return id, nil
	}
	if i.loader == nil {
		return "", fmt.Errorf("bot identity unknown and no loader configured")
	}

	id, err := i.loader(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load bot identity: %w", err)
	}
	i.Set(id)
	return id, nil
}

func (i *Identity) Set(id string) {
	i.mu.Lock()
	i.id = id
	i.mu.Unlock()
}

// Observe records id only when none is known yet.
func (i *Identity) Observe(id string) {
	if id == "" {
		return
	}
	i.mu.Lock()
	if i.id == "" {
		i.id = id
	}
	i.mu.Unlock()
}
