package identity

import (
    "context"
    "sync"

    "github.com/ethereum/go-ethereum/common"
)

type memoryRepository struct {
    mu        sync.RWMutex
    nextEIN   uint64
    byEIN     map[uint64]Identity
    byAddress map[common.Address]uint64
}

// NewMemoryRepository builds an in-memory identity store for testing.
func NewMemoryRepository() Repository {
    return &memoryRepository{
        nextEIN:   1,
        byEIN:     make(map[uint64]Identity),
        byAddress: make(map[common.Address]uint64),
    }
}

func (r *memoryRepository) Create(_ context.Context, ident Identity) (uint64, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, exists := r.byAddress[ident.Address]; exists {
        return 0, ErrAddressTaken
    }
    ident.EIN = r.nextEIN
    r.nextEIN++
    r.byEIN[ident.EIN] = ident
    r.byAddress[ident.Address] = ident.EIN
    return ident.EIN, nil
}

func (r *memoryRepository) FindByAddress(_ context.Context, addr common.Address) (Identity, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    ein, ok := r.byAddress[addr]
    if !ok {
        return Identity{}, ErrNotFound
    }
    return r.byEIN[ein], nil
}

func (r *memoryRepository) FindByEIN(_ context.Context, ein uint64) (Identity, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    ident, ok := r.byEIN[ein]
    if !ok {
        return Identity{}, ErrNotFound
    }
    return ident, nil
}
