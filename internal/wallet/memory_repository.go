package wallet

import (
    "context"
    "sync"

    "github.com/ethereum/go-ethereum/common"
)

type memoryRepository struct {
    mu      sync.RWMutex
    storage map[common.Address]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
    return &memoryRepository{storage: make(map[common.Address]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, exists := r.storage[wallet.Address]; exists {
        return ErrWalletExists
    }
    r.storage[wallet.Address] = wallet.clone()
    return nil
}

func (r *memoryRepository) Get(_ context.Context, addr common.Address) (Wallet, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    wallet, ok := r.storage[addr]
    if !ok {
        return Wallet{}, ErrWalletNotFound
    }
    return wallet.clone(), nil
}

func (r *memoryRepository) Save(_ context.Context, wallet Wallet) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, ok := r.storage[wallet.Address]; !ok {
        return ErrWalletNotFound
    }
    r.storage[wallet.Address] = wallet.clone()
    return nil
}
