package auth

import (
	"context"
	"sync"
)

// Repository stores API key metadata by id and by key hash.
type Repository interface {
	Create(ctx context.Context, key *APIKey) error
	GetByHash(ctx context.Context, hash string) (*APIKey, error)
	GetByID(ctx context.Context, id string) (*APIKey, error)
	AddUsage(ctx context.Context, id string, minutes float64) error
	Revoke(ctx context.Context, id string) error
}

// MemoryRepository keeps keys in process memory. Keys are lost on restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*APIKey
	byHash map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]*APIKey),
		byHash: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, key *APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[key.ID] = key.clone()
	r.byHash[key.Hash] = key.ID
	return nil
}

func (r *MemoryRepository) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	r.mu.RLock()
	id, ok := r.byHash[hash]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return key.clone(), nil
}

func (r *MemoryRepository) AddUsage(_ context.Context, id string, minutes float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	key.MinutesUsed += minutes
	return nil
}

func (r *MemoryRepository) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	key.Active = false
	return nil
}
