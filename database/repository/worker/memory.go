package workerRepo

import (
	"context"
	"sync"

	"homeserve/models"
)

type MemoryWorkerRepo struct {
	mu      sync.RWMutex
	workers map[string]models.WorkerProfile
}

func NewMemoryWorkerRepo(profiles ...models.WorkerProfile) *MemoryWorkerRepo {
	r := &MemoryWorkerRepo{workers: make(map[string]models.WorkerProfile, len(profiles))}
	for _, p := range profiles {
		r.workers[p.ID] = p
	}
	return r
}

func (r *MemoryWorkerRepo) GetWorkerProfile(ctx context.Context, workerID string) (*models.WorkerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.workers[workerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryWorkerRepo) SaveWorkerProfile(ctx context.Context, profile *models.WorkerProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[profile.ID] = *profile
	return nil
}
