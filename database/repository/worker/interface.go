package workerRepo

import (
	"context"
	"errors"

	"homeserve/models"
)

// ErrNotFound means no worker profile has the requested id.
var ErrNotFound = errors.New("worker not found")

// WorkerRepository is the worker directory the booking engine prices against.
type WorkerRepository interface {
	GetWorkerProfile(ctx context.Context, workerID string) (*models.WorkerProfile, error)
	SaveWorkerProfile(ctx context.Context, profile *models.WorkerProfile) error
}

var (
	_ WorkerRepository = (*MemoryWorkerRepo)(nil)
	_ WorkerRepository = (*MongoWorkerRepo)(nil)
	_ WorkerRepository = (*GormWorkerRepo)(nil)
	_ WorkerRepository = (*CachedWorkerRepo)(nil)
)
