package ports

import (
	"context"

	"github.com/samirrijal/superres/internal/core/domain"
)

// JobRepository persists super-resolution jobs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	Update(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	// List returns the most recent jobs first.
	List(ctx context.Context, limit int) ([]domain.Job, error)
	// FindNearby returns jobs whose location lies within radiusMeters, closest first.
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Job, error)
}
