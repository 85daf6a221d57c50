package ports

import (
	"bytes"
	"context"
	"io"

	"github.com/samirrijal/superres/internal/core/domain"
)

// SuperResolver is the external inference capability. Run fetches imagery
// for the location and date and writes raster files into req.WorkDir.
// It fails with domain.ErrCapabilityUnavailable when the package cannot be
// loaded and with *domain.ExecutionError when the run itself fails.
type SuperResolver interface {
	Run(ctx context.Context, req domain.InferenceRequest) error
}

// JobRunner schedules execution of a submitted job.
type JobRunner interface {
	Submit(ctx context.Context, job *domain.Job) error
}

// ArtifactStore manages output directories and the rasters inside them.
type ArtifactStore interface {
	EnsureDirectory(path string) (string, error)
	ResetDirectory(path string) error
	ListArtifacts(path string) ([]domain.Artifact, error)
	Open(dir, name string) (io.ReadCloser, domain.Artifact, error)
	Bundle(dir string) (*bytes.Reader, error)
	Thumbnail(dir, name string, maxSize int) ([]byte, error)
}

// EventPublisher publishes job events to a message broker.
type EventPublisher interface {
	PublishProgress(ctx context.Context, event *domain.ProgressEvent) error
	PublishJobDone(ctx context.Context, job *domain.Job) error
}

// EventSubscriber delivers raw job events for a single job (or all jobs when
// jobID is empty). The returned func cancels the subscription.
type EventSubscriber interface {
	SubscribeJob(ctx context.Context, jobID string, handler func(data []byte)) (func(), error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
