package usecases

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/core/ports"
	"github.com/samirrijal/superres/internal/pkg/artifacts"
	"github.com/samirrijal/superres/internal/pkg/metrics"
	"github.com/samirrijal/superres/internal/pkg/telemetry"
)

// DefaultThumbnailSize is the longest edge of a preview when none is requested.
const DefaultThumbnailSize = 512

// Archive is a ready-to-send ZIP bundle of a job's rasters.
type Archive struct {
	Name   string
	Size   int64
	Reader *bytes.Reader
}

// ArtifactService serves the files a job produced.
type ArtifactService struct {
	jobs  *ProcessingService
	store ports.ArtifactStore
}

// NewArtifactService creates a new ArtifactService.
func NewArtifactService(jobs *ProcessingService, store ports.ArtifactStore) *ArtifactService {
	return &ArtifactService{jobs: jobs, store: store}
}

// List returns the rasters currently present in the job directory.
func (s *ArtifactService) List(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListArtifacts(s.dir(jobID))
}

// Open returns a reader for a single raster. The caller closes it.
func (s *ArtifactService) Open(ctx context.Context, jobID, name string) (io.ReadCloser, domain.Artifact, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, domain.Artifact{}, err
	}
	return s.store.Open(s.dir(jobID), name)
}

// Bundle zips every raster of the job. A job without rasters yields a valid
// empty archive.
func (s *ArtifactService) Bundle(ctx context.Context, jobID string) (*Archive, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanArchiveBundle)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrJobID, jobID))

	r, err := s.store.Bundle(s.dir(jobID))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bundle job %s: %w", jobID, err)
	}
	metrics.ArchiveBytes.Observe(float64(r.Size()))
	span.SetAttributes(attribute.Int64(telemetry.AttrArtifactBytes, r.Size()))

	return &Archive{
		Name:   artifacts.BundleName(job.Date),
		Size:   r.Size(),
		Reader: r,
	}, nil
}

// Thumbnail renders a PNG preview of a raster no larger than maxSize pixels.
func (s *ArtifactService) Thumbnail(ctx context.Context, jobID, name string, maxSize int) ([]byte, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	if maxSize <= 0 || maxSize > 2048 {
		maxSize = DefaultThumbnailSize
	}
	return s.store.Thumbnail(s.dir(jobID), name, maxSize)
}

// Clear empties the job directory. Running jobs own their directory and
// cannot be cleared.
func (s *ArtifactService) Clear(ctx context.Context, jobID string) error {
	job, err := s.jobs.Load(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Done() {
		return fmt.Errorf("%w: %s", domain.ErrJobRunning, jobID)
	}
	if err := s.store.ResetDirectory(s.dir(jobID)); err != nil {
		return err
	}

	job.Artifacts = nil
	job.TotalBytes = 0
	s.jobs.persist(ctx, job)

	slog.Info("cleared job artifacts", "job_id", jobID)
	return nil
}

func (s *ArtifactService) dir(jobID string) string {
	return JobDir(s.jobs.OutputRoot(), jobID)
}
