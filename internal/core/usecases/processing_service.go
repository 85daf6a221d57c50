package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/core/ports"
	"github.com/samirrijal/superres/internal/pkg/artifacts"
	"github.com/samirrijal/superres/internal/pkg/geospatial"
	"github.com/samirrijal/superres/internal/pkg/metrics"
	"github.com/samirrijal/superres/internal/pkg/telemetry"
)

const (
	dateLayout = "2006-01-02"

	// defaultImageryLag is how far back the default date sits, which
	// usually lands on an already published Sentinel-2 acquisition.
	defaultImageryLag = 20 * 24 * time.Hour

	jobCacheTTL = 600
)

// CapabilityUnavailableHint is shown with capability_unavailable failures.
const CapabilityUnavailableHint = "S2DR3 package not installed: install the s2dr3 wheel " +
	"(Linux, Python 3.12, CUDA GPU recommended) or set inference.mode=fixture"

// JobDir is the output directory owned by a single job.
func JobDir(root, jobID string) string {
	return filepath.Join(root, jobID)
}

// ProcessingService runs super-resolution jobs end to end.
type ProcessingService struct {
	jobs       ports.JobRepository
	store      ports.ArtifactStore
	resolver   ports.SuperResolver
	publisher  ports.EventPublisher
	cache      ports.CacheService
	runner     ports.JobRunner
	outputRoot string

	now   func() time.Time
	newID func() string
}

// NewProcessingService creates a new ProcessingService. publisher and cache
// may be nil.
func NewProcessingService(
	jobs ports.JobRepository,
	store ports.ArtifactStore,
	resolver ports.SuperResolver,
	publisher ports.EventPublisher,
	cache ports.CacheService,
	outputRoot string,
) *ProcessingService {
	return &ProcessingService{
		jobs:       jobs,
		store:      store,
		resolver:   resolver,
		publisher:  publisher,
		cache:      cache,
		outputRoot: outputRoot,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SetRunner selects how submitted jobs are executed. Without a runner,
// Submit executes synchronously.
func (s *ProcessingService) SetRunner(r ports.JobRunner) {
	s.runner = r
}

// SetClock overrides the time source.
func (s *ProcessingService) SetClock(now func() time.Time) {
	s.now = now
}

// OutputRoot returns the directory holding all job directories.
func (s *ProcessingService) OutputRoot() string {
	return s.outputRoot
}

// DefaultDate is the date used when the caller leaves it empty.
func (s *ProcessingService) DefaultDate() string {
	return s.now().Add(-defaultImageryLag).Format(dateLayout)
}

// ValidateDate checks a YYYY-MM-DD date that is not in the future.
func (s *ProcessingService) ValidateDate(date string) error {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return fmt.Errorf("%w: %q is not YYYY-MM-DD", domain.ErrInvalidDate, date)
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if d.After(today) {
		return fmt.Errorf("%w: %s is in the future", domain.ErrInvalidDate, date)
	}
	return nil
}

// Submit validates the request, records a queued job and hands it to the runner.
func (s *ProcessingService) Submit(ctx context.Context, loc domain.GeoPoint, date string) (*domain.Job, error) {
	if !geospatial.ValidateCoordinates(loc.Lat, loc.Lon) {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", domain.ErrInvalidCoordinates, loc.Lat, loc.Lon)
	}
	if date == "" {
		date = s.DefaultDate()
	}
	if err := s.ValidateDate(date); err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:        s.newID(),
		Location:  loc,
		Date:      date,
		Status:    domain.JobQueued,
		Stage:     domain.StageQueued,
		CreatedAt: s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	metrics.JobsSubmitted.Inc()

	if s.runner == nil {
		_ = s.Execute(ctx, job)
		return job, nil
	}
	// The runner mutates its own copy while the caller reads the queued job.
	run := *job
	if err := s.runner.Submit(ctx, &run); err != nil {
		s.Fail(ctx, job, fmt.Errorf("schedule job: %w", err))
		return job, fmt.Errorf("schedule job: %w", err)
	}
	return job, nil
}

// Execute runs the whole pipeline for a job. Failures are recorded on the
// job and also returned.
func (s *ProcessingService) Execute(ctx context.Context, job *domain.Job) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanJobExecute)
	span.SetAttributes(
		attribute.String(telemetry.AttrJobID, job.ID),
		attribute.String(telemetry.AttrJobDate, job.Date),
		attribute.Float64(telemetry.AttrLatitude, job.Location.Lat),
		attribute.Float64(telemetry.AttrLongitude, job.Location.Lon),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String(telemetry.AttrErrorKind, string(domain.ClassifyError(err))))
		}
		span.End()
	}()

	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	if err := s.Prepare(ctx, job); err != nil {
		s.Fail(ctx, job, err)
		return err
	}
	if err := s.Infer(ctx, job); err != nil {
		s.Fail(ctx, job, err)
		return err
	}
	if err := s.Collect(ctx, job); err != nil {
		s.Fail(ctx, job, err)
		return err
	}
	return nil
}

// Prepare creates the job directory and clears anything a previous attempt left.
func (s *ProcessingService) Prepare(ctx context.Context, job *domain.Job) error {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanJobPrepare)
	defer span.End()

	job.Status = domain.JobRunning
	s.advance(ctx, job, domain.StageInitializing, "initializing super-resolution module")

	dir, err := s.store.EnsureDirectory(JobDir(s.outputRoot, job.ID))
	if err != nil {
		return err
	}
	return s.store.ResetDirectory(dir)
}

// Discard empties the job directory without touching the job record.
func (s *ProcessingService) Discard(jobID string) error {
	return s.store.ResetDirectory(JobDir(s.outputRoot, jobID))
}

// Infer runs the external capability into the job directory.
func (s *ProcessingService) Infer(ctx context.Context, job *domain.Job) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanInferenceRun)
	defer span.End()

	s.advance(ctx, job, domain.StageFetching, "fetching Sentinel-2 data")
	s.advance(ctx, job, domain.StageInferring, "running super-resolution model")

	start := time.Now()
	err := s.resolver.Run(ctx, domain.InferenceRequest{
		Location: job.Location,
		Date:     job.Date,
		WorkDir:  JobDir(s.outputRoot, job.ID),
	})
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	return err
}

// Collect lists what the run produced and marks the job succeeded.
func (s *ProcessingService) Collect(ctx context.Context, job *domain.Job) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanJobCollect)
	defer span.End()

	s.advance(ctx, job, domain.StageCollecting, "collecting output files")

	list, err := s.store.ListArtifacts(JobDir(s.outputRoot, job.ID))
	if err != nil {
		return err
	}

	finished := s.now()
	job.Artifacts = list
	job.TotalBytes = artifacts.TotalSize(list)
	job.Status = domain.JobSucceeded
	job.FinishedAt = &finished
	span.SetAttributes(
		attribute.Int(telemetry.AttrArtifactCount, len(list)),
		attribute.Int64(telemetry.AttrArtifactBytes, job.TotalBytes),
	)

	msg := fmt.Sprintf("processing complete: %d files (%s)", len(list), artifacts.FormatSize(job.TotalBytes))
	s.advance(ctx, job, domain.StageComplete, msg)

	metrics.ArtifactsProduced.Add(float64(len(list)))
	metrics.JobsFinished.WithLabelValues(string(job.Status), "").Inc()
	s.finish(ctx, job)

	slog.Info("job succeeded", "job_id", job.ID, "artifacts", len(list), "bytes", job.TotalBytes)
	return nil
}

// terminalWriteTimeout bounds the writes that record a failed job.
const terminalWriteTimeout = 5 * time.Second

// Fail records err on the job as a terminal failure.
func (s *ProcessingService) Fail(ctx context.Context, job *domain.Job, err error) {
	kind := domain.ClassifyError(err)
	s.FailWithKind(ctx, job, kind, err.Error())
}

// FailWithKind records a terminal failure whose classification is already known.
// The failure is written even when ctx is already cancelled or past its deadline.
func (s *ProcessingService) FailWithKind(ctx context.Context, job *domain.Job, kind domain.ErrorKind, message string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	finished := s.now()
	job.Status = domain.JobFailed
	job.ErrorKind = kind
	job.Error = message
	if kind == domain.ErrorKindCapabilityUnavailable {
		job.Error = message + ": " + CapabilityUnavailableHint
	}
	job.FinishedAt = &finished

	s.advance(ctx, job, domain.StageFailed, job.Error)
	metrics.JobsFinished.WithLabelValues(string(job.Status), string(kind)).Inc()
	s.finish(ctx, job)

	slog.Warn("job failed", "job_id", job.ID, "error_kind", kind, "error", message)
}

// advance moves the job to a stage, persists it and publishes progress.
// Persistence and publishing are best-effort here; the terminal state is
// written by finish.
func (s *ProcessingService) advance(ctx context.Context, job *domain.Job, stage domain.Stage, msg string) {
	job.Stage = stage
	if p := stage.Progress(); p > 0 {
		job.Progress = p
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		slog.Warn("update job progress", "job_id", job.ID, "error", err)
	}

	if s.publisher != nil {
		ev := &domain.ProgressEvent{
			JobID:    job.ID,
			Stage:    stage,
			Progress: job.Progress,
			Status:   job.Status,
			Message:  msg,
			Time:     s.now(),
		}
		if err := s.publisher.PublishProgress(ctx, ev); err != nil {
			slog.Debug("publish progress", "job_id", job.ID, "error", err)
		}
	}
}

func (s *ProcessingService) finish(ctx context.Context, job *domain.Job) {
	s.persist(ctx, job)
	if s.publisher != nil {
		if err := s.publisher.PublishJobDone(ctx, job); err != nil {
			slog.Debug("publish job done", "job_id", job.ID, "error", err)
		}
	}
}

// persist writes the job and drops its cached copy.
func (s *ProcessingService) persist(ctx context.Context, job *domain.Job) {
	if err := s.jobs.Update(ctx, job); err != nil {
		slog.Error("persist job", "job_id", job.ID, "error", err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, jobCacheKey(job.ID))
	}
}

// Get returns a job by ID. Finished jobs are cached.
func (s *ProcessingService) Get(ctx context.Context, id string) (*domain.Job, error) {
	cacheKey := jobCacheKey(id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var job domain.Job
			if err := json.Unmarshal(data, &job); err == nil {
				metrics.CacheHits.WithLabelValues("job").Inc()
				return &job, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("job").Inc()
	}

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrJobNotFound
	}

	// Running jobs change on every stage, so only terminal states are cached.
	if s.cache != nil && job.Status.Done() {
		if data, err := json.Marshal(job); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, jobCacheTTL)
		}
	}
	return job, nil
}

// Load returns a job for execution by ID, bypassing the cache.
func (s *ProcessingService) Load(ctx context.Context, id string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

// List returns recent jobs, newest first.
func (s *ProcessingService) List(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.jobs.List(ctx, limit)
}

// Nearby returns previous jobs within radiusMeters of a point.
func (s *ProcessingService) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Job, error) {
	if !geospatial.ValidateCoordinates(lat, lon) {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", domain.ErrInvalidCoordinates, lat, lon)
	}
	if radiusMeters <= 0 {
		return nil, errors.New("radius must be positive")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	jobs, err := s.jobs.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].Distance == nil {
			d := geospatial.Haversine(lat, lon, jobs[i].Location.Lat, jobs[i].Location.Lon)
			jobs[i].Distance = &d
		}
	}
	return jobs, nil
}

func jobCacheKey(id string) string {
	return "superres:job:" + id
}
