package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/core/usecases"
)

// SuperResolutionActivities holds the activity implementations for the
// super-resolution workflow. Job state lives in the repository between steps.
type SuperResolutionActivities struct {
	Processing *usecases.ProcessingService
}

// PrepareWorkspace creates and empties the job directory.
func (a *SuperResolutionActivities) PrepareWorkspace(ctx context.Context, jobID string) error {
	job, err := a.Processing.Load(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	return asApplicationError(a.Processing.Prepare(ctx, job))
}

// RunInference runs the external capability for the job.
func (a *SuperResolutionActivities) RunInference(ctx context.Context, jobID string) error {
	job, err := a.Processing.Load(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	return asApplicationError(a.Processing.Infer(ctx, job))
}

// CollectArtifacts records the produced rasters and marks the job succeeded.
func (a *SuperResolutionActivities) CollectArtifacts(ctx context.Context, jobID string) error {
	job, err := a.Processing.Load(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	return asApplicationError(a.Processing.Collect(ctx, job))
}

// DiscardOutputs empties the job directory (saga compensation).
func (a *SuperResolutionActivities) DiscardOutputs(ctx context.Context, jobID string) error {
	if err := a.Processing.Discard(jobID); err != nil {
		return fmt.Errorf("discard outputs of %s: %w", jobID, err)
	}
	slog.Info("job outputs discarded (saga compensation)", "job_id", jobID)
	return nil
}

// MarkFailed records the terminal failure on the job.
func (a *SuperResolutionActivities) MarkFailed(ctx context.Context, jobID, kind, message string) error {
	job, err := a.Processing.Load(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	a.Processing.FailWithKind(ctx, job, domain.ErrorKind(kind), message)
	return nil
}

// asApplicationError carries the error kind across the activity boundary.
// Capability and execution failures are not retried.
func asApplicationError(err error) error {
	if err == nil {
		return nil
	}
	kind := domain.ClassifyError(err)
	if kind == domain.ErrorKindIOFailed {
		return temporal.NewApplicationError(err.Error(), string(kind))
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), nil)
}
