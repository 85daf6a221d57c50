package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/superres/internal/core/domain"
)

// TaskQueue is the queue SuperResolutionWorkflow and its activities run on.
const TaskQueue = "superres-queue"

// Activity names registered by the worker.
const (
	ActivityPrepareWorkspace = "PrepareWorkspace"
	ActivityRunInference     = "RunInference"
	ActivityCollectArtifacts = "CollectArtifacts"
	ActivityMarkFailed       = "MarkFailed"
	ActivityDiscardOutputs   = "DiscardOutputs"
)

// SuperResolutionInput is the input for the super-resolution workflow.
type SuperResolutionInput struct {
	JobID            string
	InferenceTimeout time.Duration
}

// SuperResolutionWorkflow prepares the job directory, runs inference and
// collects the rasters. When inference or collection fails, partial outputs
// are discarded and the job is marked failed (saga compensation).
func SuperResolutionWorkflow(ctx workflow.Context, input SuperResolutionInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting super-resolution workflow", "jobID", input.JobID)

	shortOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	inferTimeout := input.InferenceTimeout
	if inferTimeout <= 0 {
		inferTimeout = 30 * time.Minute
	}
	inferOpts := workflow.ActivityOptions{
		StartToCloseTimeout: inferTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
			NonRetryableErrorTypes: []string{
				string(domain.ErrorKindCapabilityUnavailable),
				string(domain.ErrorKindExecutionFailed),
			},
		},
	}
	shortCtx := workflow.WithActivityOptions(ctx, shortOpts)
	inferCtx := workflow.WithActivityOptions(ctx, inferOpts)

	// Step 1: Create and empty the job directory
	if err := workflow.ExecuteActivity(shortCtx, ActivityPrepareWorkspace, input.JobID).Get(ctx, nil); err != nil {
		return markFailed(shortCtx, input.JobID, err)
	}

	// Step 2: Fetch imagery and run the model
	if err := workflow.ExecuteActivity(inferCtx, ActivityRunInference, input.JobID).Get(ctx, nil); err != nil {
		logger.Warn("inference failed, compensating", "error", err)
		_ = workflow.ExecuteActivity(shortCtx, ActivityDiscardOutputs, input.JobID).Get(ctx, nil)
		return markFailed(shortCtx, input.JobID, err)
	}

	// Step 3: List and record the produced rasters
	if err := workflow.ExecuteActivity(shortCtx, ActivityCollectArtifacts, input.JobID).Get(ctx, nil); err != nil {
		return markFailed(shortCtx, input.JobID, err)
	}

	logger.Info("Super-resolution finished", "jobID", input.JobID)
	return nil
}

func markFailed(ctx workflow.Context, jobID string, cause error) error {
	kind, message := failureOf(cause)
	if err := workflow.ExecuteActivity(ctx, ActivityMarkFailed, jobID, kind, message).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("mark failed", "jobID", jobID, "error", err)
	}
	return cause
}

// failureOf recovers the error kind the activity attached to its failure.
// A timed-out activity counts as a failed run, as it does for the inline runner.
func failureOf(err error) (string, string) {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch kind := domain.ErrorKind(appErr.Type()); kind {
		case domain.ErrorKindCapabilityUnavailable, domain.ErrorKindExecutionFailed, domain.ErrorKindIOFailed:
			return string(kind), appErr.Message()
		}
		return string(domain.ErrorKindIOFailed), appErr.Message()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return string(domain.ErrorKindExecutionFailed), "super-resolution timed out: " + timeoutErr.TimeoutType().String()
	}
	return string(domain.ErrorKindIOFailed), err.Error()
}
