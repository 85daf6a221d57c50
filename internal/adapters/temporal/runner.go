package temporaladapter

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/workflows"
)

// Runner implements ports.JobRunner by starting a SuperResolutionWorkflow
// per job. Execution happens in cmd/worker.
type Runner struct {
	client           client.Client
	taskQueue        string
	inferenceTimeout time.Duration
}

// Dial connects to the Temporal frontend.
func Dial(hostPort, namespace string) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client: %w", err)
	}
	return c, nil
}

// NewRunner creates a runner using c. An empty taskQueue uses workflows.TaskQueue.
func NewRunner(c client.Client, taskQueue string, inferenceTimeout time.Duration) *Runner {
	if taskQueue == "" {
		taskQueue = workflows.TaskQueue
	}
	return &Runner{client: c, taskQueue: taskQueue, inferenceTimeout: inferenceTimeout}
}

// Submit starts the workflow. The workflow ID is derived from the job ID so
// a job is never executed twice.
func (r *Runner) Submit(ctx context.Context, job *domain.Job) error {
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(job.ID),
		TaskQueue: r.taskQueue,
	}
	_, err := r.client.ExecuteWorkflow(ctx, opts, workflows.SuperResolutionWorkflow, workflows.SuperResolutionInput{
		JobID:            job.ID,
		InferenceTimeout: r.inferenceTimeout,
	})
	if err != nil {
		return fmt.Errorf("start workflow for job %s: %w", job.ID, err)
	}
	return nil
}

// Ping checks the frontend.
func (r *Runner) Ping(ctx context.Context) error {
	_, err := r.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	return err
}

// WorkflowID is the workflow ID used for a job.
func WorkflowID(jobID string) string {
	return "superres-" + jobID
}
