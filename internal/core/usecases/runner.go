package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/superres/internal/core/domain"
)

// InlineRunner executes jobs on goroutines inside the API process. At most
// maxConcurrent jobs run at once; the rest wait for a slot.
type InlineRunner struct {
	svc     *ProcessingService
	slots   chan struct{}
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewInlineRunner creates a runner bound to svc. A non-positive
// maxConcurrent means one job at a time.
func NewInlineRunner(svc *ProcessingService, maxConcurrent int, timeout time.Duration) *InlineRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &InlineRunner{
		svc:     svc,
		slots:   make(chan struct{}, maxConcurrent),
		timeout: timeout,
	}
}

// Submit starts the job in the background and returns immediately.
func (r *InlineRunner) Submit(ctx context.Context, job *domain.Job) error {
	// The job outlives the request that submitted it.
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.slots <- struct{}{}
		defer func() { <-r.slots }()

		runCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		if err := r.svc.Execute(runCtx, job); err != nil {
			slog.Debug("inline job finished with error", "job_id", job.ID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every submitted job has finished.
func (r *InlineRunner) Wait() {
	r.wg.Wait()
}
