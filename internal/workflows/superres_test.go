package workflows_test

import (
	"context"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/workflows"
)

type recorder struct {
	calls      []string
	failedKind string
	failedMsg  string
}

func (r *recorder) step(name string, err error) func(context.Context, string) error {
	return func(ctx context.Context, jobID string) error {
		r.calls = append(r.calls, name)
		return err
	}
}

func register(env *testsuite.TestWorkflowEnvironment, r *recorder, inferErr error) {
	env.RegisterWorkflow(workflows.SuperResolutionWorkflow)
	env.RegisterActivityWithOptions(r.step(workflows.ActivityPrepareWorkspace, nil),
		activity.RegisterOptions{Name: workflows.ActivityPrepareWorkspace})
	env.RegisterActivityWithOptions(r.step(workflows.ActivityRunInference, inferErr),
		activity.RegisterOptions{Name: workflows.ActivityRunInference})
	env.RegisterActivityWithOptions(r.step(workflows.ActivityCollectArtifacts, nil),
		activity.RegisterOptions{Name: workflows.ActivityCollectArtifacts})
	env.RegisterActivityWithOptions(r.step(workflows.ActivityDiscardOutputs, nil),
		activity.RegisterOptions{Name: workflows.ActivityDiscardOutputs})
	env.RegisterActivityWithOptions(func(ctx context.Context, jobID, kind, message string) error {
		r.calls = append(r.calls, workflows.ActivityMarkFailed)
		r.failedKind = kind
		r.failedMsg = message
		return nil
	}, activity.RegisterOptions{Name: workflows.ActivityMarkFailed})
}

func TestSuperResolutionWorkflow_Success(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	r := &recorder{}
	register(env, r, nil)

	env.ExecuteWorkflow(workflows.SuperResolutionWorkflow, workflows.SuperResolutionInput{JobID: "j1"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"PrepareWorkspace", "RunInference", "CollectArtifacts"}
	if len(r.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, r.calls)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], r.calls[i])
		}
	}
}

func TestSuperResolutionWorkflow_CapabilityUnavailableCompensates(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	r := &recorder{}
	inferErr := temporal.NewNonRetryableApplicationError("s2dr3 missing",
		string(domain.ErrorKindCapabilityUnavailable), nil)
	register(env, r, inferErr)

	env.ExecuteWorkflow(workflows.SuperResolutionWorkflow, workflows.SuperResolutionInput{JobID: "j1"})

	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
	want := []string{"PrepareWorkspace", "RunInference", "DiscardOutputs", "MarkFailed"}
	if len(r.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, r.calls)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], r.calls[i])
		}
	}
	if r.failedKind != string(domain.ErrorKindCapabilityUnavailable) {
		t.Errorf("expected capability_unavailable, got %q", r.failedKind)
	}
	if r.failedMsg != "s2dr3 missing" {
		t.Errorf("unexpected message %q", r.failedMsg)
	}
}
