package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/superres/internal/core/domain"
)

const (
	stderrTail = 2048
	waitDelay  = 10 * time.Second
)

var missingModuleMarkers = []string{
	"No module named",
	"ModuleNotFoundError",
}

// S2DR3 runs the s2dr3 Python package in a subprocess. Each run executes
// inside the job's work directory so concurrent jobs never share a cwd.
type S2DR3 struct {
	python  string
	timeout time.Duration
}

// NewS2DR3 creates a runner using the given interpreter. A zero timeout
// leaves the run bounded only by the caller's context.
func NewS2DR3(python string, timeout time.Duration) *S2DR3 {
	if python == "" {
		python = "python3"
	}
	return &S2DR3{python: python, timeout: timeout}
}

// Run fetches Sentinel-2 imagery for the location and date and writes the
// super-resolved rasters into req.WorkDir.
func (s *S2DR3) Run(ctx context.Context, req domain.InferenceRequest) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// The package takes (lon, lat), in that order.
	script := fmt.Sprintf("import s2dr3.inferutils\ns2dr3.inferutils.test((%s, %s), %q)\n",
		formatCoord(req.Location.Lon), formatCoord(req.Location.Lat), req.Date)

	start := time.Now()
	err := s.exec(ctx, req.WorkDir, script)
	slog.Info("s2dr3 run finished",
		"work_dir", req.WorkDir,
		"date", req.Date,
		"duration", time.Since(start).Round(time.Millisecond),
		"error", err,
	)
	return err
}

// Ping verifies that the interpreter can import the package.
func (s *S2DR3) Ping(ctx context.Context) error {
	return s.exec(ctx, "", "import s2dr3.inferutils\n")
}

func (s *S2DR3) exec(ctx context.Context, dir, script string) error {
	path, err := exec.LookPath(s.python)
	if err != nil {
		return fmt.Errorf("%w: interpreter %q: %v", domain.ErrCapabilityUnavailable, s.python, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-c", script)
	cmd.Dir = dir
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		msg := tail(stderr.String())
		for _, marker := range missingModuleMarkers {
			if strings.Contains(msg, marker) {
				return fmt.Errorf("%w: %s", domain.ErrCapabilityUnavailable, lastLine(msg))
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &domain.ExecutionError{Message: "run aborted: " + ctxErr.Error(), Err: ctxErr}
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return &domain.ExecutionError{Message: lastLine(msg), Err: err}
		}
		return &domain.ExecutionError{Err: err}
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = s[len(s)-stderrTail:]
	}
	return s
}

// lastLine returns the final line of a traceback, which names the exception.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
