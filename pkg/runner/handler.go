package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"
)

// DefaultTestBinary is where the deployment artifact places the test binary
const DefaultTestBinary = "/var/task/testmain"

// Event is the invocation payload sent by the harness
type Event struct {
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

// Response is returned to the harness as the invocation payload
type Response struct {
	Passed     bool   `json:"passed"`
	ExitCode   int    `json:"exit_code"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
}

// Handler executes the packaged test binary inside the function
type Handler struct {
	BinaryPath string
}

// NewHandler creates a handler for the packaged test binary
func NewHandler() *Handler {
	return &Handler{BinaryPath: DefaultTestBinary}
}

// Handle runs the test binary with the event's args and env. A test failure
// is a normal response with Passed=false; only a binary that cannot be
// started at all becomes a function error.
func (h *Handler) Handle(ctx context.Context, event Event) (Response, error) {
	if event.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(event.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	if _, err := os.Stat(h.BinaryPath); err != nil {
		return Response{}, fmt.Errorf("test binary missing at %s: %w", h.BinaryPath, err)
	}

	cmd := exec.CommandContext(ctx, h.BinaryPath, event.Args...)
	cmd.Env = os.Environ()
	for k, v := range event.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	// go test binaries refuse to run outside a writable directory tree
	cmd.Dir = os.TempDir()

	log.Printf("Running %s with %d args", h.BinaryPath, len(event.Args))

	start := time.Now()
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	resp := Response{
		Output:     string(output),
		DurationMS: duration.Milliseconds(),
	}

	if err == nil {
		resp.Passed = true
		return resp, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		resp.ExitCode = exitErr.ExitCode()
		log.Printf("Test binary exited with code %d after %s", resp.ExitCode, duration)
		return resp, nil
	}

	// Could not start at all
	return Response{}, fmt.Errorf("failed to run test binary: %w", err)
}
