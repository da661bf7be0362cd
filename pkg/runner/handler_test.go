package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeScript stands in for the test binary; the handler only needs an
// executable file.
func writeScript(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testmain")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestHandlePassingBinary(t *testing.T) {
	h := &Handler{BinaryPath: writeScript(t, `echo "ok"; exit 0`)}

	resp, err := h.Handle(context.Background(), Event{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !resp.Passed {
		t.Errorf("expected Passed, got %+v", resp)
	}
	if !strings.Contains(resp.Output, "ok") {
		t.Errorf("output not captured: %q", resp.Output)
	}
}

func TestHandleFailingBinary(t *testing.T) {
	h := &Handler{BinaryPath: writeScript(t, `echo "FAIL"; exit 3`)}

	resp, err := h.Handle(context.Background(), Event{})
	if err != nil {
		t.Fatalf("a failing test binary is not a handler error: %v", err)
	}
	if resp.Passed {
		t.Error("expected a failed run")
	}
	if resp.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", resp.ExitCode)
	}
}

func TestHandleArgsAndEnv(t *testing.T) {
	h := &Handler{BinaryPath: writeScript(t, `echo "arg1=$1 VAL=$SKYTEST_CASE"`)}

	resp, err := h.Handle(context.Background(), Event{
		Args: []string{"-test.run", "TestFoo"},
		Env:  map[string]string{"SKYTEST_CASE": "foo"},
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(resp.Output, "arg1=-test.run") {
		t.Errorf("args not passed: %q", resp.Output)
	}
	if !strings.Contains(resp.Output, "VAL=foo") {
		t.Errorf("env not passed: %q", resp.Output)
	}
}

func TestHandleMissingBinary(t *testing.T) {
	h := &Handler{BinaryPath: filepath.Join(t.TempDir(), "missing")}

	_, err := h.Handle(context.Background(), Event{})
	if err == nil {
		t.Fatal("a missing binary must be a handler error")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error should name the path: %v", err)
	}
}

func TestHandleTimeout(t *testing.T) {
	h := &Handler{BinaryPath: writeScript(t, `sleep 30`)}

	resp, err := h.Handle(context.Background(), Event{TimeoutSeconds: 1})
	if err != nil {
		t.Fatalf("a timed-out binary reports failure, not a handler error: %v", err)
	}
	if resp.Passed {
		t.Error("timed-out run must not pass")
	}
}
