package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/helioslabs/skytest/pkg/models"
	"github.com/helioslabs/skytest/pkg/provider"
)

func testRun() *models.Run {
	return models.NewRun("ci-stack", "us-east-1")
}

func TestEvaluateResult(t *testing.T) {
	tests := []struct {
		name         string
		invoke       provider.InvokeResult
		wantPassed   bool
		wantExitCode int
		wantErrMsg   string
	}{
		{
			name: "passing run",
			invoke: provider.InvokeResult{
				Payload: []byte(`{"passed":true,"exit_code":0,"output":"PASS\nok  \texample\t0.01s"}`),
			},
			wantPassed:   true,
			wantExitCode: 0,
		},
		{
			name: "test binary failed",
			invoke: provider.InvokeResult{
				Payload: []byte(`{"passed":false,"exit_code":2,"output":"FAIL"}`),
			},
			wantPassed:   false,
			wantExitCode: 2,
		},
		{
			name: "failed but zero exit code still fails the run",
			invoke: provider.InvokeResult{
				Payload: []byte(`{"passed":false,"exit_code":0}`),
			},
			wantPassed:   false,
			wantExitCode: 1,
		},
		{
			name: "handled function error",
			invoke: provider.InvokeResult{
				Payload:       []byte(`{"errorMessage":"test binary missing at /var/task/testmain","errorType":"errorString"}`),
				FunctionError: "Handled",
			},
			wantPassed:   false,
			wantExitCode: 1,
			wantErrMsg:   "test binary missing at /var/task/testmain",
		},
		{
			name: "unhandled function error with empty payload message",
			invoke: provider.InvokeResult{
				Payload:       []byte(`{"errorMessage":"","errorType":""}`),
				FunctionError: "Unhandled",
			},
			wantPassed:   false,
			wantExitCode: 1,
			wantErrMsg:   "function error: Unhandled",
		},
		{
			name: "error message without function error marker",
			invoke: provider.InvokeResult{
				Payload: []byte(`{"errorMessage":"out of memory"}`),
			},
			wantPassed:   false,
			wantExitCode: 1,
			wantErrMsg:   "out of memory",
		},
		{
			name: "unparseable payload",
			invoke: provider.InvokeResult{
				Payload: []byte(`not json at all`),
			},
			wantPassed:   false,
			wantExitCode: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EvaluateResult(testRun(), &tt.invoke)
			if result.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", result.Passed, tt.wantPassed)
			}
			if result.ExitCode != tt.wantExitCode {
				t.Errorf("ExitCode = %d, want %d", result.ExitCode, tt.wantExitCode)
			}
			if tt.wantErrMsg != "" && result.ErrorMessage != tt.wantErrMsg {
				t.Errorf("ErrorMessage = %q, want %q", result.ErrorMessage, tt.wantErrMsg)
			}
		})
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()

	result := &models.RunResult{
		Run:      testRun(),
		Passed:   true,
		Payload:  []byte(`{"passed":true}`),
		LogLines: []string{"START", "ok", "REPORT RequestId: abc"},
	}

	if err := WriteReport(dir, result); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	logData, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if got := string(logData); got != "START\nok\nREPORT RequestId: abc\n" {
		t.Errorf("unexpected log contents: %q", got)
	}
}

func TestWriteReportInvalidPayload(t *testing.T) {
	dir := t.TempDir()

	result := &models.RunResult{
		Run:     testRun(),
		Payload: []byte("binary garbage \x00\x01"),
	}

	if err := WriteReport(dir, result); err != nil {
		t.Fatalf("WriteReport must tolerate non-JSON payloads: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ResultFileName))
	if err != nil {
		t.Fatalf("failed to read result file: %v", err)
	}
	if !strings.Contains(string(data), "payload") {
		t.Error("report should still carry the payload field")
	}
}
