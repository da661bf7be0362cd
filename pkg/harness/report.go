package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/helioslabs/skytest/pkg/models"
	"github.com/helioslabs/skytest/pkg/provider"
	"github.com/helioslabs/skytest/pkg/runner"
)

const (
	// ResultFileName holds the invocation payload plus harness metadata
	ResultFileName = "result.json"

	// LogFileName holds the collected execution log lines
	LogFileName = "run.log"
)

// EvaluateResult turns a raw invocation outcome into the run verdict. The
// run fails when the provider flags a function error (Handled/Unhandled),
// when the payload carries a non-empty errorMessage, or when the runner
// reports the test binary did not pass.
func EvaluateResult(run *models.Run, invoke *provider.InvokeResult) *models.RunResult {
	result := &models.RunResult{
		Run:           run,
		Payload:       invoke.Payload,
		FunctionError: invoke.FunctionError,
	}

	if msg := payloadErrorMessage(invoke.Payload); msg != "" {
		result.ErrorMessage = msg
	}

	if result.FunctionError != "" || result.ErrorMessage != "" {
		if result.ErrorMessage == "" {
			result.ErrorMessage = fmt.Sprintf("function error: %s", result.FunctionError)
		}
		result.ExitCode = 1
		return result
	}

	var resp runner.Response
	if err := json.Unmarshal(invoke.Payload, &resp); err != nil {
		result.ErrorMessage = fmt.Sprintf("unparseable invocation payload: %v", err)
		result.ExitCode = 1
		return result
	}

	result.Passed = resp.Passed
	result.ExitCode = resp.ExitCode
	result.Output = resp.Output
	if !resp.Passed && result.ExitCode == 0 {
		result.ExitCode = 1
	}

	return result
}

// payloadErrorMessage extracts the error field a failed handler leaves in
// the payload ({"errorMessage": ..., "errorType": ...})
func payloadErrorMessage(payload []byte) string {
	var probe struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return strings.TrimSpace(probe.ErrorMessage)
}

// WriteReport writes result.json and run.log into the output directory
func WriteReport(outputDir string, result *models.RunResult) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	report := map[string]interface{}{
		"run":            result.Run,
		"passed":         result.Passed,
		"exit_code":      result.ExitCode,
		"function_error": result.FunctionError,
		"error_message":  result.ErrorMessage,
		"duration_ms":    result.Duration.Milliseconds(),
		"payload":        json.RawMessage(normalizePayload(result.Payload)),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	resultPath := filepath.Join(outputDir, ResultFileName)
	if err := os.WriteFile(resultPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", resultPath, err)
	}

	logPath := filepath.Join(outputDir, LogFileName)
	logData := strings.Join(result.LogLines, "\n")
	if logData != "" {
		logData += "\n"
	}
	if err := os.WriteFile(logPath, []byte(logData), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", logPath, err)
	}

	return nil
}

// normalizePayload guards against embedding invalid JSON in the report
func normalizePayload(payload []byte) []byte {
	if len(payload) == 0 || !json.Valid(payload) {
		quoted, _ := json.Marshal(string(payload))
		return quoted
	}
	return payload
}
