package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/helioslabs/skytest/pkg/artifact"
	"github.com/helioslabs/skytest/pkg/builder"
	"github.com/helioslabs/skytest/pkg/config"
	"github.com/helioslabs/skytest/pkg/logger"
	"github.com/helioslabs/skytest/pkg/models"
	"github.com/helioslabs/skytest/pkg/provider"
)

const (
	// RunnerPackage is the Go package built as the function bootstrap
	RunnerPackage = "github.com/helioslabs/skytest/lambda/runner"

	// runLockTTL bounds how long an interrupted CI job can hold a stack
	runLockTTL = 30 * time.Minute
)

// Harness executes one deploy-invoke-collect-cleanup cycle against a stack
type Harness struct {
	opts     config.RunOptions
	provider provider.Provider

	// Build steps, replaceable in tests so no toolchain is needed
	buildTestBinary func(pkgPath, outPath string) error
	buildRunner     func(runnerPkg, outPath string) error
	packageZip      func(zipPath, bootstrapPath, testBinPath string) error
}

// New creates a harness bound to a provider
func New(p provider.Provider, opts config.RunOptions) *Harness {
	return &Harness{
		opts:            opts,
		provider:        p,
		buildTestBinary: builder.BuildTestBinary,
		buildRunner:     builder.BuildRunner,
		packageZip:      artifact.Package,
	}
}

// Execute runs the full cycle. The returned RunResult is non-nil whenever a
// function was invoked, even if the run failed; the error covers failures
// before or during the invocation path. Cleanup of everything created along
// the way is best-effort and never masks the primary outcome.
func (h *Harness) Execute(ctx context.Context) (*models.RunResult, error) {
	if err := h.opts.Validate(); err != nil {
		return nil, err
	}

	run := models.NewRun(h.opts.StackName, h.provider.Region())
	logger.Printf("Starting run %s against stack %s", run.ID, run.StackName)

	// Phase 1: local build and packaging. Fatal before any cloud resource
	// is touched.
	workDir, err := os.MkdirTemp("", "skytest-"+run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	testBin := filepath.Join(workDir, artifact.TestBinaryEntry)
	bootstrap := filepath.Join(workDir, artifact.BootstrapEntry)
	zipPath := filepath.Join(workDir, "artifact.zip")

	if err := h.buildTestBinary(h.opts.TestPackage, testBin); err != nil {
		return nil, err
	}
	if err := h.buildRunner(RunnerPackage, bootstrap); err != nil {
		return nil, err
	}
	if err := h.packageZip(zipPath, bootstrap, testBin); err != nil {
		return nil, err
	}
	run.ArtifactPath = zipPath

	// Phase 2: resolve the stack and take the run lock.
	outputs, err := h.provider.GetStackService().ResolveOutputs(ctx, h.opts.StackName)
	if err != nil {
		return nil, err
	}

	fns := h.provider.GetFunctionService()
	if err := fns.VerifyRole(ctx, outputs.ExecutionRoleArn); err != nil {
		return nil, err
	}

	lockToken, err := h.acquireRunLock(ctx, run)
	if err != nil {
		return nil, err
	}

	// Phase 3: create the function and clean up no matter what happens
	// from here on. Deletes are attempted unconditionally; a delete of a
	// resource that never came to exist just fails quietly.
	var artifactUploaded bool
	artifactKey := fmt.Sprintf("runs/%s/artifact.zip", run.ID)

	defer func() {
		h.cleanup(run, outputs, lockToken, artifactUploaded, artifactKey)
	}()

	data, inline, err := artifact.Read(zipPath)
	if err != nil {
		return nil, err
	}

	spec := provider.FunctionSpec{
		Name:    run.FunctionName,
		RoleArn: outputs.ExecutionRoleArn,
		Environment: map[string]string{
			"SKYTEST_RUN_ID": run.ID,
			"SKYTEST_STACK":  run.StackName,
		},
		Tags: map[string]string{
			"Application": "skytest",
			"ManagedBy":   "skytest",
			"RunID":       run.ID,
		},
	}

	if inline {
		spec.ZipFile = data
	} else {
		logger.Printf("Artifact is %d bytes, uploading to s3://%s/%s", len(data), outputs.ArtifactBucket, artifactKey)
		if err := h.provider.GetStorageService().PutObject(ctx, outputs.ArtifactBucket, artifactKey, data); err != nil {
			return nil, err
		}
		artifactUploaded = true
		spec.S3Bucket = outputs.ArtifactBucket
		spec.S3Key = artifactKey
	}

	logger.Printf("Creating function %s", run.FunctionName)
	if err := fns.CreateFunction(ctx, spec); err != nil {
		return nil, err
	}

	if err := fns.WaitActive(ctx, run.FunctionName, h.opts.ActivationAttempts); err != nil {
		return nil, err
	}

	// Phase 4: invoke and collect.
	payload, err := h.loadPayload()
	if err != nil {
		return nil, err
	}

	logger.Printf("Invoking %s", run.FunctionName)
	started := time.Now()
	invoke, err := fns.Invoke(ctx, run.FunctionName, payload)
	if err != nil {
		return nil, err
	}

	result := EvaluateResult(run, invoke)
	result.Duration = time.Since(started)
	result.LogLines = h.collectLogs(ctx, run)

	// Phase 5: report. Report-side failures degrade, they do not flip the
	// run outcome.
	if err := WriteReport(h.opts.OutputDir, result); err != nil {
		logger.Errorf("failed to write report: %v", err)
	}
	h.archiveReport(ctx, run, outputs, result)
	h.notify(ctx, outputs, result)

	return result, nil
}

// acquireRunLock takes the per-stack run lock. A lock backend that cannot be
// set up degrades to lockless operation with a warning; a lock that cannot be
// acquired means another run is in flight on this stack and is fatal.
func (h *Harness) acquireRunLock(ctx context.Context, run *models.Run) (string, error) {
	locks := h.provider.GetLockService()
	if err := locks.Initialize(ctx); err != nil {
		logger.Printf("Run lock unavailable, continuing without it: %v", err)
		return "", nil
	}

	hostname, _ := os.Hostname()
	owner := fmt.Sprintf("%s/%s", hostname, run.ID)

	token, err := locks.AcquireLock(ctx, run.StackName, owner, runLockTTL)
	if err != nil {
		return "", fmt.Errorf("another run holds the lock on %s: %w", run.StackName, err)
	}
	return token, nil
}

// collectLogs discovers the stream and drains it within the fixed budgets
func (h *Harness) collectLogs(ctx context.Context, run *models.Run) []string {
	logs := h.provider.GetLogService()

	stream, err := logs.WaitForStream(ctx, run.LogGroupName(), h.opts.StreamAttempts)
	if err != nil {
		logger.Errorf("no logs retrieved: %v", err)
		return nil
	}

	lines, err := logs.CollectLogs(ctx, run.LogGroupName(), stream, h.opts.LogAttempts)
	if err != nil {
		logger.Printf("returning %d log lines collected before: %v", len(lines), err)
	}
	return lines
}

// cleanup tears down everything the run created. Errors are suppressed:
// cleanup is best-effort and must not mask the primary result.
func (h *Harness) cleanup(run *models.Run, outputs *models.StackOutputs, lockToken string, artifactUploaded bool, artifactKey string) {
	if h.opts.KeepResources {
		logger.Printf("Keeping resources for run %s (function %s)", run.ID, run.FunctionName)
		return
	}

	// A fresh context: the run's context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	if err := h.provider.GetFunctionService().DeleteFunction(ctx, run.FunctionName); err != nil {
		logger.Printf("Cleanup: function delete failed (ignored): %v", err)
	}
	if err := h.provider.GetLogService().DeleteLogGroup(ctx, run.LogGroupName()); err != nil {
		logger.Printf("Cleanup: log group delete failed (ignored): %v", err)
	}

	if artifactUploaded {
		if err := h.provider.GetStorageService().DeleteObject(ctx, outputs.ArtifactBucket, artifactKey); err != nil {
			logger.Printf("Cleanup: artifact delete failed (ignored): %v", err)
		}
	}

	if lockToken != "" {
		if err := h.provider.GetLockService().ReleaseLock(ctx, run.StackName, lockToken); err != nil {
			logger.Printf("Cleanup: lock release failed (ignored): %v", err)
		}
	}
}

// loadPayload reads the invocation payload, defaulting to an empty event
func (h *Harness) loadPayload() ([]byte, error) {
	if h.opts.PayloadPath == "" {
		return []byte("{}"), nil
	}

	data, err := os.ReadFile(h.opts.PayloadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload file %s is not valid JSON", h.opts.PayloadPath)
	}
	return data, nil
}

// archiveReport stores the result JSON next to the artifact in the stack
// bucket, best-effort
func (h *Harness) archiveReport(ctx context.Context, run *models.Run, outputs *models.StackOutputs, result *models.RunResult) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return
	}
	key := fmt.Sprintf("runs/%s/result.json", run.ID)
	if err := h.provider.GetStorageService().PutObject(ctx, outputs.ArtifactBucket, key, data); err != nil {
		logger.Printf("Report archive failed (ignored): %v", err)
	}
}

// notify publishes the run summary when the stack exposes a results topic
func (h *Harness) notify(ctx context.Context, outputs *models.StackOutputs, result *models.RunResult) {
	if outputs.ResultsTopicArn == "" {
		return
	}

	summary, err := json.Marshal(map[string]interface{}{
		"run_id":    result.Run.ID,
		"stack":     result.Run.StackName,
		"passed":    result.Passed,
		"exit_code": result.ExitCode,
		"error":     result.ErrorMessage,
	})
	if err != nil {
		return
	}

	if err := h.provider.GetNotificationService().Publish(ctx, outputs.ResultsTopicArn, string(summary)); err != nil {
		logger.Printf("Result notification failed (ignored): %v", err)
	}
}
