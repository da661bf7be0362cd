package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/helioslabs/skytest/pkg/config"
	"github.com/helioslabs/skytest/pkg/models"
	"github.com/helioslabs/skytest/pkg/provider"
)

// fakeProvider records the calls the harness makes so tests can assert on
// ordering and cleanup behavior without touching AWS.
type fakeProvider struct {
	calls []string

	outputs   *models.StackOutputs
	stackErr  error
	roleErr   error
	createErr error
	activeErr error
	invokeRes *provider.InvokeResult
	invokeErr error

	deleteFnErr error
	deleteLgErr error

	lockInitErr    error
	lockAcquireErr error

	logStream string
	logLines  []string
	streamErr error

	functions map[string]time.Time
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		outputs: &models.StackOutputs{
			ArtifactBucket:   "test-bucket",
			ExecutionRoleArn: "arn:aws:iam::123456789012:role/test-role",
		},
		invokeRes: &provider.InvokeResult{
			Payload:    []byte(`{"passed":true,"exit_code":0,"output":"ok","duration_ms":12}`),
			StatusCode: 200,
		},
		logStream: "2026/08/28/[$LATEST]abc",
		logLines:  []string{"START", "ok", "REPORT RequestId: xyz"},
	}
}

func (f *fakeProvider) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeProvider) GetStackService() provider.StackService               { return f }
func (f *fakeProvider) GetFunctionService() provider.FunctionService         { return f }
func (f *fakeProvider) GetLogService() provider.LogService                   { return f }
func (f *fakeProvider) GetStorageService() provider.StorageService           { return f }
func (f *fakeProvider) GetLockService() provider.LockService                 { return f }
func (f *fakeProvider) GetNotificationService() provider.NotificationService { return f }
func (f *fakeProvider) Name() string                                         { return "fake" }
func (f *fakeProvider) Region() string                                       { return "us-east-1" }
func (f *fakeProvider) AccountID() string                                    { return "123456789012" }

func (f *fakeProvider) ResolveOutputs(ctx context.Context, stackName string) (*models.StackOutputs, error) {
	f.record("resolve:" + stackName)
	if f.stackErr != nil {
		return nil, f.stackErr
	}
	return f.outputs, nil
}

func (f *fakeProvider) VerifyRole(ctx context.Context, roleArn string) error {
	f.record("verifyrole")
	return f.roleErr
}

func (f *fakeProvider) CreateFunction(ctx context.Context, spec provider.FunctionSpec) error {
	f.record("create:" + spec.Name)
	return f.createErr
}

func (f *fakeProvider) WaitActive(ctx context.Context, name string, maxAttempts int) error {
	f.record(fmt.Sprintf("waitactive:%d", maxAttempts))
	return f.activeErr
}

func (f *fakeProvider) Invoke(ctx context.Context, name string, payload []byte) (*provider.InvokeResult, error) {
	f.record("invoke")
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return f.invokeRes, nil
}

func (f *fakeProvider) DeleteFunction(ctx context.Context, name string) error {
	f.record("deletefn:" + name)
	return f.deleteFnErr
}

func (f *fakeProvider) ListFunctions(ctx context.Context, prefix string) (map[string]time.Time, error) {
	f.record("listfns:" + prefix)
	return f.functions, nil
}

func (f *fakeProvider) WaitForStream(ctx context.Context, logGroup string, maxAttempts int) (string, error) {
	f.record("waitstream")
	if f.streamErr != nil {
		return "", f.streamErr
	}
	return f.logStream, nil
}

func (f *fakeProvider) CollectLogs(ctx context.Context, logGroup, stream string, maxAttempts int) ([]string, error) {
	f.record("collectlogs")
	return f.logLines, nil
}

func (f *fakeProvider) DeleteLogGroup(ctx context.Context, logGroup string) error {
	f.record("deletelg:" + logGroup)
	return f.deleteLgErr
}

func (f *fakeProvider) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	f.record("put:" + key)
	return nil
}

func (f *fakeProvider) DeleteObject(ctx context.Context, bucket, key string) error {
	f.record("delobj:" + key)
	return nil
}

func (f *fakeProvider) Initialize(ctx context.Context) error {
	f.record("lockinit")
	return f.lockInitErr
}

func (f *fakeProvider) AcquireLock(ctx context.Context, resourceID, owner string, ttl time.Duration) (string, error) {
	f.record("acquire:" + resourceID)
	if f.lockAcquireErr != nil {
		return "", f.lockAcquireErr
	}
	return "token-1", nil
}

func (f *fakeProvider) ReleaseLock(ctx context.Context, resourceID, token string) error {
	f.record("release:" + resourceID)
	return nil
}

func (f *fakeProvider) IsLocked(ctx context.Context, resourceID string) (bool, string, error) {
	return false, "", nil
}

func (f *fakeProvider) Publish(ctx context.Context, topicArn, message string) error {
	f.record("publish:" + topicArn)
	return nil
}

// newTestHarness wires a harness whose build steps just write placeholder
// files, so no Go toolchain is involved.
func newTestHarness(t *testing.T, p *fakeProvider) *Harness {
	t.Helper()

	opts := config.RunOptions{
		StackName:          "ci-stack",
		TestPackage:        "./example",
		OutputDir:          t.TempDir(),
		ActivationAttempts: 30,
		LogAttempts:        20,
		StreamAttempts:     5,
	}

	h := New(p, opts)
	writeFile := func(path string) error {
		return os.WriteFile(path, []byte("binary"), 0755)
	}
	h.buildTestBinary = func(pkgPath, outPath string) error { return writeFile(outPath) }
	h.buildRunner = func(runnerPkg, outPath string) error { return writeFile(outPath) }
	h.packageZip = func(zipPath, bootstrapPath, testBinPath string) error { return writeFile(zipPath) }
	return h
}

func calledOnce(calls []string, prefix string) bool {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n == 1
}

func TestExecuteHappyPath(t *testing.T) {
	p := newFakeProvider()
	h := newTestHarness(t, p)

	result, err := h.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Passed {
		t.Errorf("expected a passing run, got %+v", result)
	}

	for _, prefix := range []string{"resolve:", "verifyrole", "create:", "waitactive:", "invoke", "waitstream", "collectlogs", "deletefn:", "deletelg:", "release:"} {
		if !calledOnce(p.calls, prefix) {
			t.Errorf("expected exactly one %q call, calls: %v", prefix, p.calls)
		}
	}

	// Cleanup must run after the invocation
	var invokeIdx, deleteIdx int
	for i, c := range p.calls {
		if c == "invoke" {
			invokeIdx = i
		}
		if strings.HasPrefix(c, "deletefn:") {
			deleteIdx = i
		}
	}
	if deleteIdx < invokeIdx {
		t.Errorf("function deleted before invocation: %v", p.calls)
	}

	// Report files land in the output directory
	if _, err := os.Stat(filepath.Join(h.opts.OutputDir, ResultFileName)); err != nil {
		t.Errorf("missing result file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.opts.OutputDir, LogFileName)); err != nil {
		t.Errorf("missing log file: %v", err)
	}
}

func TestExecuteCreationFailureSkipsPolling(t *testing.T) {
	p := newFakeProvider()
	p.createErr = errors.New("InvalidParameterValueException: role ARN is invalid")
	h := newTestHarness(t, p)

	_, err := h.Execute(context.Background())
	if err == nil {
		t.Fatal("expected an error from creation failure")
	}

	for _, c := range p.calls {
		if strings.HasPrefix(c, "waitactive:") {
			t.Errorf("activation poll must not run after creation failure: %v", p.calls)
		}
		if c == "invoke" {
			t.Errorf("invoke must not run after creation failure: %v", p.calls)
		}
	}

	// Best-effort cleanup still runs
	if !calledOnce(p.calls, "deletefn:") || !calledOnce(p.calls, "deletelg:") {
		t.Errorf("cleanup not attempted after creation failure: %v", p.calls)
	}
}

func TestExecuteActivationTimeout(t *testing.T) {
	p := newFakeProvider()
	p.activeErr = errors.New("function skytest-run-x did not become active (last state Pending): exhausted 30 attempts (interval 2s)")
	h := newTestHarness(t, p)

	_, err := h.Execute(context.Background())
	if err == nil {
		t.Fatal("expected an error from activation timeout")
	}
	if !strings.Contains(err.Error(), "Pending") {
		t.Errorf("error should carry the last observed state: %v", err)
	}

	if !calledOnce(p.calls, "deletefn:") {
		t.Errorf("cleanup not attempted after activation timeout: %v", p.calls)
	}
	for _, c := range p.calls {
		if c == "invoke" {
			t.Errorf("invoke must not run after activation timeout: %v", p.calls)
		}
	}
}

func TestExecuteInvocationErrorPayload(t *testing.T) {
	p := newFakeProvider()
	p.invokeRes = &provider.InvokeResult{
		Payload:       []byte(`{"errorMessage":"runtime exited with error","errorType":"Runtime.ExitError"}`),
		FunctionError: "Unhandled",
		StatusCode:    200,
	}
	h := newTestHarness(t, p)

	result, err := h.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute should return a result, not an error: %v", err)
	}
	if result.Passed {
		t.Error("run with errorMessage payload must fail")
	}
	if result.ExitCode == 0 {
		t.Error("failing run must carry a non-zero exit code")
	}
	if result.ErrorMessage != "runtime exited with error" {
		t.Errorf("unexpected error message: %q", result.ErrorMessage)
	}

	if !calledOnce(p.calls, "deletefn:") || !calledOnce(p.calls, "deletelg:") {
		t.Errorf("cleanup not attempted after failed invocation: %v", p.calls)
	}
}

func TestExecuteCleanupFailuresAreSuppressed(t *testing.T) {
	p := newFakeProvider()
	p.deleteFnErr = errors.New("ResourceNotFoundException")
	p.deleteLgErr = errors.New("ResourceNotFoundException")
	h := newTestHarness(t, p)

	result, err := h.Execute(context.Background())
	if err != nil {
		t.Fatalf("cleanup failures must not fail the run: %v", err)
	}
	if !result.Passed {
		t.Errorf("cleanup failures must not flip the verdict: %+v", result)
	}
}

func TestExecuteKeepResourcesSkipsCleanup(t *testing.T) {
	p := newFakeProvider()
	h := newTestHarness(t, p)
	h.opts.KeepResources = true

	if _, err := h.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for _, c := range p.calls {
		if strings.HasPrefix(c, "deletefn:") || strings.HasPrefix(c, "deletelg:") {
			t.Errorf("cleanup ran despite -keep: %v", p.calls)
		}
	}
}

func TestExecuteHeldLockAborts(t *testing.T) {
	p := newFakeProvider()
	p.lockAcquireErr = errors.New("stack ci-stack is locked by other-host/20260828-120000-deadbeef")
	h := newTestHarness(t, p)

	_, err := h.Execute(context.Background())
	if err == nil {
		t.Fatal("a held lock must abort the run")
	}
	if !strings.Contains(err.Error(), "lock") {
		t.Errorf("error should name the lock: %v", err)
	}

	for _, c := range p.calls {
		if strings.HasPrefix(c, "create:") || c == "invoke" {
			t.Errorf("no function work may happen while the stack is locked: %v", p.calls)
		}
	}
}

func TestExecuteLockBackendFailureDegrades(t *testing.T) {
	p := newFakeProvider()
	p.lockInitErr = errors.New("AccessDeniedException: no dynamodb:CreateTable")
	h := newTestHarness(t, p)

	result, err := h.Execute(context.Background())
	if err != nil {
		t.Fatalf("an unavailable lock backend must degrade, not abort: %v", err)
	}
	if !result.Passed {
		t.Errorf("expected a passing run, got %+v", result)
	}

	for _, c := range p.calls {
		if strings.HasPrefix(c, "acquire:") || strings.HasPrefix(c, "release:") {
			t.Errorf("no lock calls expected after backend init failure: %v", p.calls)
		}
	}
}

func TestExecuteStackFailureStopsBeforeFunction(t *testing.T) {
	p := newFakeProvider()
	p.stackErr = errors.New("stack ci-stack not found")
	h := newTestHarness(t, p)

	_, err := h.Execute(context.Background())
	if err == nil {
		t.Fatal("expected stack resolution error")
	}

	for _, c := range p.calls {
		if strings.HasPrefix(c, "create:") {
			t.Errorf("function created despite stack failure: %v", p.calls)
		}
	}
}

func TestExecutePublishesWhenTopicConfigured(t *testing.T) {
	p := newFakeProvider()
	p.outputs.ResultsTopicArn = "arn:aws:sns:us-east-1:123456789012:results"
	h := newTestHarness(t, p)

	if _, err := h.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !calledOnce(p.calls, "publish:") {
		t.Errorf("expected one publish call: %v", p.calls)
	}
}

func TestExecuteValidatesOptions(t *testing.T) {
	p := newFakeProvider()
	h := newTestHarness(t, p)
	h.opts.StackName = ""

	_, err := h.Execute(context.Background())
	if err == nil {
		t.Fatal("expected validation error for missing stack name")
	}
	if len(p.calls) != 0 {
		t.Errorf("no provider call should happen before validation: %v", p.calls)
	}
}

func TestExecuteResultJSONRoundTrips(t *testing.T) {
	p := newFakeProvider()
	h := newTestHarness(t, p)

	result, err := h.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(h.opts.OutputDir, ResultFileName))
	if err != nil {
		t.Fatalf("failed to read result file: %v", err)
	}

	var report struct {
		Passed   bool            `json:"passed"`
		ExitCode int             `json:"exit_code"`
		Payload  json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("result file is not valid JSON: %v", err)
	}
	if report.Passed != result.Passed {
		t.Errorf("report/result mismatch: %v vs %v", report.Passed, result.Passed)
	}
	if len(report.Payload) == 0 {
		t.Error("report must embed the raw invocation payload")
	}
}
