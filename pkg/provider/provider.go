package provider

import (
	"context"
	"time"

	"github.com/helioslabs/skytest/pkg/models"
)

// Provider defines the interface for cloud providers
type Provider interface {
	// Core services
	GetStackService() StackService
	GetFunctionService() FunctionService
	GetLogService() LogService
	GetStorageService() StorageService
	GetLockService() LockService
	GetNotificationService() NotificationService

	// Provider info
	Name() string
	Region() string
	AccountID() string
}

// StackService resolves deployment stack outputs
type StackService interface {
	// ResolveOutputs looks up the named stack and returns its outputs.
	// ArtifactBucket and ExecutionRoleArn are required; a stack missing
	// either is an error.
	ResolveOutputs(ctx context.Context, stackName string) (*models.StackOutputs, error)
}

// FunctionSpec describes the ephemeral function to create
type FunctionSpec struct {
	Name        string
	RoleArn     string
	ZipFile     []byte // inline code, used when small enough
	S3Bucket    string // set instead of ZipFile for oversize artifacts
	S3Key       string
	MemoryMB    int32
	TimeoutSecs int32
	Environment map[string]string
	Tags        map[string]string
}

// InvokeResult is the raw outcome of a synchronous invocation
type InvokeResult struct {
	Payload       []byte
	FunctionError string // empty, "Handled" or "Unhandled"
	StatusCode    int32
}

// FunctionService provides ephemeral serverless function management
type FunctionService interface {
	// VerifyRole checks the execution role exists before any function is
	// created, so a stale stack output fails early
	VerifyRole(ctx context.Context, roleArn string) error

	// CreateFunction provisions the function. It does not wait for the
	// function to become invocable.
	CreateFunction(ctx context.Context, spec FunctionSpec) error

	// WaitActive polls the function state at a fixed interval until it is
	// Active, the state is terminal, or the attempt budget is exhausted.
	// The returned error names the last observed state.
	WaitActive(ctx context.Context, name string, maxAttempts int) error

	// Invoke calls the function synchronously with a JSON payload
	Invoke(ctx context.Context, name string, payload []byte) (*InvokeResult, error)

	// DeleteFunction removes the function
	DeleteFunction(ctx context.Context, name string) error

	// ListFunctions returns function names with the given prefix along
	// with their last-modified time (used by the sweeper)
	ListFunctions(ctx context.Context, prefix string) (map[string]time.Time, error)
}

// LogService retrieves and disposes of execution logs
type LogService interface {
	// WaitForStream polls until the log group has at least one stream
	WaitForStream(ctx context.Context, logGroup string, maxAttempts int) (string, error)

	// CollectLogs pages through the stream's events until the end-of-report
	// marker is seen or the attempt budget runs out. Lines collected so far
	// are returned even on budget exhaustion.
	CollectLogs(ctx context.Context, logGroup, stream string, maxAttempts int) ([]string, error)

	// DeleteLogGroup removes the function's log group
	DeleteLogGroup(ctx context.Context, logGroup string) error
}

// StorageService provides object storage operations against the stack's
// artifact bucket
type StorageService interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

// LockService provides distributed locking so concurrent CI jobs do not
// race on the same stack
type LockService interface {
	// Initialize ensures the lock backend exists (e.g., DynamoDB table)
	Initialize(ctx context.Context) error

	// AcquireLock tries to acquire a lock for a resource.
	// Returns a lock token if successful, error if held by another process.
	AcquireLock(ctx context.Context, resourceID string, owner string, ttl time.Duration) (string, error)

	// ReleaseLock releases a lock using the token
	ReleaseLock(ctx context.Context, resourceID string, token string) error

	// IsLocked checks if a resource is currently locked
	IsLocked(ctx context.Context, resourceID string) (bool, string, error)
}

// NotificationService publishes run summaries
type NotificationService interface {
	Publish(ctx context.Context, topicArn string, message string) error
}
