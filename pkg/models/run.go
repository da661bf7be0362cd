package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FunctionNamePrefix is shared by the harness (naming) and the sweeper
// (finding leftovers from interrupted runs).
const FunctionNamePrefix = "skytest-run"

// FunctionState mirrors the provider's function lifecycle states
type FunctionState string

const (
	FunctionStatePending  FunctionState = "Pending"
	FunctionStateActive   FunctionState = "Active"
	FunctionStateFailed   FunctionState = "Failed"
	FunctionStateInactive FunctionState = "Inactive"
)

// Run identifies a single deploy-invoke-collect-cleanup cycle. Nothing here
// survives the process; the only durable side effects live in the cloud and
// are deleted at the end of the run.
type Run struct {
	ID           string    `json:"id"`
	FunctionName string    `json:"function_name"`
	StackName    string    `json:"stack_name"`
	Region       string    `json:"region"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRun mints a run whose function name is derived from the current time,
// with a short uuid suffix so two runs started in the same second on the
// same stack cannot collide.
func NewRun(stackName, region string) *Run {
	now := time.Now().UTC()
	id := fmt.Sprintf("%s-%s", now.Format("20060102-150405"), uuid.New().String()[:8])
	return &Run{
		ID:           id,
		FunctionName: fmt.Sprintf("%s-%s", FunctionNamePrefix, id),
		StackName:    stackName,
		Region:       region,
		CreatedAt:    now,
	}
}

// LogGroupName returns the provider's log group for the run's function
func (r *Run) LogGroupName() string {
	return "/aws/lambda/" + r.FunctionName
}

// StackOutputs holds the resolved outputs of the deployment stack
type StackOutputs struct {
	ArtifactBucket   string `json:"artifact_bucket"`
	ExecutionRoleArn string `json:"execution_role_arn"`
	ResultsTopicArn  string `json:"results_topic_arn,omitempty"`
}

// RunResult is the harness-level outcome of an invocation
type RunResult struct {
	Run           *Run          `json:"run"`
	Passed        bool          `json:"passed"`
	ExitCode      int           `json:"exit_code"`
	FunctionError string        `json:"function_error,omitempty"` // Handled/Unhandled
	ErrorMessage  string        `json:"error_message,omitempty"`
	Payload       []byte        `json:"-"`
	Output        string        `json:"output,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	LogLines      []string      `json:"-"`
}
