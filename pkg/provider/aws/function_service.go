package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/helioslabs/skytest/pkg/logger"
	"github.com/helioslabs/skytest/pkg/models"
	"github.com/helioslabs/skytest/pkg/provider"
	"github.com/helioslabs/skytest/pkg/utils"
)

const (
	// PollInterval is the constant sleep between status poll attempts
	PollInterval = 2 * time.Second

	// lastModifiedLayout is Lambda's LastModified timestamp format
	lastModifiedLayout = "2006-01-02T15:04:05.000-0700"
)

// FunctionService implements ephemeral test functions using Lambda
type FunctionService struct {
	lambdaClient *lambda.Client
	iamClient    *iam.Client
}

// NewFunctionService creates a new Lambda-based function service
func NewFunctionService(lambdaClient *lambda.Client, iamClient *iam.Client) *FunctionService {
	return &FunctionService{
		lambdaClient: lambdaClient,
		iamClient:    iamClient,
	}
}

// VerifyRole checks that the execution role behind the ARN actually exists,
// so a stale stack output fails the run before any function is created. A
// caller without iam:GetRole gets a warning, not a failure.
func (s *FunctionService) VerifyRole(ctx context.Context, roleArn string) error {
	parts := strings.Split(roleArn, "/")
	if len(parts) < 2 || !strings.HasPrefix(roleArn, "arn:") {
		return fmt.Errorf("malformed role ARN %q", roleArn)
	}
	roleName := parts[len(parts)-1]

	_, err := s.iamClient.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if strings.Contains(err.Error(), "AccessDenied") {
			logger.Printf("Cannot verify role %s (access denied), continuing", roleName)
			return nil
		}
		return fmt.Errorf("execution role %s not usable: %w", roleName, err)
	}

	return nil
}

// CreateFunction provisions the ephemeral function. A role that was just
// created by the stack may not be assumable yet, and the API may throttle;
// both are retried with backoff. Anything else fails immediately.
func (s *FunctionService) CreateFunction(ctx context.Context, spec provider.FunctionSpec) error {
	var code types.FunctionCode
	if spec.S3Bucket != "" {
		code = types.FunctionCode{
			S3Bucket: aws.String(spec.S3Bucket),
			S3Key:    aws.String(spec.S3Key),
		}
	} else {
		code = types.FunctionCode{
			ZipFile: spec.ZipFile,
		}
	}

	memory := spec.MemoryMB
	if memory == 0 {
		memory = 512
	}
	timeout := spec.TimeoutSecs
	if timeout == 0 {
		timeout = 300
	}

	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(spec.Name),
		Runtime:      types.RuntimeProvidedal2, // Custom runtime for Go
		Role:         aws.String(spec.RoleArn),
		Handler:      aws.String("bootstrap"), // Required for provided.al2 runtime
		Code:         &code,
		Timeout:      aws.Int32(timeout),
		MemorySize:   aws.Int32(memory),
		Description:  aws.String(fmt.Sprintf("Skytest ephemeral test function: %s", spec.Name)),
		Environment: &types.Environment{
			Variables: spec.Environment,
		},
		Tags: spec.Tags,
	}

	_, err := s.lambdaClient.CreateFunction(ctx, input)
	if err != nil && shouldRetryCreate(err) {
		logger.Printf("Retrying create for %s: %v", spec.Name, err)
		err = utils.RetryWithBackoff(ctx, utils.DefaultRetryConfig(), func(ctx context.Context) error {
			_, createErr := s.lambdaClient.CreateFunction(ctx, input)
			return createErr
		})
	}
	if err != nil {
		return fmt.Errorf("failed to create function: %w", err)
	}

	return nil
}

// WaitActive polls the function state at a fixed interval until Active
func (s *FunctionService) WaitActive(ctx context.Context, name string, maxAttempts int) error {
	lastState := models.FunctionStatePending
	var lastReason string

	err := utils.PollFixed(ctx, maxAttempts, PollInterval, func(ctx context.Context) (bool, error) {
		out, err := s.lambdaClient.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
			FunctionName: aws.String(name),
		})
		if err != nil {
			return false, fmt.Errorf("failed to get function state: %w", err)
		}

		lastState = models.FunctionState(out.State)
		if out.StateReason != nil {
			lastReason = *out.StateReason
		}

		switch out.State {
		case types.StateActive:
			return true, nil
		case types.StateFailed:
			return false, fmt.Errorf("function entered state Failed: %s", lastReason)
		default:
			logger.Printf("Function %s state: %s", name, out.State)
			return false, nil
		}
	})

	if err != nil {
		return fmt.Errorf("function %s did not become active (last state %s): %w", name, lastState, err)
	}

	return nil
}

// Invoke calls the function synchronously with a JSON payload
func (s *FunctionService) Invoke(ctx context.Context, name string, payload []byte) (*provider.InvokeResult, error) {
	out, err := s.lambdaClient.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(name),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke function: %w", err)
	}

	result := &provider.InvokeResult{
		Payload:    out.Payload,
		StatusCode: out.StatusCode,
	}
	if out.FunctionError != nil {
		result.FunctionError = *out.FunctionError
	}

	return result, nil
}

// DeleteFunction deletes a function
func (s *FunctionService) DeleteFunction(ctx context.Context, name string) error {
	_, err := s.lambdaClient.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(name),
	})

	if err != nil {
		return fmt.Errorf("failed to delete function: %w", err)
	}

	return nil
}

// ListFunctions returns functions with the given name prefix
func (s *FunctionService) ListFunctions(ctx context.Context, prefix string) (map[string]time.Time, error) {
	found := make(map[string]time.Time)

	paginator := lambda.NewListFunctionsPaginator(s.lambdaClient, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list functions: %w", err)
		}

		for _, fn := range page.Functions {
			if fn.FunctionName == nil || !strings.HasPrefix(*fn.FunctionName, prefix) {
				continue
			}
			modified := time.Time{}
			if fn.LastModified != nil {
				if t, parseErr := time.Parse(lastModifiedLayout, *fn.LastModified); parseErr == nil {
					modified = t
				}
			}
			found[*fn.FunctionName] = modified
		}
	}

	return found, nil
}

// isRolePropagationError matches the create-time race where a freshly
// created execution role is not yet assumable by the service
func isRolePropagationError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "cannot be assumed")
}

// shouldRetryCreate gates the create retry: role propagation races and
// transient API failures retry, validation errors fail the run immediately
func shouldRetryCreate(err error) bool {
	return isRolePropagationError(err) || utils.IsRetryableError(err)
}

// isNotFoundError checks if error is a not found error
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	// Check for various AWS not found error types
	return strings.Contains(err.Error(), "ResourceNotFoundException") ||
		strings.Contains(err.Error(), "NotFound")
}
