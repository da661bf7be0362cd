package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/helioslabs/skytest/pkg/models"
)

// Stack output keys the harness depends on
const (
	OutputArtifactBucket   = "ArtifactBucket"
	OutputExecutionRoleArn = "ExecutionRoleArn"
	OutputResultsTopicArn  = "ResultsTopicArn"
)

// StackService resolves deployment stack outputs via CloudFormation
type StackService struct {
	client *cloudformation.Client
}

// NewStackService creates a new CloudFormation-based stack service
func NewStackService(client *cloudformation.Client) *StackService {
	return &StackService{client: client}
}

// ResolveOutputs looks up the named stack and returns its outputs.
// ArtifactBucket and ExecutionRoleArn are required; ResultsTopicArn is
// optional and enables the SNS summary.
func (s *StackService) ResolveOutputs(ctx context.Context, stackName string) (*models.StackOutputs, error) {
	out, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}

	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s not found", stackName)
	}

	outputs := &models.StackOutputs{}
	for _, o := range out.Stacks[0].Outputs {
		if o.OutputKey == nil || o.OutputValue == nil {
			continue
		}
		switch *o.OutputKey {
		case OutputArtifactBucket:
			outputs.ArtifactBucket = *o.OutputValue
		case OutputExecutionRoleArn:
			outputs.ExecutionRoleArn = *o.OutputValue
		case OutputResultsTopicArn:
			outputs.ResultsTopicArn = *o.OutputValue
		}
	}

	if outputs.ArtifactBucket == "" {
		return nil, fmt.Errorf("stack %s has no %s output", stackName, OutputArtifactBucket)
	}
	if outputs.ExecutionRoleArn == "" {
		return nil, fmt.Errorf("stack %s has no %s output", stackName, OutputExecutionRoleArn)
	}

	return outputs, nil
}
