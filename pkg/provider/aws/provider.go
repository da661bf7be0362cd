package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/helioslabs/skytest/pkg/logger"
	"github.com/helioslabs/skytest/pkg/provider"
)

// AWSProvider implements the Provider interface for AWS
type AWSProvider struct {
	profile   string
	region    string
	accountID string
	cfg       aws.Config

	// Services
	stackService        provider.StackService
	functionService     provider.FunctionService
	logService          provider.LogService
	storageService      provider.StorageService
	lockService         provider.LockService
	notificationService provider.NotificationService

	// AWS clients
	cfnClient    *cloudformation.Client
	lambdaClient *lambda.Client
	logsClient   *cloudwatchlogs.Client
	s3Client     *s3.Client
	dynamoClient *dynamodb.Client
	snsClient    *sns.Client
	stsClient    *sts.Client
	iamClient    *iam.Client
}

// NewProvider creates a new AWS provider
func NewProvider(profile, region string) (*AWSProvider, error) {
	ctx := context.Background()

	if region == "" {
		region = "us-east-1"
		logger.Printf("Using default region: %s", region)
	}

	var cfgOptions []func(*config.LoadOptions) error
	cfgOptions = append(cfgOptions, config.WithRegion(region))

	// Only add profile if it's not empty (for Lambda environment)
	if profile != "" {
		cfgOptions = append(cfgOptions, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, cfgOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Get account ID
	stsClient := sts.NewFromConfig(cfg)
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get AWS account ID: %w", err)
	}
	logger.Printf("AWS account ID: %s", *identity.Account)

	p := &AWSProvider{
		profile:      profile,
		region:       region,
		accountID:    *identity.Account,
		cfg:          cfg,
		cfnClient:    cloudformation.NewFromConfig(cfg),
		lambdaClient: lambda.NewFromConfig(cfg),
		logsClient:   cloudwatchlogs.NewFromConfig(cfg),
		s3Client:     s3.NewFromConfig(cfg),
		dynamoClient: dynamodb.NewFromConfig(cfg),
		snsClient:    sns.NewFromConfig(cfg),
		stsClient:    stsClient,
		iamClient:    iam.NewFromConfig(cfg),
	}

	// Initialize services
	p.stackService = NewStackService(p.cfnClient)
	p.functionService = NewFunctionService(p.lambdaClient, p.iamClient)
	p.logService = NewLogService(p.logsClient)
	p.storageService = NewStorageService(p.s3Client)
	p.lockService = NewLockService(p.dynamoClient)
	p.notificationService = NewNotificationService(p.snsClient)

	return p, nil
}

// GetStackService returns the stack output resolver
func (p *AWSProvider) GetStackService() provider.StackService {
	return p.stackService
}

// GetFunctionService returns the function service
func (p *AWSProvider) GetFunctionService() provider.FunctionService {
	return p.functionService
}

// GetLogService returns the log service
func (p *AWSProvider) GetLogService() provider.LogService {
	return p.logService
}

// GetStorageService returns the storage service
func (p *AWSProvider) GetStorageService() provider.StorageService {
	return p.storageService
}

// GetLockService returns the lock service
func (p *AWSProvider) GetLockService() provider.LockService {
	return p.lockService
}

// GetNotificationService returns the notification service
func (p *AWSProvider) GetNotificationService() provider.NotificationService {
	return p.notificationService
}

// Name returns the provider name
func (p *AWSProvider) Name() string {
	return "aws"
}

// Region returns the configured region
func (p *AWSProvider) Region() string {
	return p.region
}

// AccountID returns the caller's account ID
func (p *AWSProvider) AccountID() string {
	return p.accountID
}
