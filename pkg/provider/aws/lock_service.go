package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	LockTableName    = "skytest-run-locks"
	LockTTLAttribute = "expires_at"
)

// LockService implements per-stack run locking using DynamoDB, so two CI
// jobs cannot deploy against the same stack at once
type LockService struct {
	client    *dynamodb.Client
	tableName string
}

// LockItem represents a lock in DynamoDB
type LockItem struct {
	StackName string `dynamodbav:"stack_name"`
	Owner     string `dynamodbav:"owner"`
	Token     string `dynamodbav:"token"`
	ExpiresAt int64  `dynamodbav:"expires_at"` // Unix timestamp for TTL
	CreatedAt string `dynamodbav:"created_at"`
}

// NewLockService creates a new DynamoDB-based lock service
func NewLockService(client *dynamodb.Client) *LockService {
	return &LockService{
		client:    client,
		tableName: LockTableName,
	}
}

// Initialize ensures the DynamoDB table exists
func (s *LockService) Initialize(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})

	if err == nil {
		// Table exists
		return nil
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("stack_name"),
				KeyType:       types.KeyTypeHash,
			},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("stack_name"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
		Tags: []types.Tag{
			{
				Key:   aws.String("Application"),
				Value: aws.String("skytest"),
			},
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("run-locking"),
			},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to create lock table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, 2*time.Minute)

	if err != nil {
		return fmt.Errorf("failed waiting for table to be active: %w", err)
	}

	return nil
}

// AcquireLock tries to acquire the run lock for a stack
func (s *LockService) AcquireLock(ctx context.Context, stackName string, owner string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	expiresAt := time.Now().Add(ttl).Unix()

	item := LockItem{
		StackName: stackName,
		Owner:     owner,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().Format(time.RFC3339),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock item: %w", err)
	}

	// Put only if no live lock is present
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(stack_name) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})

	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			locked, lockOwner, _ := s.IsLocked(ctx, stackName)
			if locked {
				return "", fmt.Errorf("stack %s is locked by %s", stackName, lockOwner)
			}
			return "", fmt.Errorf("lock condition check failed")
		}
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}

	return token, nil
}

// ReleaseLock releases a lock using the token
func (s *LockService) ReleaseLock(ctx context.Context, stackName string, token string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"stack_name": &types.AttributeValueMemberS{Value: stackName},
		},
		ConditionExpression: aws.String("#t = :token"),
		ExpressionAttributeNames: map[string]string{
			"#t": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":token": &types.AttributeValueMemberS{Value: token},
		},
	})

	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("invalid token or lock already released")
		}
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return nil
}

// IsLocked checks if a stack currently has a live run lock
func (s *LockService) IsLocked(ctx context.Context, stackName string) (bool, string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"stack_name": &types.AttributeValueMemberS{Value: stackName},
		},
	})

	if err != nil {
		return false, "", fmt.Errorf("failed to get lock item: %w", err)
	}

	if out.Item == nil {
		return false, "", nil
	}

	var item LockItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return false, "", fmt.Errorf("failed to unmarshal lock item: %w", err)
	}

	if item.ExpiresAt < time.Now().Unix() {
		// Expired lock counts as free
		return false, "", nil
	}

	return true, item.Owner, nil
}
