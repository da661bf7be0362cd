package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// NotificationService publishes run summaries via SNS. Used only when the
// stack exposes a ResultsTopicArn output; the topic belongs to the stack,
// never to the harness.
type NotificationService struct {
	client *sns.Client
}

// NewNotificationService creates a new SNS-based notification service
func NewNotificationService(client *sns.Client) *NotificationService {
	return &NotificationService{client: client}
}

// Publish sends a message to a topic
func (s *NotificationService) Publish(ctx context.Context, topicArn string, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicArn),
		Message:  aws.String(message),
	})

	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topicArn, err)
	}

	return nil
}
