package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/helioslabs/skytest/pkg/logger"
	"github.com/helioslabs/skytest/pkg/utils"
)

// endOfReportMarker is emitted by the Lambda platform after the handler
// returns; seeing it means the invocation's logs are complete.
const endOfReportMarker = "REPORT RequestId"

// LogService retrieves execution logs from CloudWatch Logs
type LogService struct {
	client *cloudwatchlogs.Client
}

// NewLogService creates a new CloudWatch Logs-based log service
func NewLogService(client *cloudwatchlogs.Client) *LogService {
	return &LogService{client: client}
}

// WaitForStream polls until the log group has a stream. The group itself is
// created lazily by the platform on first invocation, so ResourceNotFound is
// treated as "not yet", not as an error.
func (s *LogService) WaitForStream(ctx context.Context, logGroup string, maxAttempts int) (string, error) {
	var streamName string

	err := utils.PollFixed(ctx, maxAttempts, PollInterval, func(ctx context.Context) (bool, error) {
		out, err := s.client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
			LogGroupName: aws.String(logGroup),
			OrderBy:      types.OrderByLastEventTime,
			Descending:   aws.Bool(true),
			Limit:        aws.Int32(1),
		})
		if err != nil {
			if isNotFoundError(err) {
				logger.Printf("Log group %s not created yet", logGroup)
				return false, nil
			}
			return false, fmt.Errorf("failed to describe log streams: %w", err)
		}

		if len(out.LogStreams) == 0 || out.LogStreams[0].LogStreamName == nil {
			return false, nil
		}

		streamName = *out.LogStreams[0].LogStreamName
		return true, nil
	})

	if err != nil {
		return "", fmt.Errorf("no log stream appeared in %s: %w", logGroup, err)
	}

	return streamName, nil
}

// CollectLogs pages through the stream until the end-of-report marker is
// seen or the attempt budget runs out. Lines gathered so far are returned
// either way.
func (s *LogService) CollectLogs(ctx context.Context, logGroup, stream string, maxAttempts int) ([]string, error) {
	var lines []string
	var nextToken *string

	err := utils.PollFixed(ctx, maxAttempts, PollInterval, func(ctx context.Context) (bool, error) {
		input := &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(logGroup),
			LogStreamName: aws.String(stream),
			StartFromHead: aws.Bool(true),
		}
		if nextToken != nil {
			input.NextToken = nextToken
		}

		out, err := s.client.GetLogEvents(ctx, input)
		if err != nil {
			return false, fmt.Errorf("failed to get log events: %w", err)
		}

		complete := false
		for _, event := range out.Events {
			if event.Message == nil {
				continue
			}
			line := strings.TrimRight(*event.Message, "\n")
			lines = append(lines, line)
			if strings.Contains(line, endOfReportMarker) {
				complete = true
			}
		}

		// The forward token repeats once the stream is drained; keep it
		// so the next attempt resumes where this one stopped.
		nextToken = out.NextForwardToken

		return complete, nil
	})

	if err != nil {
		// Budget exhaustion is not fatal to the run: report what we have.
		logger.Printf("Log collection incomplete for %s: %v", logGroup, err)
		return lines, fmt.Errorf("log collection incomplete: %w", err)
	}

	return lines, nil
}

// DeleteLogGroup removes the function's log group
func (s *LogService) DeleteLogGroup(ctx context.Context, logGroup string) error {
	_, err := s.client.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(logGroup),
	})

	if err != nil {
		return fmt.Errorf("failed to delete log group: %w", err)
	}

	return nil
}
