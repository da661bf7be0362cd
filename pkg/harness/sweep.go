package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/helioslabs/skytest/pkg/logger"
	"github.com/helioslabs/skytest/pkg/models"
	"github.com/helioslabs/skytest/pkg/provider"
)

// Sweep deletes leftover run functions and their log groups. A run that was
// killed between create and cleanup leaves both behind; anything carrying
// the run prefix and older than the threshold is fair game. Individual
// delete failures are logged and skipped.
func Sweep(ctx context.Context, p provider.Provider, olderThan time.Duration) (int, error) {
	functions, err := p.GetFunctionService().ListFunctions(ctx, models.FunctionNamePrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list leftover functions: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for name, modified := range functions {
		if !modified.IsZero() && modified.After(cutoff) {
			logger.Printf("Skipping %s, modified %s", name, modified.Format(time.RFC3339))
			continue
		}

		logger.Printf("Sweeping %s", name)
		if err := p.GetFunctionService().DeleteFunction(ctx, name); err != nil {
			logger.Printf("Sweep: function delete failed (skipped): %v", err)
			continue
		}
		if err := p.GetLogService().DeleteLogGroup(ctx, "/aws/lambda/"+name); err != nil {
			logger.Printf("Sweep: log group delete failed (ignored): %v", err)
		}
		removed++
	}

	return removed, nil
}
