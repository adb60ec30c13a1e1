package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	logisticsactivities "github.com/Apurer/costume-order-engine/internal/durable/temporal/activities/logistics"
)

// HandoffActivityOptions is the retry budget for a logistics delivery.
var HandoffActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Second,
	HeartbeatTimeout:    10 * time.Second,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    5,
	},
}

// RunLogisticsHandoffSequence delivers the order to logistics with retries.
func RunLogisticsHandoffSequence(ctx workflow.Context, input logisticsactivities.HandoffInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("logistics hand-off sequence started", "handoffKey", input.Key)

	ctx = workflow.WithActivityOptions(ctx, HandoffActivityOptions)
	if err := workflow.ExecuteActivity(ctx, logisticsactivities.NotifyLogisticsActivityName, input).Get(ctx, nil); err != nil {
		logger.Error("logistics hand-off sequence failed", "handoffKey", input.Key, "error", err)
		return err
	}
	logger.Info("logistics hand-off sequence completed", "handoffKey", input.Key)
	return nil
}
