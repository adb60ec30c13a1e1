package logistics

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

// NotifyLogisticsActivityName delivers a ready order to the logistics collaborator.
const NotifyLogisticsActivityName = "orders.activities.NotifyLogistics"

// HandoffInput is the serialized order a hand-off delivers.
type HandoffInput struct {
	Key   string
	Order domain.Order
}

// Activities groups the logistics hand-off activities.
type Activities struct {
	notifier ports.LogisticsNotifier
}

// NewActivities wires the logistics notifier into the Temporal activities bundle.
func NewActivities(notifier ports.LogisticsNotifier) *Activities {
	return &Activities{notifier: notifier}
}

// NotifyLogistics pushes the order to logistics. A heartbeat marks completion so a
// retried attempt after a lost ack does not deliver twice.
func (a *Activities) NotifyLogistics(ctx context.Context, input HandoffInput) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.notifier == nil {
		logger.Error("logistics activity not initialized", "handoffKey", input.Key)
		return errors.New("logistics activity not initialized")
	}

	var hb handoffHeartbeat
	if activity.HasHeartbeatDetails(ctx) {
		_ = activity.GetHeartbeatDetails(ctx, &hb)
	}
	if hb.Completed {
		logger.Info("NotifyLogistics already completed in prior attempt; skipping", "handoffKey", input.Key)
		return nil
	}

	logger.Info("NotifyLogistics activity started", "handoffKey", input.Key)
	order := input.Order
	if err := a.notifier.NotifyLogistics(ctx, &order); err != nil {
		logger.Error("NotifyLogistics failed", "handoffKey", input.Key, "error", err)
		return err
	}
	activity.RecordHeartbeat(ctx, handoffHeartbeat{Completed: true})
	logger.Info("NotifyLogistics activity completed", "handoffKey", input.Key)
	return nil
}

type handoffHeartbeat struct {
	Completed bool
}
