package workflows

import (
	"context"
	"errors"

	oteltrace "go.opentelemetry.io/otel/trace"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
	logisticsactivities "github.com/Apurer/costume-order-engine/internal/durable/temporal/activities/logistics"
	logisticsworkflows "github.com/Apurer/costume-order-engine/internal/durable/temporal/workflows/logistics"
)

var _ ports.LogisticsNotifier = (*TemporalLogisticsHandoff)(nil)

// TemporalLogisticsHandoff delivers hand-offs through a durable Temporal workflow.
type TemporalLogisticsHandoff struct {
	client    client.Client
	taskQueue string
}

// NewTemporalLogisticsHandoff wires a Temporal client into the notifier.
func NewTemporalLogisticsHandoff(c client.Client) *TemporalLogisticsHandoff {
	return &TemporalLogisticsHandoff{client: c, taskQueue: logisticsworkflows.HandoffTaskQueue}
}

// NotifyLogistics starts the hand-off workflow and waits for it. The workflow id is
// the hand-off key; an execution that already exists is awaited instead.
func (o *TemporalLogisticsHandoff) NotifyLogistics(ctx context.Context, order *domain.Order) error {
	if o == nil || o.client == nil {
		return errors.New("temporal logistics hand-off not configured")
	}
	if order == nil {
		return errors.New("order is nil")
	}
	workflowID := application.HandoffKey(order)
	options := client.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             o.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}
	input := logisticsworkflows.HandoffWorkflowInput{
		Handoff: logisticsactivities.HandoffInput{Key: workflowID, Order: *order},
		TraceID: workflowTraceID(ctx),
	}
	run, err := o.client.ExecuteWorkflow(ctx, options, logisticsworkflows.HandoffWorkflowName, input)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId).Get(ctx, nil)
		}
		return err
	}
	return run.Get(ctx, nil)
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
