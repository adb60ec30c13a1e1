package logistics

import (
	"go.temporal.io/sdk/workflow"

	logisticsactivities "github.com/Apurer/costume-order-engine/internal/durable/temporal/activities/logistics"
	"github.com/Apurer/costume-order-engine/internal/durable/temporal/sequences"
)

const (
	// HandoffWorkflowName is the public identifier for registering the workflow.
	HandoffWorkflowName = "orders.workflows.LogisticsHandoff"
	// HandoffTaskQueue is the queue consumed by the worker processing hand-offs.
	HandoffTaskQueue = "LOGISTICS_HANDOFF"
)

// HandoffWorkflowInput carries the order to hand off and the caller's trace.
type HandoffWorkflowInput struct {
	Handoff logisticsactivities.HandoffInput
	TraceID string
}

// HandoffWorkflow hands a ready order to logistics. The workflow id is the hand-off
// key, so one order yields one execution.
func HandoffWorkflow(ctx workflow.Context, input HandoffWorkflowInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("HandoffWorkflow started", withTraceID(input.TraceID, "handoffKey", input.Handoff.Key)...)
	if err := sequences.RunLogisticsHandoffSequence(ctx, input.Handoff); err != nil {
		logger.Error("HandoffWorkflow failed", withTraceID(input.TraceID, "handoffKey", input.Handoff.Key, "error", err)...)
		return err
	}
	logger.Info("HandoffWorkflow completed", withTraceID(input.TraceID, "handoffKey", input.Handoff.Key)...)
	return nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
