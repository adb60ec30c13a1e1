package orderserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	orderhttpmapper "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/http/mapper"
	ordersapp "github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	orderdomain "github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

// SnapshotReader exposes the latest published order list.
type SnapshotReader interface {
	Current() ordersapp.Snapshot
}

// Refresher triggers user-visible reconciliation and reports freshness.
type Refresher interface {
	Refresh(ctx context.Context) error
	Status() ordersapp.SchedulerStatus
}

// AdminOrdersAPI serves the admin panel: the reconciled list and lifecycle transitions.
type AdminOrdersAPI struct {
	snapshots SnapshotReader
	refresher Refresher
	lifecycle ordersports.Lifecycle
}

// NewAdminOrdersAPI creates the admin API.
func NewAdminOrdersAPI(snapshots SnapshotReader, refresher Refresher, lifecycle ordersports.Lifecycle) AdminOrdersAPI {
	return AdminOrdersAPI{snapshots: snapshots, refresher: refresher, lifecycle: lifecycle}
}

// Get /v1/admin/orders
// Lists reconciled orders, optionally narrowed to a view and payment status
func (api *AdminOrdersAPI) ListOrders(c *gin.Context) {
	snap := api.snapshots.Current()
	entries := snap.Orders
	if raw := strings.TrimSpace(c.Query("view")); raw != "" {
		view, ok := orderdomain.ParseView(raw)
		if !ok {
			respondError(c, http.StatusBadRequest, fmt.Errorf("unknown view %q", raw))
			return
		}
		entries = snap.View(view)
	}
	if raw := strings.TrimSpace(c.Query("payment")); raw != "" {
		payment := orderdomain.PaymentStatus(raw)
		if payment != orderdomain.PaymentPaid && payment != orderdomain.PaymentPending {
			respondError(c, http.StatusBadRequest, fmt.Errorf("unknown payment status %q", raw))
			return
		}
		entries = filterPayment(entries, payment)
	}
	c.JSON(http.StatusOK, orderhttpmapper.OrderList{
		Freshness: orderhttpmapper.FromStatus(snap, api.status()),
		Orders:    orderhttpmapper.FromAnnotatedList(entries),
	})
}

// Get /v1/admin/orders/status
// Reports list freshness
func (api *AdminOrdersAPI) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, orderhttpmapper.FromStatus(api.snapshots.Current(), api.status()))
}

// Post /v1/admin/orders/refresh
// Runs a reconciliation cycle now
func (api *AdminOrdersAPI) RefreshOrders(c *gin.Context) {
	if api.refresher == nil {
		respondError(c, http.StatusInternalServerError, errors.New("refresh is not configured"))
		return
	}
	err := api.refresher.Refresh(c.Request.Context())
	var partial *ordersapp.PartialMergeWarning
	if err != nil && !errors.As(err, &partial) {
		respondServiceError(c, err)
		return
	}
	// A partial cycle still published; the freshness block carries the warning.
	snap := api.snapshots.Current()
	c.JSON(http.StatusOK, orderhttpmapper.OrderList{
		Freshness: orderhttpmapper.FromStatus(snap, api.status()),
		Orders:    orderhttpmapper.FromAnnotatedList(snap.Orders),
	})
}

// Post /v1/admin/orders/:orderId/approve
// Approves a paid pending order
func (api *AdminOrdersAPI) ApproveOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "orderId")
	if !ok {
		return
	}
	var payload orderhttpmapper.ApproveRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	result, err := api.lifecycle.Approve(c.Request.Context(), id, strings.TrimSpace(payload.ApproverID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromResult(result))
}

// Post /v1/admin/orders/:orderId/ready
// Marks an approved order ready and hands it to logistics
func (api *AdminOrdersAPI) MarkOrderReady(c *gin.Context) {
	id, ok := parseIDParam(c, "orderId")
	if !ok {
		return
	}
	result, err := api.lifecycle.MarkReady(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromResult(result))
}

// Post /v1/admin/orders/:orderId/ship
// Marks a ready order shipped
func (api *AdminOrdersAPI) MarkOrderShipped(c *gin.Context) {
	id, ok := parseIDParam(c, "orderId")
	if !ok {
		return
	}
	result, err := api.lifecycle.MarkShipped(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromResult(result))
}

// Delete /v1/admin/orders/:orderId
// Deletes an order in any status
func (api *AdminOrdersAPI) DeleteOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "orderId")
	if !ok {
		return
	}
	result, err := api.lifecycle.Delete(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromResult(result))
}

func (api *AdminOrdersAPI) status() ordersapp.SchedulerStatus {
	if api.refresher == nil {
		return ordersapp.SchedulerStatus{State: ordersapp.StateIdle}
	}
	return api.refresher.Status()
}

func filterPayment(entries []ordersapp.AnnotatedOrder, payment orderdomain.PaymentStatus) []ordersapp.AnnotatedOrder {
	out := make([]ordersapp.AnnotatedOrder, 0, len(entries))
	for _, entry := range entries {
		if entry.Payment == payment {
			out = append(out, entry)
		}
	}
	return out
}

func parseIDParam(c *gin.Context, name string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		respondError(c, http.StatusBadRequest, fmt.Errorf("%s is required", name))
		return "", false
	}
	return id, true
}
