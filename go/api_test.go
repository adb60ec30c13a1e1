package orderserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	orderhttpmapper "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/http/mapper"
	ordersmemory "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/memory"
	ordersapp "github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	orderdomain "github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
	apierrors "github.com/Apurer/costume-order-engine/internal/shared/errors"
)

// stubRefresher runs a cycle against the memory store on demand.
type stubRefresher struct {
	reconciler *ordersapp.Reconciler
	snapshots  *ordersapp.SnapshotStore
	err        error
	calls      int
}

func (r *stubRefresher) Refresh(ctx context.Context) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	cycle, err := r.reconciler.RunCycle(ctx)
	if cycle != nil {
		r.snapshots.Publish(cycle,
			orderdomain.MembershipFingerprint(cycle.Orders, orderdomain.FingerprintOrdered),
			orderdomain.StatusFingerprint(cycle.Orders, cycle.Payments))
	}
	return err
}

func (r *stubRefresher) Status() ordersapp.SchedulerStatus {
	return ordersapp.SchedulerStatus{State: ordersapp.StateIdle, LastSuccessAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
}

type stubNotifier struct{ orders []string }

func (n *stubNotifier) NotifyLogistics(_ context.Context, order *orderdomain.Order) error {
	n.orders = append(n.orders, order.ID)
	return nil
}

type apiFixture struct {
	store     *ordersmemory.Store
	refresher *stubRefresher
	notifier  *stubNotifier
	router    *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := ordersmemory.NewStore()
	pending, err := orderdomain.NewStandardOrder("o1", "EMPI-1",
		orderdomain.Customer{Name: "Ada", Email: "ada@example.com"},
		[]orderdomain.OrderItem{{Name: "Pirate coat", Quantity: 1, Price: decimal.NewFromInt(18000), Mode: orderdomain.ModeBuy}},
		decimal.NewFromInt(19350), orderdomain.StatusPending, created)
	require.NoError(t, err)
	unpaid, err := orderdomain.NewStandardOrder("o2", "EMPI-2",
		orderdomain.Customer{Name: "Bo", Email: "bo@example.com"},
		[]orderdomain.OrderItem{{Name: "Witch hat", Quantity: 2, Price: decimal.NewFromInt(1000), Mode: orderdomain.ModeRent}},
		decimal.NewFromInt(2150), orderdomain.StatusPending, created)
	require.NoError(t, err)
	approved, err := orderdomain.NewCustomOrder("c1", "CUST-1",
		orderdomain.Customer{Name: "Ada", Email: "ADA@example.com"},
		orderdomain.CustomDetails{Description: "Dragon suit", Quantity: 1, QuotedPrice: decimal.NewFromInt(5000)},
		decimal.NewFromInt(5375), orderdomain.StatusApproved, created)
	require.NoError(t, err)
	require.NoError(t, store.AddOrder(pending))
	require.NoError(t, store.AddOrder(unpaid))
	require.NoError(t, store.AddOrder(approved))
	store.AddInvoice(orderdomain.NewInvoice("inv-1", "EMPI-1", "", decimal.NewFromInt(19350), created))

	snapshots := ordersapp.NewSnapshotStore(nil)
	refresher := &stubRefresher{
		reconciler: ordersapp.NewReconciler(store, store, store),
		snapshots:  snapshots,
	}
	require.NoError(t, refresher.Refresh(context.Background()))
	refresher.calls = 0

	notifier := &stubNotifier{}
	handoff := ordersapp.NewHandoffCoordinator(notifier, ordersmemory.NewHandoffStore())
	var lifecycle ordersports.Lifecycle = ordersapp.NewController(store, store, snapshots, ordersapp.WithLogisticsHandoff(handoff))

	router := NewRouterWithGinEngine(gin.New(), ApiHandleFunctions{
		AdminOrdersAPI: NewAdminOrdersAPI(snapshots, refresher, lifecycle),
		StorefrontAPI:  NewStorefrontAPI(snapshots),
	})
	return &apiFixture{store: store, refresher: refresher, notifier: notifier, router: router}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestListOrders_FiltersByViewAndPayment(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/v1/admin/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[orderhttpmapper.OrderList](t, w)
	require.Len(t, all.Orders, 3)
	require.Equal(t, "idle", all.Freshness.State)
	require.NotNil(t, all.Freshness.LastSuccessAt)

	w = f.do(t, http.MethodGet, "/v1/admin/orders?view=pending&payment=paid", "")
	require.Equal(t, http.StatusOK, w.Code)
	paid := decode[orderhttpmapper.OrderList](t, w)
	require.Len(t, paid.Orders, 1)
	require.Equal(t, "EMPI-1", paid.Orders[0].OrderNumber)
	require.Equal(t, "pending", paid.Orders[0].View)

	w = f.do(t, http.MethodGet, "/v1/admin/orders?view=archive", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, apierrors.ContentTypeProblemJSON, w.Header().Get("Content-Type"))
}

func TestApproveOrder(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/admin/orders/o1/approve", `{"approverId":"admin-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[orderhttpmapper.TransitionResult](t, w)
	require.Equal(t, "approved", result.Status)
	require.False(t, result.NoOp)
	require.Equal(t, "admin-1", f.store.ApprovedBy("o1"))

	w = f.do(t, http.MethodPost, "/v1/admin/orders/o1/approve", `{"approverId":"admin-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decode[orderhttpmapper.TransitionResult](t, w).NoOp)
}

func TestApproveOrder_Rejections(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/admin/orders/o2/approve", `{"approverId":"admin-1"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	problem := decode[apierrors.ProblemDetail](t, w)
	require.Equal(t, "payment_required", problem.Extensions["reason"])

	w = f.do(t, http.MethodPost, "/v1/admin/orders/missing/approve", `{"approverId":"admin-1"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/v1/admin/orders/o1/approve", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/v1/admin/orders/o1/ship", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "transition_not_allowed", decode[apierrors.ProblemDetail](t, w).Extensions["reason"])
}

func TestMarkReadyAndShip(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/admin/orders/CUST-1/ready", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, []string{"c1"}, f.notifier.orders)

	w = f.do(t, http.MethodGet, "/v1/admin/orders?view=logistics", "")
	require.Len(t, decode[orderhttpmapper.OrderList](t, w).Orders, 1)

	w = f.do(t, http.MethodPost, "/v1/admin/orders/c1/ship", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "shipped", decode[orderhttpmapper.TransitionResult](t, w).Status)
}

func TestDeleteOrder(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodDelete, "/v1/admin/orders/o2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "deleted", decode[orderhttpmapper.TransitionResult](t, w).Status)

	w = f.do(t, http.MethodDelete, "/v1/admin/orders/ghost", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decode[orderhttpmapper.TransitionResult](t, w).NoOp)
}

func TestRefreshOrders(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/admin/orders/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, f.refresher.calls)

	f.refresher.err = &ordersapp.SourceFetchError{Source: ordersports.SourceInvoices, Err: errors.New("ledger down")}
	w = f.do(t, http.MethodPost, "/v1/admin/orders/refresh", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	problem := decode[apierrors.ProblemDetail](t, w)
	require.True(t, problem.Retryable)
	require.Equal(t, "invoices", problem.Extensions["sources"])
}

func TestStorefront(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/v1/orders?email=ada@example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]orderhttpmapper.Order](t, w), 2)

	w = f.do(t, http.MethodGet, "/v1/orders", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/v1/orders/EMPI-1/invoice", "")
	require.Equal(t, http.StatusOK, w.Code)
	invoice := decode[orderhttpmapper.Invoice](t, w)
	require.True(t, decimal.NewFromInt(19350).Equal(invoice.Breakdown.AmountDue))
	require.True(t, decimal.NewFromInt(19350).Equal(invoice.Breakdown.ComputedTotal))
	require.Equal(t, "paid", invoice.Order.PaymentStatus)

	w = f.do(t, http.MethodGet, "/v1/orders/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapOrderError(t *testing.T) {
	problem, ok := mapOrderError(&ordersapp.TransitionWriteError{Transition: orderdomain.TransitionApprove, OrderID: "o1", Err: errors.New("timeout")})
	require.True(t, ok)
	require.Equal(t, http.StatusBadGateway, problem.Status)
	require.True(t, problem.Retryable)

	problem, ok = mapOrderError(&ordersapp.LogisticsHandoffError{OrderID: "o1", Err: errors.New("down")})
	require.True(t, ok)
	require.Equal(t, "logistics", problem.Extensions["collaborator"])

	_, ok = mapOrderError(errors.New("other"))
	require.False(t, ok)
}
