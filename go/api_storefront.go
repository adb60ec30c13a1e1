package orderserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	orderhttpmapper "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/http/mapper"
	ordersapp "github.com/Apurer/costume-order-engine/internal/domains/orders/application"
)

// StorefrontAPI serves buyers their own orders and invoices from the reconciled list.
type StorefrontAPI struct {
	snapshots SnapshotReader
}

// NewStorefrontAPI creates the buyer-facing API.
func NewStorefrontAPI(snapshots SnapshotReader) StorefrontAPI {
	return StorefrontAPI{snapshots: snapshots}
}

// Get /v1/orders
// Lists the orders placed with an email address
func (api *StorefrontAPI) ListCustomerOrders(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		respondError(c, http.StatusBadRequest, fmt.Errorf("email is required"))
		return
	}
	entries := api.snapshots.Current().ForCustomer(email)
	c.JSON(http.StatusOK, orderhttpmapper.FromAnnotatedList(entries))
}

// Get /v1/orders/:orderId
// Finds an order by id or order number
func (api *StorefrontAPI) GetOrder(c *gin.Context) {
	entry, ok := api.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromAnnotated(entry))
}

// Get /v1/orders/:orderId/invoice
// Returns the price breakdown of an order
func (api *StorefrontAPI) GetInvoice(c *gin.Context) {
	entry, ok := api.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromInvoice(entry))
}

func (api *StorefrontAPI) lookup(c *gin.Context) (ordersapp.AnnotatedOrder, bool) {
	id, ok := parseIDParam(c, "orderId")
	if !ok {
		return ordersapp.AnnotatedOrder{}, false
	}
	entry, found := api.snapshots.Current().Lookup(id)
	if !found {
		respondServiceError(c, fmt.Errorf("%w: %s", ordersapp.ErrOrderNotFound, id))
		return ordersapp.AnnotatedOrder{}, false
	}
	return entry, true
}
