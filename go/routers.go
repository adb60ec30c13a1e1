package orderserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is the information for every URI.
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc gin.HandlerFunc
}

// ApiHandleFunctions groups the API handlers.
type ApiHandleFunctions struct {
	AdminOrdersAPI AdminOrdersAPI
	StorefrontAPI  StorefrontAPI
}

// NewRouter returns a new router.
func NewRouter(handleFunctions ApiHandleFunctions) *gin.Engine {
	return NewRouterWithGinEngine(gin.Default(), handleFunctions)
}

// NewRouterWithGinEngine adds the API routes to an existing engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions) *gin.Engine {
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		switch route.Method {
		case http.MethodGet:
			router.GET(route.Pattern, route.HandlerFunc)
		case http.MethodPost:
			router.POST(route.Pattern, route.HandlerFunc)
		case http.MethodDelete:
			router.DELETE(route.Pattern, route.HandlerFunc)
		}
	}
	return router
}

// DefaultHandleFunc answers routes without a handler.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

func getRoutes(h ApiHandleFunctions) []Route {
	return []Route{
		{"ListOrders", http.MethodGet, "/v1/admin/orders", h.AdminOrdersAPI.ListOrders},
		{"GetOrdersStatus", http.MethodGet, "/v1/admin/orders/status", h.AdminOrdersAPI.GetStatus},
		{"RefreshOrders", http.MethodPost, "/v1/admin/orders/refresh", h.AdminOrdersAPI.RefreshOrders},
		{"ApproveOrder", http.MethodPost, "/v1/admin/orders/:orderId/approve", h.AdminOrdersAPI.ApproveOrder},
		{"MarkOrderReady", http.MethodPost, "/v1/admin/orders/:orderId/ready", h.AdminOrdersAPI.MarkOrderReady},
		{"MarkOrderShipped", http.MethodPost, "/v1/admin/orders/:orderId/ship", h.AdminOrdersAPI.MarkOrderShipped},
		{"DeleteOrder", http.MethodDelete, "/v1/admin/orders/:orderId", h.AdminOrdersAPI.DeleteOrder},
		{"ListCustomerOrders", http.MethodGet, "/v1/orders", h.StorefrontAPI.ListCustomerOrders},
		{"GetOrder", http.MethodGet, "/v1/orders/:orderId", h.StorefrontAPI.GetOrder},
		{"GetOrderInvoice", http.MethodGet, "/v1/orders/:orderId/invoice", h.StorefrontAPI.GetInvoice},
	}
}
