package logistics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

// IdempotencyHeader carries the hand-off key so repeated deliveries collapse upstream.
const IdempotencyHeader = "Idempotency-Key"

// ErrConflict means logistics already accepted a different payload under the same key.
var ErrConflict = errors.New("logistics idempotency conflict")

// ShipmentItem is one line of the pick list.
type ShipmentItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Mode     string `json:"mode"`
}

// ShipmentRequest is the body posted to the logistics collaborator.
type ShipmentRequest struct {
	OrderID         string          `json:"orderId,omitempty"`
	OrderNumber     string          `json:"orderNumber,omitempty"`
	Kind            string          `json:"kind"`
	CustomerName    string          `json:"customerName,omitempty"`
	CustomerEmail   string          `json:"customerEmail,omitempty"`
	CustomerPhone   string          `json:"customerPhone,omitempty"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty"`
	Items           []ShipmentItem  `json:"items"`
	RentalDays      int             `json:"rentalDays,omitempty"`
	CautionFee      decimal.Decimal `json:"cautionFee"`
}

type errorBody struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Client notifies the logistics service that an order is ready for dispatch.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient instantiates the logistics client. The transport is wrapped with otelhttp.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("logistics base URL is required")
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse logistics base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	instrumented := *httpClient
	instrumented.Transport = otelhttp.NewTransport(transport)
	return &Client{baseURL: parsed, http: &instrumented}, nil
}

// NotifyLogistics implements ports.LogisticsNotifier.
func (c *Client) NotifyLogistics(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return errors.New("order is nil")
	}
	return c.SubmitShipment(ctx, application.HandoffKey(order), RequestFromOrder(order))
}

// SubmitShipment posts the shipment under the idempotency key.
func (c *Client) SubmitShipment(ctx context.Context, key string, payload ShipmentRequest) error {
	if c == nil || c.http == nil {
		return errors.New("logistics client not configured")
	}
	reference := payload.OrderID
	if reference == "" {
		reference = payload.OrderNumber
	}
	if strings.TrimSpace(reference) == "" {
		return errors.New("logistics reference is required")
	}
	pathParam, err := runtime.StyleParamWithLocation("simple", false, "reference", runtime.ParamLocationPath, reference)
	if err != nil {
		return fmt.Errorf("encode logistics reference: %w", err)
	}
	endpoint := c.baseURL.String() + "shipments/" + pathParam

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode shipment: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build logistics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key = strings.TrimSpace(key); key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call logistics API: %w", err)
	}
	defer resp.Body.Close()

	switch status := resp.StatusCode; {
	case status == http.StatusOK || status == http.StatusCreated || status == http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, errorMessage(resp))
	case status >= http.StatusBadRequest:
		return fmt.Errorf("logistics API error: %s", errorMessage(resp))
	default:
		return fmt.Errorf("logistics API unexpected status: %s", resp.Status)
	}
}

// RequestFromOrder builds the pick list for an order.
func RequestFromOrder(order *domain.Order) ShipmentRequest {
	req := ShipmentRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Kind:          string(order.Kind),
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		CustomerPhone: order.Customer.Phone,
		Items:         []ShipmentItem{},
		RentalDays:    domain.RentalDays(order),
		CautionFee:    decimal.Zero,
	}
	if order.CautionFee != nil {
		req.CautionFee = *order.CautionFee
	}
	if order.Standard != nil {
		req.DeliveryAddress = order.Standard.DeliveryAddress
	}
	for _, item := range order.Items() {
		mode := item.Mode
		if mode == domain.ModeUnset {
			mode = domain.ModeRent
		}
		req.Items = append(req.Items, ShipmentItem{Name: item.Name, Quantity: item.Quantity, Mode: string(mode)})
	}
	if order.Custom != nil {
		quantity := order.Custom.Quantity
		if quantity < 1 {
			quantity = 1
		}
		req.Items = append(req.Items, ShipmentItem{Name: order.Custom.Description, Quantity: quantity, Mode: string(domain.ModeBuy)})
	}
	return req
}

func errorMessage(resp *http.Response) string {
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(body.Status); msg != "" {
			return msg
		}
	}
	return resp.Status
}

var _ ports.LogisticsNotifier = (*Client)(nil)
