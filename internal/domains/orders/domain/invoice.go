package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the derived payment classification of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// DefaultInvoiceStatus is applied to ledger rows without an explicit status.
const DefaultInvoiceStatus = "paid"

// Invoice is a ledger entry. Its existence alone proves payment for OrderNumber.
type Invoice struct {
	ID          string
	OrderNumber string
	Status      string
	Amount      decimal.Decimal
	IssuedAt    time.Time
}

// NewInvoice normalizes ledger rows.
func NewInvoice(id, orderNumber, status string, amount decimal.Decimal, issuedAt time.Time) Invoice {
	status = strings.TrimSpace(status)
	if status == "" {
		status = DefaultInvoiceStatus
	}
	return Invoice{
		ID:          strings.TrimSpace(id),
		OrderNumber: strings.TrimSpace(orderNumber),
		Status:      status,
		Amount:      amount,
		IssuedAt:    issuedAt,
	}
}

// PaidByStatus reports whether the lifecycle status alone implies payment.
// Once an order reached approval it never regresses to pending.
func PaidByStatus(status Status) bool {
	switch NormalizeStatus(status) {
	case StatusApproved, StatusConfirmed, StatusCompleted, StatusReady, StatusShipped:
		return true
	default:
		return false
	}
}
