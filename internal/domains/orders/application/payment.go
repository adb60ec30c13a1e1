package application

import (
	"strings"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
)

// InvoicedNumbers returns the set of order numbers with at least one invoice.
func InvoicedNumbers(invoices []domain.Invoice) map[string]struct{} {
	set := make(map[string]struct{}, len(invoices))
	for _, inv := range invoices {
		if number := strings.TrimSpace(inv.OrderNumber); number != "" {
			set[number] = struct{}{}
		}
	}
	return set
}

// ResolvePayment classifies one order against the invoiced set.
func ResolvePayment(order *domain.Order, invoiced map[string]struct{}) domain.PaymentStatus {
	if order == nil {
		return domain.PaymentPending
	}
	if domain.PaidByStatus(order.Status) {
		return domain.PaymentPaid
	}
	number := strings.TrimSpace(order.OrderNumber)
	if number == "" {
		return domain.PaymentPending
	}
	if _, ok := invoiced[number]; ok {
		return domain.PaymentPaid
	}
	return domain.PaymentPending
}

// ResolvePayments classifies every identifiable order.
func ResolvePayments(orders []*domain.Order, invoices []domain.Invoice) map[domain.Key]domain.PaymentStatus {
	invoiced := InvoicedNumbers(invoices)
	payments := make(map[domain.Key]domain.PaymentStatus, len(orders))
	for _, order := range orders {
		key, ok := order.Key()
		if !ok {
			continue
		}
		payments[key] = ResolvePayment(order, invoiced)
	}
	return payments
}
