package application

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
)

func TestResolvePayments(t *testing.T) {
	invoiced := standardOrder("o1", "EMPI-1", domain.StatusPending)
	unpaid := standardOrder("o2", "EMPI-2", domain.StatusPending)
	noNumber := standardOrder("o3", "", domain.StatusPending)
	approvedNoInvoice := standardOrder("o4", "EMPI-4", domain.StatusApproved)
	completed := customOrder("", "CUST-5", domain.StatusCompleted)
	confirmed := standardOrder("o6", "", domain.StatusConfirmed)

	orders := []*domain.Order{invoiced, unpaid, noNumber, approvedNoInvoice, completed, confirmed}
	payments := ResolvePayments(orders, []domain.Invoice{invoiceFor("EMPI-1"), invoiceFor("UNRELATED")})

	require.Equal(t, domain.PaymentPaid, payments[keyOf(invoiced)])
	require.Equal(t, domain.PaymentPending, payments[keyOf(unpaid)])
	require.Equal(t, domain.PaymentPending, payments[keyOf(noNumber)])
	require.Equal(t, domain.PaymentPaid, payments[keyOf(approvedNoInvoice)])
	require.Equal(t, domain.PaymentPaid, payments[keyOf(completed)])
	require.Equal(t, domain.PaymentPaid, payments[keyOf(confirmed)])
	require.Len(t, payments, len(orders))
}

func TestResolvePayment_InvoiceStatusIsIgnored(t *testing.T) {
	order := standardOrder("o1", "EMPI-1", domain.StatusPending)
	inv := invoiceFor("EMPI-1")
	inv.Status = "void"

	require.Equal(t, domain.PaymentPaid, ResolvePayment(order, InvoicedNumbers([]domain.Invoice{inv})))
	require.Equal(t, domain.PaymentPending, ResolvePayment(nil, nil))
}
