// Package domain defines the billing statistics read models. All values
// are derived on demand from the ledger tables; nothing here is stored.
package domain

import (
	"context"
	"errors"

	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"github.com/shopspring/decimal"
)

// MonthlyRevenue is one bucket of the settlement series. Month uses the
// "YYYY-MM" form.
type MonthlyRevenue struct {
	Month        string          `json:"month"`
	Revenue      decimal.Decimal `json:"revenue"`
	InvoiceCount int64           `json:"invoice_count"`
	PaymentCount int64           `json:"payment_count"`
}

// Stats is the aggregate snapshot rendered by the billing dashboard. A
// doctor's snapshot covers only invoices for their own appointments.
type Stats struct {
	TotalInvoices  int64                                      `json:"total_invoices"`
	InvoiceCounts  map[invoicedomain.InvoiceStatus]int64      `json:"invoice_counts"`
	TotalRevenue   decimal.Decimal                            `json:"total_revenue"`
	PendingRevenue decimal.Decimal                            `json:"pending_revenue"`
	OverdueCount   int64                                      `json:"overdue_count"`

	PaymentCounts       map[invoicedomain.PaymentStatus]int64 `json:"payment_counts"`
	PaymentMethodCounts map[invoicedomain.PaymentMethod]int64 `json:"payment_method_counts"`
	CompletedPaidTotal  decimal.Decimal                       `json:"completed_paid_total"`

	Monthly []MonthlyRevenue `json:"monthly"`
}

type Service interface {
	Snapshot(ctx context.Context) (Stats, error)
}

var ErrMissingActor = errors.New("missing_actor")
