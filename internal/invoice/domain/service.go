package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medisync/clinicbilling/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type CreateInvoiceRequest struct {
	AppointmentID string           `json:"appointment_id" binding:"required"`
	Amount        *decimal.Decimal `json:"amount"`
	DueDate       *time.Time       `json:"due_date"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
}

// UpdateInvoiceRequest patches administrative fields; allowed only while
// the invoice is PENDING.
type UpdateInvoiceRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	DueDate       *time.Time       `json:"due_date"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
}

// RecordPaymentRequest registers one settlement attempt, e.g. the result
// reported by the PayPal gateway.
type RecordPaymentRequest struct {
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	Method           PaymentMethod   `json:"method" binding:"required"`
	Succeeded        bool            `json:"succeeded"`
	GatewayReference string          `json:"gateway_reference"`
}

type ListInvoicesRequest struct {
	pagination.Pagination
	Status    *InvoiceStatus
	PatientID *snowflake.ID
	DoctorID  *snowflake.ID
	DueFrom   *time.Time
	DueTo     *time.Time
	Overdue   *bool
}

type ListInvoicesResponse struct {
	Invoices []InvoiceView   `json:"data"`
	Meta     pagination.Meta `json:"meta"`
}

// Service is the invoice ledger: the sole mutator of invoice and payment
// state.
type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (InvoiceView, error)
	Update(ctx context.Context, id string, req UpdateInvoiceRequest) (InvoiceView, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (InvoiceView, error)
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
	MarkCashPaid(ctx context.Context, id string) (InvoiceView, error)
	RecordPayment(ctx context.Context, id string, req RecordPaymentRequest) (InvoiceView, error)
	Refund(ctx context.Context, id string) (InvoiceView, error)
	ListPayments(ctx context.Context, invoiceID string) ([]Payment, error)
}

var (
	ErrInvalidInvoiceID       = errors.New("invalid_invoice_id")
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrAppointmentNotFound    = errors.New("appointment_not_found")
	ErrAppointmentNotBillable = errors.New("appointment_not_billable")
	ErrInvoiceExists          = errors.New("invoice_exists")
	ErrInvoiceNotEditable     = errors.New("invoice_not_editable")
	ErrInvoiceNotCompleted    = errors.New("invoice_not_completed")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidDueDate         = errors.New("invalid_due_date")
	ErrInvalidPaymentMethod   = errors.New("invalid_payment_method")
	ErrAmountMismatch         = errors.New("amount_mismatch")
	ErrForbidden              = errors.New("forbidden")
	ErrMissingActor           = errors.New("missing_actor")
)
