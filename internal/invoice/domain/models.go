// Package domain contains the billing ledger entities: invoices and the
// payments recorded against them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	appointmentdomain "github.com/medisync/clinicbilling/internal/appointment/domain"
	"github.com/medisync/clinicbilling/internal/invoice/aging"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusCompleted InvoiceStatus = "COMPLETED"
	InvoiceStatusFailed    InvoiceStatus = "FAILED"
	InvoiceStatusRefunded  InvoiceStatus = "REFUNDED"
)

// PaymentStatus represents the outcome of a settlement attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// PaymentMethod is the closed set of accepted settlement methods.
type PaymentMethod string

const (
	PaymentMethodPayPal PaymentMethod = "PAYPAL"
	PaymentMethodCash   PaymentMethod = "CASH"
)

// Invoice is the billing record for exactly one appointment. Its display
// currency is derived from the appointment's modality at read time, never
// stored here.
type Invoice struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	AppointmentID snowflake.ID    `json:"appointment_id" gorm:"not null;uniqueIndex:ux_invoice_appointment"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Status        InvoiceStatus   `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	PaymentMethod *PaymentMethod  `json:"payment_method,omitempty" gorm:"type:text"`
	PaymentID     *snowflake.ID   `json:"payment_id,omitempty" gorm:"index"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	DueDate       time.Time       `json:"due_date" gorm:"not null;index"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// OverdueForDisplay reports the overdue badge state: only a PENDING
// invoice is ever shown as overdue, regardless of its due date.
func (i Invoice) OverdueForDisplay(now time.Time) bool {
	return i.Status == InvoiceStatusPending && aging.IsOverdue(i.DueDate, now)
}

// DaysOverdueForDisplay mirrors OverdueForDisplay for the day count.
func (i Invoice) DaysOverdueForDisplay(now time.Time) int {
	if i.Status != InvoiceStatusPending {
		return 0
	}
	return aging.DaysOverdue(i.DueDate, now)
}

// Payment records one settlement attempt against an invoice. Payments
// survive invoice deletion as the audit trail.
type Payment struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	InvoiceID        snowflake.ID      `json:"invoice_id" gorm:"not null;index"`
	Amount           decimal.Decimal   `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency         string            `json:"currency" gorm:"type:text;not null"`
	Status           PaymentStatus     `json:"status" gorm:"type:text;not null"`
	Method           PaymentMethod     `json:"method" gorm:"type:text;not null"`
	GatewayReference string            `json:"gateway_reference" gorm:"type:text"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// InvoiceView is the read model handed to presentation: the raw invoice
// plus the values derived from its appointment and the clock.
type InvoiceView struct {
	Invoice
	Currency      string                       `json:"currency"`
	AmountDisplay string                       `json:"amount_display"`
	IsOverdue     bool                         `json:"is_overdue"`
	DaysOverdue   int                          `json:"days_overdue"`
	Modality      appointmentdomain.Modality   `json:"modality"`
	PatientID     snowflake.ID                 `json:"patient_id"`
	DoctorID      snowflake.ID                 `json:"doctor_id"`
	Appointment   *appointmentdomain.Appointment `json:"-"`
}
