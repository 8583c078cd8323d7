// Package pdf renders billing documents. It is the only package that
// knows about the PDF engine; callers hand it display-ready strings and
// get bytes back.
package pdf

import "context"

// InvoiceData is the display-ready content of one invoice document.
// Amounts arrive already formatted; no derivation happens here.
type InvoiceData struct {
	ClinicName    string
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	Status        string

	PatientRef      string
	DoctorRef       string
	AppointmentDate string
	Modality        string

	Description   string
	Currency      string
	AmountDisplay string

	PaymentMethod string
	PaidAt        string
}

type Renderer interface {
	RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
}
