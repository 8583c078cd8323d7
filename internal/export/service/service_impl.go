package service

import (
	"context"
	"fmt"

	"github.com/medisync/clinicbilling/internal/clock"
	"github.com/medisync/clinicbilling/internal/config"
	"github.com/medisync/clinicbilling/internal/export/domain"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"github.com/medisync/clinicbilling/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	Invoices invoicedomain.Service
	Renderer pdf.Renderer
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	appName  string
	invoices invoicedomain.Service
	renderer pdf.Renderer
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:      p.Log.Named("export.service"),
		clock:    p.Clock,
		appName:  p.Cfg.AppName,
		invoices: p.Invoices,
		renderer: p.Renderer,
	}
}

// InvoiceDocument renders the invoice as a PDF. The read goes through the
// ledger service, so the caller's scoping applies here too.
func (s *Service) InvoiceDocument(ctx context.Context, invoiceID string) (domain.Document, error) {
	view, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return domain.Document{}, err
	}

	data := pdf.InvoiceData{
		ClinicName:    s.appName,
		InvoiceNumber: view.ID.String(),
		IssueDate:     view.CreatedAt.Format("2006-01-02"),
		DueDate:       view.DueDate.Format("2006-01-02"),
		Status:        string(view.Status),
		PatientRef:    view.PatientID.String(),
		DoctorRef:     view.DoctorID.String(),
		Description:   "Medical consultation",
		Currency:      view.Currency,
		AmountDisplay: view.AmountDisplay,
	}
	if view.Appointment != nil {
		data.AppointmentDate = view.Appointment.Date.Format("2006-01-02 15:04")
		data.Modality = string(view.Appointment.Modality)
	}
	if view.PaidAt != nil {
		data.PaidAt = view.PaidAt.Format("2006-01-02")
	}
	if view.PaymentMethod != nil {
		data.PaymentMethod = string(*view.PaymentMethod)
	}

	content, err := s.renderer.RenderInvoice(ctx, data)
	if err != nil {
		s.log.Error("invoice render failed",
			zap.String("invoice_id", view.ID.String()),
			zap.Error(err),
		)
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	filename := fmt.Sprintf("invoice-%s-%s.pdf",
		view.ID.String(),
		s.clock.Now().Format("2006-01-02"),
	)
	return domain.Document{
		Content:     content,
		Filename:    filename,
		ContentType: "application/pdf",
	}, nil
}
