package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	appointmentdomain "github.com/medisync/clinicbilling/internal/appointment/domain"
	"github.com/medisync/clinicbilling/internal/clock"
	exportdomain "github.com/medisync/clinicbilling/internal/export/domain"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"github.com/medisync/clinicbilling/internal/providers/pdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubInvoices struct {
	invoicedomain.Service

	view invoicedomain.InvoiceView
	err  error
}

func (s *stubInvoices) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	return s.view, s.err
}

type stubRenderer struct {
	data pdf.InvoiceData
	err  error
}

func (r *stubRenderer) RenderInvoice(ctx context.Context, data pdf.InvoiceData) ([]byte, error) {
	r.data = data
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7"), nil
}

func testView(t *testing.T) invoicedomain.InvoiceView {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	paidAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	method := invoicedomain.PaymentMethodCash
	apt := &appointmentdomain.Appointment{
		ID:       node.Generate(),
		Date:     time.Date(2026, 2, 25, 9, 30, 0, 0, time.UTC),
		Modality: appointmentdomain.ModalityVirtual,
	}
	return invoicedomain.InvoiceView{
		Invoice: invoicedomain.Invoice{
			ID:            node.Generate(),
			Amount:        decimal.NewFromInt(50),
			Status:        invoicedomain.InvoiceStatusCompleted,
			PaymentMethod: &method,
			PaidAt:        &paidAt,
			DueDate:       time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
			CreatedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		Currency:      "USD",
		AmountDisplay: "$50.00",
		Modality:      appointmentdomain.ModalityVirtual,
		Appointment:   apt,
	}
}

func TestInvoiceDocument(t *testing.T) {
	view := testView(t)
	renderer := &stubRenderer{}
	svc := &Service{
		log:      zaptest.NewLogger(t),
		clock:    clock.NewFakeClock(time.Date(2026, 3, 5, 16, 0, 0, 0, time.UTC)),
		appName:  "MediSync Clinic",
		invoices: &stubInvoices{view: view},
		renderer: renderer,
	}

	doc, err := svc.InvoiceDocument(context.Background(), view.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "invoice-"+view.ID.String()+"-2026-03-05.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.NotEmpty(t, doc.Content)

	assert.Equal(t, "MediSync Clinic", renderer.data.ClinicName)
	assert.Equal(t, "$50.00", renderer.data.AmountDisplay)
	assert.Equal(t, "USD", renderer.data.Currency)
	assert.Equal(t, "2026-03-31", renderer.data.DueDate)
	assert.Equal(t, "2026-03-02", renderer.data.PaidAt)
	assert.Equal(t, "CASH", renderer.data.PaymentMethod)
	assert.Equal(t, "VIRTUAL", renderer.data.Modality)
}

func TestInvoiceDocumentErrors(t *testing.T) {
	view := testView(t)

	t.Run("ledger error passes through", func(t *testing.T) {
		svc := &Service{
			log:      zaptest.NewLogger(t),
			clock:    clock.SystemClock{},
			invoices: &stubInvoices{err: invoicedomain.ErrInvoiceNotFound},
			renderer: &stubRenderer{},
		}
		_, err := svc.InvoiceDocument(context.Background(), "1")
		assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
	})

	t.Run("render failure is wrapped", func(t *testing.T) {
		svc := &Service{
			log:      zaptest.NewLogger(t),
			clock:    clock.SystemClock{},
			invoices: &stubInvoices{view: view},
			renderer: &stubRenderer{err: errors.New("font missing")},
		}
		_, err := svc.InvoiceDocument(context.Background(), view.ID.String())
		assert.ErrorIs(t, err, exportdomain.ErrRenderFailed)
	})
}
