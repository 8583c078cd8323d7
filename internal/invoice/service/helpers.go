package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/medisync/clinicbilling/internal/actorctx"
	appointmentdomain "github.com/medisync/clinicbilling/internal/appointment/domain"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"github.com/medisync/clinicbilling/internal/invoice/format"
	"github.com/medisync/clinicbilling/pkg/db/option"
	"github.com/medisync/clinicbilling/pkg/db/pagination"
	"github.com/medisync/clinicbilling/pkg/repository"
	"gorm.io/gorm"
)

func actorFromContext(ctx context.Context) (actorctx.Actor, error) {
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return actorctx.Actor{}, invoicedomain.ErrMissingActor
	}
	return actor, nil
}

func parseInvoiceID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return id, nil
}

func validMethod(m invoicedomain.PaymentMethod) bool {
	switch m {
	case invoicedomain.PaymentMethodPayPal, invoicedomain.PaymentMethodCash:
		return true
	default:
		return false
	}
}

// scopeAppointment rejects a doctor acting on another doctor's
// appointment.
func scopeAppointment(actor actorctx.Actor, apt *appointmentdomain.Appointment) error {
	if actor.Role == actorctx.RoleDoctor && apt.DoctorID != actor.DoctorID {
		return invoicedomain.ErrForbidden
	}
	return nil
}

// loadInvoice fetches an invoice and its appointment inside db, which may
// be a transaction. A doctor asking for another doctor's invoice gets
// not-found rather than forbidden, so existence never leaks.
func (s *Service) loadInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, actor actorctx.Actor) (*invoicedomain.Invoice, *appointmentdomain.Appointment, error) {
	invoices := repository.ProvideStore[invoicedomain.Invoice](db)
	appointments := repository.ProvideStore[appointmentdomain.Appointment](db)

	invoice, err := invoices.FindOne(ctx, &invoicedomain.Invoice{ID: id})
	if err != nil {
		return nil, nil, err
	}
	if invoice == nil {
		return nil, nil, invoicedomain.ErrInvoiceNotFound
	}

	appointment, err := appointments.FindOne(ctx, &appointmentdomain.Appointment{ID: invoice.AppointmentID})
	if err != nil {
		return nil, nil, err
	}
	if appointment == nil {
		return nil, nil, invoicedomain.ErrAppointmentNotFound
	}

	if actor.Role == actorctx.RoleDoctor && appointment.DoctorID != actor.DoctorID {
		return nil, nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, appointment, nil
}

// view builds the read model for one invoice. The appointment may be nil
// for callers that could not resolve it; derivation then falls back to
// in-person defaults.
func (s *Service) view(invoice invoicedomain.Invoice, appointment *appointmentdomain.Appointment) invoicedomain.InvoiceView {
	now := s.clock.Now()

	modality := appointmentdomain.ModalityInPerson
	var patientID, doctorID snowflake.ID
	if appointment != nil {
		modality = appointment.Modality
		patientID = appointment.PatientID
		doctorID = appointment.DoctorID
	}

	currency := format.CurrencyForModality(modality, s.currencies)
	return invoicedomain.InvoiceView{
		Invoice:       invoice,
		Currency:      currency,
		AmountDisplay: format.FormatAmount(invoice.Amount, currency),
		IsOverdue:     invoice.OverdueForDisplay(now),
		DaysOverdue:   invoice.DaysOverdueForDisplay(now),
		Modality:      modality,
		PatientID:     patientID,
		DoctorID:      doctorID,
		Appointment:   appointment,
	}
}

// views batch-loads the appointments behind a page of invoices and builds
// the read models in input order.
func (s *Service) views(ctx context.Context, invoices []*invoicedomain.Invoice) ([]invoicedomain.InvoiceView, error) {
	ids := make([]snowflake.ID, 0, len(invoices))
	for _, invoice := range invoices {
		if invoice != nil {
			ids = append(ids, invoice.AppointmentID)
		}
	}

	byID := map[snowflake.ID]*appointmentdomain.Appointment{}
	if len(ids) > 0 {
		appointments, err := s.appointmentrepo.Find(ctx, &appointmentdomain.Appointment{},
			option.ApplyOperator(option.Condition{
				Field:    "id",
				Operator: option.IN,
				Value:    ids,
			}))
		if err != nil {
			return nil, err
		}
		for _, apt := range appointments {
			if apt != nil {
				byID[apt.ID] = apt
			}
		}
	}

	views := make([]invoicedomain.InvoiceView, 0, len(invoices))
	for _, invoice := range invoices {
		if invoice == nil {
			continue
		}
		views = append(views, s.view(*invoice, byID[invoice.AppointmentID]))
	}
	return views, nil
}

func (s *Service) appointmentIDs(ctx context.Context, patientID, doctorID *snowflake.ID) ([]snowflake.ID, error) {
	filter := &appointmentdomain.Appointment{}
	if patientID != nil {
		filter.PatientID = *patientID
	}
	if doctorID != nil {
		filter.DoctorID = *doctorID
	}

	appointments, err := s.appointmentrepo.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(appointments))
	for _, apt := range appointments {
		if apt != nil {
			ids = append(ids, apt.ID)
		}
	}
	return ids, nil
}

func paginationMeta(page pagination.Pagination, total int64) pagination.Meta {
	return pagination.NewMeta(page, total)
}
