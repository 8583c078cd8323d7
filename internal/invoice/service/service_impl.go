package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/medisync/clinicbilling/internal/actorctx"
	appointmentdomain "github.com/medisync/clinicbilling/internal/appointment/domain"
	"github.com/medisync/clinicbilling/internal/clock"
	"github.com/medisync/clinicbilling/internal/config"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"github.com/medisync/clinicbilling/internal/invoice/format"
	dberr "github.com/medisync/clinicbilling/pkg/db"
	"github.com/medisync/clinicbilling/pkg/db/option"
	"github.com/medisync/clinicbilling/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	currencies     format.Currencies
	defaultDueDays int

	invoicerepo     repository.Repository[invoicedomain.Invoice]
	paymentrepo     repository.Repository[invoicedomain.Payment]
	appointmentrepo repository.Repository[appointmentdomain.Appointment]

	locks *invoiceLocks
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,

		currencies: format.Currencies{
			Virtual:  p.Cfg.Billing.VirtualCurrency,
			InPerson: p.Cfg.Billing.InPersonCurrency,
		},
		defaultDueDays: p.Cfg.Billing.DefaultDueDays,

		invoicerepo:     repository.ProvideStore[invoicedomain.Invoice](p.DB),
		paymentrepo:     repository.ProvideStore[invoicedomain.Payment](p.DB),
		appointmentrepo: repository.ProvideStore[appointmentdomain.Appointment](p.DB),

		locks: newInvoiceLocks(),
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.InvoiceView, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	appointmentID, err := snowflake.ParseString(strings.TrimSpace(req.AppointmentID))
	if err != nil {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrAppointmentNotFound
	}

	appointment, err := s.appointmentrepo.FindOne(ctx, &appointmentdomain.Appointment{ID: appointmentID})
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if appointment == nil {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrAppointmentNotFound
	}
	if !appointment.Billable() {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrAppointmentNotBillable
	}
	if err := scopeAppointment(actor, appointment); err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	now := s.clock.Now()

	amount := appointment.Price
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount.IsNegative() || amount.IsZero() {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidAmount
	}

	dueDate := now.AddDate(0, 0, s.defaultDueDays)
	if req.DueDate != nil {
		dueDate = req.DueDate.UTC()
		if dueDate.Before(now) {
			return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidDueDate
		}
	}

	if req.PaymentMethod != nil && !validMethod(*req.PaymentMethod) {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidPaymentMethod
	}

	invoice := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		AppointmentID: appointmentID,
		Amount:        amount,
		Status:        invoicedomain.InvoiceStatusPending,
		PaymentMethod: req.PaymentMethod,
		DueDate:       dueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.invoicerepo.Create(ctx, &invoice); err != nil {
		if dberr.IsDuplicateKeyErr(err) {
			return invoicedomain.InvoiceView{}, invoicedomain.ErrInvoiceExists
		}
		return invoicedomain.InvoiceView{}, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("appointment_id", appointmentID.String()),
		zap.String("amount", amount.StringFixed(2)),
	)

	return s.view(invoice, appointment), nil
}

func (s *Service) Update(ctx context.Context, id string, req invoicedomain.UpdateInvoiceRequest) (invoicedomain.InvoiceView, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	release := s.locks.Acquire(invoiceID)
	defer release()

	var updated invoicedomain.Invoice
	var appointment *appointmentdomain.Appointment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, apt, err := s.loadInvoice(ctx, tx, invoiceID, actor)
		if err != nil {
			return err
		}
		if !invoice.Status.Editable() {
			return invoicedomain.ErrInvoiceNotEditable
		}

		now := s.clock.Now()
		if req.Amount != nil {
			if req.Amount.IsNegative() || req.Amount.IsZero() {
				return invoicedomain.ErrInvalidAmount
			}
			invoice.Amount = *req.Amount
		}
		if req.DueDate != nil {
			invoice.DueDate = req.DueDate.UTC()
		}
		if req.PaymentMethod != nil {
			if !validMethod(*req.PaymentMethod) {
				return invoicedomain.ErrInvalidPaymentMethod
			}
			invoice.PaymentMethod = req.PaymentMethod
		}
		invoice.UpdatedAt = now

		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}
		updated = *invoice
		appointment = apt
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	s.log.Info("invoice updated", zap.String("invoice_id", updated.ID.String()))
	return s.view(updated, appointment), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return err
	}
	if actor.Role != actorctx.RoleAdmin {
		return invoicedomain.ErrForbidden
	}

	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return err
	}

	release := s.locks.Acquire(invoiceID)
	defer release()

	// Payments are deliberately left in place: they remain the audit
	// trail for the settlement history.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Where("id = ?", invoiceID).Delete(&invoicedomain.Invoice{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return invoicedomain.ErrInvoiceNotFound
		}
		s.log.Info("invoice deleted", zap.String("invoice_id", invoiceID.String()))
		return nil
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	invoice, appointment, err := s.loadInvoice(ctx, s.db, invoiceID, actor)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	return s.view(*invoice, appointment), nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}

	page := req.Pagination.Normalize()

	filter := &invoicedomain.Invoice{}
	if req.Status != nil {
		filter.Status = *req.Status
	}

	options := []option.QueryOption{}
	if req.DueFrom != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "due_date",
			Operator: option.GTE,
			Value:    *req.DueFrom,
		}))
	}
	if req.DueTo != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "due_date",
			Operator: option.LTE,
			Value:    *req.DueTo,
		}))
	}
	if req.Overdue != nil && *req.Overdue {
		// Only a pending invoice can be overdue; a settled one keeps its
		// past due date but is not owed.
		options = append(options,
			option.ApplyOperator(option.Condition{
				Field:    "status",
				Operator: option.EQ,
				Value:    invoicedomain.InvoiceStatusPending,
			}),
			option.ApplyOperator(option.Condition{
				Field:    "due_date",
				Operator: option.LT,
				Value:    s.clock.Now(),
			}))
	}

	// Patient/doctor filters and doctor scoping resolve through the
	// appointment, so restrict by appointment ids first.
	doctorID := req.DoctorID
	if actor.Role == actorctx.RoleDoctor {
		doctorID = &actor.DoctorID
	}
	if req.PatientID != nil || doctorID != nil {
		appointmentIDs, err := s.appointmentIDs(ctx, req.PatientID, doctorID)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, err
		}
		if len(appointmentIDs) == 0 {
			return invoicedomain.ListInvoicesResponse{
				Invoices: []invoicedomain.InvoiceView{},
				Meta:     paginationMeta(page, 0),
			}, nil
		}
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "appointment_id",
			Operator: option.IN,
			Value:    appointmentIDs,
		}))
	}

	total, err := s.invoicerepo.Count(ctx, filter, options...)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}

	listOptions := append(options,
		option.WithOrder("created_at", "DESC"),
		option.WithLimitOffset(page.Limit, page.Offset()),
	)
	items, err := s.invoicerepo.Find(ctx, filter, listOptions...)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}

	views, err := s.views(ctx, items)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}

	return invoicedomain.ListInvoicesResponse{
		Invoices: views,
		Meta:     paginationMeta(page, total),
	}, nil
}

// MarkCashPaid settles a pending (or previously failed) invoice in cash.
// Calling it on an already completed invoice is a no-op success, so a
// retry after an unknown outcome never produces a duplicate settlement.
func (s *Service) MarkCashPaid(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	release := s.locks.Acquire(invoiceID)
	defer release()

	var settled invoicedomain.Invoice
	var appointment *appointmentdomain.Appointment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, apt, err := s.loadInvoice(ctx, tx, invoiceID, actor)
		if err != nil {
			return err
		}

		if invoice.Status == invoicedomain.InvoiceStatusCompleted {
			settled = *invoice
			appointment = apt
			return nil
		}

		next, ok := invoicedomain.NextStatus(invoice.Status, invoicedomain.ActionSettle)
		if !ok {
			return invoicedomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		payment := invoicedomain.Payment{
			ID:               s.genID.Generate(),
			InvoiceID:        invoice.ID,
			Amount:           invoice.Amount,
			Currency:         format.CurrencyForModality(apt.Modality, s.currencies),
			Status:           invoicedomain.PaymentStatusCompleted,
			Method:           invoicedomain.PaymentMethodCash,
			GatewayReference: "cash-" + uuid.NewString(),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.paymentrepo.WithTrx(tx).Create(ctx, &payment); err != nil {
			return err
		}

		method := invoicedomain.PaymentMethodCash
		invoice.Status = next
		invoice.PaidAt = &now
		invoice.PaymentID = &payment.ID
		if invoice.PaymentMethod == nil {
			invoice.PaymentMethod = &method
		}
		invoice.UpdatedAt = now

		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}
		settled = *invoice
		appointment = apt
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	s.log.Info("invoice settled in cash",
		zap.String("invoice_id", settled.ID.String()),
		zap.String("status", string(settled.Status)),
	)
	return s.view(settled, appointment), nil
}

func (s *Service) RecordPayment(ctx context.Context, id string, req invoicedomain.RecordPaymentRequest) (invoicedomain.InvoiceView, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if !validMethod(req.Method) {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidPaymentMethod
	}
	if req.Amount.IsNegative() {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidAmount
	}

	release := s.locks.Acquire(invoiceID)
	defer release()

	var result invoicedomain.Invoice
	var appointment *appointmentdomain.Appointment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, apt, err := s.loadInvoice(ctx, tx, invoiceID, actor)
		if err != nil {
			return err
		}

		// Retried settlement against an already completed invoice is a
		// no-op success; nothing is recorded twice.
		if req.Succeeded && invoice.Status == invoicedomain.InvoiceStatusCompleted {
			result = *invoice
			appointment = apt
			return nil
		}

		action := invoicedomain.ActionFail
		paymentStatus := invoicedomain.PaymentStatusFailed
		if req.Succeeded {
			// Reconciliation: the settling amount must equal the invoice
			// amount exactly, in the invoice's derived currency.
			if !req.Amount.Equal(invoice.Amount) {
				return invoicedomain.ErrAmountMismatch
			}
			action = invoicedomain.ActionSettle
			paymentStatus = invoicedomain.PaymentStatusCompleted
		}

		next, ok := invoicedomain.NextStatus(invoice.Status, action)
		if !ok {
			return invoicedomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		payment := invoicedomain.Payment{
			ID:               s.genID.Generate(),
			InvoiceID:        invoice.ID,
			Amount:           req.Amount,
			Currency:         format.CurrencyForModality(apt.Modality, s.currencies),
			Status:           paymentStatus,
			Method:           req.Method,
			GatewayReference: req.GatewayReference,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.paymentrepo.WithTrx(tx).Create(ctx, &payment); err != nil {
			return err
		}

		invoice.Status = next
		if req.Succeeded {
			invoice.PaidAt = &now
			invoice.PaymentID = &payment.ID
			if invoice.PaymentMethod == nil {
				invoice.PaymentMethod = &req.Method
			}
		}
		invoice.UpdatedAt = now

		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}
		result = *invoice
		appointment = apt
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	s.log.Info("payment recorded",
		zap.String("invoice_id", result.ID.String()),
		zap.String("status", string(result.Status)),
		zap.Bool("succeeded", req.Succeeded),
	)
	return s.view(result, appointment), nil
}

func (s *Service) Refund(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if actor.Role != actorctx.RoleAdmin {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrForbidden
	}

	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	release := s.locks.Acquire(invoiceID)
	defer release()

	var refunded invoicedomain.Invoice
	var appointment *appointmentdomain.Appointment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, apt, err := s.loadInvoice(ctx, tx, invoiceID, actor)
		if err != nil {
			return err
		}

		next, ok := invoicedomain.NextStatus(invoice.Status, invoicedomain.ActionRefund)
		if !ok {
			if invoice.Status != invoicedomain.InvoiceStatusCompleted {
				return invoicedomain.ErrInvoiceNotCompleted
			}
			return invoicedomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		// PaidAt stays: the settlement happened, the refund does not
		// rewrite history.
		invoice.Status = next
		invoice.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}

		if invoice.PaymentID != nil {
			if err := tx.WithContext(ctx).
				Model(&invoicedomain.Payment{}).
				Where("id = ?", *invoice.PaymentID).
				Updates(map[string]any{
					"status":     invoicedomain.PaymentStatusRefunded,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
		}
		refunded = *invoice
		appointment = apt
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	s.log.Info("invoice refunded", zap.String("invoice_id", refunded.ID.String()))
	return s.view(refunded, appointment), nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID string) ([]invoicedomain.Payment, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	id, err := parseInvoiceID(invoiceID)
	if err != nil {
		return nil, err
	}

	// The invoice may already be deleted; payments are still readable by
	// an administrator as the audit trail.
	if actor.Role != actorctx.RoleAdmin {
		if _, _, err := s.loadInvoice(ctx, s.db, id, actor); err != nil {
			return nil, err
		}
	}

	items, err := s.paymentrepo.Find(ctx, &invoicedomain.Payment{InvoiceID: id},
		option.WithOrder("created_at", "ASC"))
	if err != nil {
		return nil, err
	}

	payments := make([]invoicedomain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}
	return payments, nil
}
