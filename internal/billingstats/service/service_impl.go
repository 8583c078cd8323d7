package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medisync/clinicbilling/internal/actorctx"
	"github.com/medisync/clinicbilling/internal/billingstats/domain"
	"github.com/medisync/clinicbilling/internal/clock"
	"github.com/medisync/clinicbilling/internal/config"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	windowMonths int
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("billingstats.service"),
		clock:        p.Clock,
		windowMonths: p.Cfg.Billing.StatsWindowMonths,
	}
}

type invoiceAggRow struct {
	Status invoicedomain.InvoiceStatus
	Count  int64
	Total  decimal.Decimal
}

type paymentAggRow struct {
	Status invoicedomain.PaymentStatus
	Method invoicedomain.PaymentMethod
	Count  int64
	Total  decimal.Decimal
}

type monthlyRow struct {
	PaidAt time.Time
	Amount decimal.Decimal
}

type monthlyPaymentRow struct {
	CreatedAt time.Time
	Count     int64
}

// Snapshot computes the dashboard aggregates against the live ledger
// tables. Doctor actors are scoped through the appointment join.
func (s *Service) Snapshot(ctx context.Context) (domain.Stats, error) {
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.Stats{}, domain.ErrMissingActor
	}

	scope := ""
	scopeArgs := []any{}
	if actor.Role == actorctx.RoleDoctor {
		scope = " AND a.doctor_id = ?"
		scopeArgs = append(scopeArgs, actor.DoctorID)
	}

	now := s.clock.Now()
	stats := domain.Stats{
		InvoiceCounts:       map[invoicedomain.InvoiceStatus]int64{},
		TotalRevenue:        decimal.Zero,
		PendingRevenue:      decimal.Zero,
		PaymentCounts:       map[invoicedomain.PaymentStatus]int64{},
		PaymentMethodCounts: map[invoicedomain.PaymentMethod]int64{},
		CompletedPaidTotal:  decimal.Zero,
	}

	var invoiceRows []invoiceAggRow
	err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT i.status AS status, COUNT(*) AS count, COALESCE(SUM(i.amount), 0) AS total
		FROM invoices i
		JOIN appointments a ON a.id = i.appointment_id
		WHERE 1=1%s
		GROUP BY i.status`, scope), scopeArgs...).Scan(&invoiceRows).Error
	if err != nil {
		return domain.Stats{}, err
	}
	for _, row := range invoiceRows {
		stats.InvoiceCounts[row.Status] = row.Count
		stats.TotalInvoices += row.Count
		switch row.Status {
		case invoicedomain.InvoiceStatusCompleted:
			stats.TotalRevenue = stats.TotalRevenue.Add(row.Total)
		case invoicedomain.InvoiceStatusPending:
			stats.PendingRevenue = stats.PendingRevenue.Add(row.Total)
		}
	}

	overdueArgs := append([]any{invoicedomain.InvoiceStatusPending, now}, scopeArgs...)
	err = s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT COUNT(*)
		FROM invoices i
		JOIN appointments a ON a.id = i.appointment_id
		WHERE i.status = ? AND i.due_date < ?%s`, scope), overdueArgs...).
		Scan(&stats.OverdueCount).Error
	if err != nil {
		return domain.Stats{}, err
	}

	var paymentRows []paymentAggRow
	err = s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT p.status AS status, p.method AS method, COUNT(*) AS count, COALESCE(SUM(p.amount), 0) AS total
		FROM payments p
		JOIN invoices i ON i.id = p.invoice_id
		JOIN appointments a ON a.id = i.appointment_id
		WHERE 1=1%s
		GROUP BY p.status, p.method`, scope), scopeArgs...).Scan(&paymentRows).Error
	if err != nil {
		return domain.Stats{}, err
	}
	for _, row := range paymentRows {
		stats.PaymentCounts[row.Status] += row.Count
		stats.PaymentMethodCounts[row.Method] += row.Count
		if row.Status == invoicedomain.PaymentStatusCompleted {
			stats.CompletedPaidTotal = stats.CompletedPaidTotal.Add(row.Total)
		}
	}

	monthly, err := s.monthlySeries(ctx, scope, scopeArgs, now)
	if err != nil {
		return domain.Stats{}, err
	}
	stats.Monthly = monthly

	s.log.Debug("stats snapshot computed",
		zap.Int64("total_invoices", stats.TotalInvoices),
		zap.String("role", string(actor.Role)),
	)
	return stats, nil
}

// monthlySeries buckets settled revenue by calendar month in Go rather
// than in SQL, so the same query runs on every supported dialect.
func (s *Service) monthlySeries(ctx context.Context, scope string, scopeArgs []any, now time.Time) ([]domain.MonthlyRevenue, error) {
	months := s.windowMonths
	if months < 1 {
		months = 1
	}
	windowStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, -(months - 1), 0)

	args := append([]any{invoicedomain.InvoiceStatusCompleted, windowStart}, scopeArgs...)
	var rows []monthlyRow
	err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT i.paid_at AS paid_at, i.amount AS amount
		FROM invoices i
		JOIN appointments a ON a.id = i.appointment_id
		WHERE i.status = ? AND i.paid_at IS NOT NULL AND i.paid_at >= ?%s`, scope), args...).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	paymentArgs := append([]any{invoicedomain.PaymentStatusCompleted, windowStart}, scopeArgs...)
	var paymentRows []monthlyPaymentRow
	err = s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT p.created_at AS created_at, 1 AS count
		FROM payments p
		JOIN invoices i ON i.id = p.invoice_id
		JOIN appointments a ON a.id = i.appointment_id
		WHERE p.status = ? AND p.created_at >= ?%s`, scope), paymentArgs...).
		Scan(&paymentRows).Error
	if err != nil {
		return nil, err
	}

	series := make([]domain.MonthlyRevenue, 0, months)
	index := map[string]int{}
	for i := 0; i < months; i++ {
		month := windowStart.AddDate(0, i, 0).Format("2006-01")
		index[month] = i
		series = append(series, domain.MonthlyRevenue{
			Month:   month,
			Revenue: decimal.Zero,
		})
	}

	for _, row := range rows {
		month := row.PaidAt.UTC().Format("2006-01")
		i, ok := index[month]
		if !ok {
			continue
		}
		series[i].Revenue = series[i].Revenue.Add(row.Amount)
		series[i].InvoiceCount++
	}
	for _, row := range paymentRows {
		month := row.CreatedAt.UTC().Format("2006-01")
		i, ok := index[month]
		if !ok {
			continue
		}
		series[i].PaymentCount += row.Count
	}
	return series, nil
}
