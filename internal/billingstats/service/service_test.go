package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/medisync/clinicbilling/internal/actorctx"
	appointmentdomain "github.com/medisync/clinicbilling/internal/appointment/domain"
	"github.com/medisync/clinicbilling/internal/clock"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&appointmentdomain.Appointment{},
		&invoicedomain.Invoice{},
		&invoicedomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	svc := &Service{
		db:           db,
		log:          zaptest.NewLogger(t),
		clock:        fake,
		windowMonths: 6,
	}
	return svc, db, fake, node
}

type seededInvoice struct {
	doctorID snowflake.ID
	status   invoicedomain.InvoiceStatus
	amount   string
	dueDate  time.Time
	paidAt   *time.Time
}

func seedLedger(t *testing.T, db *gorm.DB, node *snowflake.Node, rows []seededInvoice) []invoicedomain.Invoice {
	t.Helper()

	invoices := make([]invoicedomain.Invoice, 0, len(rows))
	for _, row := range rows {
		apt := appointmentdomain.Appointment{
			ID:        node.Generate(),
			Date:      row.dueDate.AddDate(0, 0, -30),
			Duration:  30,
			Modality:  appointmentdomain.ModalityVirtual,
			Status:    appointmentdomain.AppointmentStatusCompleted,
			PatientID: node.Generate(),
			DoctorID:  row.doctorID,
			Price:     decimal.RequireFromString(row.amount),
			CreatedAt: row.dueDate.AddDate(0, 0, -30),
			UpdatedAt: row.dueDate.AddDate(0, 0, -30),
		}
		require.NoError(t, db.Create(&apt).Error)

		inv := invoicedomain.Invoice{
			ID:            node.Generate(),
			AppointmentID: apt.ID,
			Amount:        decimal.RequireFromString(row.amount),
			Status:        row.status,
			PaidAt:        row.paidAt,
			DueDate:       row.dueDate,
			CreatedAt:     apt.CreatedAt,
			UpdatedAt:     apt.CreatedAt,
		}
		require.NoError(t, db.Create(&inv).Error)
		invoices = append(invoices, inv)
	}
	return invoices
}

func TestSnapshot(t *testing.T) {
	svc, db, fake, node := newTestService(t)

	doctor1 := node.Generate()
	doctor2 := node.Generate()
	now := fake.Now()

	paidFeb := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	paidMar := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	invoices := seedLedger(t, db, node, []seededInvoice{
		{doctor1, invoicedomain.InvoiceStatusCompleted, "100", now.AddDate(0, 0, 10), &paidFeb},
		{doctor1, invoicedomain.InvoiceStatusPending, "50", now.AddDate(0, 0, -5), nil},
		{doctor2, invoicedomain.InvoiceStatusCompleted, "40", now.AddDate(0, 0, 20), &paidMar},
		{doctor2, invoicedomain.InvoiceStatusPending, "70", now.AddDate(0, 0, 15), nil},
		{doctor2, invoicedomain.InvoiceStatusFailed, "30", now.AddDate(0, 0, 7), nil},
		{doctor2, invoicedomain.InvoiceStatusRefunded, "25", now.AddDate(0, 0, -40), &paidFeb},
	})

	payments := []invoicedomain.Payment{
		{ID: node.Generate(), InvoiceID: invoices[0].ID, Amount: decimal.NewFromInt(100), Currency: "USD", Status: invoicedomain.PaymentStatusCompleted, Method: invoicedomain.PaymentMethodCash, CreatedAt: paidFeb, UpdatedAt: paidFeb},
		{ID: node.Generate(), InvoiceID: invoices[2].ID, Amount: decimal.NewFromInt(40), Currency: "USD", Status: invoicedomain.PaymentStatusCompleted, Method: invoicedomain.PaymentMethodPayPal, CreatedAt: paidMar, UpdatedAt: paidMar},
		{ID: node.Generate(), InvoiceID: invoices[4].ID, Amount: decimal.NewFromInt(30), Currency: "USD", Status: invoicedomain.PaymentStatusFailed, Method: invoicedomain.PaymentMethodPayPal, CreatedAt: paidMar, UpdatedAt: paidMar},
	}
	for i := range payments {
		require.NoError(t, db.Create(&payments[i]).Error)
	}

	adminCtx := actorctx.WithActor(t.Context(), actorctx.Actor{Role: actorctx.RoleAdmin})

	t.Run("admin snapshot", func(t *testing.T) {
		stats, err := svc.Snapshot(adminCtx)
		require.NoError(t, err)

		assert.Equal(t, int64(6), stats.TotalInvoices)
		assert.Equal(t, int64(2), stats.InvoiceCounts[invoicedomain.InvoiceStatusCompleted])
		assert.Equal(t, int64(2), stats.InvoiceCounts[invoicedomain.InvoiceStatusPending])
		assert.Equal(t, int64(1), stats.InvoiceCounts[invoicedomain.InvoiceStatusFailed])
		assert.Equal(t, int64(1), stats.InvoiceCounts[invoicedomain.InvoiceStatusRefunded])

		// Revenue counts completed settlements only; refunds are out.
		assert.True(t, stats.TotalRevenue.Equal(decimal.NewFromInt(140)), stats.TotalRevenue.String())
		assert.True(t, stats.PendingRevenue.Equal(decimal.NewFromInt(120)), stats.PendingRevenue.String())

		// One pending invoice past due; the refunded one does not count.
		assert.Equal(t, int64(1), stats.OverdueCount)

		assert.Equal(t, int64(2), stats.PaymentCounts[invoicedomain.PaymentStatusCompleted])
		assert.Equal(t, int64(1), stats.PaymentCounts[invoicedomain.PaymentStatusFailed])
		assert.Equal(t, int64(1), stats.PaymentMethodCounts[invoicedomain.PaymentMethodCash])
		assert.Equal(t, int64(2), stats.PaymentMethodCounts[invoicedomain.PaymentMethodPayPal])

		assert.True(t, stats.CompletedPaidTotal.Equal(decimal.NewFromInt(140)), stats.CompletedPaidTotal.String())
	})

	t.Run("monthly series", func(t *testing.T) {
		stats, err := svc.Snapshot(adminCtx)
		require.NoError(t, err)

		require.Len(t, stats.Monthly, 6)
		assert.Equal(t, "2025-10", stats.Monthly[0].Month)
		assert.Equal(t, "2026-03", stats.Monthly[5].Month)

		byMonth := map[string]int{}
		for i, bucket := range stats.Monthly {
			byMonth[bucket.Month] = i
		}
		feb := stats.Monthly[byMonth["2026-02"]]
		assert.True(t, feb.Revenue.Equal(decimal.NewFromInt(100)), feb.Revenue.String())
		assert.Equal(t, int64(1), feb.InvoiceCount)
		assert.Equal(t, int64(1), feb.PaymentCount)

		mar := stats.Monthly[byMonth["2026-03"]]
		assert.True(t, mar.Revenue.Equal(decimal.NewFromInt(40)), mar.Revenue.String())
		assert.Equal(t, int64(1), mar.PaymentCount)

		// Empty months are present and zero.
		oct := stats.Monthly[byMonth["2025-10"]]
		assert.True(t, oct.Revenue.IsZero())
		assert.Equal(t, int64(0), oct.InvoiceCount)
		assert.Equal(t, int64(0), oct.PaymentCount)
	})

	t.Run("doctor scoped snapshot", func(t *testing.T) {
		ctx := actorctx.WithActor(t.Context(), actorctx.Actor{
			Role:     actorctx.RoleDoctor,
			DoctorID: doctor1,
		})

		stats, err := svc.Snapshot(ctx)
		require.NoError(t, err)

		assert.Equal(t, int64(2), stats.TotalInvoices)
		assert.True(t, stats.TotalRevenue.Equal(decimal.NewFromInt(100)))
		assert.True(t, stats.PendingRevenue.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, int64(1), stats.OverdueCount)
		assert.Equal(t, int64(1), stats.PaymentCounts[invoicedomain.PaymentStatusCompleted])
		assert.Equal(t, int64(0), stats.PaymentCounts[invoicedomain.PaymentStatusFailed])
	})

	t.Run("missing actor", func(t *testing.T) {
		_, err := svc.Snapshot(t.Context())
		assert.Error(t, err)
	})
}
