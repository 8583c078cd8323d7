package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	appointmentdomain "github.com/medisync/clinicbilling/internal/appointment/domain"
	statsservice "github.com/medisync/clinicbilling/internal/billingstats/service"
	"github.com/medisync/clinicbilling/internal/cashflow"
	"github.com/medisync/clinicbilling/internal/clock"
	"github.com/medisync/clinicbilling/internal/config"
	exportservice "github.com/medisync/clinicbilling/internal/export/service"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	invoiceservice "github.com/medisync/clinicbilling/internal/invoice/service"
	"github.com/medisync/clinicbilling/internal/providers/pdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testStack struct {
	server *Server
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	log := zaptest.NewLogger(t)
	cfg := config.Config{
		AppName: "clinicbilling",
		Billing: config.BillingConfig{
			DefaultDueDays:     30,
			VirtualCurrency:    "USD",
			InPersonCurrency:   "VES",
			StatsWindowMonths:  6,
			CashFlowResetDelay: time.Minute,
		},
	}

	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Cfg:   cfg,
	})
	statsSvc := statsservice.NewService(statsservice.ServiceParam{
		DB:    db,
		Log:   log,
		Clock: fake,
		Cfg:   cfg,
	})
	exportSvc := exportservice.NewService(exportservice.ServiceParam{
		Log:      log,
		Clock:    fake,
		Cfg:      cfg,
		Invoices: invoiceSvc,
		Renderer: pdf.New(),
	})

	srv := NewServer(ServerParams{
		Gin:        NewEngine(log),
		Cfg:        cfg,
		InvoiceSvc: invoiceSvc,
		StatsSvc:   statsSvc,
		ExportSvc:  exportSvc,
		CashFlows:  cashflow.NewLedgerManager(invoiceSvc, cfg),
	})

	return &testStack{server: srv, db: db, node: node, clock: fake}
}

func (s *testStack) seedAppointment(t *testing.T, modality appointmentdomain.Modality) appointmentdomain.Appointment {
	t.Helper()

	apt := appointmentdomain.Appointment{
		ID:        s.node.Generate(),
		Date:      time.Date(2026, 2, 25, 9, 0, 0, 0, time.UTC),
		Duration:  30,
		Modality:  modality,
		Status:    appointmentdomain.AppointmentStatusConfirmed,
		PatientID: s.node.Generate(),
		DoctorID:  s.node.Generate(),
		Price:     decimal.NewFromInt(50),
		CreatedAt: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.db.Create(&apt).Error)
	return apt
}

func (s *testStack) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.server.engine.ServeHTTP(rec, req)
	return rec
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Actor-Role": "admin"}
}

func doctorHeaders(id snowflake.ID) map[string]string {
	return map[string]string{
		"X-Actor-Role": "doctor",
		"X-Doctor-Id":  id.String(),
	}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestInvoiceEndpoints(t *testing.T) {
	stack := newTestStack(t)
	apt := stack.seedAppointment(t, appointmentdomain.ModalityVirtual)

	t.Run("missing actor header yields 401", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/invoices", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	var invoiceID string
	t.Run("create", func(t *testing.T) {
		rec := stack.do(t, http.MethodPost, "/api/v1/invoices", gin.H{
			"appointment_id": apt.ID.String(),
		}, adminHeaders())
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		data := decodeData(t, rec)
		invoiceID = data["id"].(string)
		assert.Equal(t, "PENDING", data["status"])
		assert.Equal(t, "USD", data["currency"])
		assert.Equal(t, "$50.00", data["amount_display"])
	})

	t.Run("duplicate create yields 409", func(t *testing.T) {
		rec := stack.do(t, http.MethodPost, "/api/v1/invoices", gin.H{
			"appointment_id": apt.ID.String(),
		}, adminHeaders())
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID, nil, adminHeaders())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, invoiceID, decodeData(t, rec)["id"])
	})

	t.Run("malformed id yields 400", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/invoices/abc", nil, adminHeaders())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("foreign doctor read yields 404", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID, nil, doctorHeaders(stack.node.Generate()))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owning doctor reads fine", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID, nil, doctorHeaders(apt.DoctorID))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("document download", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID+"/document", nil, adminHeaders())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "invoice-"+invoiceID)
		assert.NotZero(t, rec.Body.Len())
	})

	t.Run("cash payment settles", func(t *testing.T) {
		rec := stack.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/cash-payment", nil, adminHeaders())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decodeData(t, rec)
		assert.Equal(t, "COMPLETED", data["status"])
		assert.Equal(t, "CASH", data["payment_method"])
	})

	t.Run("update after settlement yields 409", func(t *testing.T) {
		rec := stack.do(t, http.MethodPatch, "/api/v1/invoices/"+invoiceID, gin.H{
			"amount": "75",
		}, adminHeaders())
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("doctor refund yields 403", func(t *testing.T) {
		rec := stack.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/refund", nil, doctorHeaders(apt.DoctorID))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin refund", func(t *testing.T) {
		rec := stack.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/refund", nil, adminHeaders())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "REFUNDED", decodeData(t, rec)["status"])
	})

	t.Run("payments listing", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID+"/payments", nil, adminHeaders())
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data []map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "REFUNDED", resp.Data[0]["status"])
	})
}

func TestCashFlowEndpoints(t *testing.T) {
	stack := newTestStack(t)
	apt := stack.seedAppointment(t, appointmentdomain.ModalityInPerson)

	rec := stack.do(t, http.MethodPost, "/api/v1/invoices", gin.H{
		"appointment_id": apt.ID.String(),
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)
	invoiceID := decodeData(t, rec)["id"].(string)

	t.Run("prompt state by default", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID+"/cash-flow", nil, adminHeaders())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "CONFIRM", decodeData(t, rec)["state"])
	})

	t.Run("confirm settles through the ledger", func(t *testing.T) {
		rec := stack.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/cash-flow/confirm", nil, adminHeaders())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "SUCCESS", decodeData(t, rec)["state"])

		inv := stack.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID, nil, adminHeaders())
		assert.Equal(t, "COMPLETED", decodeData(t, inv)["status"])
	})

	t.Run("retry without an open flow yields 409", func(t *testing.T) {
		other := stack.seedAppointment(t, appointmentdomain.ModalityVirtual)
		rec := stack.do(t, http.MethodPost, "/api/v1/invoices", gin.H{
			"appointment_id": other.ID.String(),
		}, adminHeaders())
		require.Equal(t, http.StatusCreated, rec.Code)
		otherID := decodeData(t, rec)["id"].(string)

		retry := stack.do(t, http.MethodPost, "/api/v1/invoices/"+otherID+"/cash-flow/retry", nil, adminHeaders())
		assert.Equal(t, http.StatusConflict, retry.Code)
	})

	t.Run("cancel without an open flow is a no-op", func(t *testing.T) {
		fresh := stack.seedAppointment(t, appointmentdomain.ModalityVirtual)
		rec := stack.do(t, http.MethodPost, "/api/v1/invoices", gin.H{
			"appointment_id": fresh.ID.String(),
		}, adminHeaders())
		require.Equal(t, http.StatusCreated, rec.Code)
		freshID := decodeData(t, rec)["id"].(string)

		cancel := stack.do(t, http.MethodPost, "/api/v1/invoices/"+freshID+"/cash-flow/cancel", nil, adminHeaders())
		assert.Equal(t, http.StatusNoContent, cancel.Code)
	})
}

func TestBillingStatsEndpoint(t *testing.T) {
	stack := newTestStack(t)
	apt := stack.seedAppointment(t, appointmentdomain.ModalityVirtual)

	rec := stack.do(t, http.MethodPost, "/api/v1/invoices", gin.H{
		"appointment_id": apt.ID.String(),
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)
	invoiceID := decodeData(t, rec)["id"].(string)

	paid := stack.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/cash-payment", nil, adminHeaders())
	require.Equal(t, http.StatusOK, paid.Code)

	t.Run("admin stats", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/billing/stats", nil, adminHeaders())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		data := decodeData(t, rec)
		assert.Equal(t, float64(1), data["total_invoices"])
		assert.Equal(t, "50", data["total_revenue"])
	})

	t.Run("foreign doctor sees nothing", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/api/v1/billing/stats", nil, doctorHeaders(stack.node.Generate()))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(0), decodeData(t, rec)["total_invoices"])
	})

	t.Run("health endpoint is public", func(t *testing.T) {
		rec := stack.do(t, http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
