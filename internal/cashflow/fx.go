package cashflow

import (
	"context"

	"github.com/medisync/clinicbilling/internal/config"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"go.uber.org/fx"
)

func NewLedgerManager(svc invoicedomain.Service, cfg config.Config) *Manager {
	return NewManager(
		func(ctx context.Context, invoiceID string) error {
			_, err := svc.MarkCashPaid(ctx, invoiceID)
			return err
		},
		WithManagerResetDelay(cfg.Billing.CashFlowResetDelay),
	)
}

var Module = fx.Module("cashflow",
	fx.Provide(NewLedgerManager),
)
