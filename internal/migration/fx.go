package migration

import (
	appointmentdomain "github.com/medisync/clinicbilling/internal/appointment/domain"
	"github.com/medisync/clinicbilling/internal/config"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres dialects (local sqlite, mysql) sync the schema
		// from the models instead.
		return conn.AutoMigrate(
			&appointmentdomain.Appointment{},
			&invoicedomain.Invoice{},
			&invoicedomain.Payment{},
		)
	}),
)
