package export

import (
	"github.com/medisync/clinicbilling/internal/export/service"
	"github.com/medisync/clinicbilling/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("export",
	fx.Provide(
		pdf.New,
		service.NewService,
	),
)
