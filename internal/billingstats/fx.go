package billingstats

import (
	"github.com/medisync/clinicbilling/internal/billingstats/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingstats",
	fx.Provide(
		service.NewService,
	),
)
