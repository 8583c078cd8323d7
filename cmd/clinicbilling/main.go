package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/medisync/clinicbilling/internal/clock"
	"github.com/medisync/clinicbilling/internal/config"
	"github.com/medisync/clinicbilling/internal/logger"
	"github.com/medisync/clinicbilling/internal/migration"
	"github.com/medisync/clinicbilling/internal/server"
	"github.com/medisync/clinicbilling/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface plus the domain modules it serves
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
