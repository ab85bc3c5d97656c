package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/config"
	"github.com/smallbiznis/paylink/internal/events"
	"github.com/smallbiznis/paylink/internal/migration"
	"github.com/smallbiznis/paylink/internal/observability"
	"github.com/smallbiznis/paylink/internal/orderlock"
	"github.com/smallbiznis/paylink/internal/payment"
	"github.com/smallbiznis/paylink/internal/promo"
	"github.com/smallbiznis/paylink/internal/providers"
	"github.com/smallbiznis/paylink/internal/referral"
	"github.com/smallbiznis/paylink/internal/server"
	"github.com/smallbiznis/paylink/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		orderlock.Module,
		providers.Module,

		// Domains
		promo.Module,
		payment.Module,
		referral.Module,
		events.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
