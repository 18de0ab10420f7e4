package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/crm"
	"github.com/smallbiznis/orderbridge/internal/hosting"
	"github.com/smallbiznis/orderbridge/internal/invoice"
	"github.com/smallbiznis/orderbridge/internal/observability"
	"github.com/smallbiznis/orderbridge/internal/order"
	"github.com/smallbiznis/orderbridge/internal/payment"
	"github.com/smallbiznis/orderbridge/internal/ratelimit"
	"github.com/smallbiznis/orderbridge/internal/registrar"
	"github.com/smallbiznis/orderbridge/internal/server"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		ratelimit.Module,

		// Upstreams
		crm.Module,
		registrar.Module,

		// Functional Domains
		order.Module,
		invoice.Module,
		payment.Module,
		hosting.Module,

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
