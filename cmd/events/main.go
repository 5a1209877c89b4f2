package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	pkgasynq "gamecore-events/pkg/asynq"
	"gamecore-events/pkg/config"
	"gamecore-events/pkg/db"
	"gamecore-events/pkg/health"
	"gamecore-events/pkg/jobrunner"
	"gamecore-events/pkg/logger"
	"gamecore-events/pkg/redis"
	"gamecore-events/pkg/server"
	"gamecore-events/services/events"
	"gamecore-events/services/notify"
	"gamecore-events/services/ops"
	"gamecore-events/services/player"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		pkgasynq.Client,
		pkgasynq.Server,
		health.Module,
		jobrunner.Module,
		fx.Provide(
			provideSnowflakeNode,
			server.ProvideHTTPServer,
		),
		player.Module,
		notify.Module,
		events.Module,
		ops.Module,
		fx.Invoke(server.Run),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
