package client

import (
	"context"

	"github.com/smallbiznis/identra/internal/client/domain"
	"github.com/smallbiznis/identra/internal/client/repository"
	"github.com/smallbiznis/identra/internal/client/service"
	"github.com/smallbiznis/identra/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("client.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Invoke(registerBootstrap),
)

func registerBootstrap(lc fx.Lifecycle, cfg config.Config, reg domain.Registry, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return service.BootstrapDefaultClient(ctx, cfg, reg, log)
		},
	})
}
