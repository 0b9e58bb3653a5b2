package grant

import (
	"github.com/smallbiznis/identra/internal/grant/repository"
	"github.com/smallbiznis/identra/internal/grant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("grant.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
