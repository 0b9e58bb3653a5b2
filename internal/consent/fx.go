package consent

import (
	"github.com/smallbiznis/identra/internal/consent/repository"
	"github.com/smallbiznis/identra/internal/consent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("consent.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
