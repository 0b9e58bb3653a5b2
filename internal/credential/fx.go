package credential

import (
	"github.com/smallbiznis/identra/internal/credential/repository"
	"github.com/smallbiznis/identra/internal/credential/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credential.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
