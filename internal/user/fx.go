package user

import (
	"github.com/smallbiznis/identra/internal/user/repository"
	"github.com/smallbiznis/identra/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
