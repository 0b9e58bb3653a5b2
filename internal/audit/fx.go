package audit

import (
	"github.com/smallbiznis/identra/internal/audit/repository"
	"github.com/smallbiznis/identra/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewRecorder),
	fx.Provide(service.Provide),
	fx.Invoke(service.RegisterLifecycle),
)
