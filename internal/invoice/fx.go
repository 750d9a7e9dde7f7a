package invoice

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/creditd/internal/invoice/render"
	"github.com/smallbiznis/creditd/internal/invoice/repository"
	"github.com/smallbiznis/creditd/internal/invoice/service"
)

var Module = fx.Module("invoice",
	repository.Module,
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewService),
)
