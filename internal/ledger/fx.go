package ledger

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/creditd/internal/ledger/repository"
	"github.com/smallbiznis/creditd/internal/ledger/service"
)

var Module = fx.Module("ledger",
	repository.Module,
	fx.Provide(service.NewService),
)
