package reportservice

import (
	"log/slog"

	httpadapter "caritas/contexts/program-delivery/report-service/adapters/http"
	"caritas/contexts/program-delivery/report-service/adapters/memory"
	"caritas/contexts/program-delivery/report-service/application"
	"caritas/contexts/program-delivery/report-service/ports"
	"caritas/internal/platform/messaging"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository ports.Repository
	Publisher  messaging.Publisher
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Topic      string
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:      deps.Repository,
		Publisher: deps.Publisher,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Topic:     deps.Topic,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		Publisher:  messaging.NewBus(logger),
		Clock:      store,
		IDGen:      store,
		Topic:      "caritas.notifications",
		Logger:     logger,
	})
	module.Store = store
	return module
}
