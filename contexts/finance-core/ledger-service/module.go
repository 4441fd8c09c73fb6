package ledgerservice

import (
	"log/slog"

	httpadapter "caritas/contexts/finance-core/ledger-service/adapters/http"
	"caritas/contexts/finance-core/ledger-service/adapters/memory"
	"caritas/contexts/finance-core/ledger-service/application"
	"caritas/contexts/finance-core/ledger-service/ports"
	"caritas/internal/platform/messaging"
	"caritas/internal/platform/storage"
)

type Module struct {
	Handler     httpadapter.Handler
	Service     application.Service
	Store       *memory.Store
	Attachments *storage.MemoryStore
}

type Dependencies struct {
	Repository ports.Repository
	Storage    storage.AttachmentStore
	Publisher  messaging.Publisher
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Topic      string
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:      deps.Repository,
		Storage:   deps.Storage,
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
	attachments := storage.NewMemoryStore()
	module := NewModule(Dependencies{
		Repository: store,
		Storage:    attachments,
		Publisher:  messaging.NewBus(logger),
		Clock:      store,
		IDGen:      store,
		Topic:      "caritas.notifications",
		Logger:     logger,
	})
	module.Store = store
	module.Attachments = attachments
	return module
}
