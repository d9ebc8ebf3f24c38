// file: internals/features/presence/engine.go
package presence

import (
	"log"

	"crecheku_backend/internals/configs"
	"crecheku_backend/internals/features/presence/repository"
	"crecheku_backend/internals/features/presence/roster"
	"crecheku_backend/internals/features/presence/scheduler"
	"crecheku_backend/internals/features/presence/service"
	ossHelper "crecheku_backend/internals/helpers/oss"

	"gorm.io/gorm"
)

// Engine bundles the presence service with the scheduler that drives it.
type Engine struct {
	Service   *service.Service
	Scheduler *scheduler.Scheduler
}

func NewEngine(store repository.Store, rp roster.Provider, attachments service.AttachmentStore, cfg configs.PresenceConfig) *Engine {
	svc := service.New(store, rp, attachments)
	svc.Location = cfg.Location
	svc.MaxAttachmentBytes = cfg.AttachmentMaxBytes

	return &Engine{
		Service:   svc,
		Scheduler: scheduler.New(svc, cfg.Calendar(), cfg.Scheduler()),
	}
}

// NewPostgresEngine wires the production stack: gorm store, children roster, OSS attachments.
// OSS is optional; without it uploads fail as attachment_unavailable and references still work.
func NewPostgresEngine(db *gorm.DB, cfg configs.PresenceConfig) (*Engine, *ossHelper.OSSService) {
	var attachments service.AttachmentStore
	svc, err := ossHelper.NewOSSServiceFromEnv(cfg.AttachmentPrefix)
	if err != nil {
		log.Printf("[PRESENCE] ⚠️ attachment store disabled: %v", err)
		svc = nil
	} else {
		attachments = ossHelper.NewAttachmentStore(svc)
	}
	return NewEngine(repository.NewGormStore(db), roster.NewGormProvider(db), attachments, cfg), svc
}

// NewMemoryEngine is the dry-run stack: process-local store, fixed roster, no attachment store.
func NewMemoryEngine(children []string, cfg configs.PresenceConfig) *Engine {
	return NewEngine(repository.NewMemoryStore(), roster.Static(children), nil, cfg)
}
