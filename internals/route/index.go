// file: internals/route/index.go
package routes

import (
	"context"
	"log"
	"time"

	presenceController "crecheku_backend/internals/features/presence/controller"
	presenceRoute "crecheku_backend/internals/features/presence/route"

	"github.com/gofiber/fiber/v2"
)

var startTime time.Time

// Deps is what the ops listener serves.
type Deps struct {
	Ping   func(ctx context.Context) error
	Runner presenceController.Runner
}

func SetupRoutes(app *fiber.App, deps Deps) {
	startTime = time.Now()

	log.Println("[INFO] Setting up BaseRoutes...")
	BaseRoutes(app, deps.Ping)

	log.Println("[INFO] Setting up presence ops routes...")
	ops := app.Group("/ops")
	presenceRoute.PresenceOpsRoutes(ops, presenceController.NewOpsController(deps.Runner))
}
