// file: internals/features/presence/route/ops_route.go
package route

import (
	"crecheku_backend/internals/features/presence/controller"
	"crecheku_backend/internals/middlewares"

	"github.com/gofiber/fiber/v2"
)

func PresenceOpsRoutes(r fiber.Router, ctl *controller.OpsController) {
	g := r.Group("/presence")
	g.Get("/last-run", ctl.LastRun)
	g.Post("/run", middlewares.OpsToken(), middlewares.RunTriggerRateLimiter(), ctl.TriggerRun)
}
