// file: internals/features/presence/controller/ops_controller.go
package controller

import (
	"context"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"crecheku_backend/internals/features/presence/scheduler"
	helper "crecheku_backend/internals/helpers"
	"crecheku_backend/internals/helpers/dbtime"

	"github.com/gofiber/fiber/v2"
)

// Runner is what the ops endpoints need from the scheduler.
type Runner interface {
	Run(ctx context.Context, trigger string) *scheduler.RunReport
	RunOnce(ctx context.Context, day time.Time) scheduler.DayResult
	LastRun() *scheduler.RunReport
}

type OpsController struct {
	Runner  Runner
	running atomic.Bool
}

func NewOpsController(r Runner) *OpsController {
	return &OpsController{Runner: r}
}

// GET /ops/presence/last-run
func (ctl *OpsController) LastRun(c *fiber.Ctx) error {
	rep := ctl.Runner.LastRun()
	if rep == nil {
		return helper.Error(c, fiber.StatusNotFound, "No presence run yet")
	}
	return helper.Success(c, rep.Summary(), rep)
}

// POST /ops/presence/run[?date=YYYY-MM-DD]
// With a date: reconcile that day synchronously. Without: full run in background.
func (ctl *OpsController) TriggerRun(c *fiber.Ctx) error {
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		day, err := dbtime.ParseDay(raw)
		if err != nil {
			return helper.Error(c, fiber.StatusBadRequest, err.Error())
		}
		res := ctl.Runner.RunOnce(c.UserContext(), day)
		if res.Outcome == scheduler.DayFailed {
			return helper.ErrorWithDetails(c, fiber.StatusBadGateway, "Presence run failed for "+raw, res)
		}
		return helper.Success(c, "Presence day reconciled", res)
	}

	if !ctl.running.CompareAndSwap(false, true) {
		return helper.Error(c, fiber.StatusConflict, "A presence run is already in progress")
	}
	go func() {
		defer ctl.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PRESENCE-OPS] run panicked: %v", r)
			}
		}()
		ctl.Runner.Run(context.Background(), "ops")
	}()
	return helper.SuccessWithCode(c, fiber.StatusAccepted, "Presence run started", nil)
}
