package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"

	"crecheku_backend/internals/configs"
	database "crecheku_backend/internals/databases"
	"crecheku_backend/internals/features/presence"
	helper "crecheku_backend/internals/helpers"
	ossHelper "crecheku_backend/internals/helpers/oss"
	middlewares "crecheku_backend/internals/middlewares"
	routes "crecheku_backend/internals/route"
)

func main() {
	configs.LoadEnv()
	cfg := configs.LoadPresenceConfig()

	// 🔌 DB connect + pool + warm-up
	database.ConnectDB()
	database.TunePool()
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("❌ migrate: %v", err)
	}
	database.WarmUpQueries()

	// ⏱ presence engine + scheduler after DB is ready
	engine, ossSvc := presence.NewPostgresEngine(database.DB, cfg)
	if err := engine.Scheduler.Start(); err != nil {
		log.Fatalf("❌ presence scheduler: %v", err)
	}

	// catch up right away: a deploy during the nightly slot must not leave a gap
	if configs.GetEnvBool("PRESENCE_RUN_ON_START", true) {
		go engine.Scheduler.Run(context.Background(), "startup")
	}

	// 🧹 orphan attachment cleanup (only when OSS is configured)
	if ossSvc != nil {
		if reaper, err := ossHelper.StartOrphanReaperCron(ossSvc, database.DB, ossHelper.OrphanReaperConfigFromEnv(cfg.AttachmentPrefix)); err != nil {
			log.Printf("[OSS-REAPER] not started: %v", err)
		} else {
			defer reaper.Stop()
		}
	}

	app := fiber.New(fiber.Config{
		// 🚀 fast JSON
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ErrorHandler:          helper.ErrorHandler,
	})

	// ⚙️ base middleware + performance
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// 🔎 Request-ID + timing
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	})

	middlewares.SetupMiddlewares(app)

	routes.SetupRoutes(app, routes.Deps{
		Ping:   database.Ping,
		Runner: engine.Scheduler,
	})

	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		log.Printf("✅ Ops listener on :%s", cfg.OpsPort)
		if err := app.Listen("0.0.0.0:" + cfg.OpsPort); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown: stop listener and trigger, wait for every in-flight run, close the pool
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	select {
	case <-engine.Scheduler.Stop().Done():
	case <-ctx.Done():
		log.Println("⚠️ presence run still in progress at shutdown")
	}

	database.Close()
}
