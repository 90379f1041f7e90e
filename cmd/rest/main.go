package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"ai-editorial-be/internal/bootstrap"
	"ai-editorial-be/internal/config"
	"ai-editorial-be/internal/server"
	"ai-editorial-be/internal/tracer"
	"ai-editorial-be/pkg/database"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (optional, backs the document archive)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		gormDB = db
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	// 4. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Otel, container.Logger)
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Start Background Services
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return container.DeliveryService.Consume(gctx)
	})
	if err := container.ActivityService.Start(); err != nil {
		container.Logger.Warn("Main", "Activity feed subscriber did not start", map[string]interface{}{"error": err.Error()})
	}

	// 6. Run Server
	srv := server.New(cfg, container)
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		container.Logger.Info("Main", "Shutting down", nil)
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		container.Logger.Error("Main", "Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
}
