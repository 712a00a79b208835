package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/Dan9191/budget-service/internal/app"
	"github.com/Dan9191/budget-service/internal/config"
	"github.com/Dan9191/budget-service/internal/handler"
	"github.com/Dan9191/budget-service/internal/scheduler"
)

func main() {
	// Initialize logger
	logger := app.NewLogger(os.Getenv("LOG_LEVEL"))

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	st, closer, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	defer closer.Close()

	// Initialize layers
	svc, err := app.NewService(cfg, st, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize service: %v", err)
	}
	h := handler.NewHandler(svc, logger)

	// Batch jobs
	sched := scheduler.New(logger, loc)
	if err := sched.AddJob(cfg.AccrualSchedule, scheduler.NewAccrualJob(svc.Accrual, logger)); err != nil {
		logger.Fatalf("Failed to schedule accrual: %v", err)
	}
	if err := sched.AddJob(cfg.CarryoverSchedule, scheduler.NewCarryoverJob(svc.Carryover, logger)); err != nil {
		logger.Fatalf("Failed to schedule carryover: %v", err)
	}
	sched.Start(ctx)
	defer sched.Stop()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, cfg, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown failed: %v", err)
		}
	}()

	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}
