package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gasopt/optimizer/config"
	"github.com/gasopt/optimizer/internal/database"
	"github.com/gasopt/optimizer/internal/worker"
	"github.com/gasopt/optimizer/internal/workerapi"
	"github.com/gasopt/optimizer/internal/workerapi/handler"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewWorkerDB(&cfg.Worker)
	if err != nil {
		log.Fatalf("Failed to connect worker database: %v", err)
	}
	log.Println("Worker database connected")

	persistence := worker.NewPersistence(db)
	if err := persistence.EnsureSchema(); err != nil {
		log.Fatalf("Failed to migrate worker schema: %v", err)
	}

	artifactDir := cfg.Worker.ArtifactDir
	if artifactDir == "" {
		artifactDir = "artifacts"
	}
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		log.Fatalf("Failed to create artifact directory: %v", err)
	}

	runner := worker.NewSubprocessRunner(artifactDir, os.Getenv("GAS_ESTIMATOR_BIN"))
	store := worker.NewJobStore(persistence, runner)
	if err := store.Recover(); err != nil {
		log.Fatalf("Failed to recover worker jobs: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Start(ctx)

	gc := worker.NewArtifactGC(artifactDir, 10*time.Minute, 5*time.Minute)
	gc.Start()
	defer gc.Stop()

	jobsHandler := handler.NewJobsHandler(store)
	router := workerapi.NewRouter(jobsHandler, cfg.CORS)
	engine := router.Setup()

	addr := fmt.Sprintf(":%d", cfg.Worker.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	go func() {
		log.Printf("Worker starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Worker failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Worker shutdown error: %v", err)
	}
	log.Println("Worker shutdown complete")
}
