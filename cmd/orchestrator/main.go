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
	"github.com/gasopt/optimizer/internal/api"
	"github.com/gasopt/optimizer/internal/api/handler"
	"github.com/gasopt/optimizer/internal/database"
	"github.com/gasopt/optimizer/internal/orchestrator"
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

	rdb := database.NewRedis(&cfg.Redis)
	if rdb != nil {
		log.Println("Redis connected")
	} else {
		log.Println("Redis not configured, falling back to in-process dedupe cache")
	}

	bus := orchestrator.NewProgressBus()
	dedupe := orchestrator.NewDedupeCache(rdb, time.Duration(cfg.Orchestrator.AnalysisJobDedupeTTLMs)*time.Millisecond)
	registry := orchestrator.NewJobRegistry(bus, dedupe)

	worker := orchestrator.NewWorkerClient(
		cfg.Orchestrator.WorkerBaseURL,
		time.Duration(cfg.Orchestrator.WorkerPollIntervalMs)*time.Millisecond,
		time.Duration(cfg.Orchestrator.WorkerTimeoutMs)*time.Millisecond,
	)

	providers := make([]orchestrator.AIProvider, 0, len(cfg.AI.Providers))
	for _, p := range cfg.AI.Providers {
		providers = append(providers, orchestrator.NewHTTPProvider(p))
	}
	optimizer := orchestrator.NewAIOptimizer(providers, cfg.AI)
	acceptance := orchestrator.NewAcceptanceValidator(worker, optimizer, cfg.Acceptance)

	pipeline := orchestrator.NewPipeline(registry, orchestrator.NewRegexParser(), worker, optimizer, acceptance)
	registry.SetPipeline(pipeline)

	var chain orchestrator.ChainSubmitter
	if submitter, err := orchestrator.NewJSONRPCChainSubmitter(cfg.Chain); err != nil {
		log.Printf("Chain submission not configured: %v", err)
	} else {
		chain = submitter
	}
	proof := orchestrator.NewProofBuilder(chain)

	analyzeHandler := handler.NewAnalyzeHandler(registry, proof)
	router := api.NewRouter(analyzeHandler, cfg.CORS)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Orchestrator.Host, cfg.Orchestrator.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	go func() {
		log.Printf("Orchestrator starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Orchestrator failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Orchestrator shutdown error: %v", err)
	}
	log.Println("Orchestrator shutdown complete")
}
