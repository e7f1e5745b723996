package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/fedreview/mesh/internal/candidates"
	"github.com/fedreview/mesh/internal/config"
	"github.com/fedreview/mesh/internal/orchestrator"
	"github.com/fedreview/mesh/internal/telemetry"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	candidatesFile := flag.String("candidates", "config/candidates.json", "path to the discovery candidate list")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	candidateURLs, err := candidates.Load(*candidatesFile)
	if err != nil {
		log.Fatalf("load discovery candidates: %v", err)
	}

	logger := telemetry.Base()
	orch := orchestrator.New(cfg, candidateURLs, logger)

	logger.Info("orchestrator listening", "addr", cfg.OrchestratorListenAddr, "candidates", len(candidateURLs))
	if err := http.ListenAndServe(cfg.OrchestratorListenAddr, orch.Mux()); err != nil {
		log.Fatalf("orchestrator stopped: %v", err)
	}
}
