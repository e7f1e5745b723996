package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/fedreview/mesh/internal/config"
	"github.com/fedreview/mesh/internal/telemetry"
	"github.com/fedreview/mesh/internal/toolsvc"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	advisoryURL := flag.String("advisory-url", "http://127.0.0.1:9300/advisories", "external dependency advisory feed")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	permissions, err := toolsvc.LoadPermissionStore(cfg.TokenStoreDSN)
	if err != nil {
		log.Fatalf("load token permission store: %v", err)
	}

	auditClient := toolsvc.NewDependencyAuditClient(cfg.DependencyAuditOAuth, *advisoryURL)
	catalog := toolsvc.NewCatalog(auditClient)

	logger := telemetry.Base()
	server := toolsvc.NewServer(catalog, permissions, cfg.AuthEnabled, logger)

	logger.Info("tool service listening", "addr", cfg.ToolServiceListenAddr, "auth_enabled", cfg.AuthEnabled)
	if err := http.ListenAndServe(cfg.ToolServiceListenAddr, server.Mux()); err != nil {
		log.Fatalf("tool service stopped: %v", err)
	}
}
