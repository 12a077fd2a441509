package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/bsaid97/go-ladm-topology/handlers"
	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/rules"
	"github.com/bsaid97/go-ladm-topology/topology"
	"github.com/bsaid97/go-ladm-topology/utils"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default config.yaml or $LADM_CONFIG)")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := utils.SetupLogger(cfg.Log)
	log.Printf("=== Starting LADM topology server ===")

	engine := topology.NewEngine(logger, topology.OptionsFromConfig(cfg.Engine))
	checker := rules.NewChecker(logger)

	var db rules.Database
	if cfg.Database.Enabled {
		conn, err := utils.OpenPostgres(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = conn.PingContext(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to reach database %s: %v", cfg.Database.Name, err)
		}
		db = rules.NewPostgres(conn, cfg.Database.Schema)
		logger.Info("database connected", "name", cfg.Database.Name, "schema", cfg.Database.Schema)
	} else {
		logger.Warn("no database configured, logic checks are disabled")
	}

	parse := layer.ParseOptions{
		Precision: cfg.Engine.Precision,
		Workers:   cfg.Engine.Workers,
		Logger:    logger,
	}
	server := handlers.NewServer(engine, checker, db, parse, cfg.Server.OutputDir)

	mux := http.NewServeMux()
	server.Register(mux)
	log.Printf("Registered all HTTP handlers")

	log.Printf("Server is listening on %s...", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
