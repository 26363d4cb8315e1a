package main

import (
	"context"

	"go.uber.org/zap"

	"gridwatch/internal/app"
	"gridwatch/internal/config"
	"gridwatch/internal/db"
	"gridwatch/internal/energy"
	"gridwatch/internal/ingest"
	"gridwatch/internal/monitor"
	"gridwatch/internal/realtime"
	"gridwatch/internal/rules"
)

func main() {
	logger, _ := zap.NewProduction(zap.AddStacktrace(zap.FatalLevel))
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()
	cfg := config.LoadConfig()

	// --- Initialize DBManager ---
	dbMgr, err := db.NewDBManager(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("failed to create DBManager", "error", err)
	}
	defer dbMgr.Shutdown()

	// --- Build the ingestion pipeline ---
	store := db.NewStore(dbMgr, sugar)
	hub := realtime.NewHub(sugar)
	stats := db.NewIngestStats(sugar)
	svc := ingest.NewService(
		store,
		hub,
		rules.NewEngine(cfg.Rules),
		energy.NewIntegrator(cfg.SampleInterval),
		stats,
		sugar,
	)

	// --- Start HTTP server (ingest + ws + health) ---
	mux := monitor.NewMux(dbMgr, hub, ingest.Handler(svc, sugar), cfg.WSJWTSecret)
	srv := monitor.StartHTTPServer(mux, cfg.HTTPAddr, sugar)

	// --- Optional Kafka ingest source ---
	reader, err := app.NewKafkaReader(cfg)
	if err != nil {
		sugar.Fatalw("failed to create Kafka reader", "error", err)
	}

	// --- Run until shutdown (blocking) ---
	app.Run(ctx, svc, srv, reader, sugar)
}
