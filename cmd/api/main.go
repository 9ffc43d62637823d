package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"gto_dupfinder/internal/adapters/gto"
	server "gto_dupfinder/internal/adapters/http_server"
	"gto_dupfinder/internal/adapters/observability"
	redisad "gto_dupfinder/internal/adapters/redis"
	"gto_dupfinder/internal/app"
	"gto_dupfinder/internal/domain"
	"gto_dupfinder/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	client, err := gto.New(cfg.GTOBase, cfg.GTOKey, cfg.ScanRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize GTO client")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		log.Info().Str("addr", cfg.RedisAddr).Msg("detail cache enabled")
	}

	store := app.NewScanStore(cfg.MaxScans, time.Duration(cfg.HistoryTTLSec)*time.Second)
	scans := app.NewScanService(client, store, cache, cfg.EnrichWorkers, cfg.DetailTTLSec)

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Scans: scans, Catalog: client})

	log.Info().Str("addr", cfg.HTTPAddr).Str("base", cfg.GTOBase).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
