package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"opportunity-radar/internal/adapters/repo"
	"opportunity-radar/internal/infra/config"
	httpinfra "opportunity-radar/internal/infra/http"
	applog "opportunity-radar/internal/infra/log"
	"opportunity-radar/internal/infra/metrics"
)

// api отдаёт только просмотр записей и метрики, поэтому Gmail и модель ему не нужны.
func main() {
	cfg, err := config.LoadEnv()
	if err != nil {
		fatalLogger := applog.NewLogger("prod")
		fatalLogger.Fatal().Err(err).Msg("api: неверная конфигурация")
	}
	logger := applog.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := repo.Open(ctx, cfg.Store.Driver, cfg.Store.PGDSN, cfg.Store.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к хранилищу")
	}
	defer closeStore()

	server := httpinfra.NewServer(applog.Component(logger, "http"), store)
	if err := server.Run(ctx, cfg.HTTPAddr); err != nil {
		logger.Error().Err(err).Msg("api: HTTP сервер остановлен")
	}
}
