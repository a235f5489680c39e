package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"opportunity-radar/internal/adapters/events"
	"opportunity-radar/internal/adapters/gmail"
	"opportunity-radar/internal/adapters/llm"
	"opportunity-radar/internal/adapters/mailer"
	"opportunity-radar/internal/adapters/repo"
	"opportunity-radar/internal/adapters/seen"
	"opportunity-radar/internal/adapters/telegram"
	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/config"
	"opportunity-radar/internal/infra/gemini"
	httpinfra "opportunity-radar/internal/infra/http"
	applog "opportunity-radar/internal/infra/log"
	"opportunity-radar/internal/infra/metrics"
	"opportunity-radar/internal/infra/openai"
	"opportunity-radar/internal/usecase/extract"
	"opportunity-radar/internal/usecase/filter"
	"opportunity-radar/internal/usecase/notify"
	"opportunity-radar/internal/usecase/pipeline"
)

func main() {
	cfg, rules, err := config.Load()
	if err != nil {
		// конфигурация проверяется до любых побочных эффектов
		fatalLogger := applog.NewLogger("prod")
		fatalLogger.Fatal().Err(err).Msg("radar: неверная конфигурация")
	}
	logger := applog.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resume, err := os.ReadFile(cfg.ResumePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ResumePath).Msg("radar: нет резюме")
	}

	store, closeStore, err := repo.Open(ctx, cfg.Store.Driver, cfg.Store.PGDSN, cfg.Store.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("radar: нет подключения к хранилищу")
	}
	defer closeStore()

	var seenStore domain.SeenStore = store
	if cfg.Seen.Driver == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Seen.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("radar: redis недоступен")
		}
		seenStore = seen.NewRedis(rdb, "", cfg.Seen.TTL)
	}

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("radar: нет клиента модели")
	}

	httpClient, err := gmail.NewOAuthClient(ctx, cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.RefreshToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("radar: нет доступа к gmail")
	}
	source := gmail.NewSource(httpClient, gmail.WithQuery(cfg.Gmail.Query), gmail.WithOwnAddress(cfg.Gmail.OwnAddress),
		gmail.WithLogger(applog.Component(logger, "gmail")))

	fanout, closeSinks, err := newFanout(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("radar: нет каналов уведомлений")
	}
	defer closeSinks()

	chain := filter.NewChain(filter.Rules{
		TrustedDomains:        rules.TrustedDomains,
		Keywords:              rules.Keywords,
		PersonalMinRecipients: rules.PersonalMinRecipients,
	}, seenStore, llm.NewClassifier(gen))
	extractor := extract.NewAdapter(llm.NewExtractor(gen), llm.NewScorer(gen), string(resume))

	svc := pipeline.NewService(source, seenStore, store, chain, extractor, notify.NewGate(rules.NotifyMinScore), fanout, rules.SeenPolicy(), logger)

	if cfg.RunInterval <= 0 {
		if _, err := svc.Run(ctx); err != nil {
			logger.Fatal().Err(err).Msg("radar: прогон не удался")
		}
		return
	}

	server := httpinfra.NewServer(applog.Component(logger, "http"), store)
	go func() {
		if err := server.Run(ctx, cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("radar: HTTP сервер остановлен")
		}
	}()
	loop(ctx, logger, svc, cfg.RunInterval)
}

func loop(ctx context.Context, logger zerolog.Logger, svc *pipeline.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		report, err := svc.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Str("run_id", report.RunID).Msg("radar: прогон не удался")
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("radar: остановка")
			return
		case <-ticker.C:
		}
	}
}

func newGenerator(ctx context.Context, cfg config.AppConfig) (llm.Generator, error) {
	var gen llm.Generator
	switch cfg.LLM.Provider {
	case "openai":
		gen = llm.NewOpenAI(openai.NewClient(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, cfg.LLM.Timeout), cfg.LLM.OpenAIModel, cfg.LLM.Timeout)
	default:
		client, err := gemini.NewClient(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.Timeout)
		if err != nil {
			return nil, err
		}
		gen = llm.NewGemini(client, cfg.LLM.GeminiModel)
	}
	return llm.NewPaced(gen, cfg.LLM.MinInterval), nil
}

func newFanout(cfg config.AppConfig) (*notify.Fanout, func(), error) {
	var (
		sinks   []notify.Sink
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	for _, name := range cfg.Notify.Sinks {
		switch name {
		case "telegram":
			n, err := telegram.Dial(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, cfg.ViewURL)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, notify.Sink{Name: name, Notifier: n})
		case "email":
			n, err := mailer.New(mailer.Config{
				Host:     cfg.Notify.SMTPHost,
				Port:     cfg.Notify.SMTPPort,
				User:     cfg.Notify.SMTPUser,
				Password: cfg.Notify.SMTPPassword,
				From:     cfg.Notify.SMTPFrom,
				To:       cfg.Notify.SMTPTo,
				ViewURL:  cfg.ViewURL,
			})
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, notify.Sink{Name: name, Notifier: n})
		case "amqp":
			pub, err := events.Dial(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { _ = pub.Close() })
			sinks = append(sinks, notify.Sink{Name: name, Notifier: pub})
		default:
			closeAll()
			return nil, nil, errors.New("неизвестный канал уведомлений: " + strings.TrimSpace(name))
		}
	}
	return notify.NewFanout(sinks...), closeAll, nil
}
