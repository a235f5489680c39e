package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_messages_total",
		Help: "Письма по итогу обработки",
	}, []string{"outcome"})

	FilterVerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_filter_verdicts_total",
		Help: "Вердикты цепочки фильтров",
	}, []string{"reason"})

	ReconciliationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_reconciliations_total",
		Help: "Результаты сверки с состоянием треда",
	}, []string{"classification"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_notifications_total",
		Help: "Отправленные уведомления по каналам",
	}, []string{"sink", "status"})

	RunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "radar_run_seconds",
		Help:    "Длительность одного прогона",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MessagesTotal,
		FilterVerdictsTotal,
		ReconciliationsTotal,
		NotificationsTotal,
		RunSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// IncMessage учитывает итог обработки письма.
func IncMessage(outcome string) {
	MessagesTotal.WithLabelValues(outcome).Inc()
}

// IncVerdict учитывает вердикт фильтра.
func IncVerdict(reason string) {
	FilterVerdictsTotal.WithLabelValues(reason).Inc()
}

// IncReconciliation учитывает классификацию сверки.
func IncReconciliation(classification string) {
	ReconciliationsTotal.WithLabelValues(classification).Inc()
}

// IncNotification учитывает отправку уведомления в канал.
func IncNotification(sink string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	NotificationsTotal.WithLabelValues(sink, status).Inc()
}
