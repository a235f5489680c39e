package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
	"opportunity-radar/internal/usecase/extract"
	"opportunity-radar/internal/usecase/notify"
	"opportunity-radar/internal/usecase/reconcile"
)

// Коды исходов, не являющиеся вердиктами фильтра.
const (
	OutcomeExtractionFailed      = "extraction_failed"
	OutcomeExtractionUnavailable = "extraction_unavailable"
	OutcomeStoreUnavailable      = "store_unavailable"
	OutcomeSeenStoreUnavailable  = "seen_store_unavailable"
	OutcomeNotifyFailed          = "notify_failed"
)

// Evaluator выносит вердикт по письму.
type Evaluator interface {
	Evaluate(ctx context.Context, msg domain.Message) (domain.Verdict, error)
}

// DraftExtractor строит черновик записи с учётом состояния треда.
type DraftExtractor interface {
	Extract(ctx context.Context, msg domain.Message, prior *domain.Record) (domain.Draft, error)
}

// MessageResult: итог обработки одного письма.
type MessageResult struct {
	MessageID      string
	ThreadID       string
	Verdict        domain.Verdict
	Outcome        string
	Classification domain.Classification
	Changed        []domain.Field
	Notified       bool
	MarkedSeen     bool
	Err            error
}

// RunReport: сводка по одному прогону.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Results    []MessageResult
}

// Count возвращает число писем с данным исходом.
func (r RunReport) Count(outcome string) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Service выполняет прогон: выборка → фильтры → извлечение → сверка → запись → уведомление → отметка.
type Service struct {
	source    domain.MailSource
	seen      domain.SeenStore
	records   domain.RecordStore
	chain     Evaluator
	extractor DraftExtractor
	gate      notify.Gate
	notifier  domain.Notifier
	policy    domain.SeenPolicy
	log       zerolog.Logger
}

// NewService создаёт сервис прогона.
func NewService(source domain.MailSource, seen domain.SeenStore, records domain.RecordStore, chain Evaluator, extractor DraftExtractor, gate notify.Gate, notifier domain.Notifier, policy domain.SeenPolicy, logger zerolog.Logger) *Service {
	return &Service{
		source:    source,
		seen:      seen,
		records:   records,
		chain:     chain,
		extractor: extractor,
		gate:      gate,
		notifier:  notifier,
		policy:    policy,
		log:       logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run выполняет один прогон по свежим письмам.
// Ошибка выборки прерывает прогон до обработки писем; отмена контекста останавливает его перед следующим письмом.
func (s *Service) Run(ctx context.Context) (report RunReport, err error) {
	report = RunReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := s.log.With().Str("run_id", report.RunID).Logger()
	defer func() {
		report.FinishedAt = time.Now().UTC()
		metrics.RunSeconds.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}()

	messages, err := s.source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("выборка писем: %w", err)
	}
	report.Fetched = len(messages)
	logger.Info().Int("fetched", len(messages)).Msg("прогон начат")

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("processed", len(report.Results)).Msg("прогон прерван")
			return report, err
		}
		res := s.process(ctx, logger, msg)
		metrics.IncMessage(res.Outcome)
		report.Results = append(report.Results, res)
	}

	logger.Info().Int("fetched", report.Fetched).Int("processed", len(report.Results)).Msg("прогон завершён")
	return report, nil
}

func (s *Service) process(ctx context.Context, logger zerolog.Logger, msg domain.Message) MessageResult {
	res := MessageResult{MessageID: msg.ID, ThreadID: msg.ThreadID}
	l := logger.With().Str("message_id", msg.ID).Str("thread_id", msg.ThreadID).Logger()

	verdict, err := s.chain.Evaluate(ctx, msg)
	if err != nil {
		return s.fail(l, res, OutcomeSeenStoreUnavailable, err)
	}
	res.Verdict = verdict
	metrics.IncVerdict(verdict.String())

	if !verdict.Pass {
		res.Outcome = string(verdict.Reason)
		if s.policy.ShouldMark(verdict) {
			res.MarkedSeen = s.markSeen(ctx, l, msg.ID, res.Outcome)
		}
		l.Debug().Str("verdict", verdict.String()).Bool("marked_seen", res.MarkedSeen).Msg("письмо отклонено")
		return res
	}

	if len(msg.AttachmentRefs) > 0 && len(msg.Attachments) == 0 {
		attachments, err := s.source.LoadAttachments(ctx, msg)
		if err != nil {
			l.Warn().Err(err).Msg("не удалось загрузить вложения, продолжаем без них")
		}
		msg.Attachments = attachments
	}

	prior, err := s.records.Get(ctx, msg.ThreadID)
	if err != nil {
		return s.fail(l, res, OutcomeStoreUnavailable, fmt.Errorf("чтение записи треда: %w", err))
	}

	draft, err := s.extractor.Extract(ctx, msg, prior)
	if err != nil {
		outcome := OutcomeExtractionUnavailable
		if errors.Is(err, extract.ErrExtractionFailed) {
			outcome = OutcomeExtractionFailed
		}
		return s.fail(l, res, outcome, err)
	}

	rec := reconcile.Reconcile(msg.ThreadID, draft, prior)
	res.Classification = rec.Classification
	res.Changed = rec.Changed
	metrics.IncReconciliation(string(rec.Classification))

	if err := s.records.Put(ctx, rec.Merged, rec.Merged.ChangedFields); err != nil {
		return s.fail(l, res, OutcomeStoreUnavailable, fmt.Errorf("запись треда: %w", err))
	}
	res.Outcome = strings.ToLower(string(rec.Classification))

	decision := s.gate.Decide(rec.Classification, rec.Merged.RelevanceScore, rec.Changed)
	if decision.Notify {
		payload := notify.BuildPayload(rec.Merged, rec.Classification, rec.Changed)
		if err := s.notifier.Send(ctx, payload); err != nil {
			res.Outcome = OutcomeNotifyFailed
			res.Err = err
			l.Error().Err(err).Msg("уведомление не доставлено")
		} else {
			res.Notified = true
		}
	}

	res.MarkedSeen = s.markSeen(ctx, l, msg.ID, res.Outcome)
	if !res.MarkedSeen {
		res.Outcome = OutcomeSeenStoreUnavailable
	}

	l.Info().
		Str("classification", string(rec.Classification)).
		Strs("changed", fieldNames(rec.Changed)).
		Int("score", rec.Merged.RelevanceScore).
		Str("decision", decision.Reason).
		Bool("notified", res.Notified).
		Msg("письмо обработано")
	return res
}

func (s *Service) fail(l zerolog.Logger, res MessageResult, outcome string, err error) MessageResult {
	res.Outcome = outcome
	res.Err = err
	l.Error().Err(err).Str("outcome", outcome).Msg("письмо будет повторено в следующем прогоне")
	return res
}

func (s *Service) markSeen(ctx context.Context, l zerolog.Logger, id, outcome string) bool {
	if err := s.seen.MarkSeen(ctx, id, outcome); err != nil {
		l.Error().Err(err).Msg("не удалось отметить письмо обработанным")
		return false
	}
	return true
}

func fieldNames(fields []domain.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return out
}
