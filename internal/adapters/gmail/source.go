package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
)

const (
	defaultBaseURL = "https://gmail.googleapis.com"
	defaultQuery   = "newer_than:1h"
	readonlyScope  = "https://www.googleapis.com/auth/gmail.readonly"
	pageSize       = 100
)

// ErrUnexpectedStatus возвращается, когда Gmail API ответил не 200.
var ErrUnexpectedStatus = errors.New("неожиданный ответ gmail")

// Source читает письма из ящика через Gmail REST API.
type Source struct {
	httpClient *http.Client
	baseURL    string
	query      string
	ownAddress string
	parser     AttachmentParser
	log        zerolog.Logger
}

var _ domain.MailSource = (*Source)(nil)

// Option настраивает Source.
type Option func(*Source)

// WithBaseURL подменяет адрес API, нужен для тестов.
func WithBaseURL(u string) Option {
	return func(s *Source) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithQuery задаёт поисковый запрос Gmail.
func WithQuery(q string) Option {
	return func(s *Source) {
		if strings.TrimSpace(q) != "" {
			s.query = q
		}
	}
}

// WithOwnAddress исключает собственные письма из выборки.
func WithOwnAddress(addr string) Option {
	return func(s *Source) {
		s.ownAddress = strings.TrimSpace(addr)
	}
}

// WithAttachmentParser заменяет разбор вложений.
func WithAttachmentParser(p AttachmentParser) Option {
	return func(s *Source) {
		s.parser = p
	}
}

// WithLogger задаёт логгер для пропущенных писем.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Source) {
		s.log = l
	}
}

// NewSource создаёт источник поверх авторизованного HTTP-клиента.
func NewSource(httpClient *http.Client, opts ...Option) *Source {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	s := &Source{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		query:      defaultQuery,
		parser:     NewAttachmentParser(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OAuthConfig описывает OAuth-клиент Gmail.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     endpoints.Google,
		Scopes:       []string{readonlyScope},
	}
}

// NewOAuthClient возвращает HTTP-клиент, сам обновляющий access token по refresh token.
func NewOAuthClient(ctx context.Context, clientID, clientSecret, refreshToken string) (*http.Client, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, errors.New("не заданы учётные данные gmail")
	}
	cfg := OAuthConfig(clientID, clientSecret, "")
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return oauth2.NewClient(ctx, ts), nil
}

type listResponse struct {
	Messages []struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

// Fetch возвращает письма из окна выборки в порядке, который отдал API.
// Письмо, которое не удалось получить или разобрать, пропускается; ошибка
// возвращается, только если не удалось получить список или ни одно письмо.
func (s *Source) Fetch(ctx context.Context) ([]domain.Message, error) {
	ids, err := s.listIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(ids))
	var errs []error
	for _, id := range ids {
		msg, err := s.fetchOne(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.log.Warn().Err(err).Str("message_id", id).Msg("письмо пропущено")
			errs = append(errs, err)
			continue
		}
		out = append(out, msg)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (s *Source) fetchOne(ctx context.Context, id string) (domain.Message, error) {
	var raw apiMessage
	path := "/gmail/v1/users/me/messages/" + url.PathEscape(id) + "?format=full"
	if err := s.getJSON(ctx, "get_message", path, &raw); err != nil {
		return domain.Message{}, err
	}
	return toMessage(raw)
}

func (s *Source) searchQuery() string {
	if s.ownAddress == "" {
		return s.query
	}
	return s.query + " -from:" + s.ownAddress
}

func (s *Source) listIDs(ctx context.Context) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("q", s.searchQuery())
		params.Set("maxResults", fmt.Sprint(pageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var page listResponse
		if err := s.getJSON(ctx, "list_messages", "/gmail/v1/users/me/messages?"+params.Encode(), &page); err != nil {
			return nil, err
		}
		for _, m := range page.Messages {
			ids = append(ids, m.ID)
		}
		if page.NextPageToken == "" {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}

// LoadAttachments скачивает и разбирает поддерживаемые вложения письма.
// Неподдерживаемые и неразобранные файлы пропускаются.
func (s *Source) LoadAttachments(ctx context.Context, msg domain.Message) ([]domain.Attachment, error) {
	var out []domain.Attachment
	for _, ref := range msg.AttachmentRefs {
		if !Supported(ref.Filename) {
			continue
		}
		var body apiBody
		path := fmt.Sprintf("/gmail/v1/users/me/messages/%s/attachments/%s", url.PathEscape(msg.ID), url.PathEscape(ref.ID))
		if err := s.getJSON(ctx, "get_attachment", path, &body); err != nil {
			return out, err
		}
		data, err := decodeData(body.Data)
		if err != nil {
			return out, fmt.Errorf("вложение %s: %w", ref.Filename, err)
		}
		text, err := s.parser.Parse(ctx, ref.Filename, []byte(data))
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, domain.Attachment{Filename: ref.Filename, Text: text})
	}
	return out, nil
}

func (s *Source) getJSON(ctx context.Context, op, path string, dst any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("gmail", op, "gmail.googleapis.com", start, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("gmail %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmail %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gmail %s: %w: %d", op, ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("gmail %s: разбор ответа: %w", op, err)
	}
	return nil
}
