package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"opportunity-radar/internal/domain"
)

// ErrInvalidConfig оборачивает все ошибки проверки конфигурации.
var ErrInvalidConfig = errors.New("некорректная конфигурация")

// AppConfig описывает конфигурацию сервисов из окружения.
type AppConfig struct {
	AppEnv      string        `envconfig:"APP_ENV" default:"dev"`
	RunInterval time.Duration `envconfig:"RUN_INTERVAL" default:"0s"`
	HTTPAddr    string        `envconfig:"HTTP_ADDR" default:":8080"`
	ResumePath  string        `envconfig:"RESUME_PATH" default:"resume.txt"`
	RulesPath   string        `envconfig:"RULES_PATH" default:"rules.yaml"`
	ViewURL     string        `envconfig:"VIEW_URL"`

	Store struct {
		Driver     string `envconfig:"STORE_DRIVER" default:"sqlite"`
		PGDSN      string `envconfig:"PG_DSN"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"data/radar.db"`
	} `envconfig:""`

	Seen struct {
		Driver    string        `envconfig:"SEEN_DRIVER" default:"store"`
		RedisAddr string        `envconfig:"REDIS_ADDR"`
		TTL       time.Duration `envconfig:"SEEN_TTL" default:"0s"`
	} `envconfig:""`

	LLM struct {
		Provider      string        `envconfig:"LLM_PROVIDER" default:"gemini"`
		GeminiAPIKey  string        `envconfig:"GEMINI_API_KEY"`
		GeminiModel   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
		OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
		OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL"`
		OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout       time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
		MinInterval   time.Duration `envconfig:"LLM_MIN_INTERVAL" default:"5s"`
	} `envconfig:""`

	Gmail struct {
		ClientID     string `envconfig:"GMAIL_CLIENT_ID"`
		ClientSecret string `envconfig:"GMAIL_CLIENT_SECRET"`
		RefreshToken string `envconfig:"GMAIL_REFRESH_TOKEN"`
		Query        string `envconfig:"GMAIL_QUERY" default:"newer_than:1h"`
		OwnAddress   string `envconfig:"GMAIL_OWN_ADDRESS"`
	} `envconfig:""`

	Notify struct {
		Sinks []string `envconfig:"NOTIFY_SINKS" default:"telegram"`

		TelegramToken  string `envconfig:"TG_BOT_TOKEN"`
		TelegramChatID int64  `envconfig:"TG_CHAT_ID"`

		SMTPHost     string   `envconfig:"SMTP_HOST"`
		SMTPPort     int      `envconfig:"SMTP_PORT" default:"587"`
		SMTPUser     string   `envconfig:"SMTP_USER"`
		SMTPPassword string   `envconfig:"SMTP_PASSWORD"`
		SMTPFrom     string   `envconfig:"SMTP_FROM"`
		SMTPTo       []string `envconfig:"SMTP_TO"`

		AMQPURL      string `envconfig:"AMQP_URL"`
		AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"opportunities"`
	} `envconfig:""`
}

// Rules: правила фильтрации и уведомлений из YAML-файла.
type Rules struct {
	TrustedDomains        []string `yaml:"trusted_domains"`
	Keywords              []string `yaml:"keywords"`
	PersonalMinRecipients int      `yaml:"personal_min_recipients"`
	NotifyMinScore        int      `yaml:"notify_min_score"`
	RejectSeenPolicy      string   `yaml:"reject_seen_policy"`
}

// SeenPolicy возвращает политику отметки отклонённых писем.
func (r Rules) SeenPolicy() domain.SeenPolicy {
	return domain.SeenPolicy(r.RejectSeenPolicy)
}

// Load читает окружение и файл правил; любая ошибка проверки фатальна для запуска.
func Load() (AppConfig, Rules, error) {
	cfg, err := LoadEnv()
	if err != nil {
		return AppConfig{}, Rules{}, err
	}
	rules, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return AppConfig{}, Rules{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, Rules{}, err
	}
	return cfg, rules, nil
}

// LoadEnv загружает конфиг из окружения без проверки бэкендов.
func LoadEnv() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.Notify.Sinks = normalizeList(cfg.Notify.Sinks)
	cfg.Notify.SMTPTo = trimList(cfg.Notify.SMTPTo)
	return cfg, nil
}

// LoadRules читает YAML, подставляя ${ENV}, и проверяет правила.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("%w: чтение правил %s: %v", ErrInvalidConfig, path, err)
	}
	return ParseRules(data)
}

// ParseRules разбирает правила из YAML и подставляет значения по умолчанию.
func ParseRules(data []byte) (Rules, error) {
	rules := Rules{
		PersonalMinRecipients: 2,
		NotifyMinScore:        6,
		RejectSeenPolicy:      string(domain.SeenPolicyAIOnly),
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &rules); err != nil {
		return Rules{}, fmt.Errorf("%w: разбор правил: %v", ErrInvalidConfig, err)
	}
	rules.TrustedDomains = normalizeList(rules.TrustedDomains)
	rules.Keywords = normalizeList(rules.Keywords)
	rules.RejectSeenPolicy = strings.ToLower(strings.TrimSpace(rules.RejectSeenPolicy))
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate проверяет правила фильтрации.
func (r Rules) Validate() error {
	var problems []string
	if len(r.TrustedDomains) == 0 {
		problems = append(problems, "пустой список доверенных доменов")
	}
	if len(r.Keywords) == 0 {
		problems = append(problems, "пустой список ключевых слов")
	}
	if r.PersonalMinRecipients < 0 {
		problems = append(problems, "отрицательный порог получателей")
	}
	if r.NotifyMinScore < 1 || r.NotifyMinScore > 10 {
		problems = append(problems, fmt.Sprintf("порог уведомлений %d вне 1..10", r.NotifyMinScore))
	}
	if !r.SeenPolicy().Valid() {
		problems = append(problems, fmt.Sprintf("неизвестная политика %q", r.RejectSeenPolicy))
	}
	return joinProblems(problems)
}

// Validate проверяет выбранные драйверы и наличие учётных данных для них.
func (c AppConfig) Validate() error {
	var problems []string
	switch c.Store.Driver {
	case "postgres":
		switch {
		case c.Store.PGDSN == "":
			problems = append(problems, "STORE_DRIVER=postgres требует PG_DSN")
		case !strings.HasPrefix(c.Store.PGDSN, "postgres://") && !strings.HasPrefix(c.Store.PGDSN, "postgresql://"):
			// мигратору нужен DSN в виде URL, формат key=value он не принимает
			problems = append(problems, "PG_DSN должен быть URL вида postgres://")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, "STORE_DRIVER=sqlite требует SQLITE_PATH")
		}
	default:
		problems = append(problems, fmt.Sprintf("неизвестный STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Seen.Driver {
	case "store":
	case "redis":
		if c.Seen.RedisAddr == "" {
			problems = append(problems, "SEEN_DRIVER=redis требует REDIS_ADDR")
		}
	default:
		problems = append(problems, fmt.Sprintf("неизвестный SEEN_DRIVER %q", c.Seen.Driver))
	}
	if c.Seen.TTL < 0 {
		problems = append(problems, "отрицательный SEEN_TTL")
	}

	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			problems = append(problems, "LLM_PROVIDER=gemini требует GEMINI_API_KEY")
		}
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			problems = append(problems, "LLM_PROVIDER=openai требует OPENAI_API_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("неизвестный LLM_PROVIDER %q", c.LLM.Provider))
	}

	if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" {
		problems = append(problems, "нужны GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET и GMAIL_REFRESH_TOKEN")
	}

	if len(c.Notify.Sinks) == 0 {
		problems = append(problems, "NOTIFY_SINKS должен содержать хотя бы один канал")
	}
	for _, sink := range c.Notify.Sinks {
		switch sink {
		case "telegram":
			if c.Notify.TelegramToken == "" || c.Notify.TelegramChatID == 0 {
				problems = append(problems, "telegram требует TG_BOT_TOKEN и TG_CHAT_ID")
			}
		case "email":
			if c.Notify.SMTPHost == "" || c.Notify.SMTPFrom == "" || len(c.Notify.SMTPTo) == 0 {
				problems = append(problems, "email требует SMTP_HOST, SMTP_FROM и SMTP_TO")
			}
		case "amqp":
			if c.Notify.AMQPURL == "" {
				problems = append(problems, "amqp требует AMQP_URL")
			}
		default:
			problems = append(problems, fmt.Sprintf("неизвестный канал уведомлений %q", sink))
		}
	}
	return joinProblems(problems)
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

func normalizeList(items []string) []string {
	out := trimList(items)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// trimList убирает пробелы и пустые элементы, регистр не меняет.
func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
