package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
	ProviderVertex   = "vertex"

	BackendGoogle = "google"
	BackendLocal  = "local"

	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	TelegramBotToken      string
	TelegramMode          string
	TelegramWebhookURL    string
	TelegramWebhookSecret string
	TelegramAPIURL        string
	WebhookPort           string

	OpsPort  string
	LogLevel string

	ActiveAIService   string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	DeepSeekAPIKey    string
	DeepSeekModel     string
	DeepSeekBaseURL   string
	OllamaURL         string
	OllamaVisionModel string
	VertexProjectID   string
	VertexRegion      string
	VertexModel       string

	StoreBackend          string
	GoogleSheetID         string
	GoogleCredentialsFile string
	LocalWorkbookPath     string
	StoragePath           string

	BranchMapFile string

	MaxImageSizeMB       int
	MaxPDFSizeMB         int
	AITimeout            time.Duration
	GoogleTimeout        time.Duration
	SessionTimeout       time.Duration
	SessionSweepInterval time.Duration

	ExtractionMaxAttempts      int
	ExtractionRateLimitBackoff time.Duration
	ExtractionRetryPause       time.Duration

	EnableDuplicateCheck  bool
	EnableAuditLog        bool
	MaxConcurrentSessions int

	AdminUserIDs []string

	UserRateLimitRPS   float64
	UserRateLimitBurst int

	PostgresDSN string
	NATSURL     string
	NATSSubject string

	WorkerMetricsPort string
}

// Load reads .env when present and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		TelegramBotToken:      mustEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramMode:          strings.ToLower(mustEnv("TELEGRAM_MODE", ModePolling)),
		TelegramWebhookURL:    mustEnv("TELEGRAM_WEBHOOK_URL", ""),
		TelegramWebhookSecret: mustEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		TelegramAPIURL:        mustEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		WebhookPort:           mustEnv("WEBHOOK_PORT", "8443"),

		OpsPort:  mustEnv("OPS_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		ActiveAIService:   strings.ToLower(mustEnv("ACTIVE_AI_SERVICE", ProviderOpenAI)),
		OpenAIAPIKey:      mustEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       mustEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     mustEnv("OPENAI_BASE_URL", ""),
		DeepSeekAPIKey:    mustEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekModel:     mustEnv("DEEPSEEK_MODEL", "deepseek-vision"),
		DeepSeekBaseURL:   mustEnv("DEEPSEEK_BASE_URL", ""),
		OllamaURL:         mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaVisionModel: mustEnv("OLLAMA_VISION_MODEL", "llama3.2-vision"),
		VertexProjectID:   mustEnv("VERTEX_PROJECT_ID", ""),
		VertexRegion:      mustEnv("VERTEX_REGION", "asia-southeast1"),
		VertexModel:       mustEnv("VERTEX_MODEL", "gemini-1.5-flash"),

		StoreBackend:          strings.ToLower(mustEnv("STORE_BACKEND", BackendGoogle)),
		GoogleSheetID:         mustEnv("GOOGLE_SHEET_ID", ""),
		GoogleCredentialsFile: mustEnv("GOOGLE_CREDENTIALS_FILE", "./credentials/service_account.json"),
		LocalWorkbookPath:     mustEnv("LOCAL_WORKBOOK_PATH", "./data/npwpktp.xlsx"),
		StoragePath:           mustEnv("STORAGE_PATH", "./data/storage"),

		BranchMapFile: mustEnv("BRANCH_MAP_FILE", ""),

		MaxImageSizeMB:       mustEnvInt("MAX_IMAGE_SIZE_MB", 20),
		MaxPDFSizeMB:         mustEnvInt("MAX_PDF_SIZE_MB", 50),
		AITimeout:            mustEnvDuration("AI_TIMEOUT", 60*time.Second),
		GoogleTimeout:        mustEnvDuration("GOOGLE_TIMEOUT", 30*time.Second),
		SessionTimeout:       mustEnvDuration("SESSION_TIMEOUT", 30*time.Minute),
		SessionSweepInterval: mustEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),

		ExtractionMaxAttempts:      mustEnvInt("EXTRACTION_MAX_ATTEMPTS", 3),
		ExtractionRateLimitBackoff: mustEnvDuration("EXTRACTION_RATE_LIMIT_BACKOFF", 5*time.Second),
		ExtractionRetryPause:       mustEnvDuration("EXTRACTION_RETRY_PAUSE", 2*time.Second),

		EnableDuplicateCheck:  mustEnvBool("ENABLE_DUPLICATE_CHECK", true),
		EnableAuditLog:        mustEnvBool("ENABLE_AUDIT_LOG", true),
		MaxConcurrentSessions: mustEnvInt("MAX_CONCURRENT_SESSIONS", 100),

		AdminUserIDs: splitList(mustEnv("ADMIN_USER_IDS", "")),

		UserRateLimitRPS:   mustEnvFloat("USER_RATE_LIMIT_RPS", 2),
		UserRateLimitBurst: mustEnvInt("USER_RATE_LIMIT_BURST", 5),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),
		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "intake.audit"),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// Validate reports every problem at once, wrapped as ErrConfiguration.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.TelegramBotToken) == "" {
		add("TELEGRAM_BOT_TOKEN is required")
	}
	switch c.TelegramMode {
	case ModePolling:
	case ModeWebhook:
		if c.TelegramWebhookURL == "" {
			add("TELEGRAM_WEBHOOK_URL is required in webhook mode")
		}
	default:
		add("TELEGRAM_MODE must be polling or webhook, got %q", c.TelegramMode)
	}

	if err := c.validateProvider(); err != nil {
		add("%s", err.Error())
	}

	switch c.StoreBackend {
	case BackendGoogle:
		if c.GoogleSheetID == "" {
			add("GOOGLE_SHEET_ID is required when STORE_BACKEND=google")
		}
	case BackendLocal:
		if c.LocalWorkbookPath == "" {
			add("LOCAL_WORKBOOK_PATH is required when STORE_BACKEND=local")
		}
	default:
		add("STORE_BACKEND must be google or local, got %q", c.StoreBackend)
	}

	if c.MaxImageSizeMB <= 0 || c.MaxImageSizeMB > 100 {
		add("MAX_IMAGE_SIZE_MB must be between 1 and 100")
	}
	if c.MaxPDFSizeMB <= 0 {
		add("MAX_PDF_SIZE_MB must be positive")
	}
	if c.SessionTimeout <= 0 {
		add("SESSION_TIMEOUT must be positive")
	}
	if c.AITimeout <= 0 || c.GoogleTimeout <= 0 {
		add("AI_TIMEOUT and GOOGLE_TIMEOUT must be positive")
	}
	if c.ExtractionMaxAttempts <= 0 {
		add("EXTRACTION_MAX_ATTEMPTS must be positive")
	}
	if c.MaxConcurrentSessions <= 0 {
		add("MAX_CONCURRENT_SESSIONS must be positive")
	}
	if c.UserRateLimitRPS <= 0 || c.UserRateLimitBurst <= 0 {
		add("USER_RATE_LIMIT_RPS and USER_RATE_LIMIT_BURST must be positive")
	}

	if _, err := c.Branches(); err != nil {
		add("%s", err.Error())
	}

	if len(problems) > 0 {
		return domain.WrapError(domain.ErrConfiguration, "config validate", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

func (c Config) validateProvider() error {
	switch c.ActiveAIService {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when using openai")
		}
	case ProviderDeepSeek:
		if c.DeepSeekAPIKey == "" {
			return errors.New("DEEPSEEK_API_KEY is required when using deepseek")
		}
	case ProviderOllama:
		if c.OllamaURL == "" {
			return errors.New("OLLAMA_URL is required when using ollama")
		}
	case ProviderVertex:
		if c.VertexProjectID == "" || c.VertexRegion == "" {
			return errors.New("VERTEX_PROJECT_ID and VERTEX_REGION are required when using vertex")
		}
	default:
		return fmt.Errorf("ACTIVE_AI_SERVICE must be one of openai, deepseek, ollama, vertex; got %q", c.ActiveAIService)
	}
	return nil
}

// Branches builds the branch map from BRANCH_MAP_FILE or the defaults.
func (c Config) Branches() (*domain.BranchMap, error) {
	if c.BranchMapFile == "" {
		return domain.NewBranchMap(DefaultFolderMap(), DefaultSheetMap())
	}
	return LoadBranchFile(c.BranchMapFile)
}

func (c Config) MaxImageBytes() int { return c.MaxImageSizeMB << 20 }

func (c Config) MaxPDFBytes() int { return c.MaxPDFSizeMB << 20 }

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("90s") and bare seconds ("90").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
