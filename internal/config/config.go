package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/welldanyogia/webrana-mail-digest/internal/validator"
)

// Mailbox providers
const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

// Fetch failure policies
const (
	FailOpen   = "open"
	FailClosed = "closed"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Host     string
	Port     int
	Debug    bool
	AppEnv   string
	LogLevel string

	// Security
	APIKey            string
	AllowedOrigins    string
	RateLimitRequests float64
	RateLimitBurst    int

	// Database
	DatabaseDriver string
	DatabaseURL    string

	// Outbound SMTP
	SMTPServer   string
	SMTPPort     int
	SMTPSecurity string
	EmailAddress string
	EmailPass    string
	SMTPTimeout  time.Duration

	// Mailbox
	MailboxProvider      string
	GmailCredentialsPath string
	GmailTokenPath       string
	GmailRedirectURL     string
	TokenStore           string
	KeyringService       string
	FetchMaxResults      int
	IMAPServer           string
	IMAPPort             int
	IMAPUsername         string
	IMAPPassword         string
	IMAPMailbox          string
	IMAPTLS              bool

	// Summarizer
	GroqAPIKey           string
	GroqBaseURL          string
	GroqModel            string
	LLMTemperature       float64
	LLMMaxTokens         int
	LLMTimeout           time.Duration
	LLMRequestsPerMinute int
	SummaryConcurrency   int

	// Report
	ReportRecipient     string
	ReportWindow        time.Duration
	ReportInterval      time.Duration
	DebugReportInterval time.Duration
	ReportRunTimeout    time.Duration
	FetchFailurePolicy  string
	ReportArchivePath   string
	// ReportRetention of zero keeps run history and archives forever
	ReportRetention time.Duration

	// Development SMTP sink
	SMTPSinkEnabled bool
	SMTPSinkAddr    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Host = getEnv("HOST", "0.0.0.0")
	if cfg.Port, err = getEnvInt("PORT", 8000); err != nil {
		return nil, err
	}
	if cfg.Debug, err = getEnvBool("DEBUG", false); err != nil {
		return nil, err
	}
	cfg.AppEnv = getEnv("APP_ENV", "development")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	if cfg.RateLimitRequests, err = getEnvFloat("RATE_LIMIT_REQUESTS", 10.0); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}

	cfg.DatabaseDriver = strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite"))
	cfg.DatabaseURL = getEnv("DATABASE_URL", "mail_digest.db")

	cfg.SMTPServer = getEnv("SMTP_SERVER", "smtp.gmail.com")
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTPSecurity = strings.ToLower(getEnv("SMTP_SECURITY", "auto"))
	cfg.EmailAddress = os.Getenv("EMAIL_ADDRESS")
	cfg.EmailPass = os.Getenv("EMAIL_PASSWORD")
	if cfg.SMTPTimeout, err = getEnvDuration("SMTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.MailboxProvider = strings.ToLower(getEnv("MAILBOX_PROVIDER", ProviderGmail))
	cfg.GmailCredentialsPath = getEnv("GMAIL_CREDENTIALS_PATH", "credentials.json")
	cfg.GmailTokenPath = getEnv("GMAIL_TOKEN_PATH", "token.json")
	cfg.GmailRedirectURL = getEnv("GMAIL_REDIRECT_URL", "")
	cfg.TokenStore = strings.ToLower(getEnv("TOKEN_STORE", "file"))
	cfg.KeyringService = getEnv("KEYRING_SERVICE", "mail-digest")
	if cfg.FetchMaxResults, err = getEnvInt("FETCH_MAX_RESULTS", 100); err != nil {
		return nil, err
	}
	cfg.IMAPServer = getEnv("IMAP_SERVER", "imap.gmail.com")
	if cfg.IMAPPort, err = getEnvInt("IMAP_PORT", 993); err != nil {
		return nil, err
	}
	cfg.IMAPUsername = getEnv("IMAP_USERNAME", cfg.EmailAddress)
	cfg.IMAPPassword = getEnv("IMAP_PASSWORD", cfg.EmailPass)
	cfg.IMAPMailbox = getEnv("IMAP_MAILBOX", "INBOX")
	if cfg.IMAPTLS, err = getEnvBool("IMAP_TLS", true); err != nil {
		return nil, err
	}

	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.GroqBaseURL = getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	cfg.GroqModel = getEnv("GROQ_MODEL", "llama-3.3-70b-versatile")
	if cfg.LLMTemperature, err = getEnvFloat("LLM_TEMPERATURE", 0.3); err != nil {
		return nil, err
	}
	if cfg.LLMMaxTokens, err = getEnvInt("LLM_MAX_TOKENS", 300); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getEnvDuration("LLM_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLMRequestsPerMinute, err = getEnvInt("LLM_REQUESTS_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.SummaryConcurrency, err = getEnvInt("SUMMARY_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	cfg.ReportRecipient = strings.TrimSpace(os.Getenv("REPORT_RECIPIENT_EMAIL"))
	if cfg.ReportWindow, err = getEnvDuration("REPORT_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ReportInterval, err = getEnvDuration("REPORT_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DebugReportInterval, err = getEnvDuration("DEBUG_REPORT_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReportRunTimeout, err = getEnvDuration("REPORT_RUN_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	cfg.FetchFailurePolicy = strings.ToLower(getEnv("FETCH_FAILURE_POLICY", FailOpen))
	cfg.ReportArchivePath = getEnv("REPORT_ARCHIVE_PATH", "./reports")
	if cfg.ReportRetention, err = getEnvDuration("REPORT_RETENTION", 0); err != nil {
		return nil, err
	}

	if cfg.SMTPSinkEnabled, err = getEnvBool("SMTP_SINK_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.SMTPSinkAddr = getEnv("SMTP_SINK_ADDR", "127.0.0.1:2525")

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
// Missing credentials are not errors here: the service runs degraded and reports them in /health.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}
	switch c.SMTPSecurity {
	case "auto", "tls", "starttls", "none":
	default:
		return fmt.Errorf("SMTP_SECURITY must be one of auto, tls, starttls, none")
	}
	switch c.MailboxProvider {
	case ProviderGmail, ProviderIMAP:
	default:
		return fmt.Errorf("MAILBOX_PROVIDER must be gmail or imap, got %q", c.MailboxProvider)
	}
	switch c.TokenStore {
	case "file", "keyring", "memory":
	default:
		return fmt.Errorf("TOKEN_STORE must be one of file, keyring, memory")
	}
	switch c.FetchFailurePolicy {
	case FailOpen, FailClosed:
	default:
		return fmt.Errorf("FETCH_FAILURE_POLICY must be open or closed")
	}
	if c.FetchMaxResults <= 0 || c.FetchMaxResults > 500 {
		return fmt.Errorf("FETCH_MAX_RESULTS must be between 1 and 500")
	}
	if c.ReportWindow <= 0 {
		return fmt.Errorf("REPORT_WINDOW must be positive")
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("REPORT_INTERVAL must be positive")
	}
	if c.ReportRetention < 0 {
		return fmt.Errorf("REPORT_RETENTION must not be negative")
	}
	if c.SummaryConcurrency < 1 {
		return fmt.Errorf("SUMMARY_CONCURRENCY must be at least 1")
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.ReportRecipient != "" {
		if err := validator.ValidateEmail(c.ReportRecipient); err != nil {
			return fmt.Errorf("REPORT_RECIPIENT_EMAIL is invalid: %w", err)
		}
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	if c.DatabaseDriver == "postgres" && strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.SMTPSinkEnabled {
		return fmt.Errorf("SMTP_SINK_ENABLED cannot be used in production")
	}

	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ListenAddr returns the HTTP listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EmailConfigured reports whether outbound SMTP credentials are present
func (c *Config) EmailConfigured() bool {
	return c.EmailAddress != "" && c.EmailPass != ""
}

// Origins splits ALLOWED_ORIGINS into a trimmed list
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.String("listen_addr", c.ListenAddr()),
		slog.Bool("debug", c.Debug),
		slog.String("app_env", c.AppEnv),
		slog.String("log_level", c.LogLevel),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.String("database_driver", c.DatabaseDriver),
		slog.String("smtp_server", c.SMTPServer),
		slog.Int("smtp_port", c.SMTPPort),
		slog.Bool("email_configured", c.EmailConfigured()),
		slog.String("mailbox_provider", c.MailboxProvider),
		slog.String("token_store", c.TokenStore),
		slog.Bool("llm_configured", c.GroqAPIKey != ""),
		slog.String("llm_model", c.GroqModel),
		slog.Int("summary_concurrency", c.SummaryConcurrency),
		slog.Bool("report_recipient_set", c.ReportRecipient != ""),
		slog.Duration("report_window", c.ReportWindow),
		slog.Duration("report_interval", c.ReportInterval),
		slog.String("fetch_failure_policy", c.FetchFailurePolicy),
		slog.Duration("report_retention", c.ReportRetention),
		slog.Bool("smtp_sink_enabled", c.SMTPSinkEnabled),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return v, nil
}
