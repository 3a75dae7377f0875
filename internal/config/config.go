package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"10080"`

	LLMProvider        string `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMAPIKey          string `env:"LLM_API_KEY"`
	LLMBaseURL         string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel           string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMAssistantID     string `env:"LLM_ASSISTANT_ID"`
	LLMPollIntervalMS  int    `env:"LLM_POLL_INTERVAL_MS" envDefault:"1000"`
	LLMPollMaxAttempts int    `env:"LLM_POLL_MAX_ATTEMPTS" envDefault:"30"`
	GeminiAPIKey       string `env:"GEMINI_API_KEY"`
	GeminiModel        string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	AnalysisMaxAttempts   int `env:"ANALYSIS_MAX_ATTEMPTS" envDefault:"2"`
	AnalysisBackoffMS     int `env:"ANALYSIS_BACKOFF_MS" envDefault:"1000"`
	AnalysisQueueSize     int `env:"ANALYSIS_QUEUE_SIZE" envDefault:"64"`
	AnalysisCacheTTLHours int `env:"ANALYSIS_CACHE_TTL_HOURS" envDefault:"168"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Avaliação Comportamental"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ProfileWebhookURL            string `env:"PROFILE_WEBHOOK_URL"`
	ProfileWebhookTimeoutSeconds int    `env:"PROFILE_WEBHOOK_TIMEOUT_SECONDS" envDefault:"10"`

	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLMinutes) * time.Minute
}

func (c *Config) LLMPollInterval() time.Duration {
	return time.Duration(c.LLMPollIntervalMS) * time.Millisecond
}

func (c *Config) AnalysisBackoff() time.Duration {
	return time.Duration(c.AnalysisBackoffMS) * time.Millisecond
}

func (c *Config) AnalysisCacheTTL() time.Duration {
	return time.Duration(c.AnalysisCacheTTLHours) * time.Hour
}

func (c *Config) ProfileWebhookTimeout() time.Duration {
	return time.Duration(c.ProfileWebhookTimeoutSeconds) * time.Second
}

// IsAdminEmail compara sin distinguir mayúsculas.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if strings.ToLower(strings.TrimSpace(e)) == email && email != "" {
			return true
		}
	}
	return false
}
