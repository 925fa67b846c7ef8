// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// OperatorAuthConfig provides settings needed by the operator auth service.
type OperatorAuthConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// BootstrapConfig provides the optional seed operator ensured at startup.
type BootstrapConfig interface {
	GetBootstrapOperatorName() string
	GetBootstrapOperatorKey() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// AMIConfig provides settings for the Asterisk Manager Interface session.
type AMIConfig interface {
	GetAMIAddr() string
	GetAMIUsername() string
	GetAMISecret() string
	GetAMIReconnectDelay() time.Duration
}

// OriginateConfig provides dial-plan defaults for outbound originations.
// Per-operator settings override the trunk and caller ID at dispatch time.
type OriginateConfig interface {
	GetDialContext() string
	GetDialExtension() string
	GetDialPriority() int
	GetDialTimeout() time.Duration
	GetDefaultTrunk() string
	GetDefaultCallerID() string
}

// DispatchConfig provides settings for the background dispatch queue.
type DispatchConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetDispatchQueueName() string
	GetWorkerConcurrency() int
}

// CampaignConfig provides campaign sizing and pacing settings.
type CampaignConfig interface {
	GetDefaultCallConcurrency() int
	GetChunkPause() time.Duration
	GetMaxCampaignNumbers() int
	GetProgressEditInterval() time.Duration
}

// EngineConfig provides settings for the event correlation engine. The dial
// context scopes unknown-call tracking to channels of the dialer's own IVR.
type EngineConfig interface {
	GetEngineShards() int
	GetTrackUnknownCalls() bool
	GetDialContext() string
}

// TelegramConfig provides settings for the Telegram notification channel.
type TelegramConfig interface {
	GetTelegramAPIURL() string
	GetTelegramBotToken() string
	IsTelegramEnabled() bool
}

// MQTTConfig provides settings for the optional call state feed.
type MQTTConfig interface {
	GetMQTTBrokerURL() string
	GetMQTTClientID() string
	GetMQTTTopicPrefix() string
	IsMQTTEnabled() bool
}

// SMTPConfig provides settings for campaign report emails.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromName() string
	GetSMTPFromAddress() string
	GetReportRecipient() string
	IsSMTPEnabled() bool
}

// MinIOConfig provides settings for S3-compatible intake archival.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketIntake() string
	IsMinIOEnabled() bool
}

// RoutesConfig provides the path to the named dial-route table.
type RoutesConfig interface {
	GetRoutesFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	AccessTokenTTL         time.Duration
	BootstrapOperatorName  string
	BootstrapOperatorKey   string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	AMIAddr                string
	AMIUsername            string
	AMISecret              string
	AMIReconnectDelay      time.Duration
	DialContext            string
	DialExtension          string
	DialPriority           int
	DialTimeout            time.Duration
	DefaultTrunk           string
	DefaultCallerID        string
	RedisURL               string
	RedisTLSInsecure       bool
	DispatchQueue          string
	WorkerConcurrency      int
	DefaultCallConcurrency int
	ChunkPause             time.Duration
	MaxCampaignNumbers     int
	ProgressEditInterval   time.Duration
	EngineShards           int
	TrackUnknownCalls      bool
	TelegramAPIURL         string
	TelegramBotToken       string
	MQTTBrokerURL          string
	MQTTClientID           string
	MQTTTopicPrefix        string
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	SMTPFromName           string
	SMTPFromAddress        string
	ReportRecipient        string
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinioBucketIntake      string
	RoutesFile             string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// OperatorAuthConfig implementation
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// BootstrapConfig implementation
func (c *Config) GetBootstrapOperatorName() string { return c.BootstrapOperatorName }
func (c *Config) GetBootstrapOperatorKey() string  { return c.BootstrapOperatorKey }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// AMIConfig implementation
func (c *Config) GetAMIAddr() string                  { return c.AMIAddr }
func (c *Config) GetAMIUsername() string              { return c.AMIUsername }
func (c *Config) GetAMISecret() string                { return c.AMISecret }
func (c *Config) GetAMIReconnectDelay() time.Duration { return c.AMIReconnectDelay }

// OriginateConfig implementation
func (c *Config) GetDialContext() string        { return c.DialContext }
func (c *Config) GetDialExtension() string      { return c.DialExtension }
func (c *Config) GetDialPriority() int          { return c.DialPriority }
func (c *Config) GetDialTimeout() time.Duration { return c.DialTimeout }
func (c *Config) GetDefaultTrunk() string       { return c.DefaultTrunk }
func (c *Config) GetDefaultCallerID() string    { return c.DefaultCallerID }

// DispatchConfig implementation
func (c *Config) GetRedisURL() string          { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool    { return c.RedisTLSInsecure }
func (c *Config) GetDispatchQueueName() string { return c.DispatchQueue }
func (c *Config) GetWorkerConcurrency() int    { return c.WorkerConcurrency }

// CampaignConfig implementation
func (c *Config) GetDefaultCallConcurrency() int         { return c.DefaultCallConcurrency }
func (c *Config) GetChunkPause() time.Duration           { return c.ChunkPause }
func (c *Config) GetMaxCampaignNumbers() int             { return c.MaxCampaignNumbers }
func (c *Config) GetProgressEditInterval() time.Duration { return c.ProgressEditInterval }

// EngineConfig implementation
func (c *Config) GetEngineShards() int       { return c.EngineShards }
func (c *Config) GetTrackUnknownCalls() bool { return c.TrackUnknownCalls }

// TelegramConfig implementation
func (c *Config) GetTelegramAPIURL() string   { return c.TelegramAPIURL }
func (c *Config) GetTelegramBotToken() string { return c.TelegramBotToken }
func (c *Config) IsTelegramEnabled() bool     { return c.TelegramBotToken != "" }

// MQTTConfig implementation
func (c *Config) GetMQTTBrokerURL() string   { return c.MQTTBrokerURL }
func (c *Config) GetMQTTClientID() string    { return c.MQTTClientID }
func (c *Config) GetMQTTTopicPrefix() string { return c.MQTTTopicPrefix }
func (c *Config) IsMQTTEnabled() bool        { return c.MQTTBrokerURL != "" }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetSMTPFromName() string    { return c.SMTPFromName }
func (c *Config) GetSMTPFromAddress() string { return c.SMTPFromAddress }
func (c *Config) GetReportRecipient() string { return c.ReportRecipient }
func (c *Config) IsSMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFromAddress != ""
}

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string     { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string    { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string    { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool         { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketIntake() string { return c.MinioBucketIntake }
func (c *Config) IsMinIOEnabled() bool         { return c.MinIOEndpoint != "" }

// RoutesConfig implementation
func (c *Config) GetRoutesFile() string { return c.RoutesFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:         mustDuration(getEnv("JWT_ACCESS_TTL", "12h")),
		BootstrapOperatorName:  getEnv("BOOTSTRAP_OPERATOR_NAME", ""),
		BootstrapOperatorKey:   getEnv("BOOTSTRAP_OPERATOR_KEY", ""),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AMIAddr:                getEnv("AMI_ADDR", "127.0.0.1:5038"),
		AMIUsername:            getEnv("AMI_USERNAME", ""),
		AMISecret:              getEnv("AMI_SECRET", ""),
		AMIReconnectDelay:      mustDuration(getEnv("AMI_RECONNECT_DELAY", "5s")),
		DialContext:            getEnv("DIAL_CONTEXT", "autodial-ivr"),
		DialExtension:          getEnv("DIAL_EXTENSION", "s"),
		DialPriority:           mustInt(getEnv("DIAL_PRIORITY", "1")),
		DialTimeout:            mustDuration(getEnv("DIAL_TIMEOUT", "45s")),
		DefaultTrunk:           getEnv("DEFAULT_TRUNK", ""),
		DefaultCallerID:        getEnv("DEFAULT_CALLER_ID", ""),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		DispatchQueue:          getEnv("DISPATCH_QUEUE", "dispatch"),
		WorkerConcurrency:      mustInt(getEnv("WORKER_CONCURRENCY", "4")),
		DefaultCallConcurrency: mustInt(getEnv("DEFAULT_CALL_CONCURRENCY", "5")),
		ChunkPause:             mustDuration(getEnv("CHUNK_PAUSE", "500ms")),
		MaxCampaignNumbers:     mustInt(getEnv("MAX_CAMPAIGN_NUMBERS", "10000")),
		ProgressEditInterval:   mustDuration(getEnv("PROGRESS_EDIT_INTERVAL", "2s")),
		EngineShards:           mustInt(getEnv("ENGINE_SHARDS", "8")),
		TrackUnknownCalls:      strings.EqualFold(getEnv("TRACK_UNKNOWN_CALLS", "true"), "true"),
		TelegramAPIURL:         getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		TelegramBotToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		MQTTBrokerURL:          getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:           getEnv("MQTT_CLIENT_ID", "autodial-backend"),
		MQTTTopicPrefix:        getEnv("MQTT_TOPIC_PREFIX", "dialer"),
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		SMTPFromName:           getEnv("SMTP_FROM_NAME", "Dialer"),
		SMTPFromAddress:        getEnv("SMTP_FROM_ADDRESS", ""),
		ReportRecipient:        getEnv("REPORT_RECIPIENT", ""),
		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketIntake:      getEnv("MINIO_BUCKET_INTAKE", "campaign-intake"),
		RoutesFile:             getEnv("ROUTES_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.AMIUsername == "" || cfg.AMISecret == "" {
		return nil, fmt.Errorf("AMI_USERNAME and AMI_SECRET are required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.DefaultCallConcurrency < 1 {
		return nil, fmt.Errorf("DEFAULT_CALL_CONCURRENCY must be at least 1")
	}
	if cfg.EngineShards < 1 {
		return nil, fmt.Errorf("ENGINE_SHARDS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
