package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	StorageTimeout time.Duration

	// Timezone is the single reference zone for every timestamp the service
	// records or displays.
	Timezone string

	// OvertimeThresholdHours is the whole-hour mark at which an open session
	// triggers its one-time alert. OvertimeScanInterval is how often the
	// monitor re-evaluates open sessions.
	OvertimeThresholdHours int
	OvertimeScanInterval   time.Duration

	// NotifyBackend selects the alert delivery channel: "sns" or "email".
	NotifyBackend    string
	SNSUserTopicARN  string
	SNSAuditTopicARN string
	NotifyAuditEmail string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Sessions string
	Counters string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Sessions: getEnv("DYNAMO_TABLE_SESSIONS", "timeclock_sessions"),
			Counters: getEnv("DYNAMO_TABLE_COUNTERS", "timeclock_counters"),
		},
		StorageTimeout: getEnvDuration("STORAGE_TIMEOUT", 5*time.Second),

		Timezone: getEnv("TIMEZONE", "America/New_York"),

		OvertimeThresholdHours: getEnvInt("OVERTIME_THRESHOLD_HOURS", 2),
		OvertimeScanInterval:   getEnvDuration("OVERTIME_SCAN_INTERVAL", time.Minute),

		NotifyBackend:    getEnv("NOTIFY_BACKEND", "sns"),
		SNSUserTopicARN:  getEnv("SNS_USER_TOPIC_ARN", ""),
		SNSAuditTopicARN: getEnv("SNS_AUDIT_TOPIC_ARN", ""),
		NotifyAuditEmail: getEnv("NOTIFY_AUDIT_EMAIL", "ops@example.com"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "timeclock@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
