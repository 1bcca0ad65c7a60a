package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	Database   DatabaseConfig
	Session    SessionConfig
	MFA        MFAConfig
	Audit      AuditConfig
	Storage    StorageConfig
	MQ         MQConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// SessionConfig controls the cookie-backed browser session.
type SessionConfig struct {
	// Secret signs session cookies. Required.
	Secret string
	// Name is the session cookie name.
	Name string
	// MaxAge is the cookie lifetime in seconds.
	MaxAge int
	// Secure marks the cookie as HTTPS-only.
	Secure bool
}

// MFAConfig controls TOTP provisioning.
type MFAConfig struct {
	// Issuer is the label shown in authenticator apps.
	Issuer string
}

// AuditConfig controls the security event log.
type AuditConfig struct {
	// LogPath is the file the structured security log is appended to.
	LogPath string
	// EventChannel is the broker channel security events are published to.
	// Empty disables publishing.
	EventChannel string
	// ArchivePrefix is the object key prefix for archived log segments.
	ArchivePrefix string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
}

// StorageConfig selects the object-storage backend for audit archives.
// Backend is "minio", "gcs", or empty to disable archiving.
type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID       string
	CredentialsFile string
}

// MQConfig selects the broker backend for security event publishing.
// Backend is "rabbitmq", "pubsub", or empty to disable publishing.
type MQConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "secureblog"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "secureblog_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Database:   dbConfig,
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
			Name:   getEnv("SESSION_NAME", "secureblog_session"),
			MaxAge: getEnvInt("SESSION_MAX_AGE", 3600),
			Secure: getEnvBool("SESSION_SECURE", false),
		},
		MFA: MFAConfig{
			Issuer: getEnv("MFA_ISSUER", "Secure Blog"),
		},
		Audit: AuditConfig{
			LogPath:       getEnv("AUDIT_LOG_PATH", "security.log"),
			EventChannel:  getEnv("AUDIT_EVENT_CHANNEL", "security-events"),
			ArchivePrefix: getEnv("AUDIT_ARCHIVE_PREFIX", "security-log"),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", ""),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "secureblog-audit"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				Bucket:          getEnv("GCS_BUCKET", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		MQ: MQConfig{
			Backend: getEnv("MQ_BACKEND", ""),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			},
			PubSub: PubSubConfig{
				ProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile: getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		return valueStr == "true" || valueStr == "1"
	}
	return defaultValue
}
