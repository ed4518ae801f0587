package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	Data       DataConfig
	Session    SessionConfig
	Auth       AuthConfig
	Admin      AdminConfig
	Storage    StorageConfig
	MQ         MQConfig
	Log        LogConfig
}

// DataConfig locates the JSON documents, their backups and the audit logs.
type DataConfig struct {
	Dir        string
	BackupDir  string
	LogDir     string
	MaxBackups int
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type AuthConfig struct {
	// PasswordScheme is "sha256" (compatible with existing data files) or "bcrypt".
	PasswordScheme  string
	DownloadSecret  string
	DownloadLinkTTL time.Duration
}

// AdminConfig is the administrator seeded on first run.
type AdminConfig struct {
	Username  string
	Password  string
	Email     string
	Phone     string
	CitizenID string
	FirstName string
	LastName  string
}

type StorageConfig struct {
	// Backend is one of "local", "minio" or "gcs".
	Backend  string
	LocalDir string
	Minio    MinioConfig
	GCS      GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	// Backend is one of "none", "memory", "rabbitmq" or "pubsub".
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dataDir := getEnv("DATA_DIR", ".")

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Data: DataConfig{
			Dir:        dataDir,
			BackupDir:  getEnv("BACKUP_DIR", "backups"),
			LogDir:     getEnv("LOG_DIR", "logs"),
			MaxBackups: getEnvInt("MAX_BACKUPS", 5),
		},
		Session: SessionConfig{
			TTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 0),
		},
		Auth: AuthConfig{
			PasswordScheme:  strings.ToLower(getEnv("PASSWORD_SCHEME", "sha256")),
			DownloadSecret:  getEnv("DOWNLOAD_LINK_SECRET", ""),
			DownloadLinkTTL: getEnvDuration("DOWNLOAD_LINK_TTL", 15*time.Minute),
		},
		Admin: AdminConfig{
			Username:  getEnv("ADMIN_USERNAME", "admin"),
			Password:  getEnv("ADMIN_PASSWORD", "admin123"),
			Email:     getEnv("ADMIN_EMAIL", "admin@university.ac.th"),
			Phone:     getEnv("ADMIN_PHONE", "0800000000"),
			CitizenID: getEnv("ADMIN_CITIZEN_ID", "1234567890123"),
			FirstName: getEnv("ADMIN_FIRST_NAME", "ผู้ดูแล"),
			LastName:  getEnv("ADMIN_LAST_NAME", "ระบบ"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			LocalDir: getEnv("UPLOAD_DIR", "uploaded_documents"),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "admission-documents"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		MQ: MQConfig{
			Backend: strings.ToLower(getEnv("MQ_BACKEND", "none")),
			Channel: getEnv("MQ_CHANNEL", "portal-events"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 0),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
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
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90m") or plain seconds ("86400").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueStr = strings.TrimSpace(valueStr)
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
