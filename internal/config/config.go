package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	// ApplicationName is reported to the server and shows up in pg_stat_activity.
	ApplicationName   string
	ConnectTimeoutSec int
	// ConnectRetries is how many extra pings are attempted before giving up at startup.
	ConnectRetries int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// AuthConfig holds bearer token settings shared by the backend (verify) and the client (issue).
// An empty secret disables bearer tokens; identity then travels in the identity header only.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// MongoConfig holds the secondary (realtime) document store settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MirrorConfig controls the background queue that replicates writes to the secondary store.
// QueueDSN selects the backend: memory:// (in-process) or redis://host:port/db (durable).
type MirrorConfig struct {
	QueueDSN   string
	Workers    int
	Capacity   int
	MaxRetries int
	// MetricsAddr is where mirrorworker serves /metrics; empty disables it.
	MetricsAddr string
}

// BudgetConfig holds the per-operation time budgets of the sync client.
type BudgetConfig struct {
	List     time.Duration
	Update   time.Duration
	Trash    time.Duration
	Delete   time.Duration
	Create   time.Duration
	Download time.Duration
	Token    time.Duration
}

// ClientConfig holds settings for the sync client (docsync CLI and mirror worker).
type ClientConfig struct {
	PrimaryURL    string
	Identity      string
	Platform      string
	DownloadGrace time.Duration
	Budgets       BudgetConfig
	Mongo         MongoConfig
	Mirror        MirrorConfig
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost     string
	Port        string
	Timezone    string
	MaxUploadMB int
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Auth        AuthConfig
	Client      ClientConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:     getEnv("APP_HOST", "localhost:8080"),
		Port:        getEnv("PORT", "8080"), // default only for non-sensitive value
		Timezone:    getEnv("APP_TIMEZONE", "UTC"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 64),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			ApplicationName:    getEnv("DB_APPLICATION_NAME", "docvault"),
			ConnectTimeoutSec:  getEnvInt("DB_CONNECT_TIMEOUT_SEC", 5),
			ConnectRetries:     getEnvInt("DB_CONNECT_RETRIES", 5),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Region:    getEnv("MINIO_REGION", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("AUTH_TOKEN_TTL", 15*time.Minute),
		},
		Client: ClientConfig{
			PrimaryURL:    strings.TrimRight(getEnv("DOCSYNC_PRIMARY_URL", "http://localhost:8080"), "/"),
			Identity:      getEnv("DOCSYNC_IDENTITY", ""),
			Platform:      getEnv("DOCSYNC_PLATFORM", "desktop"),
			DownloadGrace: getEnvDuration("DOCSYNC_DOWNLOAD_GRACE", 60*time.Second),
			Budgets: BudgetConfig{
				List:     getEnvDuration("DOCSYNC_LIST_TIMEOUT", 10*time.Second),
				Update:   getEnvDuration("DOCSYNC_UPDATE_TIMEOUT", 10*time.Second),
				Trash:    getEnvDuration("DOCSYNC_TRASH_TIMEOUT", 10*time.Second),
				Delete:   getEnvDuration("DOCSYNC_DELETE_TIMEOUT", 10*time.Second),
				Create:   getEnvDuration("DOCSYNC_CREATE_TIMEOUT", 30*time.Second),
				Download: getEnvDuration("DOCSYNC_DOWNLOAD_TIMEOUT", 60*time.Second),
				Token:    getEnvDuration("DOCSYNC_TOKEN_TIMEOUT", 3*time.Second),
			},
			Mongo: MongoConfig{
				URI:        getEnv("MONGO_URI", ""),
				Database:   getEnv("MONGO_DATABASE", "docvault"),
				Collection: getEnv("MONGO_COLLECTION", "documents"),
			},
			Mirror: MirrorConfig{
				QueueDSN:    getEnv("MIRROR_QUEUE_DSN", "memory://"),
				Workers:     getEnvInt("MIRROR_WORKERS", 2),
				Capacity:    getEnvInt("MIRROR_QUEUE_CAPACITY", 256),
				MaxRetries:  getEnvInt("MIRROR_MAX_RETRIES", 5),
				MetricsAddr: getEnv("MIRROR_METRICS_ADDR", ""),
			},
		},
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("10s", "1m") and bare integers as milliseconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
