package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxUploadBytes is the upload ceiling used when MAX_UPLOAD_BYTES is unset (50 MiB).
	DefaultMaxUploadBytes int64 = 50 << 20

	defaultAllowedMIMETypes = "application/pdf,image/png,image/jpeg,application/msword," +
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document"
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
	// ConnectAttempts is how many pings startup makes before giving up on the database.
	ConnectAttempts int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Storage drivers.
const (
	DriverLocal = "local"
	DriverMinIO = "minio"
)

// StorageConfig selects and configures the document byte store.
// Driver is either "local" (files under UploadDir) or "minio".
type StorageConfig struct {
	Driver    string
	UploadDir string
}

// IsLocal reports whether documents live on the local filesystem. An empty driver means local.
func (s StorageConfig) IsLocal() bool {
	return s.Driver == "" || s.Driver == DriverLocal
}

// UploadConfig is the admission policy applied before any byte is stored.
type UploadConfig struct {
	MaxBytes         int64
	AllowedMIMETypes []string
}

// ReconcileConfig controls the orphan sweep. An Interval of zero disables the background loop.
type ReconcileConfig struct {
	Interval time.Duration
	Grace    time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost          string
	Port             string
	Location         string
	CORSAllowOrigins string
	CacheSize        int
	CacheTTL         time.Duration
	Database         DatabaseConfig
	MinIO            MinIOConfig
	Storage          StorageConfig
	Upload           UploadConfig
	Reconcile        ReconcileConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:          getEnv("APP_HOST", "localhost:5000"),
		Port:             getEnv("PORT", "5000"),
		Location:         getEnv("TZ_LOCATION", "UTC"),
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		CacheSize:        getEnvInt("CACHE_SIZE", 256),
		CacheTTL:         getEnvDuration("CACHE_TTL", 5*time.Minute),
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
			ConnectAttempts:    getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Storage: StorageConfig{
			Driver:    storageDriver(),
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
		},
		Upload: UploadConfig{
			MaxBytes:         getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
			AllowedMIMETypes: getEnvList("ALLOWED_MIME_TYPES", defaultAllowedMIMETypes),
		},
		Reconcile: ReconcileConfig{
			Interval: getEnvDuration("RECONCILE_INTERVAL", 0),
			Grace:    getEnvDuration("RECONCILE_GRACE", time.Hour),
		},
	}
}

// TimeLocation resolves Location, falling back to UTC when the name is unknown.
func (c *AppConfig) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// storageDriver reads STORAGE_DRIVER lower-cased; blank means local.
func storageDriver() string {
	d := strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_DRIVER")))
	if d == "" {
		return DriverLocal
	}
	return d
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

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil && i > 0 {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d >= 0 {
			return d
		}
	}
	return def
}

func getEnvList(key, def string) []string {
	raw := getEnv(key, def)
	out := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}
