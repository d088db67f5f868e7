package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	WorkerID            string
	PollInterval        time.Duration
	StaleThreshold      time.Duration
	MinTranscriptLength int
	MaxConcurrentJobs   int

	AIBaseURL string
	AIAPIKey  string
	AITimeout time.Duration

	StorageProvider   string // filesystem | s3
	StorageRoot       string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	NATSURL           string
	NATSSubjectPrefix string
	RedisURL          string

	LogJSON bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		JWTSecret:            getenv("JWT_SECRET", ""),
		WorkerID:             getenv("WORKER_ID", defaultWorkerID()),
		AIBaseURL:            getenv("AI_BASE_URL", ""),
		AIAPIKey:             getenv("AI_API_KEY", ""),
		StorageProvider:      strings.ToLower(getenv("STORAGE_PROVIDER", "filesystem")),
		StorageRoot:          getenv("STORAGE_ROOT", "./data"),
		S3Bucket:             getenv("S3_BUCKET", ""),
		S3Region:             getenv("S3_REGION", "us-east-1"),
		S3Endpoint:           getenv("S3_ENDPOINT", ""),
		S3AccessKeyID:        getenv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:    getenv("S3_SECRET_ACCESS_KEY", ""),
		NATSURL:              getenv("NATS_URL", ""),
		NATSSubjectPrefix:    getenv("NATS_SUBJECT_PREFIX", "meetwork.notifications"),
		RedisURL:             getenv("REDIS_URL", ""),
		LogJSON:              getenv("LOG_JSON", "false") == "true",
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	var err error
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.StaleThreshold, err = durationEnv("STALE_THRESHOLD", 30*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.AITimeout, err = durationEnv("AI_TIMEOUT", 120*time.Second); err != nil {
		return cfg, err
	}
	if cfg.MinTranscriptLength, err = intEnv("MIN_TRANSCRIPT_LENGTH", 100); err != nil {
		return cfg, err
	}
	if cfg.MaxConcurrentJobs, err = intEnv("MAX_CONCURRENT_JOBS", 1); err != nil {
		return cfg, err
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("missing env: DATABASE_URL")
	}
	switch cfg.StorageProvider {
	case "filesystem", "s3":
	default:
		return cfg, errors.Newf("unsupported STORAGE_PROVIDER %q", cfg.StorageProvider)
	}
	return cfg, nil
}

// ValidateAPI checks the settings only the HTTP API needs.
func (c Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return errors.New("missing env: JWT_SECRET")
	}
	return nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if d <= 0 {
		return 0, errors.Newf("invalid %s: must be positive", key)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if n <= 0 {
		return 0, errors.Newf("invalid %s: must be positive", key)
	}
	return n, nil
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
