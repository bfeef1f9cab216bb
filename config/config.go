package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Env     string `json:"env"`
	Debug   bool   `json:"debug"`
	Version string `json:"version"`

	Server    ServerConfig    `json:"server"`
	Log       LogConfig       `json:"log"`
	Database  DatabaseConfig  `json:"database"`
	Storage   StorageConfig   `json:"storage"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Tools     ToolsConfig     `json:"tools"`
	Summary   SummaryConfig   `json:"summary"`
	Search    SearchConfig    `json:"search"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type LogConfig struct {
	Dir   string `json:"dir"`
	Level string `json:"level"`
	JSON  bool   `json:"json"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite, postgres or memory.
	Driver             string        `json:"driver"`
	Path               string        `json:"path"`
	DSN                string        `json:"-"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
}

type StorageConfig struct {
	// Backend is fs or s3.
	Backend string   `json:"backend"`
	Dir     string   `json:"dir"`
	S3      S3Config `json:"s3"`
}

type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Prefix    string `json:"prefix"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
}

type PipelineConfig struct {
	TempDir string `json:"temp_dir"`

	AudioWorkers     int           `json:"audio_workers"`
	SummarizeWorkers int           `json:"summarize_workers"`
	ChunkWorkers     int           `json:"chunk_workers"`
	ChunkDuration    time.Duration `json:"chunk_duration"`

	CaptionInterval   time.Duration `json:"caption_interval"`
	CaptionRetryDelay time.Duration `json:"caption_retry_delay"`
	DownloadAttempts  int           `json:"download_attempts"`
	DownloadBackoff   time.Duration `json:"download_backoff"`
	SummarizePerMin   int           `json:"summarize_per_min"`

	CaptionTimeout    time.Duration `json:"caption_timeout"`
	DownloadTimeout   time.Duration `json:"download_timeout"`
	TranscribeTimeout time.Duration `json:"transcribe_timeout"`
	SummarizeTimeout  time.Duration `json:"summarize_timeout"`
	JobTimeout        time.Duration `json:"job_timeout"`

	MaxConcurrentJobs int `json:"max_concurrent_jobs"`
	QueueSize         int `json:"queue_size"`

	// Downloader is ytdlp or native.
	Downloader string `json:"downloader"`
}

type ToolsConfig struct {
	YtDlpPath    string `json:"ytdlp_path"`
	FFmpegPath   string `json:"ffmpeg_path"`
	WhisperPath  string `json:"whisper_path"`
	WhisperModel string `json:"whisper_model"`
}

type SummaryConfig struct {
	// Provider is gemini or openai.
	Provider     string `json:"provider"`
	GeminiAPIKey string `json:"-"`
	GeminiModel  string `json:"gemini_model"`
	OpenAIAPIKey string `json:"-"`
	OpenAIModel  string `json:"openai_model"`
}

type SearchConfig struct {
	YouTubeAPIKey    string        `json:"-"`
	FocusedResults   int           `json:"focused_results"`
	DivergentResults int           `json:"divergent_results"`
	MinDuration      time.Duration `json:"min_duration"`

	// DivergentLanguages are searched in turn, DivergentResults each.
	DivergentLanguages []string `json:"divergent_languages"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`
}

// Load reads an optional .env file and then the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to load env file")
		}
	}

	cfg := &Config{
		Env:     getEnv("ENV", "development"),
		Debug:   getEnvAsBool("DEBUG", false),
		Version: getEnv("VERSION", "1.0.0"),

		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},

		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", ""),
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  getEnvAsBool("LOG_JSON", false),
		},

		Database: DatabaseConfig{
			Driver:             getEnv("DB_DRIVER", "sqlite"),
			Path:               getEnv("DB_PATH", "./data/jobs.db"),
			DSN:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "fs"),
			Dir:     getEnv("STORAGE_DIR", "./data/artifacts"),
			S3: S3Config{
				Bucket:    getEnv("S3_BUCKET", ""),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				Prefix:    getEnv("S3_PREFIX", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
			},
		},

		Pipeline: PipelineConfig{
			TempDir:           getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "yt-digest")),
			AudioWorkers:      getEnvAsInt("AUDIO_WORKERS", 3),
			SummarizeWorkers:  getEnvAsInt("SUMMARIZE_WORKERS", 4),
			ChunkWorkers:      getEnvAsInt("CHUNK_WORKERS", 4),
			ChunkDuration:     getEnvAsDuration("CHUNK_DURATION", 30*time.Second),
			CaptionInterval:   getEnvAsDuration("CAPTION_INTERVAL", 2*time.Second),
			CaptionRetryDelay: getEnvAsDuration("CAPTION_RETRY_DELAY", 5*time.Second),
			DownloadAttempts:  getEnvAsInt("DOWNLOAD_ATTEMPTS", 3),
			DownloadBackoff:   getEnvAsDuration("DOWNLOAD_BACKOFF", 10*time.Second),
			SummarizePerMin:   getEnvAsInt("SUMMARIZE_PER_MIN", 30),
			CaptionTimeout:    getEnvAsDuration("CAPTION_TIMEOUT", 2*time.Minute),
			DownloadTimeout:   getEnvAsDuration("DOWNLOAD_TIMEOUT", 15*time.Minute),
			TranscribeTimeout: getEnvAsDuration("TRANSCRIBE_TIMEOUT", 30*time.Minute),
			SummarizeTimeout:  getEnvAsDuration("SUMMARIZE_TIMEOUT", 5*time.Minute),
			JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", 2*time.Hour),
			MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", 2),
			QueueSize:         getEnvAsInt("JOB_QUEUE_SIZE", 100),
			Downloader:        getEnv("AUDIO_DOWNLOADER", "ytdlp"),
		},

		Tools: ToolsConfig{
			YtDlpPath:    getEnv("YTDLP_PATH", "yt-dlp"),
			FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
			WhisperPath:  getEnv("WHISPER_PATH", "whisper-cli"),
			WhisperModel: getEnv("WHISPER_MODEL", "./models/ggml-base.bin"),
		},

		Summary: SummaryConfig{
			Provider:     getEnv("SUMMARY_PROVIDER", "gemini"),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},

		Search: SearchConfig{
			YouTubeAPIKey:    getEnv("YOUTUBE_API_KEY", ""),
			FocusedResults:   getEnvAsInt("SEARCH_FOCUSED_RESULTS", 10),
			DivergentResults: getEnvAsInt("SEARCH_DIVERGENT_RESULTS", 5),
			MinDuration:      getEnvAsDuration("SEARCH_MIN_DURATION", 60*time.Second),
			DivergentLanguages: getEnvAsStringSlice(
				"SEARCH_DIVERGENT_LANGUAGES",
				[]string{"zh-TW", "en"},
			),
		},

		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}

	if err := validateTimeouts(c); err != nil {
		return err
	}

	if err := validateServices(c); err != nil {
		return err
	}

	return nil
}

// MissingCredentials lists the credentials a job needs but the
// environment does not provide. A topic query also needs the search key.
func (c *Config) MissingCredentials(needsSearch bool) []string {
	var missing []string
	switch c.Summary.Provider {
	case "gemini":
		if c.Summary.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case "openai":
		if c.Summary.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	}
	if needsSearch && c.Search.YouTubeAPIKey == "" {
		missing = append(missing, "YOUTUBE_API_KEY")
	}
	return missing
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.Log.Dir, "log directory"},
		{c.Pipeline.TempDir, "temp directory"},
	}

	if c.Database.Driver == "sqlite" {
		paths = append(paths, struct {
			path string
			name string
		}{filepath.Dir(c.Database.Path), "database directory"})
	}
	if c.Storage.Backend == "fs" {
		paths = append(paths, struct {
			path string
			name string
		}{c.Storage.Dir, "storage directory"})
	}

	for _, p := range paths {
		if p.path == "" {
			continue
		}
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", p.name)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	timeouts := []struct {
		value time.Duration
		name  string
	}{
		{c.Server.ReadTimeout, "read timeout"},
		{c.Server.WriteTimeout, "write timeout"},
		{c.Pipeline.CaptionTimeout, "caption timeout"},
		{c.Pipeline.DownloadTimeout, "download timeout"},
		{c.Pipeline.TranscribeTimeout, "transcribe timeout"},
		{c.Pipeline.SummarizeTimeout, "summarize timeout"},
		{c.Pipeline.JobTimeout, "job timeout"},
		{c.Pipeline.ChunkDuration, "chunk duration"},
	}

	for _, t := range timeouts {
		if t.value <= 0 {
			return errors.Errorf("%s must be positive", t.name)
		}
	}
	return nil
}

func validateServices(c *Config) error {
	switch c.Database.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Storage.Backend {
	case "fs":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Summary.Provider {
	case "gemini", "openai":
	default:
		return errors.Errorf("unknown summary provider %q", c.Summary.Provider)
	}

	switch c.Pipeline.Downloader {
	case "ytdlp", "native":
	default:
		return errors.Errorf("unknown audio downloader %q", c.Pipeline.Downloader)
	}

	if c.Pipeline.AudioWorkers < 1 || c.Pipeline.SummarizeWorkers < 1 || c.Pipeline.ChunkWorkers < 1 {
		return errors.New("worker counts must be at least 1")
	}
	if c.Pipeline.DownloadAttempts < 1 {
		return errors.New("download attempts must be at least 1")
	}
	if c.Pipeline.MaxConcurrentJobs < 1 {
		return errors.New("max concurrent jobs must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		warnInvalid(key, value, defaultValue, "Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	return defaultValue
}

func warnInvalid(key, value string, defaultValue interface{}, msg string) {
	logrus.WithFields(logrus.Fields{
		"key":          key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warn(msg)
}
