package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Store      StoreConfig
	Storage    StorageConfig
	R2         R2Config
	Generation GenerationConfig
	Executor   ExecutorConfig
	Pipeline   PipelineConfig
	Worker     WorkerConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	ApiDomain   string
	BodyLimitMB int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type StoreConfig struct {
	Backend    string
	SQLitePath string
	JobTTL     time.Duration
}

// Storage backends
const (
	StorageLocal = "local"
	StorageR2    = "r2"
)

type StorageConfig struct {
	Backend    string
	AssetsDir  string
	PublicPath string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type GenerationConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Executor modes
const (
	ModeMock = "mock"
	ModeLive = "live"
)

type ExecutorConfig struct {
	Mode        string
	PromptsPath string
	Pacing      bool
}

type PipelineConfig struct {
	StageLatency time.Duration
	SampleRate   int
}

// Dispatchers
const (
	DispatcherLocal = "local"
	DispatcherAsynq = "asynq"
)

type WorkerConfig struct {
	Dispatcher  string
	Concurrency int
}

type RateLimitConfig struct {
	GeneratePerHour int
	UploadPerHour   int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GENERATION_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("store.backend", "STORE_BACKEND")
	_ = v.BindEnv("store.sqlite_path", "STORE_SQLITE_PATH")
	_ = v.BindEnv("store.job_ttl_hours", "STORE_JOB_TTL_HOURS")
	_ = v.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = v.BindEnv("storage.assets_dir", "ASSETS_DIR")
	_ = v.BindEnv("storage.public_path", "ASSETS_PUBLIC_PATH")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("generation.api_key", "GENERATION_API_KEY")
	_ = v.BindEnv("generation.base_url", "GENERATION_BASE_URL")
	_ = v.BindEnv("generation.model", "GENERATION_MODEL")
	_ = v.BindEnv("generation.timeout_sec", "GENERATION_TIMEOUT_SEC")
	_ = v.BindEnv("executor.mode", "EXECUTOR_MODE")
	_ = v.BindEnv("executor.prompts_path", "PROMPTS_PATH")
	_ = v.BindEnv("executor.pacing", "EXECUTOR_PACING")
	_ = v.BindEnv("pipeline.stage_latency_ms", "STAGE_LATENCY_MS")
	_ = v.BindEnv("pipeline.sample_rate", "SAMPLE_RATE")
	_ = v.BindEnv("worker.dispatcher", "WORKER_DISPATCHER")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.body_limit_mb", 320)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.sqlite_path", "data/studio.db")
	v.SetDefault("store.job_ttl_hours", 24)
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.assets_dir", "assets")
	v.SetDefault("storage.public_path", "/assets")
	v.SetDefault("ratelimit.generate_per_hour", 60)
	v.SetDefault("ratelimit.upload_per_hour", 50)

	// Generation endpoint defaults (OpenAI-compatible chat completions)
	v.SetDefault("generation.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("generation.model", "llama-3.3-70b-versatile")
	v.SetDefault("generation.timeout_sec", 60)

	v.SetDefault("executor.mode", ModeMock)
	v.SetDefault("executor.pacing", true)
	v.SetDefault("pipeline.stage_latency_ms", 500)
	v.SetDefault("pipeline.sample_rate", 44100)
	v.SetDefault("worker.dispatcher", DispatcherLocal)
	v.SetDefault("worker.concurrency", 10)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			ApiDomain:   v.GetString("server.api_domain"),
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(v.GetString("store.backend")),
			SQLitePath: v.GetString("store.sqlite_path"),
			JobTTL:     time.Duration(v.GetInt("store.job_ttl_hours")) * time.Hour,
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(v.GetString("storage.backend")),
			AssetsDir:  v.GetString("storage.assets_dir"),
			PublicPath: strings.TrimRight(v.GetString("storage.public_path"), "/"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Generation: GenerationConfig{
			APIKey:  v.GetString("generation.api_key"),
			BaseURL: v.GetString("generation.base_url"),
			Model:   v.GetString("generation.model"),
			Timeout: time.Duration(v.GetInt("generation.timeout_sec")) * time.Second,
		},
		Executor: ExecutorConfig{
			Mode:        strings.ToLower(v.GetString("executor.mode")),
			PromptsPath: v.GetString("executor.prompts_path"),
			Pacing:      v.GetBool("executor.pacing"),
		},
		Pipeline: PipelineConfig{
			StageLatency: time.Duration(v.GetInt("pipeline.stage_latency_ms")) * time.Millisecond,
			SampleRate:   v.GetInt("pipeline.sample_rate"),
		},
		Worker: WorkerConfig{
			Dispatcher:  strings.ToLower(v.GetString("worker.dispatcher")),
			Concurrency: v.GetInt("worker.concurrency"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
			UploadPerHour:   v.GetInt("ratelimit.upload_per_hour"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("invalid store.backend %q", c.Store.Backend)
	}
	switch c.Storage.Backend {
	case StorageLocal, StorageR2:
	default:
		return fmt.Errorf("invalid storage.backend %q", c.Storage.Backend)
	}
	switch c.Executor.Mode {
	case ModeMock, ModeLive:
	default:
		return fmt.Errorf("invalid executor.mode %q", c.Executor.Mode)
	}
	switch c.Worker.Dispatcher {
	case DispatcherLocal, DispatcherAsynq:
	default:
		return fmt.Errorf("invalid worker.dispatcher %q", c.Worker.Dispatcher)
	}
	if c.Worker.Dispatcher == DispatcherAsynq && c.Store.Backend == StoreMemory {
		return fmt.Errorf("worker.dispatcher %q requires a shared store backend", DispatcherAsynq)
	}
	if c.Executor.Mode == ModeLive && c.Generation.APIKey == "" {
		return fmt.Errorf("executor.mode %q requires generation.api_key", ModeLive)
	}
	if c.Worker.Concurrency < 1 {
		c.Worker.Concurrency = 1
	}
	if c.Pipeline.SampleRate <= 0 {
		c.Pipeline.SampleRate = 44100
	}
	if c.Pipeline.StageLatency < 0 {
		c.Pipeline.StageLatency = 0
	}
	return nil
}
