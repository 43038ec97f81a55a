// Package config loads and validates the process-wide configuration: a
// handful of required secrets from the environment, optionally overlaid on
// top of a YAML file (file loaded first, then environment variables win for
// anything secret or safety critical).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config.yaml"

// Provider names recognized by AI_PROVIDER.
const (
	ProviderGemini   = "gemini"
	ProviderDeepSeek = "deepseek"
)

// Config is the validated, process-wide configuration. It is the one
// module-level value this codebase tolerates as a long-lived singleton
// (loaded once in cmd/server/main.go and passed down explicitly from there).
type Config struct {
	Environment string `yaml:"environment"`

	Log struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Output   string `yaml:"output"`
		Rotation struct {
			MaxSize    int  `yaml:"max_size"` // megabytes
			MaxBackups int  `yaml:"max_backups"`
			MaxAge     int  `yaml:"max_age"` // days
			Compress   bool `yaml:"compress"`
		} `yaml:"rotation"`
	} `yaml:"log"`

	Server struct {
		Port             int           `yaml:"port"`
		ConcurrencyLimit int           `yaml:"concurrency_limit"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxBodySize      int64         `yaml:"max_body_size"`
		WebhookSecret    string        `yaml:"-"`
	} `yaml:"server"`

	GitHub struct {
		Token       string `yaml:"-"`
		MCPEndpoint string `yaml:"mcp_endpoint"`
	} `yaml:"github"`

	AI struct {
		Provider       string `yaml:"provider"`
		GeminiAPIKey   string `yaml:"-"`
		DeepSeekAPIKey string `yaml:"-"`
		DeepSeekModel  string `yaml:"deepseek_model"`
		GeminiModel    string `yaml:"gemini_model"`
	} `yaml:"ai"`

	Diff struct {
		MaxDiffSize         int      `yaml:"max_diff_size"`
		LargeDiffMultiplier float64  `yaml:"large_diff_multiplier"`
		ChunkByteBudget     int      `yaml:"chunk_byte_budget"`
		AllowedExtensions   []string `yaml:"allowed_extensions"`
	} `yaml:"diff"`

	Admission struct {
		AllowedRepositories []string      `yaml:"allowed_repositories"`
		AutoRateLimit       int           `yaml:"auto_rate_limit"` // per hour
		ManualRateLimit     int           `yaml:"manual_rate_limit"` // per hour
		RateLimitWindow     time.Duration `yaml:"rate_limit_window"`
		RateLimitCacheCap   int           `yaml:"rate_limit_cache_cap"`
	} `yaml:"admission"`

	Job struct {
		DeadlineSeconds         int  `yaml:"deadline_seconds"`
		QueueCapacity           int  `yaml:"queue_capacity"`
		FailingStatusOnFindings bool `yaml:"failing_status_on_findings"`
	} `yaml:"job"`
}

// IsProduction reports whether ENVIRONMENT=production, gating wholesale
// redaction of provider error bodies.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// GetLogLevel translates the configured textual level into a slog.Level.
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads configuration from an optional YAML file and then supplements
// or overrides it with environment variables. Secrets are always sourced
// from the environment, never the file.
func Load() *Config {
	cfg := &Config{}

	cfg.Environment = "development"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stdout"
	cfg.Log.Rotation.MaxSize = 100
	cfg.Log.Rotation.MaxBackups = 5
	cfg.Log.Rotation.MaxAge = 28
	cfg.Log.Rotation.Compress = true
	cfg.Server.Port = 3000
	cfg.Server.ConcurrencyLimit = 64
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.MaxBodySize = 10 * 1024 * 1024 // 10 MiB
	cfg.AI.Provider = ProviderGemini
	cfg.AI.GeminiModel = "gemini-1.5-flash"
	cfg.AI.DeepSeekModel = "deepseek-chat"
	cfg.Diff.MaxDiffSize = 100_000
	cfg.Diff.LargeDiffMultiplier = 1.5
	cfg.Diff.ChunkByteBudget = 50_000
	cfg.Diff.AllowedExtensions = defaultExtensions()
	cfg.Admission.AutoRateLimit = 10
	cfg.Admission.ManualRateLimit = 10
	cfg.Admission.RateLimitWindow = time.Hour
	cfg.Admission.RateLimitCacheCap = 10_000
	cfg.Job.DeadlineSeconds = 60
	cfg.Job.QueueCapacity = 64
	cfg.Job.FailingStatusOnFindings = true

	path := getEnv("CONFIG_PATH", DefaultConfigPath)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			slog.Error("unmarshal config failed", "error", err, "path", path)
			os.Exit(1)
		}
		slog.Info("config loaded", "path", path)
	} else if !os.IsNotExist(err) {
		slog.Error("read config failed", "error", err, "path", path)
		os.Exit(1)
	}

	cfg.GitHub.Token = getEnv("GITHUB_TOKEN", cfg.GitHub.Token)
	cfg.GitHub.MCPEndpoint = getEnv("GITHUB_MCP_ENDPOINT", cfg.GitHub.MCPEndpoint)
	cfg.Server.WebhookSecret = getEnv("WEBHOOK_SECRET", cfg.Server.WebhookSecret)
	cfg.AI.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.AI.GeminiAPIKey)
	cfg.AI.DeepSeekAPIKey = getEnv("DEEPSEEK_API_KEY", cfg.AI.DeepSeekAPIKey)

	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if v := os.Getenv("MAX_DIFF_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Diff.MaxDiffSize = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		cfg.Log.Output = v
	}
	if v := os.Getenv("ALLOWED_REPOSITORIES"); v != "" {
		cfg.Admission.AllowedRepositories = splitCSV(v)
	}
	if v := os.Getenv("ALLOWED_FILE_EXTENSIONS"); v != "" {
		cfg.Diff.AllowedExtensions = splitCSV(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("JOB_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Job.QueueCapacity = n
		}
	}
	if v := os.Getenv("JOB_DEADLINE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Job.DeadlineSeconds = n
		}
	}
	if v := os.Getenv("FAILING_STATUS_ON_FINDINGS"); v != "" {
		cfg.Job.FailingStatusOnFindings = v != "false"
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	return cfg
}

// Validate fails fast on missing required configuration, per C1's contract.
func (c *Config) Validate() error {
	var errs []string

	if c.GitHub.Token == "" {
		errs = append(errs, "GITHUB_TOKEN is required")
	}
	if c.Server.WebhookSecret == "" {
		errs = append(errs, "WEBHOOK_SECRET is required")
	}
	if c.AI.GeminiAPIKey == "" && c.AI.DeepSeekAPIKey == "" {
		errs = append(errs, "at least one of GEMINI_API_KEY or DEEPSEEK_API_KEY is required")
	}
	if c.AI.Provider != ProviderGemini && c.AI.Provider != ProviderDeepSeek {
		errs = append(errs, fmt.Sprintf("invalid AI_PROVIDER: %q", c.AI.Provider))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid PORT: %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

func defaultExtensions() []string {
	return []string{
		".ts", ".js", ".jsx", ".tsx", ".py", ".java", ".cpp", ".c", ".go", ".rs",
		".php", ".rb", ".cs", ".swift", ".kt", ".scala", ".sh", ".sql", ".json",
		".yaml", ".yml", ".md",
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
