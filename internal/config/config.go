// Package config provides centralized configuration loading for LingoFlow.
// Configuration lives in three YAML documents under a config directory:
//
//   - app.yaml       — server, translation limits, concurrency, admin access
//   - model.yaml     — inference provider, prompts, generation, switching
//   - languages.yaml — the enabled language list and defaults
//
// Missing files and missing keys fall back to the documented defaults, so a
// bare directory yields a runnable development configuration. The loaded
// Config is a read-only view; services hold a pointer and never mutate it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	defaultListenAddr    = ":8090"
	defaultReadTimeout   = 30 * time.Second
	defaultWriteTimeout  = 150 * time.Second // must outlast a slow generation
	defaultIdleTimeout   = 120 * time.Second
	defaultMaxTextLength = 10000
	defaultMaxConcurrent = 100
	defaultMaxQueueSize  = 100
	defaultTimeoutSec    = 120

	defaultModelsDir  = "models"
	defaultLogsDir    = "logs"
	defaultLogMaxMB   = 50
	defaultLogBackups = 30

	// DefaultSwitchPolicy is applied when model.yaml does not set
	// models.switching.policy. "explicit" never loads a model implicitly.
	DefaultSwitchPolicy = "explicit"
)

// =============================================================================
// Environment Variable Keys
// =============================================================================

// Env overrides are deliberately narrow: ports and paths only, so a
// container can relocate the process without editing the YAML documents.
const (
	envListenAddr   = "LINGOFLOW_LISTEN_ADDR"
	envPortFallback = "PORT" // platform convention fallback
	envModelsDir    = "LINGOFLOW_MODELS_DIR"
	envLogsDir      = "LINGOFLOW_LOGS_DIR"
	envConfigDir    = "LINGOFLOW_CONFIG_DIR"
)

// defaultAdminCIDRs covers the conventional private ranges; overridden by
// app.yaml admin_access.allowed_ips.
var defaultAdminCIDRs = []string{
	"127.0.0.1/32",
	"192.168.0.0/16",
	"10.0.0.0/8",
	"172.16.0.0/12",
}

// Built-in prompt templates, used when model.yaml does not override them.
// Placeholders: {source_language}, {target_language}, {text}.
const (
	defaultTranslationTemplate = "你是一個專業的翻譯助手。請將以下{source_language}文字翻譯成" +
		"{target_language}，保持原文的格式和換行。只輸出翻譯結果，" +
		"不要加入任何解釋或額外內容。\n\n原文：\n{text}\n\n翻譯："

	defaultTranslationRetryTemplate = "你是一個專業的翻譯助手。請將以下{source_language}文字翻譯成" +
		"{target_language}。只輸出翻譯結果，不要加入任何解釋或額外內容。" +
		"只輸出單獨一行譯文，不要包含原文，不要使用條列符號。\n\n原文：\n{text}\n\n翻譯："

	defaultDetectionTemplate = "請識別以下文字的語言，只回答語言代碼（zh-TW, zh-CN, en, ja, " +
		"ko, fr, de, es 其中之一）和信心分數（0.0-1.0），格式為" +
		"「語言代碼:信心分數」。\n\n文字：{text}\n\n答案："
)

// =============================================================================
// Document Types
// =============================================================================

// AppConfig is the parsed app.yaml document.
type AppConfig struct {
	Server struct {
		ListenAddr   string        `yaml:"listen_addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	Translation struct {
		MaxTextLength int `yaml:"max_text_length"`
		TimeoutSec    int `yaml:"timeout"`
	} `yaml:"translation"`

	Concurrency struct {
		MaxConcurrent int `yaml:"max_concurrent"`
		// MaxQueueSize is a pointer so an explicit 0 (reject instead of
		// queue) survives defaulting.
		MaxQueueSize *int `yaml:"max_queue_size"`
	} `yaml:"concurrency"`

	AdminAccess struct {
		AllowedIPs []string `yaml:"allowed_ips"`
	} `yaml:"admin_access"`

	Logging struct {
		Dir        string `yaml:"dir"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"logging"`

	Statistics struct {
		// RedisAddr optionally mirrors minute snapshots to Redis so the
		// 24h window survives a restart. Empty keeps stats memory-only.
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
	} `yaml:"statistics"`

	Tracing struct {
		Enabled      bool   `yaml:"enabled"`
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"tracing"`
}

// LocalProviderConfig configures the local-weights provider.
type LocalProviderConfig struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	ForceCPU bool   `yaml:"force_cpu"`

	// EngineBin is the llama-server compatible binary used to host the
	// weights; EngineAddr is where it listens once started.
	EngineBin  string `yaml:"engine_bin"`
	EngineAddr string `yaml:"engine_addr"`

	MaxGPUMemoryGB float64 `yaml:"max_gpu_memory"`

	Quantization struct {
		// Enable4Bit overrides the automatic "VRAM <= 12 GiB" decision
		// when set.
		Enable4Bit *bool `yaml:"enable_4bit"`
	} `yaml:"quantization"`
}

// RemoteAPIConfig configures one remote wire protocol.
type RemoteAPIConfig struct {
	BaseURL    string `yaml:"api_base"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// PromptsConfig configures prompt construction.
type PromptsConfig struct {
	// FormatType is "template" (single instruction string) or "chat"
	// (structured message envelope).
	FormatType      string `yaml:"format_type"`
	AddBOSToken     bool   `yaml:"add_bos_token"`
	UseSystemPrompt bool   `yaml:"use_system_prompt"`
	SystemPrompt    string `yaml:"system_prompt"`

	Translation       string `yaml:"translation"`
	TranslationRetry  string `yaml:"translation_retry"`
	LanguageDetection string `yaml:"language_detection"`
}

// GenerationOverrides are per-quality overrides from model.yaml; nil fields
// keep the built-in defaults.
type GenerationOverrides struct {
	Temperature       *float64 `yaml:"temperature"`
	TopP              *float64 `yaml:"top_p"`
	NumBeams          *int     `yaml:"num_beams"`
	DoSample          *bool    `yaml:"do_sample"`
	MinNewTokens      *int     `yaml:"min_new_tokens"`
	MaxNewTokens      *int     `yaml:"max_new_tokens"`
	RepetitionPenalty *float64 `yaml:"repetition_penalty"`
	NoRepeatNgramSize *int     `yaml:"no_repeat_ngram_size"`
}

// ModelConfig is the parsed model.yaml document.
type ModelConfig struct {
	Provider struct {
		// Type selects the provider implementation: local, openai or
		// huggingface.
		Type        string              `yaml:"type"`
		Local       LocalProviderConfig `yaml:"local"`
		OpenAI      RemoteAPIConfig     `yaml:"openai"`
		HuggingFace RemoteAPIConfig     `yaml:"huggingface"`
	} `yaml:"provider"`

	Prompts PromptsConfig `yaml:"prompts"`

	Generation map[string]GenerationOverrides `yaml:"generation"`

	Models struct {
		Dir       string `yaml:"dir"`
		Switching struct {
			// Policy is "lazy" (a request naming another model may
			// trigger a switch) or "explicit" (never implicit).
			Policy string `yaml:"policy"`
		} `yaml:"switching"`
	} `yaml:"models"`
}

// LanguageSpec is one entry of languages.yaml.
type LanguageSpec struct {
	Code      string `yaml:"code"`
	Name      string `yaml:"name"`
	NameEN    string `yaml:"name_en"`
	Enabled   bool   `yaml:"is_enabled"`
	SortOrder int    `yaml:"sort_order"`
}

// LanguagesConfig is the parsed languages.yaml document.
type LanguagesConfig struct {
	Languages []LanguageSpec `yaml:"languages"`
	Defaults  struct {
		SourceLanguage string `yaml:"source_language"`
		TargetLanguage string `yaml:"target_language"`
	} `yaml:"defaults"`
}

// Config is the read-only view over the three parsed documents.
type Config struct {
	App       AppConfig
	Model     ModelConfig
	Languages LanguagesConfig
}

// =============================================================================
// Loading
// =============================================================================

// Load reads app.yaml, model.yaml and languages.yaml from dir. Missing files
// are tolerated; malformed YAML is not.
func Load(dir string) (*Config, error) {
	cfg := &Config{}

	if err := loadYAML(filepath.Join(dir, "app.yaml"), &cfg.App); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "model.yaml"), &cfg.Model); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "languages.yaml"), &cfg.Languages); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a Config with every document at its defaults. Tests and
// development tooling use it instead of a config directory.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Dir resolves the configuration directory: the LINGOFLOW_CONFIG_DIR
// environment variable when set, else fallback.
func Dir(fallback string) string {
	if dir := os.Getenv(envConfigDir); dir != "" {
		return dir
	}
	return fallback
}

// applyEnvOverrides layers the port/path environment variables over the
// parsed documents. Env wins over YAML; both lose to explicit defaults
// only when unset everywhere.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv(envListenAddr); addr != "" {
		c.App.Server.ListenAddr = addr
	} else if port := os.Getenv(envPortFallback); port != "" {
		c.App.Server.ListenAddr = ":" + port
	}
	if dir := os.Getenv(envModelsDir); dir != "" {
		c.Model.Models.Dir = dir
	}
	if dir := os.Getenv(envLogsDir); dir != "" {
		c.App.Logging.Dir = dir
	}
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	app := &c.App
	if app.Server.ListenAddr == "" {
		app.Server.ListenAddr = defaultListenAddr
	}
	if app.Server.ReadTimeout == 0 {
		app.Server.ReadTimeout = defaultReadTimeout
	}
	if app.Server.WriteTimeout == 0 {
		app.Server.WriteTimeout = defaultWriteTimeout
	}
	if app.Server.IdleTimeout == 0 {
		app.Server.IdleTimeout = defaultIdleTimeout
	}
	if app.Translation.MaxTextLength <= 0 {
		app.Translation.MaxTextLength = defaultMaxTextLength
	}
	if app.Translation.TimeoutSec <= 0 {
		app.Translation.TimeoutSec = defaultTimeoutSec
	}
	if app.Concurrency.MaxConcurrent <= 0 {
		app.Concurrency.MaxConcurrent = defaultMaxConcurrent
	}
	if app.Concurrency.MaxQueueSize == nil || *app.Concurrency.MaxQueueSize < 0 {
		size := defaultMaxQueueSize
		app.Concurrency.MaxQueueSize = &size
	}
	if app.AdminAccess.AllowedIPs == nil {
		app.AdminAccess.AllowedIPs = append([]string(nil), defaultAdminCIDRs...)
	}
	if app.Logging.Dir == "" {
		app.Logging.Dir = defaultLogsDir
	}
	if app.Logging.MaxSizeMB <= 0 {
		app.Logging.MaxSizeMB = defaultLogMaxMB
	}
	if app.Logging.MaxBackups <= 0 {
		app.Logging.MaxBackups = defaultLogBackups
	}

	m := &c.Model
	if m.Provider.Type == "" {
		m.Provider.Type = "local"
	}
	if m.Models.Dir == "" {
		m.Models.Dir = defaultModelsDir
	}
	if m.Models.Switching.Policy == "" {
		m.Models.Switching.Policy = DefaultSwitchPolicy
	}
	p := &m.Prompts
	if p.FormatType == "" {
		p.FormatType = "template"
	}
	if p.Translation == "" {
		p.Translation = defaultTranslationTemplate
	}
	if p.TranslationRetry == "" {
		p.TranslationRetry = defaultTranslationRetryTemplate
	}
	if p.LanguageDetection == "" {
		p.LanguageDetection = defaultDetectionTemplate
	}

	l := &c.Languages
	if l.Defaults.SourceLanguage == "" {
		l.Defaults.SourceLanguage = "auto"
	}
	if l.Defaults.TargetLanguage == "" {
		l.Defaults.TargetLanguage = "zh-TW"
	}
}

// =============================================================================
// Accessors
// =============================================================================

// MaxTextLength returns the translation text-length limit in code points.
func (c *Config) MaxTextLength() int { return c.App.Translation.MaxTextLength }

// TranslationTimeout returns the per-request translation deadline.
func (c *Config) TranslationTimeout() time.Duration {
	return time.Duration(c.App.Translation.TimeoutSec) * time.Second
}

// MaxConcurrent returns the in-flight request bound.
func (c *Config) MaxConcurrent() int { return c.App.Concurrency.MaxConcurrent }

// MaxQueueSize returns the waiting-queue bound.
func (c *Config) MaxQueueSize() int { return *c.App.Concurrency.MaxQueueSize }

// AdminAllowedIPs returns the configured admin CIDR blocks.
func (c *Config) AdminAllowedIPs() []string { return c.App.AdminAccess.AllowedIPs }

// ModelsDir returns the models root directory.
func (c *Config) ModelsDir() string { return c.Model.Models.Dir }

// SwitchPolicy returns the model switching policy (lazy or explicit).
func (c *Config) SwitchPolicy() string { return c.Model.Models.Switching.Policy }
