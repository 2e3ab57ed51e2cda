// Package config provides configuration for the marketing orchestrator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort    int
	RPCAddr     string
	CORSOrigins []string

	// Storage
	DatabaseURL string
	ReportDir   string

	// LLM
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	Mode          string

	// External data sources
	NaverDataLabClientID     string
	NaverDataLabClientSecret string
	NaverDataLabURL          string
	NaverShoppingClientID    string
	NaverShoppingSecret      string
	NaverRatePerSec          int
	GoogleSearchAPIKey       string
	GoogleSearchEngineID     string
	// StatCounterURL overrides the CSV endpoint; "off" disables the source.
	StatCounterURL string

	// Ingress settings
	IngressURL string

	// Timeouts
	LLMTimeout     time.Duration
	FetchTimeout   time.Duration
	StatCounterTTL time.Duration

	// Logging
	LogLevel string

	// Overridable tables, see Overlay.
	TaskKeywords     []TaskKeywords
	ContinuationCues []string
	Chains           Chains
	ForbiddenWords   []string
}

// TaskKeywords is one row of the task detection table.
type TaskKeywords struct {
	Task     string   `yaml:"task"`
	Keywords []string `yaml:"keywords"`
}

// Chains lists provider tool names per data kind, tried in order.
type Chains struct {
	Trend   []string `yaml:"trend"`
	Product []string `yaml:"product"`
	Reviews []string `yaml:"reviews"`
}

// Overlay is the optional YAML file named by MARKETING_CONFIG.
type Overlay struct {
	Tasks            []TaskKeywords `yaml:"tasks"`
	ContinuationCues []string       `yaml:"continuation_cues"`
	Chains           Chains         `yaml:"chains"`
	ForbiddenWords   []string       `yaml:"forbidden_words"`
}

// DefaultForbiddenWords are the ad-copy terms flagged by the compliance check.
var DefaultForbiddenWords = []string{"최고", "최저", "국내 1위", "보장", "완벽", "100%", "무조건", "전액"}

// DefaultChains is the provider fallback order per data kind.
func DefaultChains() Chains {
	return Chains{
		Trend:   []string{"naver.datalab", "synthetic.trend"},
		Product: []string{"naver.shopping", "google.search", "synthetic.product"},
		Reviews: []string{"google.search", "naver.blog", "synthetic.reviews"},
	}
}

// Load loads configuration from environment variables, then applies the
// YAML overlay when MARKETING_CONFIG is set.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:                 getEnvInt("HTTP_PORT", 8000),
		RPCAddr:                  getEnv("RPC_ADDR", ""),
		CORSOrigins:              getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		DatabaseURL:              getEnv("DB_URL", "file:marketing.db?mode=rwc&_journal_mode=WAL&_busy_timeout=5000"),
		ReportDir:                getEnv("REPORT_DIR", "./reports"),
		OpenAIAPIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:            getEnv("OPENAI_BASE_URL", ""),
		Mode:                     getEnv("GOGO_MODE", ""),
		NaverDataLabClientID:     getEnv("NAVER_DATALAB_CLIENT_ID", ""),
		NaverDataLabClientSecret: getEnv("NAVER_DATALAB_CLIENT_SECRET", ""),
		NaverDataLabURL:          getEnv("NAVER_DATALAB_URL", "https://openapi.naver.com/v1/datalab/search"),
		NaverShoppingClientID:    getEnv("NAVER_SHOPPING_CLIENT_ID", ""),
		NaverShoppingSecret:      getEnv("NAVER_SHOPPING_CLIENT_SECRET", ""),
		NaverRatePerSec:          getEnvInt("NAVER_RATE_PER_SEC", 10),
		GoogleSearchAPIKey:       getEnv("GOOGLE_SEARCH_API_KEY", ""),
		GoogleSearchEngineID:     getEnv("GOOGLE_SEARCH_ENGINE_ID", ""),
		StatCounterURL:           getEnv("STATCOUNTER_URL", ""),
		IngressURL:               getEnv("INGRESS_URL", ""),
		LLMTimeout:               time.Duration(getEnvInt("LLM_TIMEOUT_MS", 60000)) * time.Millisecond,
		FetchTimeout:             time.Duration(getEnvInt("FETCH_TIMEOUT_MS", 10000)) * time.Millisecond,
		StatCounterTTL:           time.Duration(getEnvInt("STATCOUNTER_TTL_MS", 86400000)) * time.Millisecond,
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		Chains:                   DefaultChains(),
		ForbiddenWords:           append([]string(nil), DefaultForbiddenWords...),
	}

	if path := os.Getenv("MARKETING_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFile applies a YAML overlay. Empty sections keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to unmarshal YAML config: %w", err)
	}
	c.Apply(overlay)
	return nil
}

// Apply merges a parsed overlay into c.
func (c *Config) Apply(o Overlay) {
	if len(o.Tasks) > 0 {
		c.TaskKeywords = o.Tasks
	}
	if len(o.ContinuationCues) > 0 {
		c.ContinuationCues = o.ContinuationCues
	}
	if len(o.Chains.Trend) > 0 {
		c.Chains.Trend = o.Chains.Trend
	}
	if len(o.Chains.Product) > 0 {
		c.Chains.Product = o.Chains.Product
	}
	if len(o.Chains.Reviews) > 0 {
		c.Chains.Reviews = o.Chains.Reviews
	}
	if len(o.ForbiddenWords) > 0 {
		c.ForbiddenWords = o.ForbiddenWords
	}
}

// MockMode reports whether the mock LLM is forced.
func (c *Config) MockMode() bool {
	return strings.EqualFold(c.Mode, "MOCK")
}

// StatCounterEnabled reports whether the market share source is wired.
func (c *Config) StatCounterEnabled() bool {
	return !strings.EqualFold(strings.TrimSpace(c.StatCounterURL), "off")
}

// Warnings lists missing credentials. Each one only downgrades a data
// source to its fallback tier.
func (c *Config) Warnings() []string {
	warnings := []string{}
	if c.OpenAIAPIKey == "" && !c.MockMode() {
		warnings = append(warnings, "OPENAI_API_KEY is not set; using mock LLM responses")
	}
	if c.NaverDataLabClientID == "" || c.NaverDataLabClientSecret == "" {
		warnings = append(warnings, "NAVER_DATALAB_CLIENT_ID/SECRET not set; trend data will be synthetic")
	}
	if c.NaverShoppingClientID == "" || c.NaverShoppingSecret == "" {
		warnings = append(warnings, "NAVER_SHOPPING_CLIENT_ID/SECRET not set; shopping and blog search disabled")
	}
	if c.GoogleSearchAPIKey == "" || c.GoogleSearchEngineID == "" {
		warnings = append(warnings, "GOOGLE_SEARCH_API_KEY/ENGINE_ID not set; web search disabled")
	}
	return warnings
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	out := []string{}
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
