package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARKETING_CONFIG", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("LLM_TIMEOUT_MS", "")
	t.Setenv("DB_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.NotContains(t, cfg.DatabaseURL, "cache=shared")
	assert.Contains(t, cfg.DatabaseURL, "_busy_timeout=")
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "./reports", cfg.ReportDir)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 24*time.Hour, cfg.StatCounterTTL)
	assert.Equal(t, DefaultChains(), cfg.Chains)
	assert.Contains(t, cfg.ForbiddenWords, "국내 1위")
	assert.Empty(t, cfg.RPCAddr)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MARKETING_CONFIG", "")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("FETCH_TIMEOUT_MS", "250")
	t.Setenv("GOGO_MODE", "mock")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, 250*time.Millisecond, cfg.FetchTimeout)
	assert.True(t, cfg.MockMode())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestStatCounterEnabled(t *testing.T) {
	assert.True(t, (&Config{}).StatCounterEnabled())
	assert.True(t, (&Config{StatCounterURL: "http://127.0.0.1:9/csv"}).StatCounterEnabled())
	assert.False(t, (&Config{StatCounterURL: "OFF"}).StatCounterEnabled())
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketing.yaml")
	content := `
tasks:
  - task: review
    keywords: [리뷰, 후기]
  - task: trend
    keywords: [트렌드]
continuation_cues: [again]
chains:
  trend: [synthetic.trend]
forbidden_words: [최고]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("MARKETING_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.TaskKeywords, 2)
	assert.Equal(t, "review", cfg.TaskKeywords[0].Task)
	assert.Equal(t, []string{"again"}, cfg.ContinuationCues)
	assert.Equal(t, []string{"synthetic.trend"}, cfg.Chains.Trend)
	assert.Equal(t, DefaultChains().Product, cfg.Chains.Product)
	assert.Equal(t, []string{"최고"}, cfg.ForbiddenWords)
}

func TestLoadFileMissing(t *testing.T) {
	t.Setenv("MARKETING_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestWarnings(t *testing.T) {
	cfg := &Config{}
	assert.Len(t, cfg.Warnings(), 4)

	cfg = &Config{
		Mode:                     "MOCK",
		NaverDataLabClientID:     "id",
		NaverDataLabClientSecret: "secret",
		NaverShoppingClientID:    "id",
		NaverShoppingSecret:      "secret",
		GoogleSearchAPIKey:       "key",
		GoogleSearchEngineID:     "cx",
	}
	assert.Empty(t, cfg.Warnings())
}
