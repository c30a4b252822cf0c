package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.LLM.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.LLM.ReadTimeout)
	assert.False(t, cfg.LLM.Enabled())
	assert.False(t, cfg.Index)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("REDLINE_ADDR", "127.0.0.1:9000")
	t.Setenv("REDLINE_AUDIT_DIR", "/var/lib/redline")
	t.Setenv("REDLINE_DOMAINS", "banking, pharma,,")
	t.Setenv("REDLINE_LLM_URL", "http://localhost:11434/v1/chat/completions")
	t.Setenv("REDLINE_INDEX", "true")
	t.Setenv("REDLINE_LLM_READ_TIMEOUT", "45s")
	t.Setenv("REDLINE_LOG_FORMAT", " ")
	t.Setenv("REDLINE_ALERTS_FILE", "/etc/redline/alerts.yaml")
	t.Setenv("REDLINE_LLM_REDACT", "always")
	t.Setenv("REDLINE_REDACT_FILE", "/etc/redline/redact.yaml")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "/var/lib/redline", cfg.AuditDir)
	assert.Equal(t, []string{"banking", "pharma"}, cfg.Domains)
	assert.True(t, cfg.LLM.Enabled())
	assert.True(t, cfg.Index)
	assert.Equal(t, 45*time.Second, cfg.LLM.ReadTimeout)
	assert.Equal(t, "text", cfg.LogFormat, "blank values keep defaults")
	assert.Equal(t, "/etc/redline/alerts.yaml", cfg.AlertsFile)
	assert.Equal(t, "always", cfg.LLM.Redact)
	assert.Equal(t, "/etc/redline/redact.yaml", cfg.RedactFile)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	env := map[string]string{"REDLINE_INDEX": "maybe"}
	_, err := fromLookup(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.ErrorContains(t, err, "REDLINE_INDEX")

	env = map[string]string{"REDLINE_LLM_CONNECT_TIMEOUT": "soon"}
	_, err = fromLookup(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.ErrorContains(t, err, "REDLINE_LLM_CONNECT_TIMEOUT")

	env = map[string]string{"REDLINE_LLM_REDACT": "sometimes"}
	_, err = fromLookup(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.ErrorContains(t, err, "REDLINE_LLM_REDACT")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,b, "))
}
