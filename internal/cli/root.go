// Package cli implements the redline command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/redline/internal/alert"
	"github.com/ppiankov/redline/internal/config"
	"github.com/ppiankov/redline/internal/generate"
	"github.com/ppiankov/redline/internal/logger"
	"github.com/ppiankov/redline/internal/metrics"
	"github.com/ppiankov/redline/internal/policy"
	"github.com/ppiankov/redline/internal/redact"
	"github.com/ppiankov/redline/internal/rewrite"
	"github.com/ppiankov/redline/internal/service"
)

var (
	flagAuditDir  string
	flagPolicyDir string
	flagDomain    string
	flagIndex     bool
	flagLogLevel  string
	flagLogFormat string
	flagLLMURL    string
	flagLLMModel  string
	flagAlerts    string
	flagRedact    string
	flagRedactCfg string
)

// cfg is resolved once per invocation: defaults, then env, then flags.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "redline",
	Short: "Compliance rewrite gateway for regulated communications",
	Long: "Classifies outbound messages against domain risk policies, rewrites them\n" +
		"into compliant language, and keeps an append-only audit trail with a\n" +
		"human review workflow.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAuditDir, "audit-dir", "", "Directory holding audit journals (env REDLINE_AUDIT_DIR)")
	pf.StringVar(&flagPolicyDir, "policy-dir", "", "Directory of domain policy YAML files (env REDLINE_POLICY_DIR)")
	pf.StringVarP(&flagDomain, "domain", "d", "banking", "Policy domain")
	pf.BoolVar(&flagIndex, "index", false, "Maintain a SQLite lookup index next to each journal (env REDLINE_INDEX)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (env REDLINE_LOG_LEVEL)")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: text or json (env REDLINE_LOG_FORMAT)")
	pf.StringVar(&flagLLMURL, "llm-url", "", "Chat-completions endpoint; empty rewrites locally (env REDLINE_LLM_URL)")
	pf.StringVar(&flagLLMModel, "llm-model", "", "Model name sent to the endpoint (env REDLINE_LLM_MODEL)")
	pf.StringVar(&flagAlerts, "alerts", "", "YAML file of compliance webhooks (env REDLINE_ALERTS_FILE)")
	pf.StringVar(&flagRedact, "llm-redact", "", "Tokenize personal data before generation: always, never, or auto by URL (env REDLINE_LLM_REDACT)")
	pf.StringVar(&flagRedactCfg, "redact-config", "", "YAML file of redaction literals, safe values and patterns (env REDLINE_REDACT_FILE)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	c, err := config.FromEnv()
	if err != nil {
		return c, fmt.Errorf("invalid environment: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("audit-dir") {
		c.AuditDir = flagAuditDir
	}
	if flags.Changed("policy-dir") {
		c.PolicyDir = flagPolicyDir
	}
	if flags.Changed("index") {
		c.Index = flagIndex
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		c.LogFormat = flagLogFormat
	}
	if flags.Changed("llm-url") {
		c.LLM.URL = flagLLMURL
	}
	if flags.Changed("llm-model") {
		c.LLM.Model = flagLLMModel
	}
	if flags.Changed("alerts") {
		c.AlertsFile = flagAlerts
	}
	if flags.Changed("llm-redact") {
		switch flagRedact {
		case "", "always", "never":
		default:
			return c, fmt.Errorf("--llm-redact: want always or never, got %q", flagRedact)
		}
		c.LLM.Redact = flagRedact
	}
	if flags.Changed("redact-config") {
		c.RedactFile = flagRedactCfg
	}
	return c, nil
}

func newLogger() (*slog.Logger, error) {
	return logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// newEngine builds the rewrite engine. A generator on a non-local URL only
// ever sees tokenized text unless redaction is turned off.
func newEngine(log *slog.Logger) (*rewrite.Engine, error) {
	if !cfg.LLM.Enabled() {
		return rewrite.New(), nil
	}
	var g generate.Generator = generate.NewClient(generate.Config{
		APIURL:         cfg.LLM.URL,
		APIKey:         cfg.LLM.Key,
		Model:          cfg.LLM.Model,
		ConnectTimeout: cfg.LLM.ConnectTimeout,
		ReadTimeout:    cfg.LLM.ReadTimeout,
	})

	mode := redact.ResolveMode(cfg.LLM.URL, cfg.LLM.Redact)
	if mode == redact.ModeCloud {
		rc, err := redact.LoadConfig(cfg.RedactFile)
		if err != nil {
			return nil, err
		}
		extra, err := redact.CompilePatterns(rc)
		if err != nil {
			return nil, fmt.Errorf("redact config: %w", err)
		}
		g = generate.Redacting(g, rc, extra)
	}
	log.Debug("generator configured", "url", cfg.LLM.URL, "redaction", string(mode))
	return rewrite.New(rewrite.WithGenerator(g)), nil
}

func newAlerts(log *slog.Logger) (*alert.Dispatcher, error) {
	if cfg.AlertsFile == "" {
		return nil, nil
	}
	configs, err := alert.LoadConfigs(cfg.AlertsFile)
	if err != nil {
		return nil, err
	}
	return alert.NewDispatcher(configs, log), nil
}

// openRegistry opens domains (every available policy when empty).
func openRegistry(domains []string, log *slog.Logger, m *metrics.Metrics, alerts *alert.Dispatcher) (*service.Registry, *policy.Store, error) {
	engine, err := newEngine(log)
	if err != nil {
		return nil, nil, err
	}
	store := policy.NewStore(cfg.PolicyDir)
	if len(domains) == 0 {
		domains = store.Domains()
	}
	reg, err := service.OpenAll(domains, service.Options{
		AuditDir: cfg.AuditDir,
		Index:    cfg.Index,
		Policies: store,
		Engine:   engine,
		Logger:   log,
		Metrics:  m,
		Alerts:   alerts,
	})
	if err != nil {
		return nil, nil, err
	}
	return reg, store, nil
}

// openDomain opens the --domain service alone. Alerts configured for the
// process fire for CLI rewrites and reviews too.
func openDomain(log *slog.Logger) (*service.Service, *alert.Dispatcher, error) {
	alerts, err := newAlerts(log)
	if err != nil {
		return nil, nil, err
	}
	engine, err := newEngine(log)
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.Open(flagDomain, service.Options{
		AuditDir: cfg.AuditDir,
		Index:    cfg.Index,
		Policies: policy.NewStore(cfg.PolicyDir),
		Engine:   engine,
		Logger:   log,
		Alerts:   alerts,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, alerts, nil
}
