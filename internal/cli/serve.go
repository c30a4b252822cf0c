package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/redline/internal/api"
	"github.com/ppiankov/redline/internal/config"
	"github.com/ppiankov/redline/internal/metrics"
	"github.com/ppiankov/redline/internal/policy"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr    string
	serveDomains string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (env REDLINE_ADDR, default :8080)")
	serveCmd.Flags().StringVar(&serveDomains, "domains", "", "Comma-separated domains to serve; empty serves every policy (env REDLINE_DOMAINS)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP rewrite server",
	Long: "Serves rewrite, record and review endpoints for each domain over HTTP,\n" +
		"with Prometheus metrics on /metrics. Policies in --policy-dir are\n" +
		"hot-reloaded.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("addr") {
		cfg.Addr = serveAddr
	}
	if cmd.Flags().Changed("domains") {
		cfg.Domains = config.SplitList(serveDomains)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	alerts, err := newAlerts(log)
	if err != nil {
		return err
	}
	defer alerts.Wait()

	registry, store, err := openRegistry(cfg.Domains, log, m, alerts)
	if err != nil {
		return fmt.Errorf("failed to open domains: %w", err)
	}
	defer registry.Close()

	srv := api.NewServer(cfg.Addr, api.New(registry, log, reg).Router())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if store.Dir() != "" {
		reloader, err := policy.NewReloader(store, log)
		if err != nil {
			log.Warn("policy hot-reload disabled", "error", err)
		} else {
			g.Go(func() error { return reloader.Run(ctx) })
		}
	}

	g.Go(func() error {
		log.Info("redline listening", "addr", cfg.Addr, "domains", registry.Domains(), "llm", cfg.LLM.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
