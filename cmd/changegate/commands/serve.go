package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/changegate/internal/config"
	"github.com/Sumatoshi-tech/changegate/internal/decision"
	"github.com/Sumatoshi-tech/changegate/internal/observability"
	"github.com/Sumatoshi-tech/changegate/internal/policy"
	"github.com/Sumatoshi-tech/changegate/internal/server"
)

// ServeCommand holds configuration for the serve command.
type ServeCommand struct {
	addr       string
	policyFile string
	patterns   []string
	configFile string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	sc := &ServeCommand{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the decision pipeline as an HTTP service",
		Long: `Serve starts a long-running HTTP service that evaluates decide
requests against repositories on the local filesystem. Requests may
carry inline patterns; otherwise the server-side default policy applies.`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().StringVar(&sc.addr, "addr", "", "Listen address (default from config, "+config.DefaultServeAddr+")")
	cmd.Flags().StringVar(&sc.policyFile, "policy", "", "Path to the default YAML policy file")
	cmd.Flags().StringArrayVar(&sc.patterns, "pattern", nil, "Default relevance pattern (repeatable; overrides --policy)")
	cmd.Flags().StringVarP(&sc.configFile, "config", "c", "", "Config file path (default: .changegate.yaml in CWD or $HOME)")

	return cmd
}

func (sc *ServeCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, loadErr := config.LoadConfig(sc.configFile)
	if loadErr != nil {
		return loadErr
	}

	if sc.addr == "" {
		sc.addr = cfg.Serve.Addr
	}

	defaultPolicy, policyErr := sc.defaultPolicy(cfg)
	if policyErr != nil {
		return policyErr
	}

	providers, obsErr := observability.Init(observabilityConfig(cfg, observability.ModeServe))
	if obsErr != nil {
		return fmt.Errorf("init observability: %w", obsErr)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	prom, promProvider, promErr := observability.PrometheusHandler()
	if promErr != nil {
		return fmt.Errorf("init prometheus exporter: %w", promErr)
	}
	defer func() { _ = promProvider.Shutdown(context.Background()) }()

	// Instruments must register against the provider backing the scrape
	// endpoint, not the (possibly no-op) OTLP meter.
	metrics, metricsErr := observability.NewDecisionMetrics(promProvider.Meter(observability.ScopeName))
	if metricsErr != nil {
		providers.Logger.Warn("metrics disabled", "error", metricsErr)

		metrics = nil
	}

	srv := server.New(server.Config{
		Addr:          sc.addr,
		DefaultPolicy: defaultPolicy,
		Variants:      decision.Variants{Run: cfg.Workflows.Run, Skip: cfg.Workflows.Skip},
		Timeout:       cfg.TimeoutDuration(),
	}, providers.Logger, providers.Tracer, metrics, prom)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := srv.Start(ctx)
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}

	return nil
}

// defaultPolicy compiles the server-side default policy. A server may
// legitimately start without one when clients send inline patterns.
func (sc *ServeCommand) defaultPolicy(cfg *config.Config) (*policy.Compiled, error) {
	compiled, loadErr := loadPolicy(sc.patterns, sc.policyFile, cfg)
	if loadErr != nil {
		if errors.Is(loadErr, ErrNoPolicySource) {
			return nil, nil
		}

		return nil, loadErr
	}

	return compiled, nil
}
