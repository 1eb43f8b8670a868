// Package commands implements CLI command handlers for changegate.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/changegate/internal/config"
	"github.com/Sumatoshi-tech/changegate/internal/decision"
	"github.com/Sumatoshi-tech/changegate/internal/driver"
	"github.com/Sumatoshi-tech/changegate/internal/observability"
	"github.com/Sumatoshi-tech/changegate/internal/policy"
	"github.com/Sumatoshi-tech/changegate/internal/render"
	"github.com/Sumatoshi-tech/changegate/pkg/gitlib"
	"github.com/Sumatoshi-tech/changegate/pkg/version"
)

// ExitUsage is the process exit code for pre-flight failures: bad
// flags, unreadable config, or an invalid policy. No decision document
// is produced in these cases.
const ExitUsage = 2

// ErrNoPolicySource indicates that neither flags nor configuration
// provide any relevance patterns.
var ErrNoPolicySource = errors.New(
	"no policy given. Use --policy, --pattern, or set policy.file in the config file",
)

// DecideCommand holds configuration and dependencies for the decide command.
type DecideCommand struct {
	repoPath   string
	base       string
	head       string
	policyFile string
	patterns   []string
	outPath    string
	format     string
	timeout    string
	summary    bool
	noColor    bool
	configFile string

	exit func(int)
}

// NewDecideCommand creates the decide command.
func NewDecideCommand() *cobra.Command {
	return newDecideCommandWithDeps(os.Exit)
}

func newDecideCommandWithDeps(exit func(int)) *cobra.Command {
	dc := &DecideCommand{exit: exit}

	cmd := &cobra.Command{
		Use:   "decide [path]",
		Short: "Evaluate a repository and emit a run/skip decision",
		Long: `Decide compares two revisions, filters the changed paths against the
relevance policy, and emits a machine-readable decision document.

Exit codes:
  0  decision emitted (run or skip)
  1  pipeline failed; conservative default decision emitted
  2  no decision could be produced`,
		Args: cobra.MaximumNArgs(1),
		RunE: dc.run,
	}

	cmd.Flags().StringVar(&dc.base, "base", "", "Base revision for the comparison (empty or all-zero falls back to single-commit mode)")
	cmd.Flags().StringVar(&dc.head, "head", "HEAD", "Head revision for the comparison")
	cmd.Flags().StringVar(&dc.policyFile, "policy", "", "Path to a YAML policy file")
	cmd.Flags().StringArrayVar(&dc.patterns, "pattern", nil, "Relevance pattern (repeatable; overrides --policy)")
	cmd.Flags().StringVarP(&dc.outPath, "out", "o", "", "Write the decision document to this file instead of stdout")
	cmd.Flags().StringVar(&dc.format, "format", "", "Output format: json, yaml")
	cmd.Flags().StringVar(&dc.timeout, "timeout", "", "Overall run timeout (e.g. 30s)")
	cmd.Flags().BoolVar(&dc.summary, "summary", false, "Print a human-readable summary to stderr")
	cmd.Flags().BoolVar(&dc.noColor, "no-color", false, "Disable colored summary output")
	cmd.Flags().StringVarP(&dc.configFile, "config", "c", "", "Config file path (default: .changegate.yaml in CWD or $HOME)")

	return cmd
}

func (dc *DecideCommand) run(cmd *cobra.Command, args []string) error {
	code, runErr := dc.evaluate(cmd, args)
	if runErr != nil {
		return runErr
	}

	if code != driver.ExitOK {
		dc.exit(code)
	}

	return nil
}

// evaluate runs the decision pipeline and returns the process exit
// code. It owns all deferred cleanup; the caller exits only after
// evaluate has returned so shutdown hooks and sink closes run first.
func (dc *DecideCommand) evaluate(cmd *cobra.Command, args []string) (int, error) {
	dc.repoPath = resolvePath(args)

	cfg, loadErr := config.LoadConfig(dc.configFile)
	if loadErr != nil {
		return 0, loadErr
	}

	dc.applyConfig(cfg)

	// Flag overrides bypass the load-time validation.
	validateErr := cfg.Validate()
	if validateErr != nil {
		return 0, validateErr
	}

	compiled, policyErr := loadPolicy(dc.patterns, dc.policyFile, cfg)
	if policyErr != nil {
		return 0, policyErr
	}

	providers, obsErr := observability.Init(observabilityConfig(cfg, observability.ModeCLI))
	if obsErr != nil {
		return 0, fmt.Errorf("init observability: %w", obsErr)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	metrics, metricsErr := observability.NewDecisionMetrics(providers.Meter)
	if metricsErr != nil {
		providers.Logger.Warn("metrics disabled", "error", metricsErr)

		metrics = nil
	}

	variants := decision.Variants{Run: cfg.Workflows.Run, Skip: cfg.Workflows.Skip}
	emitter := decision.Emitter{Format: dc.format}

	sink, closeSink := dc.openSink(cmd.OutOrStdout(), providers.Logger)
	defer closeSink()

	repo, openErr := gitlib.OpenRepository(dc.repoPath)
	if openErr != nil {
		return dc.failWithoutRepo(cmd, emitter, variants, sink, openErr)
	}
	defer repo.Free()

	start := time.Now()

	outcome := driver.Run(cmd.Context(), driver.Deps{
		Repo:         repo,
		Policy:       compiled,
		Base:         dc.base,
		Head:         dc.head,
		Variants:     variants,
		Emitter:      emitter,
		Sink:         sink,
		FallbackSink: cmd.OutOrStdout(),
		Timeout:      cfg.TimeoutDuration(),
		Logger:       providers.Logger,
		Tracer:       providers.Tracer,
		Metrics:      metrics,
	})

	if dc.summary {
		render.Summary(cmd.ErrOrStderr(), &outcome.Decision, render.Options{
			NoColor: dc.noColor,
			Elapsed: time.Since(start),
		})
	}

	return outcome.ExitCode, nil
}

// applyConfig fills flag values from config where flags were left unset.
func (dc *DecideCommand) applyConfig(cfg *config.Config) {
	if dc.format == "" {
		dc.format = cfg.Output.Format
	} else {
		cfg.Output.Format = dc.format
	}

	if dc.outPath == "" {
		dc.outPath = cfg.Output.Path
	}

	if dc.timeout != "" {
		cfg.Timeout = dc.timeout
	}
}

// openSink returns the primary decision sink. An uncreatable output
// file degrades to stdout so a decision is still emitted. The caller
// must invoke the returned close function.
func (dc *DecideCommand) openSink(stdout io.Writer, logger *slog.Logger) (io.Writer, func()) {
	if dc.outPath == "" {
		return stdout, func() {}
	}

	file, createErr := os.Create(dc.outPath)
	if createErr != nil {
		logger.Warn("output file not writable; emitting to stdout", "path", dc.outPath, "error", createErr)

		return stdout, func() {}
	}

	return file, func() { _ = file.Close() }
}

// failWithoutRepo emits the conservative default decision when the
// repository cannot even be opened. The revision resolver never ran,
// so the document does not claim a single-commit fallback.
func (dc *DecideCommand) failWithoutRepo(
	cmd *cobra.Command,
	emitter decision.Emitter,
	variants decision.Variants,
	sink io.Writer,
	cause error,
) (int, error) {
	doc := decision.DefaultDecision(variants, cause.Error(), false)

	emitErr := emitter.Emit(doc, sink)
	if emitErr != nil {
		return 0, fmt.Errorf("emit default decision: %w", emitErr)
	}

	if dc.summary {
		render.Summary(cmd.ErrOrStderr(), &doc, render.Options{NoColor: dc.noColor})
	}

	return driver.ExitDefaultDecision, nil
}

func resolvePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return "."
}

// loadPolicy builds the compiled policy from flags and config, in
// precedence order: --pattern, --policy, config patterns, config file.
func loadPolicy(patterns []string, policyFile string, cfg *config.Config) (*policy.Compiled, error) {
	if len(patterns) > 0 {
		pol := policy.Policy{Patterns: patterns}

		return pol.Compile()
	}

	if policyFile == "" {
		if len(cfg.Policy.Patterns) > 0 {
			pol := policy.Policy{Patterns: cfg.Policy.Patterns}

			return pol.Compile()
		}

		policyFile = cfg.Policy.File
	}

	if policyFile == "" {
		return nil, ErrNoPolicySource
	}

	pol, loadErr := policy.LoadFile(policyFile)
	if loadErr != nil {
		return nil, loadErr
	}

	return pol.Compile()
}

// observabilityConfig maps tool config onto observability settings.
// OTLP export is controlled by environment to keep CI invocations flag-free.
func observabilityConfig(cfg *config.Config, mode observability.AppMode) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogLevel = cfg.LogLevel()
	obsCfg.LogJSON = cfg.Log.JSON
	obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	return obsCfg
}
