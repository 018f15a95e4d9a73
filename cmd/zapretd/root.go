package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zapretd/internal/app"
	"zapretd/internal/domain"
	"zapretd/internal/infra/telemetry"
)

type cliOptions struct {
	root          string
	configPath    string
	logLevel      string
	metricsListen string
	output        string
	jsonOutput    bool
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		logLevel: domain.DefaultLogLevel,
		output:   outputText,
	}

	root := &cobra.Command{
		Use:           "zapretd",
		Short:         "Run and supervise DPI-bypass worker processes from profile files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.jsonOutput {
				opts.output = outputJSON
			}
			format, err := normalizeOutput(opts.output)
			if err != nil {
				return err
			}
			opts.output = format
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.root, "root", "", "application root holding bin/ and configs/ (default: executable directory)")
	flags.StringVar(&opts.configPath, "config", "", "path to config file (default: <root>/zapretd.yaml when present)")
	flags.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&opts.metricsListen, "metrics-listen", "", "serve /metrics and /healthz on this address")
	flags.StringVarP(&opts.output, "output", "o", opts.output, "output format: text, json or yaml")
	flags.BoolVar(&opts.jsonOutput, "json", false, "output JSON (same as --output json)")

	root.AddCommand(
		newProfilesCmd(&opts),
		newConflictsCmd(&opts),
		newRunCmd(&opts),
		newStopCmd(&opts),
		newResetNetworkCmd(&opts),
	)
	return root
}

// session is one command's wired application.
type session struct {
	cfg      app.Config
	logger   *zap.Logger
	app      *app.App
	registry *prometheus.Registry
}

func (s *session) Close() {
	_ = s.app.Close()
	_ = s.logger.Sync()
}

type sessionOptions struct {
	openSettings bool
}

func openSession(cmd *cobra.Command, opts *cliOptions, sessOpts sessionOptions) (*session, error) {
	cfg, err := app.LoadConfig(app.LoadOptions{
		ConfigPath: opts.configPath,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}

	logging, err := app.NewLogging(app.LoggingConfig{Level: cfg.LogLevel})
	if err != nil {
		return nil, err
	}
	logger := logging.Logger

	var (
		metrics  domain.Metrics
		registry *prometheus.Registry
	)
	if cfg.MetricsListenAddress != "" {
		registry = prometheus.NewRegistry()
		metrics = telemetry.NewPrometheusMetrics(registry)
	}

	application, err := app.New(app.Options{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		OpenSettings: sessOpts.openSettings,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Debug("configuration loaded",
		zap.String("root", cfg.Root),
		zap.String("config", cfg.ConfigFile),
		zap.String("profiles", cfg.ProfilesDir),
	)
	return &session{cfg: cfg, logger: logger, app: application, registry: registry}, nil
}

// serveMetrics exposes /metrics and /healthz until ctx ends, when enabled.
func (s *session) serveMetrics(ctx context.Context) {
	if s.registry == nil {
		return
	}
	go func() {
		err := telemetry.Serve(ctx, telemetry.ServerOptions{
			Addr:     s.cfg.MetricsListenAddress,
			Gatherer: s.registry,
			Health:   s.app.Health,
		}, s.logger.Named("metrics"))
		if err != nil {
			s.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
