// Package cli implements the docgate operator command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nimburion/docgate/pkg/config"
	"github.com/nimburion/docgate/pkg/gateway"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/observability/metrics"
	"github.com/nimburion/docgate/pkg/observability/tracing"
	"github.com/nimburion/docgate/pkg/query"
	"github.com/nimburion/docgate/pkg/store"
	"github.com/nimburion/docgate/pkg/store/factory"
	"github.com/google/uuid"
	"github.com/nimburion/docgate/pkg/version"
	"github.com/spf13/cobra"
)

// Options configures the root command.
type Options struct {
	Name       string
	ConfigPath string
	EnvPrefix  string
	// Dial overrides backend selection; tests use it to inject a store.
	Dial gateway.DialFunc
}

type globalFlags struct {
	configPath     string
	secretFilePath string
	output         string
	timeout        time.Duration
	keepFalsy      bool
	metricsFile    string
}

// session is the per-invocation wiring: config, logger, gateway, composer.
type session struct {
	cfg      *config.Config
	secrets  *config.Config
	log      logger.Logger
	gw       *gateway.Gateway
	composer *query.Composer
	tracer   *tracing.Provider
	in       io.Reader
	out      io.Writer
	format   string
	metrics  string
}

func (s *session) close(ctx context.Context) {
	if err := s.gw.Close(); err != nil {
		s.log.Warn("close document store", "error", err)
	}
	if s.metrics != "" {
		if err := metrics.NewRegistry().WriteTextfile(s.metrics); err != nil {
			s.log.Warn("write metrics", "error", err)
		}
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			s.log.Warn("shutdown tracer", "error", err)
		}
	}
}

// NewRootCommand builds the docgate command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "docgate"
	}
	opts.EnvPrefix = resolveEnvPrefix(opts.EnvPrefix)

	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           opts.Name,
		Short:         "Read, write and query documents in the configured document store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config-file", "c", opts.ConfigPath, "config file path")
	root.PersistentFlags().StringVar(&flags.secretFilePath, "secret-file", "", "path to secrets file (sets <PREFIX>_SECRETS_FILE)")
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", FormatJSON, "output format: json or yaml")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "overall command timeout")
	root.PersistentFlags().BoolVar(&flags.keepFalsy, "keep-falsy-filters", false, "apply filters whose value is 0, \"\" or false")
	root.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "write store metrics to this file on exit (textfile collector format)")

	// open loads configuration and connects the store for one command.
	open := func(cmd *cobra.Command) (*session, context.Context, context.CancelFunc, error) {
		if err := validateFormat(flags.output); err != nil {
			return nil, nil, nil, err
		}
		cfg, secrets, log, err := LoadConfigAndLogger(flags.configPath, opts.EnvPrefix, flags.secretFilePath, opts.Name)
		if err != nil {
			return nil, nil, nil, err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
		tp, err := tracing.Setup(ctx, tracing.ConfigFrom(cfg, version.Current(opts.Name).Version))
		if err != nil {
			cancel()
			return nil, nil, nil, fmt.Errorf("create tracer provider: %w", err)
		}

		dial := opts.Dial
		if dial == nil {
			dial = func(ctx context.Context, storeCfg config.StoreConfig) (store.Client, error) {
				return factory.NewClient(ctx, storeCfg, log)
			}
		}
		gw := gateway.New(dial, log)
		if err := gw.Initialize(ctx, cfg.Store); err != nil {
			_ = tp.Shutdown(ctx)
			cancel()
			return nil, nil, nil, err
		}

		var composerOpts []query.Option
		if flags.keepFalsy {
			composerOpts = append(composerOpts, query.WithFalsyScalars())
		}
		s := &session{
			cfg:      cfg,
			secrets:  secrets,
			log:      log,
			gw:       gw,
			composer: query.NewComposer(gw, log, composerOpts...),
			tracer:   tp,
			in:       cmd.InOrStdin(),
			out:      cmd.OutOrStdout(),
			format:   flags.output,
			metrics:  flags.metricsFile,
		}
		return s, ctx, cancel, nil
	}

	// run wraps a command body with session setup and teardown.
	run := func(body func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, ctx, cancel, err := open(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer s.close(context.Background())
			return body(logger.ContextWithOperationID(ctx, uuid.NewString()), s, args)
		}
	}

	root.AddCommand(
		newGetCommand(run),
		newSetCommand(run),
		newUpdateCommand(run),
		newAddCommand(run),
		newDeleteCommand(run),
		newCountCommand(run),
		newQueryCommand(run),
		newManyCommand(run),
		newAllCommand(run),
		newPingCommand(run),
		newConfigCommand(flags, opts),
		newVersionCommand(flags, opts),
	)
	return root
}

type runFunc func(body func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error

// LoadConfigAndLogger loads configuration (with secrets) and builds the zap
// logger it describes. The second return value holds only the secrets.
func LoadConfigAndLogger(cfgPath, envPrefix, secretFilePath, defaultServiceName string) (*config.Config, *config.Config, logger.Logger, error) {
	envPrefix = resolveEnvPrefix(envPrefix)
	if err := applySecretFileFlag(envPrefix, secretFilePath); err != nil {
		return nil, nil, nil, err
	}

	loader := config.NewViperLoader(cfgPath, envPrefix).WithServiceNameDefault(defaultServiceName)
	cfg, secrets, err := loader.LoadWithSecrets()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:   logger.LogLevel(cfg.Observability.LogLevel),
		Format:  logger.LogFormat(cfg.Observability.LogFormat),
		Service: cfg.Service.Name,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	if log.Enabled(logger.DebugLevel) {
		log.Debug("effective configuration", "config", cfg.Redacted(secrets))
	}
	return cfg, secrets, log, nil
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(resolveEnvPrefix(envPrefix)+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return config.DefaultEnvPrefix
	}
	return strings.ToUpper(trimmed)
}

// Execute runs the command until it returns or the process is interrupted,
// and exits with status 1 on error.
func Execute(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
