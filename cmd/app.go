package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"restore-chain/internal/config"
	"restore-chain/internal/display"
	apperrors "restore-chain/internal/errors"
	"restore-chain/internal/logging"
)

// app bundles what every command needs once the configuration is loaded
type app struct {
	config   *config.Config
	logger   *logging.Logger
	renderer *display.Renderer
}

// runFunc is the body of a command
type runFunc func(ctx context.Context, a *app, args []string) error

// loadApp loads the configuration with the global flags and the command's
// own bindings, then builds the logger and renderer
func loadApp(cmd *cobra.Command, opts *globalOptions, bindings map[string]string) (*app, error) {
	if opts.verbose && opts.quiet {
		return nil, fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}

	loader := config.NewLoader()
	if err := loader.BindFlags(cmd, mergeBindings(globalBindings, bindings)); err != nil {
		return nil, err
	}

	// Inverted and level flags do not map onto a single key
	if opts.noColor {
		loader.Set("display.color_enabled", false)
	}
	switch {
	case opts.debug:
		loader.Set("logging.level", string(logging.LogLevelDebug))
	case opts.verbose:
		loader.Set("logging.level", string(logging.LogLevelVerbose))
	case opts.quiet:
		loader.Set("logging.level", string(logging.LogLevelQuiet))
	}
	if opts.quiet {
		loader.Set("display.quiet", true)
	}

	cfg, err := loader.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	cfg.Logging.Output = cmd.ErrOrStderr()
	cfg.Display.Writer = cmd.OutOrStdout()
	cfg.Display.ErrWriter = cmd.ErrOrStderr()

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	renderer, err := display.NewRenderer(cfg.Display)
	if err != nil {
		return nil, err
	}

	if used := loader.ConfigFileUsed(); used != "" {
		logger.WithField("config_file", used).Debug("Using config file")
	}

	return &app{config: cfg, logger: logger, renderer: renderer}, nil
}

// run adapts fn to a cobra RunE. The context is cancelled on SIGINT/SIGTERM
// and after the configured timeout. Errors from fn are rendered in the
// selected output format.
func (o *globalOptions) run(bindings map[string]string, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd, o, bindings)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := apperrors.CreateContextWithTimeout(ctx, a.config.Timeout)
		defer cancel()
		ctx = logging.ContextWithRunID(ctx, a.logger.RunID())

		if err := fn(ctx, a, args); err != nil {
			a.logger.WithContext(ctx).WithField("command", cmd.Name()).Debugf("Command failed: %v", err)
			a.renderer.RenderError(err)
			if hint := apperrors.FormatUserError(err); hint != err.Error() {
				a.renderer.Info(hint)
			}
			return errReported
		}
		return nil
	}
}
