package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awsm-dev/awsm/internal/config"
	"github.com/awsm-dev/awsm/internal/history"
	"github.com/awsm-dev/awsm/internal/logging"
	"github.com/awsm-dev/awsm/internal/telemetry"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errTestsFailed makes the process exit non-zero without printing anything
// beyond the test report.
var errTestsFailed = errors.New("tests failed")

type app struct {
	settings  config.Settings
	logger    *zap.Logger
	telemetry telemetry.Instrumenter
	closers   []func() error

	workspacePath string
	historyDB     string
	debug         bool
}

func main() {
	a := &app{}
	root := a.rootCommand()
	err := root.Execute()
	a.close()
	if err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "awsm",
		Short:         "Run stored API requests with scripts, variables and history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&a.workspacePath, "workspace", "w", "workspace.json", "Workspace file (.json or .yaml)")
	root.PersistentFlags().StringVar(&a.historyDB, "history-db", "", "SQLite database for history instead of the JSON store")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		a.sendCommand(),
		a.importCommand(),
		a.envCommand(),
		a.historyCommand(),
		a.wsCommand(),
		versionCommand(),
	)
	return root
}

func (a *app) init() error {
	settings, _, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings load error: %v\n", err)
		settings = config.DefaultSettings()
	}
	a.settings = config.NormaliseSettings(settings)

	logCfg := logging.Config{
		Level:      a.settings.Log.Level,
		Format:     a.settings.Log.Format,
		Output:     a.settings.Log.Output,
		FilePath:   a.settings.Log.File,
		MaxSize:    a.settings.Log.MaxSize,
		MaxBackups: a.settings.Log.MaxBackups,
		MaxAge:     a.settings.Log.MaxAge,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = config.LogPath()
	}
	if a.debug {
		logCfg.Level = "debug"
	}
	logger, closeLog := logging.New(logCfg)
	a.logger = logger
	a.closers = append(a.closers, closeLog)

	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	telemetryCfg.Version = version
	provider, err := telemetry.New(telemetryCfg)
	if err != nil {
		if telemetryCfg.Enabled() {
			logger.Warn("telemetry init failed", zap.Error(err))
		}
		provider = telemetry.Noop()
	}
	a.telemetry = provider
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return provider.Shutdown(ctx)
	})
	return nil
}

// historyStore opens the configured store. The caller owns the returned
// close func.
func (a *app) historyStore(ctx context.Context) (history.Store, func() error, error) {
	limit := a.settings.HistoryLimit
	if a.historyDB != "" {
		store, err := history.OpenSQLite(ctx, a.historyDB, limit)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	store := history.NewFileStore(config.HistoryPath(), limit)
	if err := store.Load(); err != nil {
		a.logger.Warn("history load failed", zap.Error(err))
	}
	return store, func() error { return nil }, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Debug("shutdown", zap.Error(err))
		}
	}
	a.closers = nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "awsm %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
			return nil
		},
	}
}
