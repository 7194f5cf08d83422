package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"risklock/internal/api"
	"risklock/internal/audit"
	"risklock/internal/cache"
	"risklock/internal/config"
	apperr "risklock/internal/errors"
	"risklock/internal/logging"
	"risklock/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Client   *api.Client
	Store    store.SessionStore
	Cache    cache.Cache
	Audit    *audit.Logger
	Prompter Prompter
}

// Execute builds the command tree, runs it and releases resources.
func Execute() error {
	app := &App{Prompter: surveyPrompter{}}
	defer app.Close()
	return NewRootCmd(app).Execute()
}

// NewRootCmd creates the root command for the CLI. Dependencies already set
// on app are kept; the rest are built from configuration before each command.
func NewRootCmd(app *App) *cobra.Command {
	if app.Prompter == nil {
		app.Prompter = surveyPrompter{}
	}

	rootCmd := &cobra.Command{
		Use:   "risklock",
		Short: "RiskLock terminal - live prop-firm risk dashboard",
		Long: `RiskLock terminal watches your trading account through the RiskLock risk service.

It polls the account and risk snapshot, shows your limits, locks the view when
a risk rule is breached and pauses it when the broker link is down.

Use 'risklock watch' for the live dashboard and 'risklock status' for a one-shot check.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/risklock)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("ephemeral", false, "keep session state in memory only")

	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addDashboardCommands(rootCmd, app)
	addAccountCommands(rootCmd, app)
	addFeedbackCommands(rootCmd, app)

	return rootCmd
}

// init loads whatever the caller did not inject.
func (app *App) init(cmd *cobra.Command) error {
	debug, _ := cmd.Flags().GetBool("debug")

	if app.Config == nil {
		dir, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		app.Config = cfg

		logCfg := logging.DefaultLogConfig()
		logCfg.Level = cfg.Logging.Level
		logCfg.FilePath = cfg.Logging.File
		// The watch screen owns the terminal, so its logs go to the file only.
		logCfg.Console = debug && cmd.Name() != "watch"
		if debug {
			logCfg.Level = "debug"
		}
		app.Logger = logging.NewLoggerWithConfig(logCfg)
	} else if debug {
		logging.SetDebugLevel()
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}

	if app.Store == nil {
		ephemeral, _ := cmd.Flags().GetBool("ephemeral")
		if ephemeral {
			app.Store = store.NewMemoryStore()
		} else {
			s, err := store.NewSQLiteStore(app.sessionPath())
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to open session store, using memory")
				app.Store = store.NewMemoryStore()
			} else {
				app.Store = s
				app.Logger.Debug().Str("path", app.sessionPath()).Msg("Session store opened")
			}
		}
	}

	if app.Audit == nil && app.Config.Logging.AuditFile != "" {
		l, err := audit.Open(audit.DefaultConfig(app.Config.Logging.AuditFile))
		if err != nil {
			app.Logger.Warn().Err(err).Msg("Audit trail disabled")
		} else {
			app.Audit = l
		}
	}

	if app.Cache == nil {
		app.Cache = cache.NewCache(app.Config.Cache.RedisURL, app.Logger)
	}

	if app.Client == nil {
		token := app.Config.API.Token
		if token == "" {
			state, err := app.Store.Load(context.Background())
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to load session state")
			}
			token = state.Token
		}
		sessions := app.Store
		logger := app.Logger
		app.Client = api.New(api.Options{
			BaseURL: app.Config.API.BaseURL,
			Timeout: app.Config.API.Timeout,
			Token:   token,
			Logger:  app.Logger,
			OnUnauthorized: func() {
				if err := sessions.ClearToken(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("Failed to clear stored token")
				}
			},
		})
	}
	return nil
}

func (app *App) sessionPath() string {
	if app.Config.Dashboard.SessionDB != "" {
		return app.Config.Dashboard.SessionDB
	}
	return filepath.Join(app.Config.Dir, "session.db")
}

// Close releases the session store, the snapshot mirror and the audit file.
func (app *App) Close() error {
	errs := []error{app.Audit.Close()}
	if app.Cache != nil {
		errs = append(errs, app.Cache.Close())
	}
	if app.Store != nil {
		errs = append(errs, app.Store.Close())
	}
	return errors.Join(errs...)
}

func (app *App) output(cmd *cobra.Command) *Output {
	color := true
	if app.Config != nil {
		color = app.Config.UI.ColorEnabled
	}
	return NewOutput(cmd, color)
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("RiskLock terminal v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the terminal configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Dir})
			}
			output.Println(app.Config.Dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Risk Service")
	output.Printf("  Base URL:        %s\n", cfg.API.BaseURL)
	output.Printf("  Timeout:         %s\n", cfg.API.Timeout)
	output.Printf("  Token override:  %s\n", MaskSecret(cfg.API.Token))
	output.Println()

	output.Bold("Dashboard")
	output.Printf("  Poll interval:   %s\n", cfg.Dashboard.PollInterval)
	output.Printf("  Trades interval: %s\n", cfg.Dashboard.TradesPollInterval)
	output.Printf("  Sticky errors:   %s\n", FormatBool(cfg.Dashboard.StickyErrors))
	output.Printf("  Report dir:      %s\n", cfg.Dashboard.ReportDir)
	output.Printf("  Session DB:      %s\n", cfg.Dashboard.SessionDB)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %s\n", FormatBool(cfg.Notifications.Enabled))
	output.Printf("  Level:           %s\n", cfg.Notifications.Level)
	output.Printf("  NATS:            %s\n", valueOrDash(cfg.Notifications.NATSURL))
	output.Printf("  Webhook:         %s\n", valueOrDash(cfg.Notifications.WebhookURL))
	output.Println()

	output.Bold("Cache")
	output.Printf("  Redis:           %s\n", valueOrDash(cfg.Cache.RedisURL))
	output.Printf("  TTL:             %s\n", cfg.Cache.TTL)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %s\n", cfg.Logging.File)
	output.Printf("  Audit file:      %s\n", valueOrDash(cfg.Logging.AuditFile))
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// record writes an audit entry. Failures only reach the log.
func (app *App) record(ctx context.Context, e audit.Event, err error) {
	if aerr := app.Audit.Outcome(ctx, e, err); aerr != nil {
		app.Logger.Warn().Err(aerr).Str("event", string(e.Type)).Msg("Failed to write audit entry")
	}
}

// fail prints the next step for a failed command and returns err.
func fail(output *Output, err error) error {
	if hint := hintFor(err); hint != "" && !output.IsJSON() {
		output.Dim(hint)
	}
	return err
}

func hintFor(err error) string {
	var subErr *apperr.SubmissionError
	switch {
	case apperr.Is(err, apperr.ErrNotAuthenticated):
		return "Run 'risklock login' first."
	case apperr.As(err, &subErr) && subErr.DraftID != "":
		return "Your input was kept. Run the same command again to retry."
	case apperr.IsTransport(err):
		return "Check your connection to the risk service and try again."
	case apperr.Is(err, apperr.ErrNotMockAccount):
		return "Demo mode only works while no broker is connected."
	case apperr.Is(err, apperr.ErrTradingLocked):
		return "The account is locked. Reload once the risk service lifts the lock."
	}
	return ""
}
