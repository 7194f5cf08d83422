package cli

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"risklock/internal/audit"
	apperr "risklock/internal/errors"
	"risklock/internal/models"
)

func newBrokersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brokers",
		Short: "List connected broker accounts",
		Long: `List connected broker accounts and their risk rules.

Use the subcommands to link a new account, apply a prop firm preset
or set custom limits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			brokers, err := app.Client.GetBrokers(cmd.Context())
			if err != nil {
				output.Error("Failed to load brokers: %v", err)
				return fail(output, err)
			}
			if output.IsJSON() {
				return output.JSON(brokers)
			}
			if len(brokers) == 0 {
				output.Warning("No broker connected. The dashboard shows a simulated account until one is linked.")
				output.Dim("Run 'risklock brokers connect' to link one.")
				return nil
			}

			table := NewTable(output, "ID", "Name", "Platform", "Account", "Active", "Daily loss", "Drawdown", "Preset")
			for _, b := range brokers {
				active := output.DimText("no")
				if b.IsActive {
					active = output.Green("yes")
				}
				if b.IsLimited {
					active = output.Yellow("limited")
				}
				preset := b.PresetName
				if preset == "" {
					preset = output.DimText("custom")
				}
				table.AddRow(strconv.FormatInt(b.ID, 10), b.Name, b.Platform, b.AccountID, active,
					pct(b.DailyLossLimitPct), pct(b.MaxDrawdownLimitPct), preset)
			}
			table.Render()
			return nil
		},
	}
	cmd.AddCommand(newBrokerConnectCmd(app))
	cmd.AddCommand(newBrokerPresetCmd(app))
	cmd.AddCommand(newBrokerRulesCmd(app))
	return cmd
}

func pct(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	return d.String() + "%"
}

func newBrokerConnectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Link a MetaTrader account",
		Long: `Link a MetaTrader account through MetaApi.

The service verifies the credentials before saving and makes the new
account the active one. Missing fields are prompted for unless --no-input
is set.`,
		Example: `  risklock brokers connect
  risklock brokers connect --platform mt5 --account 7001 --token $METAAPI_TOKEN --no-input`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()
			flags := cmd.Flags()
			noInput, _ := flags.GetBool("no-input")

			in := models.NewBrokerConnectInput()
			in.Platform, _ = flags.GetString("platform")
			in.AccountID, _ = flags.GetString("account")
			in.Token, _ = flags.GetString("token")
			in.Name, _ = flags.GetString("name")
			daily, _ := flags.GetFloat64("daily-loss")
			drawdown, _ := flags.GetFloat64("max-drawdown")
			in.DailyLossLimitPct = decimal.NewFromFloat(daily)
			in.MaxDrawdownLimitPct = decimal.NewFromFloat(drawdown)

			var err error
			if !noInput {
				if in.Platform == "" {
					if in.Platform, err = app.Prompter.Select("Platform:", models.BrokerPlatforms, "mt5"); err != nil {
						return err
					}
				}
				if strings.TrimSpace(in.AccountID) == "" {
					if in.AccountID, err = app.Prompter.Input("Account ID:", "", true); err != nil {
						return err
					}
				}
				if strings.TrimSpace(in.Token) == "" {
					if in.Token, err = app.Prompter.Password("MetaApi token:"); err != nil {
						return err
					}
				}
			}
			in.Platform = strings.ToLower(in.Platform)
			if err := in.Validate(); err != nil {
				output.Error("%v", err)
				return err
			}

			b, err := app.Client.ConnectBroker(ctx, in)
			app.record(ctx, audit.Event{
				Type:      audit.EventBrokerConnected,
				AccountID: in.AccountID,
				Details:   map[string]interface{}{"platform": in.Platform, "broker_id": b.ID},
			}, err)
			if err != nil {
				output.Error("Connection failed: %v", err)
				return fail(output, err)
			}

			app.Logger.Info().Int64("id", b.ID).Str("platform", b.Platform).Msg("Broker connected")
			if output.IsJSON() {
				return output.JSON(b)
			}
			output.Success("✓ Connected %s (#%d). It is now the active account.", b.Name, b.ID)
			return nil
		},
	}
	cmd.Flags().String("platform", "", "mt4 or mt5")
	cmd.Flags().String("account", "", "MetaTrader account ID")
	cmd.Flags().String("token", "", "MetaApi token")
	cmd.Flags().String("name", "", "display name (default: <platform> - <account>)")
	cmd.Flags().Float64("daily-loss", 5, "daily loss limit in percent")
	cmd.Flags().Float64("max-drawdown", 10, "maximum drawdown in percent")
	cmd.Flags().Bool("no-input", false, "never prompt; fail on missing fields")
	return cmd
}

func newBrokerPresetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "preset [<broker-id> <name>]",
		Short: "List prop firm presets or apply one to an account",
		Example: `  risklock brokers preset
  risklock brokers preset 9 FTMO`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return apperr.NewValidationError("args", strings.Join(args, " "), "expected no arguments or <broker-id> <name>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			presets, err := app.Client.GetPresets(ctx)
			if err != nil {
				output.Error("Failed to load presets: %v", err)
				return fail(output, err)
			}
			if len(args) == 0 {
				return renderPresets(output, presets)
			}

			id, err := parseBrokerID(args[0])
			if err != nil {
				return err
			}
			name := args[1]
			if _, ok := presets[name]; !ok {
				err := apperr.NewValidationError("preset", name, "unknown preset; one of: "+strings.Join(presets.Names(), ", "))
				output.Error("%v", err)
				return err
			}
			return app.updateRiskRules(cmd, id, models.RiskSettingsUpdate{PresetName: &name})
		},
	}
}

func renderPresets(output *Output, presets models.Presets) error {
	if output.IsJSON() {
		return output.JSON(presets)
	}
	if len(presets) == 0 {
		output.Dim("No presets available.")
		return nil
	}
	table := NewTable(output, "Name", "Daily loss", "Drawdown", "Description")
	for _, name := range presets.Names() {
		p := presets[name]
		table.AddRow(name, optionalPct(p.DailyLossLimitPct), optionalPct(p.MaxDrawdownLimitPct), TruncateString(p.Description, 48))
	}
	table.Render()
	return nil
}

func optionalPct(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return pct(*d)
}

func newBrokerRulesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules <broker-id>",
		Short: "Set custom risk limits on an account",
		Args:  cobra.ExactArgs(1),
		Example: `  risklock brokers rules 9 --daily-loss 4 --max-drawdown 8
  risklock brokers rules 9 --max-trades 5 --news=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBrokerID(args[0])
			if err != nil {
				return err
			}

			var u models.RiskSettingsUpdate
			flags := cmd.Flags()
			if flags.Changed("daily-loss") {
				v, _ := flags.GetFloat64("daily-loss")
				d := decimal.NewFromFloat(v)
				u.DailyLossLimitPct = &d
			}
			if flags.Changed("max-drawdown") {
				v, _ := flags.GetFloat64("max-drawdown")
				d := decimal.NewFromFloat(v)
				u.MaxDrawdownLimitPct = &d
			}
			if flags.Changed("max-trades") {
				v, _ := flags.GetInt("max-trades")
				u.MaxDailyTrades = &v
			}
			if flags.Changed("max-lot") {
				v, _ := flags.GetFloat64("max-lot")
				d := decimal.NewFromFloat(v)
				u.MaxLotSize = &d
			}
			if flags.Changed("news") {
				v, _ := flags.GetBool("news")
				u.NewsTradingAllowed = &v
			}
			if err := u.Validate(); err != nil {
				app.output(cmd).Error("%v", err)
				return err
			}
			return app.updateRiskRules(cmd, id, u)
		},
	}
	cmd.Flags().Float64("daily-loss", 0, "daily loss limit in percent")
	cmd.Flags().Float64("max-drawdown", 0, "maximum drawdown in percent")
	cmd.Flags().Int("max-trades", 0, "maximum trades per day (0 for no limit)")
	cmd.Flags().Float64("max-lot", 0, "maximum lot size per trade")
	cmd.Flags().Bool("news", true, "allow trading around news")
	return cmd
}

func (app *App) updateRiskRules(cmd *cobra.Command, id int64, u models.RiskSettingsUpdate) error {
	output := app.output(cmd)
	ctx := cmd.Context()

	b, err := app.Client.UpdateRiskSettings(ctx, id, u)
	details := map[string]interface{}{"broker_id": id}
	if u.PresetName != nil {
		details["preset"] = *u.PresetName
	}
	app.record(ctx, audit.Event{Type: audit.EventRiskRulesChanged, AccountID: b.AccountID, Details: details}, err)
	if err != nil {
		output.Error("Update failed: %v", err)
		return fail(output, err)
	}

	if output.IsJSON() {
		return output.JSON(b)
	}
	output.Success("✓ %s now allows %s daily loss and %s drawdown", b.Name, pct(b.DailyLossLimitPct), pct(b.MaxDrawdownLimitPct))
	return nil
}

func parseBrokerID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NewValidationError("broker-id", s, "must be a positive number")
	}
	return id, nil
}
