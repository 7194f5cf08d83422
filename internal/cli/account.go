package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"risklock/internal/api"
	"risklock/internal/audit"
	"risklock/internal/dashboard"
	"risklock/internal/display"
)

// addAccountCommands adds the account data commands.
func addAccountCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTradesCmd(app))
	rootCmd.AddCommand(newBrokersCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newReportCmd(app))
}

func newTradesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "List open trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			trades, err := app.Client.GetTrades(cmd.Context())
			if err != nil {
				output.Error("Failed to load trades: %v", err)
				return fail(output, err)
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			renderer := display.NewRenderer(output.ColorEnabled())
			output.Println(renderer.RenderTrades(trades, app.Config.UI.Width))
			return nil
		},
	}
}

func newPortfolioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show the aggregate over every connected account",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			p, err := app.Client.GetPortfolio(cmd.Context())
			if err != nil {
				output.Error("Failed to load portfolio: %v", err)
				return fail(output, err)
			}
			if output.IsJSON() {
				return output.JSON(p)
			}
			renderer := display.NewRenderer(output.ColorEnabled())
			output.Println(renderer.RenderPortfolio(p, app.Config.UI.Width))
			return nil
		},
	}
}

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Risk reports",
	}

	download := &cobra.Command{
		Use:   "download",
		Short: "Download a risk report",
		Long: `Generate a risk report and save it as
RiskLock_Report_<account>_<epoch millis>.<pdf|csv> in the report directory.

The first successful download completes the report step of the
onboarding checklist.`,
		Example: `  risklock report download
  risklock report download --format csv --account 900001 --dir ./reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			formatName, _ := cmd.Flags().GetString("format")
			format, err := api.ParseReportFormat(formatName)
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = app.Config.Dashboard.ReportDir
			}

			accountID, _ := cmd.Flags().GetString("account")
			if accountID == "" {
				snap, err := app.Client.GetOverview(ctx)
				if err != nil {
					output.Error("Could not determine the account: %v", err)
					return fail(output, err)
				}
				accountID = strconv.FormatInt(snap.Account.Login, 10)
			}

			path, err := dashboard.SaveReport(ctx, app.Client, app.Store, accountID, format, dir)
			event := audit.Event{
				Type:      audit.EventReportDownloaded,
				AccountID: accountID,
				Details:   map[string]interface{}{"format": string(format), "path": path},
			}
			if path == "" {
				app.record(ctx, event, err)
				output.Error("Report download failed: %v", err)
				return fail(output, err)
			}
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Report saved but not recorded")
			}
			app.record(ctx, event, nil)

			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path, "format": string(format), "account_id": accountID})
			}
			output.Success("✓ Report saved to %s", path)
			return nil
		},
	}
	download.Flags().String("format", "pdf", "report format: "+strings.Join([]string{string(api.ReportPDF), string(api.ReportCSV)}, ", "))
	download.Flags().String("account", "", "account ID (default: the active account login)")
	download.Flags().String("dir", "", "output directory (default: dashboard.report_dir)")
	cmd.AddCommand(download)

	return cmd
}
