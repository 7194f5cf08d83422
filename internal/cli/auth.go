package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"risklock/internal/audit"
)

// addAuthCommands adds authentication commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newLogoutCmd(app))
}

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the risk service",
		Long: `Log in to the RiskLock risk service.

The bearer token is kept in the local session store and sent with every
request. A 401 from the service clears it again.`,
		Example: `  risklock login
  risklock login --username trader@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")

			var err error
			if username == "" {
				if username, err = app.Prompter.Input("Username:", "", true); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = app.Prompter.Password("Password:"); err != nil {
					return err
				}
			}

			token, err := app.Client.Login(ctx, username, password)
			app.record(ctx, audit.Event{Type: audit.EventLogin, User: username}, err)
			if err != nil {
				output.Error("Login failed: %v", err)
				return fail(output, err)
			}
			if err := app.Store.SaveToken(ctx, token); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to persist token")
				output.Warning("Logged in, but the token could not be saved; you will need to log in again next time.")
			}

			app.Logger.Info().Str("username", username).Msg("Logged in")
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"logged_in": true, "username": username})
			}
			output.Success("✓ Logged in as %s", username)
			return nil
		},
	}
	cmd.Flags().String("username", "", "account username (email)")
	cmd.Flags().String("password", "", "account password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if err := app.Store.ClearToken(cmd.Context()); err != nil {
				return err
			}
			app.Client.SetToken("")
			app.record(cmd.Context(), audit.Event{Type: audit.EventLogout}, nil)
			if output.IsJSON() {
				return output.JSON(map[string]bool{"logged_in": false})
			}
			output.Success("✓ Logged out")
			return nil
		},
	}
}
