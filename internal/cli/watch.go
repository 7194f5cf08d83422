package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"risklock/internal/audit"
	"risklock/internal/cache"
	"risklock/internal/dashboard"
	"risklock/internal/display"
	"risklock/internal/models"
	"risklock/internal/notify"
	"risklock/internal/resolver"
	"risklock/internal/store"
)

const clearScreen = "\033[H\033[2J"

// addDashboardCommands adds the live dashboard commands.
func addDashboardCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newDemoCmd(app))
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live risk dashboard",
		Long: `Poll the risk service and redraw the dashboard on every change.

Keys (followed by Enter):
  r  reload (also leaves the lock and fetch error screens)
  d  toggle demo violations on the simulated account
  q  quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			once, _ := cmd.Flags().GetBool("once")
			width, _ := cmd.Flags().GetInt("width")
			if width == 0 {
				width = app.Config.UI.Width
			}
			return app.watch(ctx, cmd, watchOptions{once: once, width: width})
		},
	}
	cmd.Flags().Bool("once", false, "render the first settled frame and exit")
	cmd.Flags().Int("width", 0, "render width (default from ui.width)")
	return cmd
}

type watchOptions struct {
	once  bool
	width int
}

func (app *App) notifier(out io.Writer) (notify.Notifier, *notify.TerminalChannel) {
	terminal := notify.NewTerminalChannel(3, 15*time.Second, out)
	fanout := notify.Fanout{notify.NewMultiNotifierWithChannels(notify.LevelAll, terminal)}
	if app.Config.Notifications.Enabled {
		fanout = append(fanout, notify.NewMultiNotifier(app.Config.Notifications, app.Logger))
	}
	return fanout, terminal
}

func (app *App) watch(ctx context.Context, cmd *cobra.Command, opts watchOptions) error {
	output := app.output(cmd)
	out := cmd.OutOrStdout()

	notifier, terminal := app.notifier(out)
	defer notifier.Close()

	d := dashboard.New(dashboard.Options{
		Service:            app.Client,
		Store:              app.Store,
		Cache:              app.Cache,
		CacheTTL:           app.Config.Cache.TTL,
		Notifier:           notifier,
		PollInterval:       app.Config.Dashboard.PollInterval,
		TradesPollInterval: app.Config.Dashboard.TradesPollInterval,
		Timeout:            app.Config.API.Timeout,
		StickyErrors:       app.Config.Dashboard.StickyErrors,
		Logger:             app.Logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	renderer := display.NewRenderer(output.ColorEnabled())
	draw := func() {
		view := app.view(d, terminal, opts.width)
		if opts.once {
			fmt.Fprintln(out, renderer.Render(view))
			return
		}
		fmt.Fprint(out, clearScreen+renderer.Render(view)+"\n")
	}

	if opts.once {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.Updates():
				if d.Presentation().Page != resolver.PageLoading {
					draw()
					return nil
				}
			}
		}
	}

	keys := make(chan string)
	go readKeys(ctx, cmd.InOrStdin(), keys)

	// Toasts expire on their own, so redraw periodically as well.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.Updates():
			draw()
		case <-ticker.C:
			draw()
		case key, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			if app.handleKey(ctx, d, notifier, key) {
				return nil
			}
			draw()
		}
	}
}

func (app *App) view(d *dashboard.Dashboard, terminal *notify.TerminalChannel, width int) display.View {
	trades := d.Trades()
	view := display.View{
		Presentation: d.Presentation(),
		Toasts:       terminal.Visible(),
		Width:        width,
	}
	if trades.Data != nil {
		view.Trades = *trades.Data
	}
	if trades.IsError && trades.Data == nil {
		view.TradesError = "Trades unavailable. They will load once the service responds."
	}
	return view
}

// handleKey runs the action bound to key. It returns true to quit.
func (app *App) handleKey(ctx context.Context, d *dashboard.Dashboard, notifier notify.Notifier, key string) bool {
	switch key {
	case "q", "quit", "exit":
		return true
	case "r":
		d.Reload()
	case "d":
		p := d.Presentation()
		if !p.HasAction(resolver.ActionToggleDemo) {
			return false
		}
		snap := d.Overview().Data
		_, err := d.ToggleDemo(ctx, !p.DemoMode)
		if snap != nil {
			app.record(ctx, demoEvent(snap.Account.Login, !p.DemoMode), err)
		}
		if err != nil {
			app.Logger.Warn().Err(err).Msg("Demo toggle failed")
			_ = notifier.Send(ctx, notify.Notification{
				Type:    notify.NotificationInfo,
				Title:   "Demo toggle failed",
				Message: err.Error(),
			})
		}
	}
	return false
}

func demoEvent(login int64, enabled bool) audit.Event {
	return audit.Event{
		Type:      audit.EventDemoToggled,
		AccountID: strconv.FormatInt(login, 10),
		Details:   map[string]interface{}{"enabled": enabled},
	}
}

// readKeys forwards input lines until r ends or ctx is done.
func readKeys(ctx context.Context, r io.Reader, keys chan<- string) {
	defer close(keys)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case keys <- strings.ToLower(strings.TrimSpace(scanner.Text())):
		case <-ctx.Done():
			return
		}
	}
}

func newStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "One-shot risk status",
		Long: `Fetch the overview once and print the resolved dashboard.

With --cached the snapshot last mirrored by 'watch' or 'status' is shown
instead, without contacting the risk service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()
			cached, _ := cmd.Flags().GetBool("cached")

			mirror := app.Cache
			session := app.session(ctx)
			in := resolver.Input{Session: session}
			var storedAt time.Time

			if cached {
				entry, err := cache.Fetch[models.Snapshot](ctx, mirror, cache.SnapshotKey)
				if err != nil {
					output.Warning("No cached snapshot (%s backend). Run 'risklock status' without --cached first.", mirror.Backend())
					return err
				}
				in.Snapshot = &entry.Value
				storedAt = entry.StoredAt
			} else {
				snap, err := app.Client.GetOverview(ctx)
				if err != nil {
					app.Logger.Warn().Err(err).Msg("Overview fetch failed")
					in.IsError = true
				} else {
					in.Snapshot = &snap
					if err := cache.Put(ctx, mirror, cache.SnapshotKey, snap, app.Config.Cache.TTL); err != nil {
						app.Logger.Warn().Err(err).Msg("Failed to mirror snapshot")
					}
				}
			}

			p := resolver.Resolve(in)
			if output.IsJSON() {
				return output.JSON(statusJSON(p, storedAt))
			}

			if !storedAt.IsZero() {
				output.Dim("Cached %s", FormatAge(storedAt, time.Now()))
			}
			renderer := display.NewRenderer(output.ColorEnabled())
			output.Println(renderer.RenderPresentation(p, nil, app.Config.UI.Width))
			if p.Page == resolver.PageFetchError {
				return fmt.Errorf("%s", p.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().Bool("cached", false, "show the last mirrored snapshot")
	return cmd
}

func (app *App) session(ctx context.Context) resolver.Session {
	state, err := app.Store.Load(ctx)
	if err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to load session state")
		return resolver.Session{}
	}
	return sessionFromState(state)
}

func sessionFromState(s store.State) resolver.Session {
	return resolver.Session{HasDownloadedReport: s.HasDownloadedReport}
}

type statusOverlay struct {
	Kind       string   `json:"kind"`
	Title      string   `json:"title"`
	Violations []string `json:"violations,omitempty"`
}

type statusOutput struct {
	Page       string            `json:"page"`
	Error      string            `json:"error,omitempty"`
	RiskStatus string            `json:"risk_status,omitempty"`
	Overlays   []statusOverlay   `json:"overlays"`
	Stats      map[string]string `json:"stats,omitempty"`
	Onboarded  bool              `json:"onboarded"`
	IsMock     bool              `json:"is_mock"`
	DemoMode   bool              `json:"demo_mode"`
	Actions    []string          `json:"actions"`
	CachedAt   *time.Time        `json:"cached_at,omitempty"`
}

func statusJSON(p resolver.Presentation, storedAt time.Time) statusOutput {
	out := statusOutput{
		Page:      p.Page.String(),
		Error:     p.ErrorMessage,
		Overlays:  []statusOverlay{},
		Onboarded: p.Checklist.FullyOnboarded(),
		IsMock:    p.IsMock,
		DemoMode:  p.DemoMode,
		Actions:   []string{},
	}
	if p.Page == resolver.PageNormal {
		out.RiskStatus = string(p.Banner.Status)
		out.Stats = make(map[string]string, len(p.Stats))
		for _, s := range p.Stats {
			out.Stats[s.Title] = s.Value
		}
	}
	for _, o := range p.Overlays {
		out.Overlays = append(out.Overlays, statusOverlay{Kind: string(o.Kind), Title: o.Title, Violations: o.Violations})
	}
	for _, a := range p.Actions {
		out.Actions = append(out.Actions, string(a.Kind))
	}
	if !storedAt.IsZero() {
		out.CachedAt = &storedAt
	}
	return out
}

func newDemoCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "demo on|off",
		Short:     "Toggle simulated violations on the demo account",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()
			enabled := args[0] == "on"

			snap, err := app.Client.GetOverview(ctx)
			if err != nil {
				output.Error("Could not read the account: %v", err)
				return fail(output, err)
			}
			if err := dashboard.CheckDemoAllowed(&snap); err != nil {
				output.Error("%v", err)
				return fail(output, err)
			}

			mode, err := app.Client.ToggleDemoMode(ctx, enabled)
			app.record(ctx, demoEvent(snap.Account.Login, enabled), err)
			if err != nil {
				output.Error("Demo toggle failed: %v", err)
				return fail(output, err)
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"demo_mode": mode})
			}
			if mode {
				output.Warning("Demo violations enabled")
			} else {
				output.Success("✓ Demo violations disabled")
			}
			return nil
		},
	}
	return cmd
}
