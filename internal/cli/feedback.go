package cli

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"risklock/internal/audit"
	apperr "risklock/internal/errors"
	"risklock/internal/models"
	"risklock/internal/store"
)

const feedbackDraftKind = "feedback"

// addFeedbackCommands adds the feedback commands.
func addFeedbackCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Send ideas and complaints",
	}
	cmd.AddCommand(newFeedbackSubmitCmd(app))
	cmd.AddCommand(newFeedbackListCmd(app))
	cmd.AddCommand(newFeedbackAdminCmd(app))
	rootCmd.AddCommand(cmd)
}

func newFeedbackSubmitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an idea or complaint",
		Long: `Submit an idea or a complaint to the RiskLock team.

Missing fields are prompted for unless --no-input is set. The form is kept
as a local draft until the service accepts it, so a failed submission can
be retried without typing it again.`,
		Example: `  risklock feedback submit
  risklock feedback submit --type complaint --title "Lock too late" \
    --description "The overlay appeared after my next trade" --severity High --no-input`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()
			noInput, _ := cmd.Flags().GetBool("no-input")

			in, err := app.feedbackForm(ctx, cmd, noInput)
			if err != nil {
				return err
			}
			if err := in.Validate(); err != nil {
				output.Error("%v", err)
				return err
			}

			draft, err := app.saveFeedbackDraft(ctx, in)
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to save feedback draft")
			}

			fb, err := app.Client.CreateFeedback(ctx, in)
			app.record(ctx, audit.Event{
				Type:    audit.EventFeedbackSubmitted,
				Details: map[string]interface{}{"type": string(in.Type), "draft_id": draft.ID, "feedback_id": fb.ID},
			}, err)
			if err != nil {
				subErr := apperr.NewSubmissionError(feedbackDraftKind, draft.ID, err)
				output.Error("%v", subErr)
				return fail(output, subErr)
			}
			if err := app.Store.ClearDraft(ctx, feedbackDraftKind); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to clear feedback draft")
			}

			app.Logger.Info().Int64("id", fb.ID).Str("type", string(fb.Type)).Msg("Feedback submitted")
			if output.IsJSON() {
				return output.JSON(fb)
			}
			output.Success("✓ Thanks! Feedback #%d received", fb.ID)
			return nil
		},
	}
	cmd.Flags().String("type", "", "idea or complaint")
	cmd.Flags().String("title", "", "short title")
	cmd.Flags().String("description", "", "what happened or what you would like")
	cmd.Flags().String("category", "", "one of: "+strings.Join(models.FeedbackCategories, ", "))
	cmd.Flags().String("severity", "", "complaints only: "+strings.Join(models.FeedbackSeverities, ", "))
	cmd.Flags().Bool("no-input", false, "never prompt; fail on missing fields")
	return cmd
}

// feedbackForm merges flags, a stored draft and prompts, in that order of
// precedence.
func (app *App) feedbackForm(ctx context.Context, cmd *cobra.Command, noInput bool) (models.FeedbackInput, error) {
	var in models.FeedbackInput

	if draft, err := app.Store.LoadDraft(ctx, feedbackDraftKind); err == nil {
		var saved models.FeedbackInput
		if err := json.Unmarshal(draft.Payload, &saved); err != nil {
			app.Logger.Warn().Err(err).Str("draft", draft.ID).Msg("Discarding unreadable draft")
		} else {
			use := noInput
			if !noInput {
				use, err = app.Prompter.Confirm("Resume your unsent feedback \""+saved.Title+"\"?", true)
				if err != nil {
					return in, err
				}
			}
			if use {
				in = saved
			}
		}
	} else if !apperr.Is(err, apperr.ErrNoDraft) {
		app.Logger.Warn().Err(err).Msg("Failed to load feedback draft")
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("type"); v != "" {
		in.Type = models.FeedbackType(strings.ToUpper(v))
	}
	if v, _ := flags.GetString("title"); v != "" {
		in.Title = v
	}
	if v, _ := flags.GetString("description"); v != "" {
		in.Description = v
	}
	if v, _ := flags.GetString("category"); v != "" {
		in.Category = v
	}
	if v, _ := flags.GetString("severity"); v != "" {
		in.Severity = v
	}
	if noInput {
		return in, nil
	}

	var err error
	if in.Type == "" {
		choice, err := app.Prompter.Select("What kind of feedback?", []string{"Idea", "Complaint"}, "Idea")
		if err != nil {
			return in, err
		}
		in.Type = models.FeedbackType(strings.ToUpper(choice))
	}
	if strings.TrimSpace(in.Title) == "" {
		if in.Title, err = app.Prompter.Input("Title:", "", true); err != nil {
			return in, err
		}
	}
	if strings.TrimSpace(in.Description) == "" {
		if in.Description, err = app.Prompter.Multiline("Description:", ""); err != nil {
			return in, err
		}
	}
	if in.Category == "" {
		if in.Category, err = app.Prompter.Select("Category:", models.FeedbackCategories, "Other"); err != nil {
			return in, err
		}
	}
	if in.Type == models.FeedbackComplaint && in.Severity == "" {
		if in.Severity, err = app.Prompter.Select("Severity:", models.FeedbackSeverities, "Medium"); err != nil {
			return in, err
		}
	}
	return in, nil
}

func (app *App) saveFeedbackDraft(ctx context.Context, in models.FeedbackInput) (store.Draft, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return store.Draft{}, err
	}
	return app.Store.SaveDraft(ctx, store.Draft{Kind: feedbackDraftKind, Payload: payload})
}

func newFeedbackListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			items, err := app.Client.GetUserFeedback(cmd.Context())
			if err != nil {
				output.Error("Failed to load feedback: %v", err)
				return fail(output, err)
			}
			return renderFeedback(output, items, false)
		},
	}
}

func newFeedbackAdminCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Review feedback of all users (admin only)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List feedback of every user",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			items, err := app.Client.GetAllFeedback(cmd.Context())
			if err != nil {
				output.Error("Failed to load feedback: %v", err)
				return fail(output, err)
			}
			return renderFeedback(output, items, true)
		},
	})

	statuses := make([]string, len(models.FeedbackStatuses))
	for i, s := range models.FeedbackStatuses {
		statuses[i] = string(s)
	}

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the status or notes of a feedback record",
		Args:  cobra.ExactArgs(1),
		Example: `  risklock feedback admin update 12 --status PLANNED
  risklock feedback admin update 12 --notes "Shipping next week"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return apperr.NewValidationError("id", args[0], "must be a number")
			}

			var patch models.FeedbackUpdate
			if cmd.Flags().Changed("status") {
				v, _ := cmd.Flags().GetString("status")
				status := models.FeedbackStatus(strings.ToUpper(v))
				patch.Status = &status
			}
			if cmd.Flags().Changed("notes") {
				v, _ := cmd.Flags().GetString("notes")
				patch.AdminNotes = &v
			}

			fb, err := app.Client.UpdateFeedback(cmd.Context(), id, patch)
			details := map[string]interface{}{"feedback_id": id}
			if patch.Status != nil {
				details["status"] = string(*patch.Status)
			}
			app.record(cmd.Context(), audit.Event{Type: audit.EventFeedbackUpdated, Details: details}, err)
			if err != nil {
				output.Error("Update failed: %v", err)
				return fail(output, err)
			}
			if output.IsJSON() {
				return output.JSON(fb)
			}
			output.Success("✓ Feedback #%d is now %s", fb.ID, fb.Status)
			return nil
		},
	}
	update.Flags().String("status", "", "new status: "+strings.Join(statuses, ", "))
	update.Flags().String("notes", "", "admin notes shown to the user")
	cmd.AddCommand(update)

	return cmd
}

func renderFeedback(output *Output, items []models.Feedback, withUser bool) error {
	if output.IsJSON() {
		return output.JSON(items)
	}
	if len(items) == 0 {
		output.Dim("No feedback yet.")
		return nil
	}

	headers := []string{"ID", "Type", "Title", "Status", "Created"}
	if withUser {
		headers = append(headers, "User")
	}
	table := NewTable(output, headers...)
	for _, f := range items {
		row := []string{
			strconv.FormatInt(f.ID, 10),
			string(f.Type),
			TruncateString(f.Title, 40),
			output.FeedbackStatus(f.Status),
			FormatDate(f.CreatedAt),
		}
		if withUser {
			row = append(row, strconv.FormatInt(f.UserID, 10))
		}
		table.AddRow(row...)
	}
	table.Render()
	return nil
}
