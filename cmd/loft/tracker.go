package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/loft/pkg/tracker"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List study subjects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		subjects, err := app.Tracker.Subjects(ctx)
		if err != nil {
			return fmt.Errorf("failed to list subjects: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			type item struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			}
			items := make([]item, 0, len(subjects))
			for _, s := range subjects {
				items = append(items, item{ID: s.ID, Title: s.Title})
			}
			return printJSON(out, items)
		}
		for _, s := range subjects {
			fmt.Fprintf(out, "%s\t%s\n", s.ID, s.Title)
		}
		return nil
	},
}

var labsCmd = &cobra.Command{
	Use:   "labs <subject-id>",
	Short: "Show a subject and its labs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		details, err := app.Tracker.Details(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			type lab struct {
				ID string `json:"id"`
				tracker.Lab
			}
			labs := make([]lab, 0, len(details.Labs))
			for _, l := range details.Labs {
				labs = append(labs, lab{ID: l.ID, Lab: l})
			}
			return printJSON(out, map[string]any{
				"id":    details.Subject.ID,
				"title": details.Subject.Title,
				"labs":  labs,
			})
		}

		fmt.Fprintln(out, details.Subject.Title)
		for _, l := range details.Labs {
			line := fmt.Sprintf("  %s\t[%s]\t%s", l.ID, l.Status, l.Title)
			if l.Comment != "" {
				line += "\t# " + l.Comment
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var labCmd = &cobra.Command{
	Use:   "lab",
	Short: "Edit a lab",
}

var labStatusCmd = &cobra.Command{
	Use:   "status <lab-id> <status>",
	Short: "Set the status of a lab",
	Long: `Set the status of a lab. Accepted values (case-insensitive):
"Not started", "In progress", "Postponed", "Done".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := tracker.ParseStatus(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Tracker.UpdateStatus(ctx, args[0], status); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
		return nil
	},
}

var labCommentCmd = &cobra.Command{
	Use:   "comment <lab-id> [text...]",
	Short: "Set the comment of a lab (no text clears it)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		comment := strings.Join(args[1:], " ")
		if err := app.Tracker.UpdateComment(ctx, args[0], comment); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: comment saved\n", args[0])
		return nil
	},
}

func init() {
	labCmd.AddCommand(labStatusCmd, labCommentCmd)
	rootCmd.AddCommand(subjectsCmd, labsCmd, labCmd)
}
