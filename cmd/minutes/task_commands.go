package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"minutes/internal/api"
	"minutes/internal/client"
	"minutes/internal/task"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var summary, terms string
	var wait, quiet bool

	cmd := &cobra.Command{
		Use:   "submit <audio-file>",
		Short: "Upload a recording and start generating minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			id, err := cl.Submit(cmd.Context(), args[0], task.Hints{
				Summary: strings.TrimSpace(summary),
				Terms:   strings.TrimSpace(terms),
			})
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			if !wait {
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Task %s submitted\n", id)
			return watchTask(cmd, ctx, cl, id, quiet)
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "Short description of the meeting (improves transcription)")
	cmd.Flags().StringVar(&terms, "terms", "", "Names and terms likely to appear, comma separated")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the task and print the minutes")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "With --wait, do not print the minutes")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON, showDocument bool

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the current state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := cl.Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderFields(statusFields(status)))
			if showDocument && status.Result != nil {
				fmt.Fprintln(out)
				fmt.Fprintln(out, status.Result.Document)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status payload")
	cmd.Flags().BoolVarP(&showDocument, "document", "d", false, "Print the minutes when the task is complete")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Follow a task until it completes and print the minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			return watchTask(cmd, ctx, cl, args[0], quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the minutes on completion")
	return cmd
}

// watchTask polls id until it finishes. Progress goes to stderr, rewritten in
// place on a terminal and one line per change otherwise; the minutes go to
// stdout.
func watchTask(cmd *cobra.Command, ctx *commandContext, cl *client.Client, id string, quiet bool) error {
	progressOut := cmd.ErrOrStderr()
	live := isTerminal(progressOut)
	var last string
	final, err := ctx.poller(cl).Poll(cmd.Context(), id, func(s api.TaskStatus) {
		line := renderProgressLine(s, live)
		if line == last {
			return
		}
		last = line
		if live {
			fmt.Fprintf(progressOut, "\r\x1b[2K%s", line)
			return
		}
		fmt.Fprintln(progressOut, line)
	})
	if live && last != "" {
		fmt.Fprintln(progressOut)
	}
	if err != nil {
		return fmt.Errorf("watch %s: %w", id, err)
	}
	if final.Error {
		return fmt.Errorf("task %s failed: %s", id, final.ErrorMessage)
	}
	if !quiet && final.Result != nil {
		writeDocument(cmd.OutOrStdout(), final.Result.Document)
	}
	return nil
}

func writeDocument(out io.Writer, doc string) {
	fmt.Fprint(out, doc)
	if !strings.HasSuffix(doc, "\n") {
		fmt.Fprintln(out)
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the daemon is reachable and show its collaborators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			health, err := cl.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, health)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFields([][2]string{
				{"Status", health.Status},
				{"Transcription", health.Transcription},
				{"Generation", health.Generation},
				{"Export", health.Export},
				{"Store", health.Store},
				{"Running", fmt.Sprintf("%d", health.Running)},
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw health payload")
	return cmd
}
