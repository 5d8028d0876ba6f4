package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"minutes/internal/editor"
	"minutes/internal/export"
	"minutes/internal/ledger"
	"minutes/internal/services"
)

const editHelp = `Type an instruction to rewrite the minutes, or one of:
  :show             print the current version
  :history          list every version
  :undo             go back one version
  :edit             edit the current version in $EDITOR
  :export [title]   export the current version and print its URL
  :write <path>     save the current version to a local file
  :help             show this help
  :quit             leave the session`

func newEditCommand(ctx *commandContext) *cobra.Command {
	var filePath, title string

	cmd := &cobra.Command{
		Use:   "edit [task-id]",
		Short: "Interactively refine the minutes of a completed task",
		Long: "Starts an editing session seeded with the generated minutes (or a local file with --file).\n" +
			"Every accepted instruction or manual edit becomes a new version that :undo can step back from.\n\n" + editHelp,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			var document string
			switch {
			case strings.TrimSpace(filePath) != "":
				data, err := os.ReadFile(filePath)
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				document = string(data)
			case len(args) == 1:
				status, err := cl.Status(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("load task: %w", err)
				}
				if !status.Completed || status.Result == nil {
					return fmt.Errorf("task %s is not complete (%s)", args[0], stateLabel(status))
				}
				document = status.Result.Document
			default:
				return errors.New("provide a task id or --file")
			}
			if strings.TrimSpace(document) == "" {
				return errors.New("document is empty")
			}

			repl := &editSession{
				session: editor.NewSession(document, cl, cl),
				title:   title,
				in:      cmd.InOrStdin(),
				out:     cmd.OutOrStdout(),
				errOut:  cmd.ErrOrStderr(),
			}
			return repl.run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Edit a local markdown file instead of a task result")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Default title used by :export")
	return cmd
}

type editSession struct {
	session *editor.Session
	title   string
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
}

func (e *editSession) run(ctx context.Context) error {
	scanner := bufio.NewScanner(e.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	fmt.Fprintln(e.out, "Editing minutes. Type :help for commands.")
	for {
		fmt.Fprint(e.out, "minutes> ")
		if !scanner.Scan() {
			fmt.Fprintln(e.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := e.handle(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(e.errOut, "error: %s\n", describeError(err))
		}
		if quit {
			return nil
		}
	}
}

func (e *editSession) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, ":") {
		if _, err := e.session.Apply(ctx, line); err != nil {
			return false, err
		}
		_, head := e.session.History()
		fmt.Fprintf(e.out, "Applied. Now at version %d.\n", head+1)
		return false, nil
	}

	command, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(command) {
	case "q", "quit", "exit":
		return true, nil
	case "help", "h", "?":
		fmt.Fprintln(e.out, editHelp)
	case "show", "s":
		writeDocument(e.out, e.session.Current())
	case "history":
		e.printHistory()
	case "undo", "u":
		if _, err := e.session.Undo(); err != nil {
			if errors.Is(err, services.ErrNoOp) {
				fmt.Fprintln(e.out, "Already at the first version.")
				return false, nil
			}
			return false, err
		}
		_, head := e.session.History()
		fmt.Fprintf(e.out, "Reverted to version %d.\n", head+1)
	case "edit", "e":
		committed, err := editInExternalEditor(ctx, e.session.Draft(), e.out, e.errOut)
		if err != nil {
			return false, err
		}
		if committed {
			_, head := e.session.History()
			fmt.Fprintf(e.out, "Manual edit saved as version %d.\n", head+1)
		} else {
			fmt.Fprintln(e.out, "No changes.")
		}
	case "export":
		title := arg
		if title == "" {
			title = e.title
		}
		url, err := e.session.Export(ctx, export.DisplayTitle(title))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(e.out, "Exported: %s\n", url)
	case "write", "w":
		if arg == "" {
			return false, errors.New(":write needs a file path")
		}
		if err := os.WriteFile(arg, []byte(e.session.Current()), 0o644); err != nil {
			return false, err
		}
		fmt.Fprintf(e.out, "Wrote %s\n", arg)
	default:
		return false, fmt.Errorf("unknown command :%s (type :help)", command)
	}
	return false, nil
}

func (e *editSession) printHistory() {
	entries, head := e.session.History()
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		marker := ""
		if i == head {
			marker = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			marker,
			strconv.Itoa(len([]rune(entry))),
			firstLine(entry),
		})
	}
	fmt.Fprintln(e.out, renderTable(
		[]string{"Version", "Current", "Chars", "First line"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	))
}

// editInExternalEditor opens the draft in $VISUAL or $EDITOR and commits the
// result when the editor exits successfully.
func editInExternalEditor(ctx context.Context, draft *ledger.Draft, out, errOut io.Writer) (bool, error) {
	command := strings.TrimSpace(os.Getenv("VISUAL"))
	if command == "" {
		command = strings.TrimSpace(os.Getenv("EDITOR"))
	}
	if command == "" {
		command = "vi"
	}

	tmp, err := os.CreateTemp("", "minutes-*.md")
	if err != nil {
		return false, fmt.Errorf("create edit buffer: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.WriteString(draft.Text()); err != nil {
		tmp.Close()
		return false, fmt.Errorf("write edit buffer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("write edit buffer: %w", err)
	}

	fields := strings.Fields(command)
	proc := exec.CommandContext(ctx, fields[0], append(fields[1:], path)...)
	proc.Stdin = os.Stdin
	proc.Stdout = out
	proc.Stderr = errOut
	if err := proc.Run(); err != nil {
		draft.Discard()
		return false, fmt.Errorf("editor %s: %w", fields[0], err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read edit buffer: %w", err)
	}
	edited := string(data)
	// Editors append a final newline on save; that alone is not an edit.
	if strings.TrimRight(edited, "\r\n") == strings.TrimRight(draft.Text(), "\r\n") {
		edited = draft.Text()
	}
	draft.Set(edited)
	return draft.Commit()
}

func describeError(err error) string {
	if msg := services.Details(err).Message; msg != "" {
		return msg
	}
	return err.Error()
}
