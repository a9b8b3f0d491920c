package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/memo/internal/config"
	"github.com/hpungsan/memo/internal/errors"
	"github.com/hpungsan/memo/internal/note"
	"github.com/hpungsan/memo/internal/repository"
	"github.com/hpungsan/memo/internal/session"
	"github.com/hpungsan/memo/internal/storage"
	"github.com/hpungsan/memo/internal/view"
)

// MaxStdinBytes caps note content read from stdin.
const MaxStdinBytes = 1 << 20

// env holds what the commands share. It is nil for --help and --version.
type env struct {
	repo    *repository.Repository
	store   storage.Store
	cfg     *config.Config
	baseDir string
	log     zerolog.Logger

	// confirm overrides the interactive delete prompt (tests).
	confirm session.ConfirmFunc
}

// newSession builds a Session configured from e.cfg.
func (e *env) newSession(confirm session.ConfirmFunc, relative bool) *session.Session {
	format := view.NewFormatter(e.cfg.TimeFormat)
	if relative {
		format = view.RelativeFormatter(time.Now)
	}
	return session.New(e.repo,
		session.WithProjector(view.NewProjector(format)),
		session.WithNoticeDelay(e.cfg.SavedNoticeDelay()),
		session.WithConfirm(confirm),
		session.WithLogger(e.log),
	)
}

// NoteOutput is the JSON shape of a single note.
// It repeats the Note fields rather than embedding note.Note, whose
// UnmarshalJSON would otherwise be promoted and skip the extra fields.
type NoteOutput struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
	DerivedTitle  string `json:"derived_title"`
	ContentLength int    `json:"content_length"`
}

func noteOutput(n note.Note) NoteOutput {
	return NoteOutput{
		ID:            n.ID,
		Title:         n.Title,
		Content:       n.Content,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		DerivedTitle:  n.DerivedTitle(),
		ContentLength: note.CountChars(n.Content),
	}
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "memo",
		Usage:   "Local notes",
		Version: Version,
		Commands: []*cli.Command{
			newCmd(e),
			listCmd(e),
			showCmd(e),
			editCmd(e),
			deleteCmd(e),
			exportCmd(e),
			watchCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newCmd creates the new command.
func newCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Create a note (reads content from stdin when piped)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title (defaults to the first content line)"},
		},
		Action: func(c *cli.Context) error {
			content := ""
			if stdinHasData() {
				text, err := readStdin(MaxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				content = text
			}

			s := e.newSession(nil, false)
			st := s.SaveRequested(c.Context, c.String("title"), content)
			if err := noticeError(st); err != nil {
				return outputError(err)
			}

			n, _ := e.repo.Find(st.ActiveID)
			return outputJSON(noteOutput(n))
		},
	}
}

// listCmd creates the list command.
func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List notes, most recently updated first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Only notes whose title contains this text"},
			&cli.BoolFlag{Name: "relative", Usage: "Show timestamps as \"3 minutes ago\""},
		},
		Action: func(c *cli.Context) error {
			s := e.newSession(nil, c.Bool("relative"))
			st := s.SearchChanged(c.String("search"))
			if st.Notice != nil && st.Notice.Kind == session.NoticeWarning {
				e.log.Warn().Str("code", string(st.Notice.Code)).Msg(st.Notice.Message)
			}
			return outputJSON(st.Rows)
		},
	}
}

// showCmd creates the show command.
func showCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a note",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "html", Usage: "Print the content rendered from markdown to HTML"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}

			n, ok := e.repo.Find(id)
			if !ok {
				return outputError(errors.NewNotFound(id))
			}

			if c.Bool("html") {
				_, err := fmt.Fprint(os.Stdout, note.RenderHTML(n.Content))
				return err
			}
			return outputJSON(noteOutput(n))
		},
	}
}

// editCmd creates the edit command.
func editCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a note (reads new content from stdin when piped)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}

			s := e.newSession(nil, false)
			st := s.OpenRequested(id)
			if err := noticeError(st); err != nil {
				return outputError(err)
			}

			title, content := st.Title, st.Content
			if c.IsSet("title") {
				title = c.String("title")
			}
			if stdinHasData() {
				text, err := readStdin(MaxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				content = text
			}

			st = s.SaveRequested(c.Context, title, content)
			if err := noticeError(st); err != nil {
				return outputError(err)
			}

			n, _ := e.repo.Find(id)
			return outputJSON(noteOutput(n))
		},
	}
}

// DeleteOutput is the result of the delete command.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// deleteCmd creates the delete command.
func deleteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a note (asks for confirmation unless --yes)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Delete without asking"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}

			confirm := e.confirm
			switch {
			case c.Bool("yes"):
				confirm = nil
			case confirm == nil:
				confirm = promptConfirm(os.Stdin, os.Stderr)
			}

			s := e.newSession(confirm, false)
			st := s.OpenRequested(id)
			if err := noticeError(st); err != nil {
				return outputError(err)
			}

			st = s.DeleteRequested(c.Context)
			if err := noticeError(st); err != nil {
				return outputError(err)
			}

			_, stillThere := e.repo.Find(id)
			return outputJSON(DeleteOutput{ID: id, Deleted: !stillThere})
		},
	}
}

// ExportOutput is the result of the export command.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all notes to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "jsonl", Usage: "Export format: jsonl|yaml"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.memo/exports/notes-<timestamp>.<format>)"},
		},
		Action: func(c *cli.Context) error {
			format, err := storage.ParseExportFormat(c.String("format"))
			if err != nil {
				return outputError(err)
			}

			now := time.Now()
			path := c.String("path")
			if path == "" {
				path = storage.DefaultExportPath(e.baseDir, format, now)
			}
			if err := storage.ValidateExportPath(path, format, nil); err != nil {
				return outputError(err)
			}

			notes := e.repo.All()
			if err := storage.ExportFile(path, notes, format, now); err != nil {
				return outputError(err)
			}

			return outputJSON(ExportOutput{
				Path:       path,
				Format:     string(format),
				Count:      len(notes),
				ExportedAt: note.Millis(now),
			})
		},
	}
}

// watchCmd creates the watch command.
func watchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print the list whenever another process changes the notes (file backend only)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Only notes whose title contains this text"},
		},
		Action: func(c *cli.Context) error {
			fileStore, ok := e.store.(*storage.FileStore)
			if !ok {
				return outputError(errors.NewInvalidRequest(
					fmt.Sprintf("watch requires backend %q", config.BackendFile)))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := e.newSession(nil, false)
			s.Subscribe(func(st session.State) {
				if err := outputJSONLine(st.Rows); err != nil {
					e.log.Warn().Err(err).Msg("failed to write rows")
				}
			})
			s.SearchChanged(c.String("search"))

			err := fileStore.Watch(ctx, e.cfg.StorageKey, func() {
				st := s.Reload(ctx)
				if st.Notice != nil {
					e.log.Warn().Str("code", string(st.Notice.Code)).Msg(st.Notice.Message)
				}
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// noticeError turns a failure notice into an error. Saved and plain info
// notices are not failures.
func noticeError(st session.State) error {
	if st.Notice == nil || st.Notice.Code == "" {
		return nil
	}
	switch st.Notice.Code {
	case errors.ErrNotFound:
		return &errors.MemoError{Code: errors.ErrNotFound, Status: 404, Message: st.Notice.Message}
	case errors.ErrPersistenceFailure:
		return &errors.MemoError{Code: errors.ErrPersistenceFailure, Status: 507, Message: st.Notice.Message}
	}
	// Other codes come from an unreadable store at startup. Commands carry on.
	return nil
}

// requireID returns the positional id argument.
func requireID(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", errors.NewInvalidRequest("note id is required")
	}
	return id, nil
}

// promptConfirm asks on out and reads a y/N answer from in. Non-interactive
// input declines.
func promptConfirm(in *os.File, out io.Writer) session.ConfirmFunc {
	return func(n note.Note) bool {
		if stat, err := in.Stat(); err != nil || stat.Mode()&os.ModeCharDevice == 0 {
			return false
		}
		fmt.Fprintf(out, "Delete %q? [y/N] ", n.DerivedTitle())
		return answerYes(in)
	}
}

// answerYes reads one line from r and reports whether it means yes.
func answerYes(r io.Reader) bool {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJSONLine writes v to stdout as one compact JSON line.
func outputJSONLine(v any) error {
	return json.NewEncoder(os.Stdout).Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if mErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, failing if it exceeds limit bytes.
// Trailing newlines are dropped; other whitespace is content.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
