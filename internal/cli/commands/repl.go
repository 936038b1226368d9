package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/leapstack-labs/gridweaver/pkg/expr"
	"github.com/spf13/cobra"
)

const replPrompt = "gridweaver> "

// ReplOptions holds options for the repl command.
type ReplOptions struct {
	History string
}

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	opts := &ReplOptions{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Evaluate formatter expressions interactively",
		Long: `Start an interactive session for trying formatter expressions.

Expressions are evaluated against a scope holding a cell value, a row and a
column. Set them with .cell, .row and .field; type .help for all commands.`,
		Example: `  gridweaver repl
  gridweaver> .cell "2024-03-05T14:07:09Z"
  gridweaver> $cellValue | date("YYYY-MM-DD")
  "2024-03-05"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.History, "history", defaultHistoryFile(), "History file (empty disables history)")

	return cmd
}

func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gridweaver", "repl_history")
}

func runRepl(cmd *cobra.Command, opts *ReplOptions) error {
	if opts.History != "" {
		if err := os.MkdirAll(filepath.Dir(opts.History), 0o750); err != nil {
			opts.History = ""
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     opts.History,
		AutoComplete:    newReplCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "GridWeaver expression REPL")
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")

	session := newReplSession(cmd.OutOrStdout(), cmd.ErrOrStderr())
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if session.handle(line) {
			return nil
		}
	}
}

// replSession holds the scope expressions are evaluated against.
type replSession struct {
	scope  core.Scope
	out    io.Writer
	errOut io.Writer
}

func newReplSession(out, errOut io.Writer) *replSession {
	return &replSession{
		scope: core.Scope{
			Column: &core.SerializedColumnSpec{Field: "value"},
			Node:   &core.RowNode{ID: "0", Data: map[string]any{}},
		},
		out:    out,
		errOut: errOut,
	}
}

// handle processes one input line and reports whether the session ended.
func (s *replSession) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return s.dotCommand(line)
	}

	prog, err := expr.Compile(line)
	if err != nil {
		s.fail(err)
		return false
	}
	v, err := prog.Eval(s.scope)
	if err != nil {
		s.fail(err)
		return false
	}
	_, _ = fmt.Fprintln(s.out, show(v))
	return false
}

func (s *replSession) dotCommand(line string) bool {
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true

	case ".help":
		printReplHelp(s.out)

	case ".filters":
		_, _ = fmt.Fprintln(s.out, strings.Join(expr.Filters(), ", "))

	case ".cell":
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			s.fail(fmt.Errorf("usage: .cell <json value>: %w", err))
			return false
		}
		s.scope.CellValue = v

	case ".row":
		var data map[string]any
		if err := json.Unmarshal([]byte(arg), &data); err != nil {
			s.fail(fmt.Errorf("usage: .row <json object>: %w", err))
			return false
		}
		s.scope.Node.Data = data
		if id, ok := data["id"]; ok {
			s.scope.Node.ID = fmt.Sprint(id)
		}

	case ".field":
		if arg == "" {
			s.fail(errors.New("usage: .field <name>"))
			return false
		}
		s.scope.Column.Field = arg
		if v, ok := s.scope.Node.Data[arg]; ok {
			s.scope.CellValue = v
		}

	case ".header":
		s.scope.Column.HeaderName = arg

	case ".scope":
		_, _ = fmt.Fprintf(s.out, "colDef:    %s\n", show(s.scope.Column.ToMap()))
		_, _ = fmt.Fprintf(s.out, "node:      %s\n", show(map[string]any{"id": s.scope.Node.ID, "rowIndex": s.scope.Node.RowIndex, "data": s.scope.Node.Data}))
		_, _ = fmt.Fprintf(s.out, "cellValue: %s\n", show(s.scope.CellValue))

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func (s *replSession) fail(err error) {
	_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
}

// show prints values as JSON where possible so strings are quoted.
func show(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func printReplHelp(w io.Writer) {
	help := `
Commands:
  .cell <json>     Set the cell value
  .row <json>      Set the row data (an object)
  .field <name>    Set the column key, taking the cell value from the row
  .header <text>   Set the column header name
  .scope           Show the current scope
  .filters         List the available filters
  .quit / .exit    Exit the REPL

Expressions read api, colDef, node, cellValue and dates. Prefix a name
with $ or pipe the value through filters:
  $cellValue | toUpper
  node.data["first"] + " " + node.data["last"]
`
	_, _ = fmt.Fprintln(w, help)
}

func newReplCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".cell"),
		readline.PcItem(".row"),
		readline.PcItem(".field"),
		readline.PcItem(".header"),
		readline.PcItem(".scope"),
		readline.PcItem(".filters"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
