package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/leapstack-labs/gridweaver/pkg/hydrate"
	"github.com/spf13/cobra"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Renderers []string
	Watch     bool
}

// Issue severities reported by check.
const (
	severityError   = "error"
	severityWarning = "warning"
)

type checkIssue struct {
	Severity string
	Message  string
}

type checkResult struct {
	Path    string
	Columns int
	Issues  []checkIssue
}

func (r checkResult) failed() bool {
	for _, i := range r.Issues {
		if i.Severity == severityError {
			return true
		}
	}
	return false
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Validate table definition files",
		Long: `Validate JSON or YAML table definition files.

Each file is checked for structural errors, duplicate column keys and
formatter expressions that do not compile. With --renderers, renderer names
missing from the list are reported as warnings.`,
		Example: `  # Check definitions
  gridweaver check tables/*.yaml

  # Check against the renderers the host registers
  gridweaver check --renderers link,badge,avatar tables/users.yaml

  # Re-check on every save
  gridweaver check --watch tables/users.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Renderers, "renderers", nil, "Renderer names known to the host")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-check files when they change")

	return cmd
}

func runCheck(cmd *cobra.Command, paths []string, opts *CheckOptions) error {
	c := NewCommandContext(cmd)
	out := cmd.OutOrStdout()

	results := checkFiles(paths, opts.Renderers, c, cmd.InOrStdin())
	renderCheckResults(out, results)

	if opts.Watch {
		return watchFiles(cmd.Context(), paths, c, func() {
			renderCheckResults(out, checkFiles(paths, opts.Renderers, c, cmd.InOrStdin()))
		})
	}

	failed := 0
	for _, r := range results {
		if r.failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d definitions failed checks", failed, len(results))
	}
	return nil
}

func checkFiles(paths, renderers []string, c *CommandContext, stdin io.Reader) []checkResult {
	results := make([]checkResult, 0, len(paths))
	for _, p := range paths {
		results = append(results, checkFile(p, renderers, c, stdin))
	}
	return results
}

func checkFile(path string, renderers []string, c *CommandContext, stdin io.Reader) checkResult {
	res := checkResult{Path: path}

	def, err := readDefinition(path, stdin)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Fields {
				res.Issues = append(res.Issues, checkIssue{severityError, f.String()})
			}
		} else {
			res.Issues = append(res.Issues, checkIssue{severityError, err.Error()})
		}
		return res
	}
	res.Columns = len(def.ColumnDefs)

	for _, field := range def.DuplicateFields() {
		res.Issues = append(res.Issues, checkIssue{severityWarning, fmt.Sprintf("duplicate column key %q", field)})
	}

	live, err := hydrate.Hydrate(def, checkRegistry(def, renderers),
		hydrate.WithLogger(c.Logger),
		hydrate.WithSourceFactory(c.SourceFactory()),
	)
	if err != nil {
		res.Issues = append(res.Issues, checkIssue{severityError, err.Error()})
		return res
	}
	for _, d := range live.Diagnostics {
		severity := severityError
		var miss *core.RendererResolutionMiss
		if errors.As(d, &miss) {
			severity = severityWarning
		}
		res.Issues = append(res.Issues, checkIssue{severity, d.Error()})
	}
	return res
}

// checkRegistry builds a registry of placeholder renderers. Without a known
// list every renderer the definition names resolves.
func checkRegistry(def *core.SerializedTableDefinition, known []string) core.RendererRegistry {
	noop := core.RendererFunc(func(cell core.Cell) string { return fmt.Sprint(cell.Formatted) })
	reg := core.RendererRegistry{}
	if len(known) > 0 {
		for _, name := range known {
			reg[name] = noop
		}
		return reg
	}
	for _, col := range def.ColumnDefs {
		if col.Renderer != "" {
			reg[col.Renderer] = noop
		}
	}
	return reg
}

func renderCheckResults(w io.Writer, results []checkResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Columns", "Status", "Issues"})

	for _, r := range results {
		status := "ok"
		if r.failed() {
			status = "FAIL"
		}
		lines := make([]string, 0, len(r.Issues))
		for _, i := range r.Issues {
			lines = append(lines, i.Severity+": "+i.Message)
		}
		t.AppendRow(table.Row{r.Path, r.Columns, status, strings.Join(lines, "\n")})
	}
	t.Render()
}

// watchDebounce coalesces editor write bursts into one re-check.
const watchDebounce = 100 * time.Millisecond

// watchFiles calls onChange after any of paths is written, until ctx ends.
// Parent directories are watched so atomic saves are seen.
func watchFiles(ctx context.Context, paths []string, c *CommandContext, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	c.Logger.Info("watching for changes", "files", len(targets))

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watcher error", "error", err)
		}
	}
}
