package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/leapstack-labs/gridweaver/pkg/datasource"
	"github.com/leapstack-labs/gridweaver/pkg/hydrate"
	"github.com/leapstack-labs/gridweaver/pkg/query"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// PreviewOptions holds options for the preview command.
type PreviewOptions struct {
	ID      string
	URL     string
	Rows    int
	Offset  int
	Sort    []string
	Filters []string
	Format  string
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	opts := &PreviewOptions{}

	cmd := &cobra.Command{
		Use:   "preview [definition-file]",
		Short: "Fetch and render one page of a table",
		Long: `Hydrate a table definition, fetch one page from its data endpoint and
print the formatted cells.

The definition is read from a file, from the configured storage with --id,
or from a definitions API with --url. Relative endpoint URLs resolve
against datasource.base_url.`,
		Example: `  # Preview a definition file
  gridweaver preview tables/users.yaml --base-url https://api.example.com

  # Preview a stored definition sorted by name
  gridweaver preview --id 3f2a... --sort name:asc --rows 10

  # Preview a definition served by another GridWeaver instance
  gridweaver preview --url https://grid.example.com/api/definitions/3f2a...

  # Filter on a column
  gridweaver preview tables/users.yaml --filter name=ann`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "Stored definition id")
	cmd.Flags().StringVar(&opts.URL, "url", "", "Definition URL on a definitions API")
	cmd.Flags().IntVarP(&opts.Rows, "rows", "n", 20, "Number of rows to fetch")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "First row to fetch")
	cmd.Flags().StringArrayVar(&opts.Sort, "sort", nil, "Sort as field:asc|desc (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "Contains filter as field=value (repeatable)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format (table|markdown|json)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runPreview(cmd *cobra.Command, args []string, opts *PreviewOptions) error {
	ctx := cmd.Context()
	c := NewCommandContext(cmd)

	sources := 0
	for _, set := range []bool{len(args) == 1, opts.ID != "", opts.URL != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return errors.New("specify exactly one of a definition file, --id or --url")
	}
	if opts.Rows <= 0 {
		return fmt.Errorf("--rows must be positive, got %d", opts.Rows)
	}
	switch opts.Format {
	case "table", "markdown", "json":
	default:
		return fmt.Errorf("unknown format %q (expected table, markdown or json)", opts.Format)
	}

	def, err := loadPreviewDefinition(cmd, c, args, opts)
	if err != nil {
		return err
	}

	live, err := hydrate.Hydrate(def, nil,
		hydrate.WithLogger(c.Logger),
		hydrate.WithSourceFactory(c.SourceFactory()),
	)
	if err != nil {
		return err
	}
	for _, d := range live.Diagnostics {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", d)
	}

	req, err := buildPageRequest(opts, live.DefaultSort)
	if err != nil {
		return err
	}
	page, err := query.Fetch(ctx, live.DataSource, req)
	if err != nil {
		return err
	}

	return renderPage(cmd.OutOrStdout(), live, page, opts)
}

func loadPreviewDefinition(cmd *cobra.Command, c *CommandContext, args []string, opts *PreviewOptions) (*core.SerializedTableDefinition, error) {
	ctx := cmd.Context()
	switch {
	case opts.ID != "":
		gw, err := c.OpenGateway(ctx)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gw.Close() }()
		return gw.Read(ctx, opts.ID)
	case opts.URL != "":
		return datasource.FetchDefinition(ctx, &http.Client{Timeout: c.Cfg.DataSource.Timeout}, opts.URL)
	default:
		return readDefinition(args[0], cmd.InOrStdin())
	}
}

// buildPageRequest turns flags into a native request. Without --sort the
// definition's default sort applies.
func buildPageRequest(opts *PreviewOptions, defaultSort *core.SortSpec) (query.NativePageRequest, error) {
	start, end := opts.Offset, opts.Offset+opts.Rows
	req := query.NativePageRequest{StartRow: &start, EndRow: &end}

	for _, s := range opts.Sort {
		field, dir, ok := strings.Cut(s, ":")
		if !ok {
			dir = string(core.SortAsc)
		}
		dir = strings.ToLower(dir)
		if field == "" || (dir != string(core.SortAsc) && dir != string(core.SortDesc)) {
			return req, fmt.Errorf("invalid sort %q (expected field:asc|desc)", s)
		}
		req.SortModel = append(req.SortModel, query.SortModelItem{ColID: field, Sort: dir})
	}
	if len(req.SortModel) == 0 && defaultSort != nil {
		req.SortModel = []query.SortModelItem{{ColID: defaultSort.ColID, Sort: string(defaultSort.Sort)}}
	}

	for _, f := range opts.Filters {
		field, value, ok := strings.Cut(f, "=")
		if !ok || field == "" {
			return req, fmt.Errorf("invalid filter %q (expected field=value)", f)
		}
		if req.FilterModel == nil {
			req.FilterModel = map[string]query.FilterModelItem{}
		}
		req.FilterModel[field] = query.FilterModelItem{Type: query.FilterContains, Filter: value, FilterType: "text"}
	}
	return req, nil
}

func renderPage(w io.Writer, live *core.LiveTableDefinition, page *core.PageResult, opts *PreviewOptions) error {
	if opts.Format == "json" {
		rows := make([]map[string]any, 0, len(page.Rows))
		for i, row := range page.Rows {
			rows = append(rows, formatRow(live, row, opts.Offset+i))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"data": rows, "count": page.Count})
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, 0, len(live.Columns))
	for _, col := range live.Columns {
		name := col.HeaderName
		if name == "" {
			name = col.Field
		}
		header = append(header, name)
	}
	t.AppendHeader(header)

	for i, row := range page.Rows {
		formatted := formatRow(live, row, opts.Offset+i)
		r := make(table.Row, 0, len(live.Columns))
		for _, col := range live.Columns {
			r = append(r, display(formatted[col.Field]))
		}
		t.AppendRow(r)
	}

	switch opts.Format {
	case "markdown":
		t.RenderMarkdown()
	default:
		if isTerminal(w) {
			t.SetStyle(table.StyleRounded)
		}
		t.Render()
	}

	_, err := fmt.Fprintf(w, "(%s of %s rows)\n", humanize.Comma(int64(len(page.Rows))), humanize.Comma(page.Count))
	return err
}

// formatRow renders every column of row through its formatter and renderer.
func formatRow(live *core.LiveTableDefinition, row map[string]any, index int) map[string]any {
	node := &core.RowNode{ID: fmt.Sprint(row["id"]), RowIndex: index, Data: row}
	out := make(map[string]any, len(live.Columns))
	for _, col := range live.Columns {
		out[col.Field] = col.RenderCell(nil, node, lookup(row, col.Field))
	}
	return out
}

// lookup resolves dotted field paths into nested objects.
func lookup(row map[string]any, field string) any {
	var cur any = row
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func display(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
