package commands

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/leapstack-labs/gridweaver/pkg/query"
	"github.com/spf13/cobra"
)

// TranslateOptions holds options for the translate command.
type TranslateOptions struct {
	Definition string
	Params     []string
}

type translateOutput struct {
	Query  core.NormalizedQuery `json:"query"`
	Params string               `json:"params"`
	URL    string               `json:"url,omitempty"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand() *cobra.Command {
	opts := &TranslateOptions{}

	cmd := &cobra.Command{
		Use:   "translate [request-file]",
		Short: "Translate a grid page request into a data query",
		Long: `Translate a native grid page request (startRow, endRow, sortModel,
filterModel) into the normalized query and the URL parameters sent to the
data endpoint.

The request is read from a JSON or YAML file, or from stdin when no file or
"-" is given.`,
		Example: `  # Translate a request file
  gridweaver translate request.json

  # Merge a definition's static parameters
  gridweaver translate --definition tables/users.yaml request.yaml

  # Read from stdin with an extra parameter
  echo '{"startRow":0,"endRow":50}' | gridweaver translate --param tenant=acme`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runTranslate(cmd, path, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Definition, "definition", "d", "", "Definition file whose static params are merged")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "Static parameter as key=value (repeatable)")

	return cmd
}

func runTranslate(cmd *cobra.Command, path string, opts *TranslateOptions) error {
	data, err := readDocument(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("page request must be an object: %w", err)
	}
	req, err := query.DecodeNativeRequest(raw)
	if err != nil {
		return err
	}

	static := map[string]any{}
	var target string
	if opts.Definition != "" {
		def, err := readDefinition(opts.Definition, cmd.InOrStdin())
		if err != nil {
			return err
		}
		for k, v := range def.HTTP.Params {
			static[k] = v
		}
		target = def.HTTP.URL
	}
	extra, err := parseParams(opts.Params)
	if err != nil {
		return err
	}
	for k, v := range extra {
		static[k] = v
	}

	q := query.Translate(req)
	values, err := query.Encode(q, static)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(translateOutput{Query: q, Params: values.Encode(), URL: target})
}
