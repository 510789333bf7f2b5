package cli

import (
	"fmt"
	"io"

	j "github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/reoring/treewalk"
)

// Leaf is one visited leaf of a document.
type Leaf struct {
	File  string `json:"file"`
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

type leavesOpts struct {
	*rootOpts
	keys bool
}

// NewLeavesCommand creates the leaves command.
func NewLeavesCommand(root *rootOpts) *cobra.Command {
	opts := &leavesOpts{rootOpts: root}
	cmd := &cobra.Command{
		Use:   "leaves FILE...",
		Short: "List every leaf of the given documents",
		Example: `treewalk leaves config.yaml
treewalk leaves --format json --path-style dotted a.json b.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&opts.keys, "keys", false, "also list map keys")
	return cmd
}

func (o *leavesOpts) run(cmd *cobra.Command, args []string) error {
	perFile := make([][]Leaf, len(args))
	err := eachDocument(cmd.Context(), o.log, args, cmd.InOrStdin(), func(i int, doc *Document) error {
		leaves, err := o.collect(doc)
		perFile[i] = leaves
		return err
	})
	var all []Leaf
	for _, leaves := range perFile {
		all = append(all, leaves...)
	}
	if werr := o.write(cmd.OutOrStdout(), all, len(args) > 1); werr != nil {
		return werr
	}
	return err
}

// collect lists the leaves of doc in traversal order.
func (o *leavesOpts) collect(doc *Document) ([]Leaf, error) {
	var leaves []Leaf
	if doc.Root == nil {
		return nil, nil
	}
	err := o.walker.Traverse(&doc.Root, func(m *treewalk.MemberAccessor) error {
		last := m.Path().Last()
		if last.IsDictionaryKey && !o.keys {
			return nil
		}
		v, err := m.GetValue()
		if err != nil {
			return err
		}
		leaves = append(leaves, Leaf{
			File:  doc.Name,
			Path:  o.renderPath(m.Path()),
			Kind:  leafKind(last, v),
			Value: v,
		})
		return nil
	}, nil)
	return leaves, err
}

// leafKind names the JSON type of a decoded value.
func leafKind(it treewalk.PathItem, v any) string {
	if it.IsDictionaryKey {
		return "key"
	}
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case j.Number, int, int64, uint64, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (o *leavesOpts) write(w io.Writer, leaves []Leaf, withFile bool) error {
	if o.cfg.Output.Format == FormatJSON {
		if leaves == nil {
			leaves = []Leaf{}
		}
		b, err := j.MarshalIndent(leaves, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	table := tablewriter.NewWriter(w)
	header := []string{"PATH", "KIND", "VALUE"}
	if withFile {
		header = append([]string{"FILE"}, header...)
	}
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	for _, l := range leaves {
		row := []string{l.Path, l.Kind, renderValue(l.Value)}
		if withFile {
			row = append([]string{l.File}, row...)
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

func renderValue(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
