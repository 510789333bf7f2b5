package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	j "github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/reoring/treewalk"
)

// Stats summarizes the leaves of one document.
type Stats struct {
	File     string         `json:"file"`
	Leaves   int            `json:"leaves"`
	Keys     int            `json:"keys"`
	Sum      float64        `json:"sum"`
	MaxDepth int            `json:"maxDepth"`
	Kinds    map[string]int `json:"kinds"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(root *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:     "stats FILE...",
		Short:   "Count leaves, sum numbers and measure depth",
		Example: `treewalk stats --format json a.json b.yaml`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]*Stats, len(args))
			err := eachDocument(cmd.Context(), root.log, args, cmd.InOrStdin(), func(i int, doc *Document) error {
				s, err := Collect(root.walker, doc)
				results[i] = s
				return err
			})
			var out []*Stats
			for _, s := range results {
				if s != nil {
					out = append(out, s)
				}
			}
			if werr := writeStats(cmd.OutOrStdout(), root.cfg.Output.Format, out); werr != nil {
				return werr
			}
			return err
		},
	}
}

// Collect computes the statistics of doc in a single traversal.
func Collect(w *treewalk.Walker, doc *Document) (*Stats, error) {
	start := Stats{File: doc.Name, Kinds: map[string]int{}}
	if doc.Root == nil {
		return &start, nil
	}
	s, err := treewalk.TraverseWith(w, &doc.Root, start, func(s *Stats, m *treewalk.MemberAccessor) error {
		last := m.Path().Last()
		if last.IsDictionaryKey {
			s.Keys++
			return nil
		}
		v, err := m.GetValue()
		if err != nil {
			return err
		}
		s.Leaves++
		s.Kinds[leafKind(last, v)]++
		if d := m.Depth(); d > s.MaxDepth {
			s.MaxDepth = d
		}
		if f, ok := number(v); ok {
			s.Sum += f
		}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case j.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func writeStats(w io.Writer, format string, stats []*Stats) error {
	if format == FormatJSON {
		if stats == nil {
			stats = []*Stats{}
		}
		b, err := j.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"FILE", "LEAVES", "KEYS", "SUM", "MAX DEPTH", "KINDS"})
	table.SetAutoWrapText(false)
	for _, s := range stats {
		table.Append([]string{
			s.File,
			strconv.Itoa(s.Leaves),
			strconv.Itoa(s.Keys),
			strconv.FormatFloat(s.Sum, 'g', -1, 64),
			strconv.Itoa(s.MaxDepth),
			formatKinds(s.Kinds),
		})
	}
	table.Render()
	return nil
}

func formatKinds(kinds map[string]int) string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	out := ""
	for i, k := range names {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", k, kinds[k])
	}
	return out
}
