package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reoring/treewalk"
)

type redactOpts struct {
	*rootOpts
	output string
	to     string
}

// NewRedactCommand creates the redact command.
func NewRedactCommand(root *rootOpts) *cobra.Command {
	opts := &redactOpts{rootOpts: root}
	cmd := &cobra.Command{
		Use:   "redact FILE",
		Short: "Mask the values of matching keys",
		Long: `Replace the value of every object member whose key matches one of
--match (case-insensitive) with the mask. Nested objects and arrays under a
matching key are replaced as a whole.`,
		Example: `treewalk redact --match password,token deploy.yaml
treewalk redact --to json -o out.json deploy.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}
	cmd.Flags().StringSlice("match", nil, "keys to mask (default password,secret,token)")
	cmd.Flags().String("mask", "", "replacement value (default ***)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().StringVar(&opts.to, "to", "", "output document format: json or yaml (default is the input format)")
	return cmd
}

func (o *redactOpts) run(cmd *cobra.Command, path string) error {
	doc, err := ReadDocument(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	n, err := Redact(o.walker, doc, o.cfg.Redact.Match, o.cfg.Redact.Mask)
	if err != nil {
		return err
	}
	o.log.Info("redacted", zap.String("file", path), zap.Int("values", n))

	format := doc.Format
	if o.to != "" {
		format = o.to
	}
	if o.output == "" {
		return WriteDocument(cmd.OutOrStdout(), format, doc.Root)
	}
	f, err := os.Create(o.output)
	if err != nil {
		return err
	}
	if err := WriteDocument(f, format, doc.Root); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", o.output, err)
	}
	return nil
}

// Redact replaces the value of every map entry whose key matches one of keys
// with mask and reports how many values were replaced. A matching entry is
// not descended into.
func Redact(w *treewalk.Walker, doc *Document, keys []string, mask string) (int, error) {
	if doc.Root == nil || len(keys) == 0 {
		return 0, nil
	}
	match := make(map[string]bool, len(keys))
	for _, k := range keys {
		match[strings.ToLower(strings.TrimSpace(k))] = true
	}
	var (
		n      int
		setErr error
	)
	matches := func(m *treewalk.MemberAccessor) bool {
		last := m.Path().Last()
		return !last.IsDictionaryKey && last.IsMapEntry && match[strings.ToLower(last.Key)]
	}
	err := w.Traverse(&doc.Root, func(m *treewalk.MemberAccessor) error {
		if !matches(m) {
			return nil
		}
		n++
		return m.SetValue(mask)
	}, func(m *treewalk.MemberAccessor) bool {
		if !matches(m) {
			return true
		}
		v, err := m.GetValue()
		if err != nil {
			setErr = err
			return false
		}
		switch v.(type) {
		case map[string]any, []any:
			// replace the subtree here; the visitor never sees it
			if err := m.SetValue(mask); err != nil {
				setErr = fmt.Errorf("%s: %w", m.Path().Pointer(), err)
				return false
			}
			n++
			return false
		}
		return true
	})
	if err == nil {
		err = setErr
	}
	return n, err
}
