// Package cli implements the treewalk command line tool, which walks decoded
// JSON and YAML documents with the treewalk engine.
package cli

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reoring/treewalk"
)

// Version information, set at build time.
var Version = "dev"

type rootOpts struct {
	cfgFile string
	cfg     *Config
	log     *zap.Logger
	walker  *treewalk.Walker
}

// NewRootCommand creates the treewalk root command.
func NewRootCommand() *cobra.Command {
	opts := &rootOpts{}
	rootCmd := &cobra.Command{
		Use:   "treewalk",
		Short: "Walk the leaves of JSON and YAML documents",
		Long: `treewalk visits every leaf of a JSON or YAML document breadth-first.

It lists leaves with their paths, masks sensitive values in place and
aggregates statistics over one or more documents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default is ./treewalk.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("format", "", "output format: table or json")
	pf.String("path-style", "", "path rendering: pointer or dotted")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewLeavesCommand(opts))
	rootCmd.AddCommand(NewRedactCommand(opts))
	rootCmd.AddCommand(NewStatsCommand(opts))
	return rootCmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			title := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()
			title.Fprint(out, "treewalk version: ")
			fmt.Fprintln(out, Version)
			title.Fprint(out, "go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}

func (o *rootOpts) init(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)
	o.cfg = cfg
	o.log = log
	o.walker = treewalk.New(treewalk.WithLogger(log))
	log.Debug("config loaded",
		zap.String("format", cfg.Output.Format),
		zap.String("pathStyle", cfg.Output.PathStyle))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = lvl > zapcore.DebugLevel
	return zc.Build()
}

func (o *rootOpts) renderPath(p treewalk.Path) string {
	if o.cfg.Output.PathStyle == PathDotted {
		return p.String()
	}
	return p.Pointer()
}
