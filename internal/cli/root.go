package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bdskit/ontomake/internal/app"
	"github.com/bdskit/ontomake/internal/hcl"
	"github.com/spf13/cobra"
)

// Version is stamped at release time via -ldflags.
var Version = "dev"

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	buildfile       string
	logLevel        string
	logFormat       string
	workers         int
	healthcheckPort int
	flagOverrides   []string
	dryRun          bool
	alwaysBuild     bool
}

// NewRootCmd assembles the ontomake command tree. Running the root command
// with bare target arguments builds them, the way make does.
func NewRootCmd(outW io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ontomake [targets...]",
		Short: "An incremental, rule-driven build orchestrator for ontology release pipelines",
		Long: `Ontomake rebuilds ontology release artifacts from declarative rules.

A buildfile declares jobs, tools, and rules whose targets may contain one
% wildcard. Ontomake resolves requested targets against those rules,
compares file modification times, and reruns only the commands whose
outputs are stale, in dependency order and in parallel.`,
		Args:          cobra.ArbitraryArgs,
		RunE:          runBuild(outW, opts),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetOut(outW)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.buildfile, "file", "f", "ontomake.hcl", "Path to the buildfile, or a directory of .hcl buildfiles.")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.IntVarP(&opts.workers, "workers", "j", 4, "Number of concurrent workers for the executor.")
	pf.IntVar(&opts.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health and metrics server. 0 is disabled.")
	pf.StringArrayVar(&opts.flagOverrides, "flag", nil, "Override a buildfile flag, as name=true or name=false. Repeatable.")
	pf.BoolVarP(&opts.dryRun, "dry-run", "n", false, "Print the commands that would run without running them.")
	pf.BoolVarP(&opts.alwaysBuild, "always-build", "B", false, "Rebuild every target regardless of timestamps.")

	root.AddCommand(
		newBuildCmd(outW, opts),
		newGraphCmd(outW, opts),
		newListCmd(outW, opts),
		newCleanCmd(outW, opts),
		newWatchCmd(outW, opts),
		newVersionCmd(outW),
	)
	return root
}

func newBuildCmd(outW io.Writer, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build [targets...]",
		Short: "Build the requested targets, or the project defaults",
		Args:  cobra.ArbitraryArgs,
		RunE:  runBuild(outW, opts),
	}
}

func newGraphCmd(outW io.Writer, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [targets...]",
		Short: "Render the dependency tree of the requested targets",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(outW, nil)
			if err != nil {
				return err
			}
			return mapBuildErr(a.Graph(cmd.Context(), args))
		},
	}
}

func newListCmd(outW io.Writer, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the declared rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(outW, nil)
			if err != nil {
				return err
			}
			return a.List(cmd.Context())
		},
	}
}

func newCleanCmd(outW io.Writer, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove every file the rules could have produced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(outW, nil)
			if err != nil {
				return err
			}
			return a.Clean(cmd.Context())
		},
	}
}

func newWatchCmd(outW io.Writer, opts *rootOptions) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [targets...]",
		Short: "Build, then rebuild whenever a watched source changes",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(outW, func(cfg *app.Config) {
				cfg.Debounce = debounce
			})
			if err != nil {
				return err
			}
			return mapBuildErr(a.Watch(cmd.Context(), args))
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "How long to wait for more changes before rebuilding.")
	return cmd
}

func newVersionCmd(outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(outW, "ontomake version %s\n", Version)
		},
	}
}

// runBuild is shared by the root command and the build subcommand.
func runBuild(outW io.Writer, opts *rootOptions) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := opts.newApp(outW, nil)
		if err != nil {
			return err
		}
		return mapBuildErr(a.Build(cmd.Context(), args))
	}
}

// newApp validates the shared flags and constructs a loaded App. All
// failures here are user mistakes, so they carry exit code 2.
func (o *rootOptions) newApp(outW io.Writer, tune func(*app.Config)) (*app.App, error) {
	overrides, err := parseFlagOverrides(o.flagOverrides)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}

	logFormat := strings.ToLower(o.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(o.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	raw := app.Config{
		BuildfilePath:   o.buildfile,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Workers:         o.workers,
		DryRun:          o.dryRun,
		AlwaysBuild:     o.alwaysBuild,
		FlagOverrides:   overrides,
		HealthcheckPort: o.healthcheckPort,
	}
	if tune != nil {
		tune(&raw)
	}
	cfg, err := app.NewConfig(raw)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}

	loader := hcl.NewLoader()
	loader.FlagOverrides = cfg.FlagOverrides
	a, err := app.New(outW, cfg, loader)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return a, nil
}

// mapBuildErr keeps target-resolution mistakes on exit code 2; real build
// failures propagate as ordinary errors and exit 1.
func mapBuildErr(err error) error {
	if errors.Is(err, app.ErrNoTargets) {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return err
}

// parseFlagOverrides turns repeated name=bool pairs into a map.
func parseFlagOverrides(pairs []string) (map[string]bool, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --flag %q: expected name=true or name=false", pair)
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --flag %q: expected name=true or name=false", pair)
		}
		overrides[name] = value
	}
	return overrides, nil
}
