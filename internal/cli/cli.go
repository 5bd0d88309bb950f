// Package cli parses the command line. It only describes what was asked for;
// internal/app decides what to do with it.
package cli

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ErrHelp is returned when help was printed instead of parsing a command.
var ErrHelp = errors.New("help requested")

type Command int

const (
	CommandSearch Command = iota
	CommandSites
	CommandUpdate
)

// DefaultConfigPath is read if it exists; -c makes a missing file an error.
const DefaultConfigPath = "emora.yml"

type Options struct {
	Command Command

	ConfigPath     string
	ConfigExplicit bool

	NoColor    bool
	Verbose    bool
	JSON       bool
	NoProgress bool
	WithTor    bool

	DataFile string
	IconsDir string
	Sites    []string

	// Timeout is zero unless set on the command line.
	Timeout time.Duration

	Concurrency    int
	ConcurrencySet bool

	Rate    float64
	RateSet bool

	MetricsAddr string

	// UpdateFrom is the database URL for the update command; empty means the
	// default remote.
	UpdateFrom string
}

// Parse parses args (without the program name) and returns the options and
// the positional usernames. Help output goes to stdout, errors are returned.
func Parse(args []string, stdout, stderr io.Writer) (Options, []string, error) {
	var (
		opts      Options
		usernames []string
		ran       bool
	)

	root := &cobra.Command{
		Use:   "emora [flags] USERNAME [USERNAMES...]",
		Short: "Find usernames across social networks",
		Long: "Emora checks whether one or more usernames exist on each site of its\n" +
			"database. With no username, it asks for them on standard input.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			opts.Command = CommandSearch
			usernames = args

			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "config file path")
	flags.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log probe failures and other diagnostics to stderr")
	flags.StringVar(&opts.DataFile, "database", "", "custom site database, JSON or YAML (default: embedded)")
	flags.StringVar(&opts.IconsDir, "icons", "", "directory of <site>.png icons (default: embedded)")

	search := root.Flags()
	search.BoolVarP(&opts.WithTor, "tor", "t", false, "route probes through the tor proxy")
	search.StringSliceVar(&opts.Sites, "sites", nil, "comma-separated sites to investigate (default: all sites)")
	search.DurationVar(&opts.Timeout, "timeout", 0, "per-site request timeout (default 8s)")
	search.IntVarP(&opts.Concurrency, "concurrency", "j", 0, "max concurrent requests, 1-50 (default: number of CPUs)")
	search.Float64Var(&opts.Rate, "rate", 0, "max probe starts per second, 0 for unlimited")
	search.BoolVar(&opts.JSON, "json", false, "print newline-delimited JSON events")
	search.BoolVar(&opts.NoProgress, "no-progress", false, "hide the progress bar")
	search.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")

	sites := &cobra.Command{
		Use:   "sites",
		Short: "List the sites in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			opts.Command = CommandSites

			return nil
		},
	}
	update := &cobra.Command{
		Use:   "update",
		Short: "Download the latest site database to --database (default: sites.json)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			opts.Command = CommandUpdate

			return nil
		},
	}
	update.Flags().StringVar(&opts.UpdateFrom, "from", "", "database URL (default: the emora repository)")
	update.Flags().BoolVarP(&opts.WithTor, "tor", "t", false, "download through the tor proxy")

	root.AddCommand(sites, update)
	root.CompletionOptions.DisableDefaultCmd = true

	if args == nil {
		// cobra falls back to os.Args for nil.
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteC()
	if err != nil {
		return Options{}, nil, err
	}
	if !ran {
		return Options{}, nil, ErrHelp
	}

	opts.ConfigExplicit = cmd.Flags().Changed("config")
	opts.ConcurrencySet = cmd.Flags().Changed("concurrency")
	opts.RateSet = cmd.Flags().Changed("rate")

	if cmd.Flags().Changed("timeout") && opts.Timeout <= 0 {
		return Options{}, nil, errors.Errorf("invalid timeout %s: must be positive", opts.Timeout)
	}
	if opts.RateSet && opts.Rate < 0 {
		return Options{}, nil, errors.Errorf("invalid rate %g: must not be negative", opts.Rate)
	}

	opts.Sites = trimAll(opts.Sites)

	return opts, usernames, nil
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}

	return out
}
