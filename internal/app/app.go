// Package app wires configuration, the site registry, the scanner and the
// output layer into the emora command.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/emora-osint/emora/internal/cli"
	"github.com/emora-osint/emora/internal/config"
	"github.com/emora-osint/emora/internal/httpx"
	"github.com/emora-osint/emora/internal/icons"
	"github.com/emora-osint/emora/internal/logger"
	"github.com/emora-osint/emora/internal/metrics"
	"github.com/emora-osint/emora/internal/output"
	"github.com/emora-osint/emora/internal/registry"
	"github.com/emora-osint/emora/internal/scan"
)

// DefaultDatabasePath is where `emora update` writes when no database path
// is configured.
const DefaultDatabasePath = "sites.json"

const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, os.Stdin, stdout, stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, usernames, err := cli.Parse(args, stdout, stderr)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\nRun 'emora --help' for usage.\n", err)
		return exitUsage
	}

	cfg, err := config.Load(opts.ConfigPath, opts.ConfigExplicit)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitRuntime
	}
	applyOptions(cfg, opts)

	level := cfg.LogLevel
	if opts.Verbose {
		level = logrus.DebugLevel.String()
	}
	logger.Setup(stderr, cfg.Environment, level)

	printer := output.NewPrinter(output.Options{
		Stdout:   stdout,
		Stderr:   stderr,
		NoColor:  opts.NoColor,
		JSON:     opts.JSON,
		Progress: !opts.NoProgress,
	})

	if opts.Command == cli.CommandUpdate {
		return update(ctx, cfg, opts, printer, stderr)
	}

	reg, err := loadRegistry(cfg.Registry)
	if err != nil {
		fmt.Fprintf(stderr, "database error: %v\n", err)
		return exitRuntime
	}
	logger.Debug(ctx, "site database loaded", logrus.Fields{
		"source":  registrySource(cfg.Registry),
		"version": reg.Version(),
		"sites":   reg.Len(),
		"enabled": reg.Enabled(),
	})

	if opts.Command == cli.CommandSites {
		if err := printSites(stdout, reg, icons.Open(cfg.Icons)); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitRuntime
		}
		return exitOK
	}

	printer.Banner()

	if len(opts.Sites) > 0 {
		reg = filterSites(reg, opts.Sites, printer)
	}

	httpClient, err := httpx.NewClient(httpx.ClientConfig{
		Timeout:     cfg.Search.RequestTimeout,
		WithTor:     cfg.Tor.Enabled,
		TorProxyURL: cfg.Tor.ProxyURL,
	})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize HTTP client: %v\n", err)
		return exitRuntime
	}

	scanCfg := scan.Config{
		UserAgent:         cfg.Search.UserAgent,
		RequestTimeout:    cfg.Search.RequestTimeout,
		MaxBodyBytes:      cfg.Search.MaxBodyBytes,
		MaxConcurrency:    cfg.Search.MaxConcurrency,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
	}

	if cfg.Metrics.Addr != "" {
		collector := metrics.New()
		if _, err := collector.Serve(ctx, metrics.Options{Addr: cfg.Metrics.Addr, Path: cfg.Metrics.Path}); err != nil {
			fmt.Fprintf(stderr, "metrics error: %v\n", err)
			return exitRuntime
		}
		scanCfg.Observer = collector
	}

	scanner := scan.NewScanner(httpClient, scanCfg)

	limit, err := scanner.ResolveLimit(cfg.Search.Concurrency)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	// Back-compat behavior: if no usernames provided, prompt.
	if len(usernames) == 0 {
		usernames = promptUsernames(stdout, stdin)
		if len(usernames) == 0 {
			fmt.Fprintln(stderr, "no usernames provided")
			return exitUsage
		}
	}

	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}

		session, err := scanner.StartSearch(ctx, reg, username, limit, printer.Search(username, reg.Len()))
		if err != nil {
			fmt.Fprintf(stderr, "scan error for %q: %v\n", username, err)
			continue
		}

		if _, err := session.Wait(); err != nil {
			if ctx.Err() != nil {
				logger.Warn(ctx, "search interrupted", logrus.Fields{
					"session":  session.ID(),
					"username": session.Username(),
					"limit":    session.Limit(),
					"checked":  session.Checked(),
					"total":    session.Total(),
				})
				printer.Warn("Interrupted.")
				return exitRuntime
			}
			fmt.Fprintf(stderr, "scan error for %q: %v\n", username, err)
		}
	}

	return exitOK
}

func update(ctx context.Context, cfg *config.Config, opts cli.Options, printer *output.Printer, stderr io.Writer) int {
	dest := cfg.Registry
	if dest == "" {
		dest = DefaultDatabasePath
	}
	from := opts.UpdateFrom
	if from == "" {
		from = registry.DefaultRemoteURL
	}

	httpClient, err := httpx.NewClient(httpx.ClientConfig{
		WithTor:     cfg.Tor.Enabled,
		TorProxyURL: cfg.Tor.ProxyURL,
	})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize HTTP client: %v\n", err)
		return exitRuntime
	}

	userAgent := cfg.Search.UserAgent
	if userAgent == "" {
		userAgent = httpx.DefaultUserAgent
	}

	printer.Info("Update database: downloading " + from)
	reg, err := registry.Fetch(ctx, httpClient, userAgent, from, dest)
	if err != nil {
		fmt.Fprintf(stderr, "failed to update database: %v\n", err)
		return exitRuntime
	}

	printer.Info(fmt.Sprintf("Wrote %d sites to %s", reg.Len(), dest))

	return exitOK
}

// applyOptions lets command line flags override the configuration.
func applyOptions(cfg *config.Config, opts cli.Options) {
	if opts.DataFile != "" {
		cfg.Registry = opts.DataFile
	}
	if opts.IconsDir != "" {
		cfg.Icons = opts.IconsDir
	}
	if opts.WithTor {
		cfg.Tor.Enabled = true
	}
	if opts.Timeout > 0 {
		cfg.Search.RequestTimeout = opts.Timeout
	}
	if opts.ConcurrencySet {
		cfg.Search.Concurrency = opts.Concurrency
	}
	if opts.RateSet {
		cfg.Search.RequestsPerSecond = opts.Rate
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}

	return registry.Load(path)
}

func registrySource(path string) string {
	if path == "" {
		return registry.EmbeddedSource
	}

	return path
}

// filterSites restricts reg to the selected sites. Unknown names are
// reported; if nothing matches the full database is used.
func filterSites(reg *registry.Registry, selected []string, printer *output.Printer) *registry.Registry {
	sub, unknown := reg.Select(selected)

	if len(unknown) > 0 {
		printer.Warn("Unknown sites ignored: " + strings.Join(unknown, ", "))
	}

	if sub.Len() == 0 {
		printer.Warn("No matching sites found; using full database.")
		return reg
	}

	printer.Info(fmt.Sprintf("Using %d site(s)", sub.Len()))

	return sub
}

func promptUsernames(stdout io.Writer, stdin io.Reader) []string {
	fmt.Fprint(stdout, "Enter usernames to investigate separated by a space: ")
	r := bufio.NewReader(stdin)
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	return strings.Fields(line)
}

func printSites(w io.Writer, reg *registry.Registry, store *icons.Store) error {
	table := tablewriter.NewTable(w)
	table.Header("Site", "Strategy", "Method", "Disabled", "Icon")

	for _, s := range reg.Entries() {
		if err := table.Append(
			s.Name,
			s.Strategy.Kind.String(),
			scan.Build(s, "").Method,
			strconv.FormatBool(s.Disabled),
			strconv.FormatBool(store.Has(s.Name)),
		); err != nil {
			return errors.Wrap(err, "could not render sites")
		}
	}

	if err := table.Render(); err != nil {
		return errors.Wrap(err, "could not render sites")
	}

	_, err := fmt.Fprintf(w, "%d sites, %d enabled\n", reg.Len(), reg.Enabled())

	return err
}
