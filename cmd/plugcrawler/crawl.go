package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nao1215/plugcrawler/internal/config"
	"github.com/nao1215/plugcrawler/internal/crawler"
	"github.com/nao1215/plugcrawler/internal/database"
	"github.com/nao1215/plugcrawler/internal/extension"
	"github.com/nao1215/plugcrawler/internal/extension/builtin"
	"github.com/nao1215/plugcrawler/internal/fetcher"
	"github.com/nao1215/plugcrawler/internal/log"
	"github.com/nao1215/plugcrawler/internal/pipeline"
	"github.com/nao1215/plugcrawler/internal/report"
	"github.com/nao1215/plugcrawler/internal/throttle"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl websites from seed URLs and run plugins on every page",
		Long: `Crawl fetches every seed URL, runs the loaded plugins on each page and
follows the links it finds until the requested depth is reached. Every URL
is fetched at most once per run.

Requests to one host are limited by --max-per-domain, failed requests are
retried with exponential backoff, and --delay pauses after every successful
fetch. The trace is printed as text unless --json or --markdown is given.

Examples:
  # Fetch a single page
  plugcrawler crawl --name docs https://example.com

  # Follow links two levels deep, fetching children concurrently
  plugcrawler crawl -n docs -u https://example.com -d 3 --concurrent

  # Run the plugins and print JSON
  plugcrawler crawl -n docs -u https://example.com -p --json

  # Render pages with headless Chrome and save the run to history
  plugcrawler crawl -n spa -u https://app.example.com --render --history

  # Skip the admin area and store the trace in Qdrant
  plugcrawler crawl -n docs -u https://example.com -d 2 --ignore "/admin/*" --qdrant`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Request flags
	cmd.Flags().StringP("name", "n", "", "Crawler name printed in the output")
	cmd.Flags().StringSliceP("url", "u", nil, "Seed URL (repeatable; positional URLs are also accepted)")
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Maximum traversal depth (1 fetches the seeds only)")
	cmd.Flags().Bool("concurrent", false, "Fetch the children of a page concurrently")
	cmd.Flags().BoolP("render", "r", false, "Render pages with headless Chrome")
	cmd.Flags().BoolP("list-links", "l", false, "List the raw links of each seed when depth is 1")

	// Fetch flags
	cmd.Flags().Float64("delay", 0, "Seconds to wait after each successful fetch")
	cmd.Flags().String("user-agent", "", "User-Agent header override")
	cmd.Flags().Int("max-per-domain", config.DefaultMaxPerDomain,
		"Maximum simultaneous requests per host")
	cmd.Flags().Int("max-retries", config.DefaultMaxRetries, "Attempts per URL")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().Duration("run-timeout", 0, "Deadline for the whole run (0 means none)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize, "Maximum response body size in bytes")

	// Link filter flags
	cmd.Flags().Bool("robots", false, "Skip links disallowed by robots.txt")
	cmd.Flags().StringSlice("ignore", nil, "Path glob of links to skip (repeatable)")
	cmd.Flags().StringSlice("follow", nil, "Path glob of links to follow; others are skipped (repeatable)")

	// Plugin flags
	cmd.Flags().BoolP("use-plugins", "p", false, "Run the loaded plugins on every page")
	cmd.Flags().String("plugin-dir", config.DefaultPluginDir(), "Directory of executable plugins")
	cmd.Flags().String("manifest", config.DefaultManifestPath(), "Plugin manifest path")
	cmd.Flags().Bool("watch", false, "Reapply manifest settings when the file changes")

	// Report flags
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().Bool("full-json", false, "Include the page trees in JSON output")
	cmd.Flags().StringP("output", "o", "",
		"Write output to specified file path (creates directories if needed)")

	// Storage flags
	cmd.Flags().Bool("history", false, "Save the run to the history database")
	cmd.Flags().String("history-dir", config.XDGDataDir(), "Directory of the history database")
	cmd.Flags().Bool("qdrant", false, "Store the trace in Qdrant")
	addQdrantFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// commandContext returns the command's context, or Background when the
// command was run without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// buildConfig creates a Config from the config file and cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	f := cmd.Flags()

	if cfg.Name, err = f.GetString("name"); err != nil {
		return nil, err
	}
	urls, err := f.GetStringSlice("url")
	if err != nil {
		return nil, err
	}
	cfg.Seeds = append(urls, args...)

	if cfg.Depth, err = f.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Concurrent, err = f.GetBool("concurrent"); err != nil {
		return nil, err
	}
	if cfg.Render, err = f.GetBool("render"); err != nil {
		return nil, err
	}
	if cfg.ListLinks, err = f.GetBool("list-links"); err != nil {
		return nil, err
	}

	delay, err := f.GetFloat64("delay")
	if err != nil {
		return nil, err
	}
	cfg.Delay = config.SecondsToDuration(delay)
	if cfg.UserAgent, err = f.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxPerDomain, err = f.GetInt("max-per-domain"); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = f.GetInt("max-retries"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = f.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = f.GetDuration("run-timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = f.GetInt64("max-body-size"); err != nil {
		return nil, err
	}

	if cfg.Robots, err = f.GetBool("robots"); err != nil {
		return nil, err
	}
	if cfg.Ignore, err = f.GetStringSlice("ignore"); err != nil {
		return nil, err
	}
	if cfg.Follow, err = f.GetStringSlice("follow"); err != nil {
		return nil, err
	}

	if cfg.UsePlugins, err = f.GetBool("use-plugins"); err != nil {
		return nil, err
	}
	if cfg.PluginDir, err = f.GetString("plugin-dir"); err != nil {
		return nil, err
	}
	cfg.PluginDirExplicit = f.Changed("plugin-dir")
	if cfg.ManifestPath, err = f.GetString("manifest"); err != nil {
		return nil, err
	}
	if cfg.Watch, err = f.GetBool("watch"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = f.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = f.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.FullJSON, err = f.GetBool("full-json"); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = f.GetString("output"); err != nil {
		return nil, err
	}

	if cfg.History, err = f.GetBool("history"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = f.GetString("history-dir"); err != nil {
		return nil, err
	}
	if cfg.Qdrant, err = f.GetBool("qdrant"); err != nil {
		return nil, err
	}
	if err := readQdrantFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := applyConfigFile(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runCrawl executes one crawl and delivers the output to every sink.
// The output is written even when the run was interrupted; the run error
// is returned afterwards.
func runCrawl(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"crawler", cfg.Name,
		"seeds", cfg.Seeds,
		"depth", cfg.Depth,
		"concurrent", cfg.Concurrent,
		"render", cfg.Render,
	)

	var history *database.History
	if cfg.History {
		var err error
		history, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer history.Close()
		logger.Debug("history database opened", "path", history.Path())
	}

	httpFetcher := fetcher.NewHTTPFetcher(cfg.Timeout,
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
	)

	var getter fetcher.Getter = httpFetcher
	if cfg.Render {
		getter = fetcher.NewRenderer(
			fetcher.WithRenderUserAgent(cfg.UserAgent),
			fetcher.WithRenderTimeout(cfg.Timeout),
			fetcher.WithRenderLogger(logger),
		)
	}
	// Page fetches, robots.txt and plugin downloads share one per-host limit.
	table := throttle.New(cfg.MaxPerDomain)
	retrier := fetcher.NewRetrier(getter, table,
		fetcher.WithMaxRetries(cfg.MaxRetries),
		fetcher.WithDelay(cfg.Delay),
		fetcher.WithRetryLogger(logger),
	)

	crawlerOpts := []crawler.Option{
		crawler.WithLogger(logger),
		crawler.WithLinkFilter(crawler.LinkFilter{Ignore: cfg.Ignore, Follow: cfg.Follow}),
	}
	if cfg.Robots {
		crawlerOpts = append(crawlerOpts,
			crawler.WithRobots(crawler.NewRobotsPolicy(httpFetcher.Client(), table, cfg.UserAgent, cfg.RobotsTTL, logger)))
	}

	if cfg.UsePlugins {
		registry, err := loadPlugins(ctx, cfg, table.WrapClient(httpFetcher.Client()), logger)
		if err != nil {
			return err
		}
		crawlerOpts = append(crawlerOpts, crawler.WithProcessor(registry))

		if cfg.Watch {
			stop := startWatcher(ctx, registry, cfg.ManifestPath, logger)
			defer stop()
		}
	}

	runCtx := ctx
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	out, runErr := crawler.New(retrier, crawlerOpts...).Run(runCtx, cfg.Request())
	if out == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn("crawl did not complete", "error", runErr)
	}

	sinks, err := buildSinks(cfg, stdout, history, runErr != nil, logger)
	if err != nil {
		return errors.Join(runErr, err)
	}
	defer sinks.close()

	// Sinks run even after a signal so that partial output is kept.
	sinkErr := sinks.pipeline.Execute(context.WithoutCancel(ctx), out)
	return errors.Join(runErr, sinkErr)
}

// loadPlugins loads the catalog and the plugin directory through the manifest.
// Plugins that download resources use client.
func loadPlugins(ctx context.Context, cfg *config.Config, client *http.Client, logger *slog.Logger) (*extension.Registry, error) {
	registry, err := extension.Load(ctx,
		extension.WithCatalog(builtin.NewCatalog()),
		extension.WithPluginDir(cfg.PluginDir, cfg.PluginDirExplicit),
		extension.WithManifest(cfg.ManifestPath),
		extension.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}
	registry.SetHTTPClient(client)
	logger.Info("plugins loaded", "count", registry.Len(), "plugins", registry.Names())
	return registry, nil
}

// startWatcher watches the manifest in the background. The returned
// function stops the watcher and waits for it to exit.
func startWatcher(ctx context.Context, registry *extension.Registry, path string, logger *slog.Logger) func() {
	watchCtx, cancel := context.WithCancel(ctx)
	w := extension.NewWatcher(registry, path, extension.WithWatchLogger(logger))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(watchCtx); err != nil {
			logger.Warn("manifest watcher stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// sinkSet is the pipeline of output sinks and the file it may write to.
type sinkSet struct {
	pipeline *pipeline.Pipeline
	file     *os.File
}

func (s *sinkSet) close() {
	if s.file != nil {
		_ = s.file.Close() //nolint:errcheck // report already flushed by the writer
	}
}

// buildSinks assembles the report writer, history and vector store steps.
func buildSinks(cfg *config.Config, stdout io.Writer, history *database.History, interrupted bool, logger *slog.Logger) (*sinkSet, error) {
	s := &sinkSet{
		pipeline: pipeline.New(pipeline.WithLogger(logger), pipeline.WithContinueOnError(true)),
	}

	output := stdout
	if cfg.OutputFile != "" {
		f, err := report.OpenOutput(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		s.file = f
		output = f
	}

	writer, err := newReportWriter(cfg, output)
	if err != nil {
		s.close()
		return nil, err
	}
	s.pipeline.AddStep(pipeline.NewReportStep(writer))

	if history != nil {
		s.pipeline.AddStep(pipeline.NewHistoryStep(history,
			pipeline.WithInterrupted(interrupted),
			pipeline.WithHistoryLogger(logger),
		))
	}

	if cfg.Qdrant {
		store, err := newQdrantStore(cfg)
		if err != nil {
			s.close()
			return nil, err
		}
		s.pipeline.AddStep(pipeline.NewVectorStep(store, logger))
	}
	return s, nil
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) (report.Writer, error) {
	switch {
	case cfg.JSONReport && cfg.FullJSON:
		return report.NewJSONWriter(output, report.WithFullTree()), nil
	case cfg.JSONReport:
		return report.NewWriter(report.FormatJSON, output)
	case cfg.MarkdownReport:
		return report.NewWriter(report.FormatMarkdown, output)
	default:
		return report.NewWriter(report.FormatText, output)
	}
}
