package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/pevans/newsharvest/archive"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/fetcher"
	"github.com/pevans/newsharvest/harvest"
	"github.com/pevans/newsharvest/history"
	"github.com/pevans/newsharvest/logging"
	"github.com/pevans/newsharvest/notify"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/seen"
	"go.uber.org/zap"
)

func handleRun(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("run", stderr)
	sf := addSettingsFlags(fs)
	sourcesFile := fs.String("sources", "", "Sources file (overrides sources_file)")
	outputDir := fs.String("output", "", "Archive directory (overrides output_dir)")
	logLevel := fs.String("log-level", "", "Log level (overrides log_level)")
	only := fs.String("only", "", "Comma-separated source names to harvest")
	verbose := fs.Bool("verbose", false, "Show every error in the summary")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	settings, err := sf.load()
	if err != nil {
		return fail(stderr, "failed to load settings: %v", err)
	}
	if *sourcesFile != "" {
		settings.SourcesFile = *sourcesFile
	}
	if *outputDir != "" {
		settings.OutputDir = *outputDir
	}
	if *logLevel != "" {
		settings.LogLevel = *logLevel
	}

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer func() { _ = logger.Sync() }()

	sources, err := config.LoadSources(settings.SourcesFile)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	sources, err = selectSources(sources, *only)
	if err != nil {
		return fail(stderr, "%v", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping after the current request", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	h, cleanup, err := buildHarvester(ctx, settings, logger)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer cleanup()

	result, err := h.Run(ctx, sources)
	printRunSummary(stdout, result, *verbose)

	if err != nil {
		fmt.Fprintf(stderr, "Error: harvest interrupted: %v\n", err)
		return 1
	}
	// Exit with error code if any sources failed
	if result.Failed() {
		return 1
	}
	return 0
}

// buildHarvester opens every store the settings name. cleanup closes them
// in reverse order.
func buildHarvester(ctx context.Context, s *config.Settings, logger *zap.Logger) (*harvest.Harvester, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", zap.Error(err))
			}
		}
	}

	client := fetcher.New(fetcher.Options{
		UserAgent:    s.UserAgent,
		Timeout:      s.FetchTimeout,
		MaxBodyBytes: s.MaxBodyBytes,
		Logger:       logger,
	})

	arc, err := archive.New(s.OutputDir)
	if err != nil {
		return nil, cleanup, err
	}

	opts := harvest.Options{
		Fetcher: client,
		Store:   arc,
		Scraper: scraper.ScraperConfig{
			List:    scraper.ListConfig{MaxArticles: s.MaxArticles},
			Article: scraper.ArticleConfig{MaxContentChars: s.MaxContentChars},
		},
		SkipSeen:       s.SkipSeen,
		RetryForbidden: s.RetryForbidden,
		KeepHTML:       s.KeepHTML,
		Logger:         logger,
	}

	if s.RespectRobots {
		opts.Robots = fetcher.NewRobots(client.HTTPClient(), s.UserAgent, true)
	}
	if limiter := fetcher.NewHostLimiter(s.RequestDelay); limiter != nil {
		opts.Limiter = limiter
	}

	if s.HistoryDSN != "" {
		ledger, err := history.New(s.HistoryDSN)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to open history: %w", err)
		}
		closers = append(closers, ledger.Close)
		opts.History = ledger
	}

	if s.SeenDSN != "" {
		idx, err := seen.Open(s.SeenDSN)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to open seen index: %w", err)
		}
		closers = append(closers, idx.Close)
		opts.Seen = idx
	}

	if s.NotifyFile != "" {
		cfgs, err := notify.LoadConfig(s.NotifyFile)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		dispatcher, err := notify.BuildDispatcher(ctx, notify.DefaultRegistry(), cfgs, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		logger.Info("notifications enabled", zap.Int("publishers", dispatcher.Len()))
		closers = append(closers, dispatcher.Close)
		opts.Notifier = dispatcher
	}

	h, err := harvest.New(opts)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return h, cleanup, nil
}

// selectSources keeps the sources named in only, in file order. An empty
// list keeps everything.
func selectSources(sources []config.Source, only string) ([]config.Source, error) {
	if strings.TrimSpace(only) == "" {
		return sources, nil
	}

	wanted := map[string]bool{}
	for _, name := range strings.Split(only, ",") {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = true
		}
	}

	var out []config.Source
	for _, src := range sources {
		if wanted[src.Name] {
			out = append(out, src)
			delete(wanted, src.Name)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for name := range wanted {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown source: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func printRunSummary(w io.Writer, result *harvest.Result, verbose bool) {
	if result == nil {
		return
	}

	fmt.Fprintln(w, "Harvest completed:")
	fmt.Fprintf(w, "  Run ID: %s\n", result.RunID)
	fmt.Fprintf(w, "  Sources synced: %d\n", result.SourcesSynced)
	fmt.Fprintf(w, "  Sources failed: %d\n", result.SourcesFailed)
	fmt.Fprintf(w, "  Articles saved: %d\n", result.DetailsSaved)
	fmt.Fprintf(w, "  Articles failed: %d\n", result.DetailsFailed)
	fmt.Fprintf(w, "  Articles skipped: %d\n", result.DetailsSkipped)

	// Show errors if any
	if len(result.Errors) > 0 && verbose {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors:")
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  - %v\n", err)
		}
	}
}
