// Package harvest runs the fetch, parse and save loop over configured
// sources: one listing page per source, then every article it links to.
//
// The loop is sequential. A listing failure abandons only that source; an
// article failure abandons only that article.
package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/extractors"
	"github.com/pevans/newsharvest/fetcher"
	"github.com/pevans/newsharvest/history"
	"github.com/pevans/newsharvest/notify"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/snapshot"
	"go.uber.org/zap"
)

// PageFetcher downloads pages.
type PageFetcher interface {
	Get(ctx context.Context, url string, opts ...fetcher.RequestOption) (*fetcher.Page, error)
}

// Store persists snapshots and details and returns the written path.
type Store interface {
	SaveListing(source string, listing snapshot.Listing) (string, error)
	SaveDetail(source, slug string, detail snapshot.Detail) (string, error)
}

// Ledger records runs and attempts.
type Ledger interface {
	StartRun(startedAt time.Time) (*history.Run, error)
	RecordFetch(f history.Fetch) error
	FinishRun(runID uuid.UUID, finishedAt time.Time, stats history.RunStats) error
}

// SeenIndex remembers archived article URLs.
type SeenIndex interface {
	Has(url string) (bool, error)
	Mark(url string, at time.Time) error
}

// RobotsGate reports whether a URL may be fetched.
type RobotsGate interface {
	Allowed(ctx context.Context, url string) bool
}

// Limiter delays requests to the same host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Notifier is told about every file written.
type Notifier interface {
	Publish(ctx context.Context, evt notify.Event) error
}

// Options wires a Harvester. Fetcher and Store are required; every other
// dependency is optional and skipped when nil.
type Options struct {
	Fetcher    PageFetcher
	Store      Store
	Extractors *extractors.Registry
	History    Ledger
	Seen       SeenIndex
	Robots     RobotsGate
	Limiter    Limiter
	Notifier   Notifier

	// Scraper overlays the built-in selector rules. Zero fields keep the
	// defaults, and each source may override them again.
	Scraper        scraper.ScraperConfig
	SkipSeen       bool
	RetryForbidden bool
	KeepHTML       bool

	Logger *zap.Logger
	Now    func() time.Time
}

// Harvester runs harvests with a fixed set of dependencies.
type Harvester struct {
	opts Options
	log  *zap.Logger
}

// New validates opts and fills defaults.
func New(opts Options) (*Harvester, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("harvest: fetcher is required")
	}
	if opts.Store == nil {
		return nil, errors.New("harvest: store is required")
	}
	if opts.Extractors == nil {
		opts.Extractors = extractors.DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Scraper = scraper.Merge(scraper.Default(), &opts.Scraper)

	return &Harvester{opts: opts, log: opts.Logger}, nil
}

// SourceResult is the outcome of one source.
type SourceResult struct {
	Source         string
	ListingPath    string
	Articles       int
	DetailsSaved   int
	DetailsFailed  int
	DetailsSkipped int
	// Err is set when the listing could not be fetched, parsed or saved.
	Err error
	// DetailErrors holds one entry per failed article.
	DetailErrors []error
}

// Result summarizes a run.
type Result struct {
	RunID uuid.UUID
	history.RunStats
	Sources []SourceResult
	Errors  []error
}

// Failed reports whether any source was abandoned.
func (r *Result) Failed() bool {
	return r.SourcesFailed > 0
}

// Run harvests every enabled source in order. It stops between requests
// when ctx is cancelled and returns ctx's error with the partial result.
func (h *Harvester) Run(ctx context.Context, sources []config.Source) (*Result, error) {
	started := h.opts.Now()
	res := &Result{RunID: uuid.New()}

	if h.opts.History != nil {
		run, err := h.opts.History.StartRun(started)
		if err != nil {
			h.log.Warn("failed to record run start", zap.Error(err))
		} else {
			res.RunID = run.RunID
		}
	}

	log := h.log.With(zap.String("run_id", res.RunID.String()))
	log.Info("harvest starting", zap.Int("sources", len(sources)))

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		if !src.IsEnabled() {
			log.Info("skipping disabled source", zap.String("source", src.Name))
			continue
		}

		sr := h.HarvestSource(ctx, res.RunID, src)
		res.Sources = append(res.Sources, sr)

		if sr.Err != nil {
			res.SourcesFailed++
			res.Errors = append(res.Errors, sr.Err)
		} else {
			res.SourcesSynced++
			res.ListingsSaved++
		}
		res.DetailsSaved += sr.DetailsSaved
		res.DetailsFailed += sr.DetailsFailed
		res.DetailsSkipped += sr.DetailsSkipped
		res.Errors = append(res.Errors, sr.DetailErrors...)
	}

	if h.opts.History != nil {
		if err := h.opts.History.FinishRun(res.RunID, h.opts.Now(), res.RunStats); err != nil {
			log.Warn("failed to record run finish", zap.Error(err))
		}
	}

	log.Info("harvest finished",
		zap.Int("sources_synced", res.SourcesSynced),
		zap.Int("sources_failed", res.SourcesFailed),
		zap.Int("details_saved", res.DetailsSaved),
		zap.Int("details_failed", res.DetailsFailed),
		zap.Int("details_skipped", res.DetailsSkipped),
	)

	return res, ctx.Err()
}

// HarvestSource fetches and saves one source's listing, then each article
// its extractor returns.
func (h *Harvester) HarvestSource(ctx context.Context, runID uuid.UUID, src config.Source) SourceResult {
	sr := SourceResult{Source: src.Name}
	log := h.log.With(zap.String("run_id", runID.String()), zap.String("source", src.Name))
	rules := scraper.Merge(h.opts.Scraper, src.Scraper)

	listing, err := h.fetchListing(ctx, src, rules)
	if err != nil {
		sr.Err = fmt.Errorf("source %s: %w", src.Name, err)
		log.Error("listing failed, skipping source", zap.String("url", src.URL), zap.Error(err))
		h.record(runID, src.Name, history.KindListing, src.URL, history.StatusFailed, "", err)
		return sr
	}
	sr.Articles = len(listing.Articles)

	path, err := h.opts.Store.SaveListing(src.Name, listing)
	if err != nil {
		sr.Err = fmt.Errorf("source %s: %w", src.Name, err)
		log.Error("failed to save listing, skipping source", zap.Error(err))
		h.record(runID, src.Name, history.KindListing, src.URL, history.StatusFailed, "", err)
		return sr
	}
	sr.ListingPath = path
	log.Info("listing saved", zap.String("path", path), zap.Int("articles", len(listing.Articles)))
	h.record(runID, src.Name, history.KindListing, src.URL, history.StatusSaved, path, nil)

	evt := notify.NewEvent(notify.EventListingSaved, runID, src.Name, src.URL, path)
	evt.Articles = len(listing.Articles)
	h.notify(ctx, evt)

	urls := h.opts.Extractors.Get(src.Name)(listing)
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if u == snapshot.NoLink || u == "" {
			continue
		}

		outcome, err := h.harvestDetail(ctx, runID, src.Name, rules.Article, u, log)
		switch outcome {
		case detailSaved:
			sr.DetailsSaved++
		case detailSkipped:
			sr.DetailsSkipped++
		case detailFailed:
			sr.DetailsFailed++
			sr.DetailErrors = append(sr.DetailErrors, fmt.Errorf("source %s: %s: %w", src.Name, u, err))
		}
	}

	return sr
}

func (h *Harvester) fetchListing(ctx context.Context, src config.Source, rules scraper.ScraperConfig) (snapshot.Listing, error) {
	if h.opts.Limiter != nil {
		if err := h.opts.Limiter.Wait(ctx, src.URL); err != nil {
			return snapshot.Listing{}, err
		}
	}

	var opts []fetcher.RequestOption
	if h.opts.RetryForbidden {
		opts = append(opts, fetcher.WithForbiddenRetry())
	}

	page, err := h.opts.Fetcher.Get(ctx, src.URL, opts...)
	if err != nil {
		return snapshot.Listing{}, err
	}

	pageURL := page.FinalURL
	if pageURL == "" {
		pageURL = src.URL
	}

	var articles []snapshot.Article
	if src.IsFeed() {
		feed, err := discovery.ParseFeed(page.Body)
		if err != nil {
			return snapshot.Listing{}, err
		}
		articles = discovery.ExtractFeed(feed, rules.List.MaxArticles, src.BaseURL, pageURL)
	} else {
		doc, err := discovery.ParseHTML(bytes.NewReader(page.Body))
		if err != nil {
			return snapshot.Listing{}, err
		}
		articles = discovery.ExtractListing(doc, rules.List, src.BaseURL, pageURL)
	}

	return snapshot.Listing{
		ScrapedAt: h.opts.Now(),
		SourceURL: src.URL,
		Articles:  articles,
	}, nil
}
