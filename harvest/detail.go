package harvest

import (
	"bytes"
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/history"
	"github.com/pevans/newsharvest/notify"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/slug"
	"go.uber.org/zap"
)

type detailOutcome int

const (
	detailAborted detailOutcome = iota
	detailSaved
	detailSkipped
	detailFailed
)

var errRobotsDisallowed = errors.New("disallowed by robots.txt")

// harvestDetail fetches one article page and writes its detail record.
// detailAborted means ctx ended while waiting and nothing was attempted.
func (h *Harvester) harvestDetail(ctx context.Context, runID uuid.UUID, source string, rules scraper.ArticleConfig, url string, log *zap.Logger) (detailOutcome, error) {
	log = log.With(zap.String("url", url))

	if h.opts.SkipSeen && h.opts.Seen != nil {
		seen, err := h.opts.Seen.Has(url)
		if err != nil {
			log.Warn("seen lookup failed", zap.Error(err))
		} else if seen {
			log.Debug("already archived, skipping")
			h.record(runID, source, history.KindDetail, url, history.StatusSkipped, "", nil)
			return detailSkipped, nil
		}
	}

	if h.opts.Robots != nil && !h.opts.Robots.Allowed(ctx, url) {
		log.Info("disallowed by robots.txt, skipping")
		h.record(runID, source, history.KindDetail, url, history.StatusSkipped, "", errRobotsDisallowed)
		return detailSkipped, nil
	}

	if h.opts.Limiter != nil {
		if err := h.opts.Limiter.Wait(ctx, url); err != nil {
			return detailAborted, err
		}
	}

	page, err := h.opts.Fetcher.Get(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return detailAborted, err
		}
		return h.detailFailure(runID, source, url, err, log)
	}

	doc, err := discovery.ParseHTML(bytes.NewReader(page.Body))
	if err != nil {
		return h.detailFailure(runID, source, url, err, log)
	}

	detail := discovery.ExtractDetail(doc, rules)
	detail.ScrapedAt = h.opts.Now()
	detail.SourceURL = url
	if h.opts.KeepHTML {
		detail.HTML = string(page.Body)
	}

	path, err := h.opts.Store.SaveDetail(source, slug.FromURL(url), detail)
	if err != nil {
		return h.detailFailure(runID, source, url, err, log)
	}

	log.Info("article saved", zap.String("path", path))
	h.record(runID, source, history.KindDetail, url, history.StatusSaved, path, nil)

	if h.opts.Seen != nil {
		if err := h.opts.Seen.Mark(url, detail.ScrapedAt); err != nil {
			log.Warn("failed to mark url as seen", zap.Error(err))
		}
	}

	evt := notify.NewEvent(notify.EventDetailSaved, runID, source, url, path)
	evt.Title = detail.Title
	h.notify(ctx, evt)

	return detailSaved, nil
}

func (h *Harvester) detailFailure(runID uuid.UUID, source, url string, err error, log *zap.Logger) (detailOutcome, error) {
	log.Error("article failed", zap.Error(err))
	h.record(runID, source, history.KindDetail, url, history.StatusFailed, "", err)
	return detailFailed, err
}

// record writes a ledger row. Ledger failures are logged and never
// interrupt the harvest.
func (h *Harvester) record(runID uuid.UUID, source, kind, url, status, path string, cause error) {
	if h.opts.History == nil {
		return
	}

	f := history.Fetch{
		RunID:     runID,
		Source:    source,
		Kind:      kind,
		URL:       url,
		Status:    status,
		FetchedAt: h.opts.Now(),
	}
	if path != "" {
		f.Path = &path
	}
	if cause != nil {
		msg := cause.Error()
		f.Error = &msg
	}

	if err := h.opts.History.RecordFetch(f); err != nil {
		h.log.Warn("failed to record fetch", zap.String("url", url), zap.Error(err))
	}
}

func (h *Harvester) notify(ctx context.Context, evt notify.Event) {
	if h.opts.Notifier == nil {
		return
	}
	if err := h.opts.Notifier.Publish(ctx, evt); err != nil {
		h.log.Warn("failed to publish event",
			zap.String("event", evt.Type),
			zap.String("path", evt.Path),
			zap.Error(err))
	}
}
