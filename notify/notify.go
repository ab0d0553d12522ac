// Package notify announces archived files to external sinks: an HTTP
// webhook, AWS SQS, AWS SNS or Google Cloud Pub/Sub. Publishers are declared
// in a YAML or JSON file and fan out through a Dispatcher.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types
const (
	EventListingSaved = "listing.saved"
	EventDetailSaved  = "detail.saved"
)

// Event describes one file written to the archive.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	RunID      uuid.UUID `json:"run_id"`
	Source     string    `json:"source"`
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	Title      string    `json:"title,omitempty"`
	Articles   int       `json:"articles,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent fills in the ID and timestamp of an event.
func NewEvent(typ string, runID uuid.UUID, source, url, path string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		RunID:      runID,
		Source:     source,
		URL:        url,
		Path:       path,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to one sink. Publishers holding connections
// also implement io.Closer.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Dispatcher sends every event to all of its publishers. A nil Dispatcher
// drops events.
type Dispatcher struct {
	publishers []Publisher
	logger     *zap.Logger
}

// NewDispatcher wraps a set of publishers.
func NewDispatcher(publishers []Publisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{publishers: publishers, logger: logger}
}

// Len returns the number of publishers.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.publishers)
}

// Publish delivers evt to every publisher. One publisher failing does not
// stop the others; all failures are joined into the returned error.
func (d *Dispatcher) Publish(ctx context.Context, evt Event) error {
	if d == nil {
		return nil
	}

	var errs []error
	for _, pub := range d.publishers {
		if err := pub.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("publisher %s: %w", pub.ID(), err))
			continue
		}
		d.logger.Debug("event delivered",
			zap.String("publisher", pub.ID()),
			zap.String("type", evt.Type),
			zap.String("path", evt.Path),
		)
	}
	return errors.Join(errs...)
}

// Close releases every publisher that implements io.Closer. A nil Dispatcher
// has nothing to close.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	return closePublishers(d.publishers)
}

func closePublishers(pubs []Publisher) error {
	var errs []error
	for _, pub := range pubs {
		c, ok := pub.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher %s: %w", pub.ID(), err))
		}
	}
	return errors.Join(errs...)
}
