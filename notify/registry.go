package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, logger *zap.Logger) (Publisher, error)

// Registry maps publisher types to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// DefaultRegistry wires up the HTTP and queue publishers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeHTTP, newHTTPPublisher)
	r.Register(TypeQueue, newQueuePublisher)
	return r
}

// Register associates a builder with a publisher type.
func (r *Registry) Register(typ string, builder Builder) {
	if typ = strings.ToLower(strings.TrimSpace(typ)); typ == "" || builder == nil {
		return
	}

	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// Build instantiates the publisher for cfg.
func (r *Registry) Build(ctx context.Context, cfg PublisherConfig, logger *zap.Logger) (Publisher, error) {
	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, logger)
}

// BuildDispatcher builds every enabled publisher in cfgs.
func BuildDispatcher(ctx context.Context, reg *Registry, cfgs []PublisherConfig, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var pubs []Publisher
	for _, cfg := range cfgs {
		if !cfg.IsEnabled() {
			continue
		}
		pub, err := reg.Build(ctx, cfg, logger)
		if err != nil {
			_ = closePublishers(pubs)
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		pubs = append(pubs, pub)
	}
	return NewDispatcher(pubs, logger), nil
}
