package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// Robots answers whether a URL may be fetched according to its host's
// robots.txt. Rules are fetched once per host for the life of the value.
// Hosts whose robots.txt cannot be fetched or parsed are allowed.
type Robots struct {
	client    *http.Client
	userAgent string
	respect   bool

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobots constructs a robots gate. When respect is false every URL is
// allowed and nothing is fetched.
func NewRobots(client *http.Client, userAgent string, respect bool) *Robots {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Robots{
		client:    client,
		userAgent: userAgent,
		respect:   respect,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL is permitted.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	if r == nil || !r.respect {
		return true
	}

	target, err := url.Parse(rawURL)
	if err != nil || !target.IsAbs() {
		return false
	}

	rules, err := r.rules(ctx, target)
	if err != nil {
		return true
	}

	group := rules.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	return group.Test(target.EscapedPath())
}

func (r *Robots) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)

	r.mu.Lock()
	rules, ok := r.cache[host]
	r.mu.Unlock()
	if ok {
		return rules, nil
	}

	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("robots returned status %d", resp.StatusCode)
	}

	rules, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.cache[host] = rules
	r.mu.Unlock()

	return rules, nil
}
