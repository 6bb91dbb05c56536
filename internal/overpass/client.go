// Package overpass queries Overpass API servers for places of worship.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"worship/internal/osm"
)

// DefaultServers are tried in rotation.
var DefaultServers = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
}

const (
	DefaultUserAgent      = "PlacesOfWorshipResearch/1.0 (academic research)"
	DefaultMaxRetries     = 3
	DefaultTimeoutBackoff = 30 * time.Second
	DefaultNetworkBackoff = 60 * time.Second
	DefaultWorkers        = 2
)

// Cache stores raw responses between runs.
type Cache interface {
	Get(key string, maxAge time.Duration, v interface{}) (bool, error)
	Put(key string, v interface{}) error
}

// Client fetches elements from a rotating list of Overpass servers.
type Client struct {
	httpClient     *http.Client
	servers        []string
	userAgent      string
	maxRetries     int
	timeoutBackoff time.Duration
	networkBackoff time.Duration
	queryTimeout   int
	cache          Cache
	cacheMaxAge    time.Duration
	next           atomic.Uint64
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

func WithServers(servers ...string) Option { return func(c *Client) { c.servers = servers } }

func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }

func WithRetries(max int, timeoutBackoff, networkBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.timeoutBackoff = timeoutBackoff
		c.networkBackoff = networkBackoff
	}
}

// WithQueryTimeout sets the server-side [timeout:] in seconds.
func WithQueryTimeout(seconds int) Option { return func(c *Client) { c.queryTimeout = seconds } }

// WithCache serves responses younger than maxAge from cache; zero means no expiry.
func WithCache(cache Cache, maxAge time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheMaxAge = maxAge
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: 30 * time.Minute},
		servers:        DefaultServers,
		userAgent:      DefaultUserAgent,
		maxRetries:     DefaultMaxRetries,
		timeoutBackoff: DefaultTimeoutBackoff,
		networkBackoff: DefaultNetworkBackoff,
		queryTimeout:   osm.DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nextServer rotates through the server list.
func (c *Client) nextServer() string {
	i := c.next.Add(1) - 1
	return c.servers[i%uint64(len(c.servers))]
}

// StatusError is a non-200 Overpass response.
type StatusError struct {
	Server string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Server, e.Code)
}

type failure int

const (
	permanent failure = iota
	timeout
	network
)

func classify(err error) failure {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusGatewayTimeout || se.Code == http.StatusTooManyRequests:
			return timeout
		case se.Code >= 500:
			return network
		}
		return permanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return timeout
		}
		return network
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return network
	}
	return permanent
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cacheKey(countryCode string) string {
	return "overpass/" + strings.ToUpper(countryCode)
}

// Fetch returns the raw elements for one country, from cache when fresh.
// Timeouts and network errors are retried on the next server after a
// back-off; other failures are returned at once.
func (c *Client) Fetch(ctx context.Context, countryCode string) ([]osm.Element, error) {
	cc := strings.ToUpper(countryCode)
	if c.cache != nil {
		var cached []osm.Element
		ok, err := c.cache.Get(cacheKey(cc), c.cacheMaxAge, &cached)
		if err != nil {
			log.Printf("Cache read failed for %s: %v", cc, err)
		} else if ok {
			log.Printf("Loaded %d cached elements for %s", len(cached), cc)
			return cached, nil
		}
	}

	query := osm.BuildQuery(cc, c.queryTimeout)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		server := c.nextServer()
		log.Printf("Querying %s for %s (attempt %d)", server, cc, attempt+1)
		elements, err := c.post(ctx, server, query)
		if err == nil {
			log.Printf("%s: %d raw elements extracted", cc, len(elements))
			if c.cache != nil {
				if err := c.cache.Put(cacheKey(cc), elements); err != nil {
					log.Printf("Cache write failed for %s: %v", cc, err)
				}
			}
			return elements, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var backoff time.Duration
		switch classify(err) {
		case timeout:
			log.Printf("Timeout extracting %s: %v", cc, err)
			backoff = c.timeoutBackoff
		case network:
			log.Printf("Network error for %s: %v", cc, err)
			backoff = c.networkBackoff
		default:
			return nil, fmt.Errorf("extract %s: %w", cc, err)
		}
		if attempt == c.maxRetries {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("extract %s: giving up after %d attempts: %w", cc, c.maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, server, query string) ([]osm.Element, error) {
	body := url.Values{"data": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Server: server, Code: resp.StatusCode}
	}

	var out osm.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", server, err)
	}
	if out.Remark != "" && len(out.Elements) == 0 && strings.Contains(out.Remark, "runtime error") {
		return nil, fmt.Errorf("%s: %s", server, out.Remark)
	}
	return out.Elements, nil
}

// Result is one country's outcome from FetchAll.
type Result struct {
	CountryCode string
	Elements    []osm.Element
	Err         error
}

// FetchAll fetches countries with at most workers requests in flight.
// Failed countries are reported in their Result, not as an error; the
// returned error is only set when ctx is cancelled.
func (c *Client) FetchAll(ctx context.Context, countries []string, workers int) (map[string]Result, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	results := make(map[string]Result, len(countries))
	for _, cc := range countries {
		cc := strings.ToUpper(cc)
		g.Go(func() error {
			elements, err := c.Fetch(gctx, cc)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("Failed to extract %s: %v", cc, err)
			}
			mu.Lock()
			results[cc] = Result{CountryCode: cc, Elements: elements, Err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
