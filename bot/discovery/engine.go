// Package discovery turns a free-text query into a ranked list of magnet
// candidates by scraping an ordered list of mirror endpoints.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/core/logger"
	"log/slog"
)

const (
	defaultTimeout    = 8 * time.Second
	defaultMaxResults = 5
	defaultCacheSize  = 64
	userAgent         = "Mozilla/5.0 (X11; Linux x86_64) magbot/1.0"
)

// ErrNoResults is returned when a mirror answered but yielded zero usable rows.
var ErrNoResults = apperr.New(apperr.KindUsage, "nothing found for that query")

// Result is one ranked discovery row.
type Result struct {
	Rank     int
	Title    string // display title, annotations stripped
	RawTitle string // full original title, kept for downstream lookup
	Size     string
	Magnet   string
}

// Config tunes the engine.
type Config struct {
	Mirrors    []string
	Timeout    time.Duration
	MaxResults int
	CacheSize  int
	Client     *http.Client
}

// Engine queries mirrors in order until one answers, parses the result table
// and caches recent query answers.
type Engine struct {
	mirrors []string
	client  *http.Client
	limit   int
	cache   *lru.Cache[string, cachedAnswer]
}

type cachedAnswer struct {
	mirror  string
	results []Result
}

// New builds an Engine. At least one mirror is required.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Mirrors) == 0 {
		return nil, fmt.Errorf("discovery: no mirrors configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := cfg.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, cachedAnswer](size)
	if err != nil {
		return nil, fmt.Errorf("discovery: cache init: %w", err)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Engine{
		mirrors: append([]string(nil), cfg.Mirrors...),
		client:  client,
		limit:   limit,
		cache:   cache,
	}, nil
}

// Search runs the query against the mirror list. It returns the ranked rows
// and the mirror that actually answered. An empty query is a usage error and
// never reaches the network.
func (e *Engine) Search(ctx context.Context, query string) ([]Result, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, "", apperr.Usage("give me something to search for, e.g. /search One Piece")
	}

	cacheKey := strings.ToLower(query)
	if answer, ok := e.cache.Get(cacheKey); ok {
		logger.DISC.Debug("query served from cache",
			slog.String("event", "search"),
			slog.String("cache", "hit"),
			slog.String("query", logger.SanitizeLimit(query, 64)),
			slog.Int("results", len(answer.results)),
		)
		return answer.results, answer.mirror, nil
	}

	var lastErr error
	for _, mirror := range e.mirrors {
		results, err := e.queryMirror(ctx, mirror, query)
		if err != nil {
			lastErr = err
			logger.DISC.Warn("mirror failed",
				slog.String("event", "search.mirror"),
				slog.String("status", "fail"),
				slog.String("mirror", mirror),
				slog.String("err", err.Error()),
			)
			continue
		}
		if len(results) == 0 {
			return nil, mirror, ErrNoResults
		}
		e.cache.Add(cacheKey, cachedAnswer{mirror: mirror, results: results})
		logger.DISC.Info("search complete",
			slog.String("event", "search"),
			slog.String("status", "ok"),
			slog.String("cache", "miss"),
			slog.String("mirror", mirror),
			slog.String("query", logger.SanitizeLimit(query, 64)),
			slog.Int("results", len(results)),
		)
		return results, mirror, nil
	}

	return nil, "", apperr.Transport("all mirrors unreachable", lastErr)
}

// queryMirror issues a single bounded request against one mirror.
func (e *Engine) queryMirror(ctx context.Context, mirror, query string) ([]Result, error) {
	endpoint := fmt.Sprintf("%s/?q=%s", strings.TrimRight(mirror, "/"), url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mirror status %s", resp.Status)
	}
	return parseListing(resp.Body, e.limit)
}
