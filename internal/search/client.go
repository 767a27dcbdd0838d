package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned when the external search service cannot be
// reached or the circuit breaker is open.
var ErrUnavailable = errors.New("search service unavailable")

// Result is one hit from the external search/recommendation service. The
// service itself is a black box; this client only proxies it.
type Result struct {
	Id    string  `json:"id"`
	Title string  `json:"title"`
	Kind  string  `json:"kind"`
	Score float64 `json:"score"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[[]byte]
	cache      Cache
	log        *log.Logger
}

func NewClient(baseURL string, cache Cache, logger *log.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "search-service",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("breaker %q: %s -> %s", name, from, to)
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		breaker:    breaker,
		cache:      cache,
		log:        logger,
	}
}

// Search proxies a full-text recipe/cocktail query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	return c.fetch(ctx, "q:"+query, "/search?q="+url.QueryEscape(query))
}

// Recommend proxies the per-member recommendation feed.
func (c *Client) Recommend(ctx context.Context, memberId int) ([]Result, error) {
	id := strconv.Itoa(memberId)
	return c.fetch(ctx, "rec:"+id, "/recommend?member_id="+id)
}

func (c *Client) fetch(ctx context.Context, cacheKey, path string) ([]Result, error) {
	if data, ok := c.cache.Get(ctx, cacheKey); ok {
		var results []Result
		if err := json.Unmarshal(data, &results); err == nil {
			return results, nil
		}
		// a corrupt cache entry falls through to the service
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}

	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	c.cache.Set(ctx, cacheKey, data)
	return results, nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
