package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tastebud/server/internal/testutil"
)

// fakeCache is an in-memory stand-in for the redis cache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, ok
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func TestSearch(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "negroni", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"id":"r1","title":"Negroni","kind":"cocktail","score":0.9}]`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, newFakeCache(), testutil.TestLogger(t))

	results, err := c.Search(context.Background(), "negroni")
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "Negroni", results[0].Title)

	// second identical query is served from the cache
	results, err = c.Search(context.Background(), "negroni")
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, hits, "expected the second query to hit the cache")
}

func TestRecommend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recommend", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("member_id"))
		w.Write([]byte(`[{"id":"r2","title":"Carbonara","kind":"recipe","score":0.7}]`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, newFakeCache(), testutil.TestLogger(t))

	results, err := c.Recommend(context.Background(), 42)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "recipe", results[0].Kind)
}

func TestSearchUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, newFakeCache(), testutil.TestLogger(t))

	_, err := c.Search(context.Background(), "negroni")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, newFakeCache(), testutil.TestLogger(t))

	for i := 0; i < 5; i++ {
		_, err := c.Search(context.Background(), "negroni")
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	// breaker is open now, the service must not be called again
	_, err := c.Search(context.Background(), "negroni")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 5, hits, "expected the open breaker to short-circuit the call")
}
