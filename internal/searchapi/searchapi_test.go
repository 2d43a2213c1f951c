package searchapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubhub-IN/pubhub-sub000/internal/resilience/retry"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

// pagedServer answers each offset with the configured hit count or status.
func pagedServer(t *testing.T, hitsByOffset map[int]int, statusByOffset map[int]int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		offset := int(body["from"].(float64))

		if status, ok := statusByOffset[offset]; ok {
			http.Error(w, "nope", status)
			return
		}

		n := hitsByOffset[offset]
		hits := make([]map[string]any, 0, n)
		for i := range n {
			hits = append(hits, map[string]any{
				"_source": map[string]any{
					"name": fmt.Sprintf("Hack %d", offset+i),
					"slug": fmt.Sprintf("hack-%d", offset+i),
				},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": hits}})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestFetchAll_PaginatesUntilEmptyPage(t *testing.T) {
	server, calls := pagedServer(t, map[int]int{0: 50, 50: 50, 100: 12, 150: 0}, nil)

	c := New(Config{Endpoint: server.URL, PageSize: 50, Retry: fastRetry()})
	records, err := c.FetchAll(t.Context(), map[string]any{"type": "application_open"})

	require.NoError(t, err)
	assert.Len(t, records, 112)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, 4, c.Requests())
	assert.Equal(t, "https://hack-0.devfolio.co/", records[0].Link)
	assert.Equal(t, models.SourceAPI, records[111].SourceID)
}

func TestFetchAll_SendsBaseQueryWithPaging(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"hits":{"hits":[]}}`))
	}))
	defer server.Close()

	c := New(Config{Endpoint: server.URL, Headers: map[string]string{"X-Api-Key": "secret"}, Retry: fastRetry()})
	records, err := c.FetchAll(t.Context(), map[string]any{"type": "application_open"})

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "application_open", got["type"])
	assert.Equal(t, float64(0), got["from"])
	assert.Equal(t, float64(DefaultPageSize), got["size"])
}

func TestFetchAll_GetUsesQueryParams(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		if r.URL.Query().Get("from") == "0" {
			w.Write([]byte(`{"hits":{"hits":[{"_source":{"name":"Solo","url":"https://solo.example.com"}}]}}`))
			return
		}
		w.Write([]byte(`{"hits":{"hits":[]}}`))
	}))
	defer server.Close()

	c := New(Config{Endpoint: server.URL, Method: "GET", PageSize: 10, Retry: fastRetry()})
	records, err := c.FetchAll(t.Context(), map[string]any{"q": "ai"})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://solo.example.com", records[0].Link)
	assert.Equal(t, []string{"from=0&q=ai&size=10", "from=10&q=ai&size=10"}, queries)
}

func TestFetch_LaterPageFailureKeepsEarlierPages(t *testing.T) {
	server, calls := pagedServer(t, map[int]int{0: 50, 50: 50}, map[int]int{100: http.StatusBadRequest})

	c := New(Config{Endpoint: server.URL, PageSize: 50, Retry: fastRetry()})
	res, err := c.Fetch(t.Context(), nil)

	require.NoError(t, err)
	assert.Len(t, res.Records, 100)
	require.NotNil(t, res.Failure)
	assert.Equal(t, 100, res.Failure.Offset)
	// 4xx is not retried
	assert.Equal(t, int32(3), calls.Load())

	records, err := New(Config{Endpoint: server.URL, PageSize: 50, Retry: fastRetry()}).FetchAll(t.Context(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 100)
}

func TestFetch_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"hits":{"hits":[]}}`))
	}))
	defer server.Close()

	c := New(Config{Endpoint: server.URL, Retry: fastRetry()})
	res, err := c.Fetch(t.Context(), nil)

	require.NoError(t, err)
	assert.Nil(t, res.Failure)
	assert.Equal(t, 2, res.Requests)
}

func TestFetchAll_FirstPageFailureIsFatal(t *testing.T) {
	server, _ := pagedServer(t, nil, map[int]int{0: http.StatusInternalServerError})

	c := New(Config{Endpoint: server.URL, Retry: fastRetry()})
	records, err := c.FetchAll(t.Context(), nil)

	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "first page")
}

func TestHitRecordMapping(t *testing.T) {
	raw := `{
		"name": "ETHIndia",
		"slug": "ethindia",
		"starts_at": "2025-12-05T00:00:00Z",
		"ends_at": "2025-12-07T00:00:00Z",
		"themes": [{"theme": {"name": "Blockchain"}}, {"theme": {"name": "DeFi"}}, {"theme": {"name": "blockchain"}}],
		"is_online": false,
		"location": "Bengaluru",
		"hackathon_setting": {"logo": "https://assets.example.com/logo.png"},
		"participants_count": 1500,
		"prize_amount": "$40,000"
	}`
	var h hit
	require.NoError(t, json.Unmarshal([]byte(raw), &h))

	rec := h.record()
	assert.Equal(t, "https://ethindia.devfolio.co/", rec.Link)
	assert.Equal(t, "ETHIndia", *rec.Title)
	assert.Equal(t, "2025-12-05T00:00:00Z", *rec.StartsAt)
	assert.Equal(t, "2025-12-07T00:00:00Z", *rec.EndsAt)
	assert.Equal(t, []string{"Blockchain", "DeFi", "Bengaluru"}, rec.Tags)
	assert.Equal(t, "https://assets.example.com/logo.png", *rec.ImageURL)
	assert.Equal(t, "1500", *rec.ParticipantsText)
	assert.Equal(t, "$40,000", *rec.PrizeText)
	assert.Nil(t, rec.DateText)

	online := hit{Name: "Remote", URL: "https://remote.example.com", IsOnline: true, Location: "Nowhere"}
	assert.Equal(t, []string{"Online"}, online.record().Tags)
	assert.Nil(t, online.record().PrizeText)
}

func TestPageError(t *testing.T) {
	err := &PageError{Offset: 150, Err: &retry.HTTPError{StatusCode: 502, Message: "bad gateway"}}
	assert.True(t, strings.Contains(err.Error(), "offset 150"))
	assert.True(t, retry.IsRetryable(err))
}
