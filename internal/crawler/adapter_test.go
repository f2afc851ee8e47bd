package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"kollektiv/internal/config"
	"kollektiv/internal/domain"
)

func TestBuildSubmitRequest_ClampsAndFiltersPatterns(t *testing.T) {
	cfg := config.CrawlerConfig{WebhookBaseURL: "https://app.example.com"}
	req := domain.AddSourceRequest{
		URL:          "https://docs.example.com",
		PageLimit:    5000,
		MaxDepth:     0,
		IncludePaths: []string{"/docs", "no-slash"},
		ExcludePaths: []string{"/blog/*"},
	}
	out := BuildSubmitRequest(cfg, req)
	require.Equal(t, 1000, out.Limit)
	require.Equal(t, 1, out.MaxDepth)
	require.Equal(t, []string{"/docs"}, out.IncludePaths)
	require.Equal(t, []string{"/blog/*"}, out.ExcludePaths)
	require.Equal(t, "https://app.example.com/webhooks/firecrawl", out.Webhook)
	require.Equal(t, []string{"markdown"}, out.ScrapeOptions.Formats)
	require.Equal(t, []string{"img"}, out.ScrapeOptions.ExcludeTags)
}

func TestStartCrawl_RetriesOn503ThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SubmitResponse{Success: true, ID: "X"})
	}))
	defer srv.Close()

	cfg := config.CrawlerConfig{APIBaseURL: srv.URL, MaxSubmitTries: 5}
	a := New(cfg)
	a.client = srv.Client()
	a.sleep = instantSleep
	resp, err := a.StartCrawl(context.Background(), domain.AddSourceRequest{URL: "https://x.test"})
	require.NoError(t, err)
	require.Equal(t, "X", resp.ID)
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestStartCrawl_NonRetryable4xxFailsImmediately(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad url"}`))
	}))
	defer srv.Close()

	cfg := config.CrawlerConfig{APIBaseURL: srv.URL, MaxSubmitTries: 5}
	a := New(cfg)
	a.client = srv.Client()
	a.sleep = instantSleep
	_, err := a.StartCrawl(context.Background(), domain.AddSourceRequest{URL: "https://x.test"})
	require.Error(t, err)
	var apiErr *CrawlerAPIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestFetchResults_PaginatesUntilExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/crawl/job-1" {
			_ = json.NewEncoder(w).Encode(ResultsPage{
				Data: []ResultPage{{Markdown: "page one", Metadata: map[string]any{"title": "One"}}},
				Next: srv2URL(r),
			})
			return
		}
		_ = json.NewEncoder(w).Encode(ResultsPage{Data: []ResultPage{{Markdown: "page two"}}})
	}))
	defer srv.Close()

	cfg := config.CrawlerConfig{APIBaseURL: srv.URL, MaxPageTries: 3}
	a := New(cfg)
	a.client = srv.Client()
	a.sleep = instantSleep
	pages, err := a.FetchResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, pages, 2)
}

func srv2URL(r *http.Request) string {
	return "http://" + r.Host + "/v1/crawl/job-1/page2"
}

func TestFetchResults_EmptyAggregateIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ResultsPage{Data: nil})
	}))
	defer srv.Close()

	cfg := config.CrawlerConfig{APIBaseURL: srv.URL, MaxPageTries: 3}
	a := New(cfg)
	a.client = srv.Client()
	a.sleep = instantSleep
	_, err := a.FetchResults(context.Background(), "job-1")
	require.Error(t, err)
	var emptyErr *EmptyContentError
	require.ErrorAs(t, err, &emptyErr)
}

func TestToDocuments_SkipsNonStringMarkdown(t *testing.T) {
	sourceID := uuid.New()
	pages := []ResultPage{
		{Markdown: "hello", Metadata: map[string]any{"title": "Hi", "sourceURL": "https://x.test"}},
		{Markdown: nil},
		{Markdown: 42},
	}
	docs := ToDocuments(sourceID, pages)
	require.Len(t, docs, 1)
	require.Equal(t, "hello", docs[0].Content)
	require.Equal(t, "Hi", docs[0].Metadata.Title)
	require.Equal(t, sourceID, docs[0].SourceID)
}

func instantSleep(ctx context.Context, d time.Duration) error {
	return nil
}
