// Package crawler is the Crawler Adapter (C6): translates an
// AddSourceRequest into a Firecrawl-shaped submit request, submits it with
// a bounded retry policy, and pages through completed results. Grounded on
// original_source/src/crawling/crawler.py (FireCrawler.start_crawl /
// _accumulate_crawl_results / _fetch_results_from_url) for the exact retry
// bounds, param shape, and pagination loop; HTTP transport follows the
// teacher's observability.NewHTTPClient instrumentation pattern.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kollektiv/internal/config"
	"kollektiv/internal/domain"
	"kollektiv/internal/observability"
)

// Adapter submits crawl requests to the configured crawler API and pages
// through completed results.
type Adapter struct {
	cfg    config.CrawlerConfig
	client *http.Client
	sleep  sleeper
}

func New(cfg config.CrawlerConfig) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: observability.NewHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		sleep:  realSleep,
	}
}

// WebhookURL derives the outbound webhook URL from the deployment's public
// base URL and the fixed webhook path (§4.6, config.WebhookPath).
func WebhookURL(cfg config.CrawlerConfig) string {
	return strings.TrimRight(cfg.WebhookBaseURL, "/") + config.WebhookPath
}

// BuildSubmitRequest translates req into the crawler's payload shape,
// clamping page_limit to [1,1000] and max_depth to [1,10] (§4.6). Every
// include/exclude pattern must start with "/"; a pattern that doesn't is
// dropped with the caller expected to have validated upstream (validation
// itself is out of scope — the HTTP surface owns it — but the adapter must
// never forward a malformed pattern to the crawler API).
func BuildSubmitRequest(cfg config.CrawlerConfig, req domain.AddSourceRequest) SubmitRequest {
	limit := clamp(req.PageLimit, 1, 1000)
	depth := clamp(req.MaxDepth, 1, 10)
	return SubmitRequest{
		URL:          req.URL,
		Limit:        limit,
		MaxDepth:     depth,
		IncludePaths: filterSlashPrefixed(req.IncludePaths),
		ExcludePaths: filterSlashPrefixed(req.ExcludePaths),
		Webhook:      WebhookURL(cfg),
		ScrapeOptions: ScrapeOptions{
			Formats:     []string{"markdown"},
			ExcludeTags: []string{"img"},
		},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func filterSlashPrefixed(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if strings.HasPrefix(p, "/") {
			out = append(out, p)
		}
	}
	return out
}

// StartCrawl submits req and returns the crawler's external job id,
// retrying transient failures (429 honoring Retry-After, 5xx, connection
// errors, timeouts) with 30s-300s exponential backoff up to
// cfg.MaxSubmitTries attempts (§4.6).
func (a *Adapter) StartCrawl(ctx context.Context, req domain.AddSourceRequest) (SubmitResponse, error) {
	payload := BuildSubmitRequest(a.cfg, req)
	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("crawler: marshal submit request: %w", err)
	}

	policy := SubmitRetryPolicy(maxAttempts(a.cfg.MaxSubmitTries))
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		resp, retryAfter, err := a.doSubmit(ctx, body)
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) {
			return SubmitResponse{}, err
		}
		lastErr = err
		if attempt == policy.MaxAttempts-1 {
			break
		}
		if serr := policy.sleep(ctx, a.sleep, attempt, retryAfter); serr != nil {
			return SubmitResponse{}, serr
		}
	}
	return SubmitResponse{}, &RetryableError{Err: fmt.Errorf("submit crawl exhausted retries: %w", lastErr)}
}

func (a *Adapter) doSubmit(ctx context.Context, body []byte) (SubmitResponse, time.Duration, error) {
	url := strings.TrimRight(a.cfg.APIBaseURL, "/") + "/v1/crawl"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SubmitResponse{}, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return SubmitResponse{}, 0, &connError{err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return SubmitResponse{}, retryAfterDuration(resp.Header.Get("Retry-After")), &statusError{resp.StatusCode, observability.RedactBody(string(respBody))}
	}
	if resp.StatusCode/100 == 5 {
		return SubmitResponse{}, 0, &statusError{resp.StatusCode, observability.RedactBody(string(respBody))}
	}
	if resp.StatusCode/100 != 2 {
		return SubmitResponse{}, 0, &CrawlerAPIError{StatusCode: resp.StatusCode, Body: observability.RedactBody(string(respBody))}
	}

	var out SubmitResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return SubmitResponse{}, 0, fmt.Errorf("crawler: parse submit response: %w", err)
	}
	return out, 0, nil
}

// FetchResults pages through a completed job's results via the `next`
// cursor, retrying each page on transient error (10s-60s backoff, up to
// cfg.MaxPageTries attempts), and returns the full aggregate. An empty
// aggregate is fatal (EmptyContentError), per §4.6.
func (a *Adapter) FetchResults(ctx context.Context, jobID string) ([]ResultPage, error) {
	url := strings.TrimRight(a.cfg.APIBaseURL, "/") + "/v1/crawl/" + jobID
	var all []ResultPage
	for url != "" {
		page, err := a.fetchPageWithRetry(ctx, url)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		url = page.Next
	}
	if len(all) == 0 {
		return nil, &EmptyContentError{JobID: jobID}
	}
	return all, nil
}

func (a *Adapter) fetchPageWithRetry(ctx context.Context, url string) (ResultsPage, error) {
	policy := PageRetryPolicy(maxAttempts(a.cfg.MaxPageTries))
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		page, err := a.fetchPage(ctx, url)
		if err == nil {
			return page, nil
		}
		if !isTransient(err) {
			return ResultsPage{}, err
		}
		lastErr = err
		if attempt == policy.MaxAttempts-1 {
			break
		}
		if serr := policy.sleep(ctx, a.sleep, attempt, 0); serr != nil {
			return ResultsPage{}, serr
		}
	}
	return ResultsPage{}, &RetryableError{Err: fmt.Errorf("fetch results page exhausted retries: %w", lastErr)}
}

func (a *Adapter) fetchPage(ctx context.Context, url string) (ResultsPage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ResultsPage{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return ResultsPage{}, &connError{err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
			return ResultsPage{}, &statusError{resp.StatusCode, observability.RedactBody(string(body))}
		}
		return ResultsPage{}, &CrawlerAPIError{StatusCode: resp.StatusCode, Body: observability.RedactBody(string(body))}
	}

	var page ResultsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ResultsPage{}, fmt.Errorf("crawler: parse results page: %w", err)
	}
	return page, nil
}

func maxAttempts(configured int) int {
	if configured <= 0 {
		return 3
	}
	return configured
}

func retryAfterDuration(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// connError marks a network-level failure (DNS, dial, timeout) as
// transient.
type connError struct{ err error }

func (e *connError) Error() string { return "crawler: connection error: " + e.err.Error() }
func (e *connError) Unwrap() error { return e.err }

// statusError marks a 429/5xx HTTP response as transient.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("crawler: transient status %d: %s", e.status, e.body)
}

func isTransient(err error) bool {
	switch err.(type) {
	case *connError, *statusError:
		return true
	default:
		return false
	}
}
