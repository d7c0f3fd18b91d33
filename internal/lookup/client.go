package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"plumage/internal/metrics"
)

// The bulk lookup endpoint accepts at most 100 ids per request.
const batchSize = 100

// Resolver resolves numeric user ids to handles. Absence of a resolver
// (no bearer credential) degrades handle resolution gracefully.
type Resolver interface {
	ResolveHandles(ctx context.Context, ids []string) (map[string]string, error)
}

// Options tune the client; zero fields fall back to defaults.
type Options struct {
	RPS         float64
	Burst       int
	MaxAttempts int
	BaseBackoff time.Duration
}

// HTTPClient is a bearer-token client for the bulk user lookup API. Guest
// token activation happens lazily on first use.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	guestToken  string
}

func NewHTTPClient(bearerToken string, opts Options) *HTTPClient {
	if opts.RPS <= 0 {
		opts.RPS = 2.0
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	return &HTTPClient{
		baseURL:     "https://api.twitter.com",
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
	}
}

func (c *HTTPClient) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

// ResolveHandles resolves ids in batches of 100. On a mid-run failure the
// handles resolved so far are returned alongside the error so the caller
// can degrade the remainder instead of losing everything.
func (c *HTTPClient) ResolveHandles(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if c.bearerToken == "" {
		return out, errors.New("no bearer token")
	}
	if err := c.activateGuestToken(ctx); err != nil {
		return out, err
	}
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := c.lookupBatch(ctx, ids[start:end], out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *HTTPClient) activateGuestToken(ctx context.Context) error {
	if c.guestToken != "" {
		return nil
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/1.1/guest/activate.json", nil)
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, req, "guest/activate")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("guest token status %d", resp.StatusCode)
	}
	var raw struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return err
	}
	if raw.GuestToken == "" {
		return errors.New("empty guest token")
	}
	c.guestToken = raw.GuestToken
	return nil
}

func (c *HTTPClient) lookupBatch(ctx context.Context, ids []string, out map[string]string) error {
	u := fmt.Sprintf("%s/1.1/users/lookup.json?user_id=%s", c.baseURL, url.QueryEscape(strings.Join(ids, ",")))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	req.Header.Set("x-guest-token", c.guestToken)
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, req, "users/lookup")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("lookup status %d", resp.StatusCode)
	}
	var raw []struct {
		ID         string `json:"id_str"`
		ScreenName string `json:"screen_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return err
	}
	for _, u := range raw {
		if u.ID != "" && u.ScreenName != "" {
			out[u.ID] = u.ScreenName
		}
	}
	return nil
}

// doWithRetry retries rate-limit and server errors with exponential backoff,
// honoring Retry-After and adding +/-20% jitter. Other responses return
// as-is; a request that cannot complete within maxAttempts gives up.
func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				_ = resp.Body.Close()
				metrics.IncLookupRetry(endpoint)
				wait := retryWait(resp, backoff)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		metrics.IncLookupRetry(endpoint)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %v", c.maxAttempts, lastErr)
}

func retryWait(resp *http.Response, backoff time.Duration) time.Duration {
	wait := backoff
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			wait = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(ra); err == nil {
			if d := time.Until(t); d > 0 {
				wait = d
			}
		}
	}
	jitter := time.Duration(float64(wait) * 0.2)
	if jitter > 0 {
		wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
	}
	return wait
}
