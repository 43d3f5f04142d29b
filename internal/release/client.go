package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	maxRequestsPerSecond = 5
	maxBurstSize         = 10
	defaultRetries       = 2
)

// Client talks to the GitHub releases API.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	retries    uint64
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (GitHub Enterprise, tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithToken attaches a bearer credential to API requests. Empty means anonymous.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRetries sets how many times a transport failure or 5xx is retried.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client with the 15s connect/read budget and anonymous access.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultAPIBaseURL,
		userAgent:  "mod-updater",
		retries:    defaultRetries,
		httpClient: newHTTPClient(DefaultTimeout),
		limiter:    rate.NewLimiter(rate.Limit(maxRequestsPerSecond), maxBurstSize),
		logger:     logrus.WithField("component", "release-client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "github-api",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warnf("Circuit breaker %s state changed from %v to %v", name, from, to)
		},
	})
	return c
}

// newHTTPClient bounds connection setup and time-to-first-byte. The overall
// timeout is left to callers so large downloads are not cut off.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// FetchLatest returns the newest release of repo ("owner/name"). When the
// repository has no release marked latest the release list is consulted and
// its first entry used.
func (c *Client) FetchLatest(ctx context.Context, repo string) (*Descriptor, error) {
	repo = strings.Trim(strings.TrimSpace(repo), "/")
	if repo == "" {
		return nil, errors.New("repository is required")
	}

	latestURL := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, repo)
	resp, err := c.apiGet(ctx, latestURL)
	if err != nil {
		return nil, err
	}

	if resp.code == http.StatusNotFound {
		c.logger.WithField("repo", repo).Info("No release marked latest, falling back to release list")
		listURL := fmt.Sprintf("%s/repos/%s/releases", c.baseURL, repo)
		resp, err = c.apiGet(ctx, listURL)
		if err != nil {
			return nil, err
		}
		if !success(resp.code) {
			return nil, &StatusError{URL: listURL, Code: resp.code, Body: resp.body}
		}
		return ParseFirstDescriptor(resp.body), nil
	}

	if !success(resp.code) {
		return nil, &StatusError{URL: latestURL, Code: resp.code, Body: resp.body}
	}

	d := ParseDescriptor(resp.body)
	c.logger.WithFields(logrus.Fields{
		"repo":   repo,
		"tag":    d.Tag,
		"assets": len(d.Assets),
	}).Debug("Fetched latest release")
	return d, nil
}

// ContentLength probes url with a HEAD request. The boolean is false when the
// size is unknown or the probe failed.
func (c *Client) ContentLength(ctx context.Context, url string) (int64, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Debug("HEAD probe failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 || resp.ContentLength < 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

type apiResponse struct {
	code int
	body string
}

// apiGet performs a rate limited, retried GET behind the circuit breaker.
// Transport errors and 5xx responses count as failures; any other status is
// returned to the caller to interpret.
func (c *Client) apiGet(ctx context.Context, url string) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		var resp *apiResponse
		op := func() error {
			r, err := c.doGet(ctx, url)
			if err != nil {
				return err
			}
			if r.code >= 500 {
				return &StatusError{URL: url, Code: r.code, Body: r.body}
			}
			resp = r
			return nil
		}

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		notify := func(err error, wait time.Duration) {
			c.logger.WithError(err).WithField("retry_in", wait).Warn("GitHub API request failed, retrying")
		}
		if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx), notify); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*apiResponse), nil
}

func (c *Client) doGet(ctx context.Context, url string) (*apiResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return &apiResponse{code: resp.StatusCode, body: string(body)}, nil
}

func success(code int) bool {
	return code >= 200 && code < 300
}
