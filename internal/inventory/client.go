// SPDX-License-Identifier: MIT

package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xvlog "github.com/steamvault/steamvault/internal/log"
	"github.com/steamvault/steamvault/internal/metrics"
	"github.com/steamvault/steamvault/internal/resilience"
)

// notRetryable wraps HTTP failures that repeating cannot fix; the current
// tier short-circuits to the next one instead of burning its retries.
type notRetryable struct {
	status int
}

func (e *notRetryable) Error() string {
	return fmt.Sprintf("endpoint refused with status %d", e.status)
}

// Client fetches inventories from the community endpoints.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retries int
	backoff time.Duration
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetries sets the tier-1 attempt count.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the backoff base; attempt n waits n times this.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithRateLimit throttles outbound requests to the community host.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
		}
	}
}

// WithBreaker replaces the circuit breaker guarding the community host.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// New creates an inventory client for the given community base URL.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 6),
		retries: 3,
		backoff: time.Second,
		log:     xvlog.WithComponent("inventory"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker("inventory", 5, 30*time.Second)
	}
	return c
}

// GetInventory produces the normalized item collection for the given
// app/context pair. Unauthenticated credentials and total exhaustion of the
// fallback chain both yield an empty list, never an error.
func (c *Client) GetInventory(ctx context.Context, cred Credential, appID, contextID uint32) []Item {
	if cred.SteamID == 0 {
		c.log.Debug().Msg("no authenticated identity, returning empty inventory")
		return []Item{}
	}

	req := request{cred: cred, appID: appID, contextID: contextID}
	for _, t := range c.tiers() {
		items, err := t.fetch(ctx, req)
		if err != nil {
			metrics.RecordInventoryFetch(t.name, "failure")
			c.log.Info().Err(err).
				Str(xvlog.FieldTier, t.name).
				Uint64(xvlog.FieldSteamID, cred.SteamID).
				Msg("inventory tier failed, falling through")
			continue
		}
		metrics.RecordInventoryFetch(t.name, "success")
		metrics.RecordInventoryItems(len(items))
		c.log.Info().
			Str(xvlog.FieldTier, t.name).
			Int(xvlog.FieldItemCount, len(items)).
			Uint32(xvlog.FieldAppID, appID).
			Uint32(xvlog.FieldContextID, contextID).
			Msg("inventory retrieved")
		return items
	}

	c.log.Warn().
		Uint64(xvlog.FieldSteamID, cred.SteamID).
		Msg("all inventory tiers exhausted, returning empty inventory")
	return []Item{}
}

// get performs one guarded request and returns the response body. Client
// errors other than 429 are wrapped as notRetryable.
func (c *Client) get(ctx context.Context, url string, cookies []*http.Cookie) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for _, ck := range cookies {
			req.AddCookie(ck)
		}

		res, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
				return &notRetryable{status: res.StatusCode}
			}
			return fmt.Errorf("endpoint returned status %d", res.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(res.Body, 16<<20))
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// sleepBackoff waits the linear backoff for the given attempt number.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * c.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isNotRetryable(err error) bool {
	var nr *notRetryable
	return errors.As(err, &nr)
}
