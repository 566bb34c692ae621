// SPDX-License-Identifier: MIT

package inventory

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	xvlog "github.com/steamvault/steamvault/internal/log"
)

// request carries one retrieval's inputs through the fallback chain.
type request struct {
	cred      Credential
	appID     uint32
	contextID uint32
}

// tier is one strategy in the ordered fallback chain. Every tier has the
// same signature so a single runner can try them in turn.
type tier struct {
	name  string
	fetch func(ctx context.Context, req request) ([]Item, error)
}

func (c *Client) tiers() []tier {
	return []tier{
		{name: "public", fetch: c.fetchPublic},
		{name: "authenticated", fetch: c.fetchAuthenticated},
		{name: "private", fetch: c.fetchPrivate},
	}
}

func (c *Client) listingURL(req request) string {
	return fmt.Sprintf("%s/inventory/%d/%d/%d?l=english&count=5000",
		c.base, req.cred.SteamID, req.appID, req.contextID)
}

// fetchPublic reads the well-known public listing with linear-backoff
// retries. Non-retryable HTTP failures short-circuit to the next tier.
func (c *Client) fetchPublic(ctx context.Context, req request) ([]Item, error) {
	url := c.listingURL(req)

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			if err := c.sleepBackoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		body, err := c.get(ctx, url, nil)
		if err != nil {
			if isNotRetryable(err) {
				return nil, err
			}
			lastErr = err
			c.log.Debug().Err(err).
				Int(xvlog.FieldAttempt, attempt).
				Str(xvlog.FieldEndpoint, url).
				Msg("public inventory request failed")
			continue
		}
		return parseFlat(body)
	}
	return nil, fmt.Errorf("public endpoint failed after %d attempts: %w", c.retries, lastErr)
}

// fetchAuthenticated repeats the listing request with a web session
// synthesized from the identity and bearer token. The cookie pair is
// recomputed on every call; it is never cached across retrievals.
func (c *Client) fetchAuthenticated(ctx context.Context, req request) ([]Item, error) {
	cookies, err := webSessionCookies(req.cred)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.listingURL(req), cookies)
	if err != nil {
		return nil, err
	}
	return parseFlat(body)
}

// fetchPrivate walks the legacy profile endpoint shapes in fixed order and
// accepts the first success, detecting the response schema at runtime.
func (c *Client) fetchPrivate(ctx context.Context, req request) ([]Item, error) {
	urls := []string{
		fmt.Sprintf("%s/profiles/%d/inventory/json/%d/%d",
			c.base, req.cred.SteamID, req.appID, req.contextID),
		fmt.Sprintf("%s/profiles/%d/inventory/json/%d/%d?trading=1",
			c.base, req.cred.SteamID, req.appID, req.contextID),
		fmt.Sprintf("%s/id/%d/inventory/json/%d/%d",
			c.base, req.cred.SteamID, req.appID, req.contextID),
	}

	cookies, _ := webSessionCookies(req.cred) // legacy shapes work without one

	var lastErr error
	for _, url := range urls {
		body, err := c.get(ctx, url, cookies)
		if err != nil {
			lastErr = err
			continue
		}
		items, err := parseAny(body)
		if err != nil {
			lastErr = err
			continue
		}
		return items, nil
	}
	return nil, fmt.Errorf("all private endpoint shapes exhausted: %w", lastErr)
}

// webSessionCookies synthesizes the session-cookie-equivalent credential
// from the identity and held bearer token.
func webSessionCookies(cred Credential) ([]*http.Cookie, error) {
	if cred.Token == "" {
		return nil, fmt.Errorf("no bearer token held, cannot synthesize web session")
	}
	sessionID := uuid.NewString()
	return []*http.Cookie{
		{Name: "sessionid", Value: sessionID},
		{Name: "steamLoginSecure", Value: fmt.Sprintf("%d||%s", cred.SteamID, cred.Token)},
	}, nil
}
