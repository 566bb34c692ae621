// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"time"

	xvlog "github.com/steamvault/steamvault/internal/log"
	"github.com/steamvault/steamvault/internal/metrics"
	"github.com/steamvault/steamvault/internal/steam"
)

// UnknownPersona is the sentinel returned when no display name can be
// resolved, instead of failing the caller.
const UnknownPersona = "Unknown User"

// GetPersonaName returns the authenticated identity's display name. Cached
// names return immediately; otherwise a profile-info request is issued and
// awaited within the configured timeout. Concurrent calls share one
// outstanding request. Unauthenticated callers get the sentinel.
func (c *Coordinator) GetPersonaName(ctx context.Context) string {
	if name := c.session.PersonaName(); name != "" {
		return name
	}
	if !c.session.LoggedIn() {
		return UnknownPersona
	}

	v, _, _ := c.sf.Do("persona", func() (any, error) {
		return c.resolvePersona(ctx), nil
	})
	name, ok := v.(string)
	if !ok || name == "" {
		return UnknownPersona
	}
	return name
}

func (c *Coordinator) resolvePersona(ctx context.Context) string {
	// Re-check under the flight: a profile event may have landed while this
	// caller queued behind another.
	if name := c.session.PersonaName(); name != "" {
		return name
	}

	ch := make(chan string, 1)
	c.mu.Lock()
	c.personaCh = ch
	id := c.session.SteamID()
	c.mu.Unlock()

	if !id.Valid() {
		return UnknownPersona
	}
	c.client.RequestProfileInfo(id)

	timer := time.NewTimer(c.cfg.PersonaTimeout)
	defer timer.Stop()
	select {
	case name := <-ch:
		metrics.RecordPersonaLookup("resolved")
		return name
	case <-timer.C:
		c.log.Warn().
			Uint64(xvlog.FieldSteamID, uint64(id)).
			Dur("timeout", c.cfg.PersonaTimeout).
			Msg("persona lookup timed out")
		metrics.RecordPersonaLookup("timeout")
		return UnknownPersona
	case <-ctx.Done():
		metrics.RecordPersonaLookup("canceled")
		return UnknownPersona
	}
}

// handleProfile caches the display name for the current identity. Events for
// a different identity are ignored, not queued.
func (c *Coordinator) handleProfile(ev steam.ProfileEvent) {
	c.mu.Lock()
	current := c.session.SteamID()
	if !current.Valid() || ev.SteamID != current {
		c.mu.Unlock()
		c.log.Debug().
			Uint64(xvlog.FieldSteamID, uint64(ev.SteamID)).
			Msg("ignoring profile info for foreign identity")
		return
	}
	c.session.setPersona(ev.PersonaName)
	ch := c.personaCh
	c.personaCh = nil
	c.mu.Unlock()

	if ch != nil {
		ch <- ev.PersonaName
	}
	c.log.Debug().
		Uint64(xvlog.FieldSteamID, uint64(ev.SteamID)).
		Str(xvlog.FieldPersona, ev.PersonaName).
		Msg("persona resolved")
}
