// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steamvault/steamvault/internal/steam"
)

func TestPersonaSentinelWhenNotLoggedIn(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	name := c.GetPersonaName(context.Background())
	assert.Equal(t, UnknownPersona, name)
	// Nothing to resolve a name for, so nothing was asked.
	assert.Empty(t, sim.Profiles())
}

func TestPersonaWarmedOnLogon(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	sim.SetProfile("Alice", 0)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
	require.True(t, res.Success)

	// The warm-up request fired on logon resolves the name in the background.
	require.Eventually(t, func() bool {
		return c.GetPersonaName(context.Background()) == "Alice"
	}, time.Second, 10*time.Millisecond)

	// Subsequent lookups hit the cache.
	before := len(sim.Profiles())
	assert.Equal(t, "Alice", c.GetPersonaName(context.Background()))
	assert.Len(t, sim.Profiles(), before)
}

func TestPersonaForeignIdentityIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.PersonaTimeout = 80 * time.Millisecond

	sim := steam.NewSimClient(testSteamID)
	sim.SetProfile("Mallory", steam.SteamID(76561198099999999))
	c := newTestCoordinator(t, sim, cfg)

	res, err := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
	require.True(t, res.Success)

	// Every profile event carries a foreign identity, so the lookup can only
	// time out into the sentinel. The foreign name must never be cached.
	assert.Equal(t, UnknownPersona, c.GetPersonaName(context.Background()))
	assert.Empty(t, c.Session().PersonaName())
}

func TestPersonaLookupTimesOutIntoSentinel(t *testing.T) {
	cfg := testConfig()
	cfg.PersonaTimeout = 50 * time.Millisecond

	sim := steam.NewSimClient(testSteamID)
	sim.SetDropProfile(true)
	c := newTestCoordinator(t, sim, cfg)

	res, err := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
	require.True(t, res.Success)

	start := time.Now()
	assert.Equal(t, UnknownPersona, c.GetPersonaName(context.Background()))
	assert.Less(t, time.Since(start), time.Second, "lookup must give up quickly")
}

func TestPersonaConcurrentLookupsShareOneRequest(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	sim.SetDropProfile(true)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
	require.True(t, res.Success)
	warm := len(sim.Profiles())

	// Release the name mid-flight so every waiter sees the same resolution.
	sim.SetDropProfile(false)
	sim.SetProfile("Alice", 0)
	go func() {
		time.Sleep(20 * time.Millisecond)
		sim.Emit(steam.ProfileEvent{SteamID: testSteamID, PersonaName: "Alice"})
	}()

	var wg sync.WaitGroup
	names := make([]string, 4)
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names[i] = c.GetPersonaName(context.Background())
		}(i)
	}
	wg.Wait()

	for _, name := range names {
		assert.Equal(t, "Alice", name)
	}
	// At most one request beyond the logon warm-up, regardless of callers.
	assert.LessOrEqual(t, len(sim.Profiles()), warm+1)
}
