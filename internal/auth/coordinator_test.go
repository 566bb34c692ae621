// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/steamvault/steamvault/internal/config"
	"github.com/steamvault/steamvault/internal/steam"
)

const testSteamID = steam.SteamID(76561198000000001)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() config.Config {
	return config.Config{
		ConnectTimeout: time.Second,
		LoginTimeout:   2 * time.Second,
		PersonaTimeout: 100 * time.Millisecond,
		QrFreshness:    time.Second,
	}
}

func newTestCoordinator(t *testing.T, sim *steam.SimClient, cfg config.Config) *Coordinator {
	t.Helper()
	c := New(sim, cfg)
	t.Cleanup(func() {
		c.Close()
		sim.Close()
	})
	return c
}

// stallClient never establishes a connection, keeping attempts pending until
// the test injects events or the attempt times out.
type stallClient struct {
	*steam.SimClient
}

func (s *stallClient) Connect() {}

// qrSnapshot grabs the live QR challenge for assertions.
func (c *Coordinator) qrSnapshot() *qrChallenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qr
}

func TestLoginWithCredentialsSuccess(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "hunter2", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, c.IsLoggedIn())
	assert.Equal(t, testSteamID, c.Session().SteamID())

	require.Len(t, sim.Credentials(), 1)
	assert.Equal(t, "alice", sim.Credentials()[0].Username)
	assert.Equal(t, "hunter2", sim.Credentials()[0].Password)

	require.Len(t, sim.LogOns(), 1)
	assert.Equal(t, "alice", sim.LogOns()[0].AccountName)
	assert.Equal(t, "sim-refresh-token", sim.LogOns()[0].AccessToken)
}

func TestLoginWithCredentialsInvalidPassword(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	sim.QueueLogOnStatus(steam.StatusInvalidPassword)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "wrong", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonInvalidCredentials, res.Reason)
	assert.False(t, c.IsLoggedIn())

	// The attempt is cleared, so a fresh one is accepted.
	res, err = c.LoginWithCredentials(context.Background(), "alice", "hunter2", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSecondFactorContinuationReusesAttempt(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	sim.QueueLogOnStatus(steam.StatusTwoFactorRequired)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "hunter2", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonTwoFactorRequired, res.Reason)
	assert.False(t, c.IsLoggedIn())

	res, err = c.SubmitTwoFactorCode(context.Background(), "123456")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, c.IsLoggedIn())

	// Same flow, continued: the code rode along on the second exchange.
	require.Len(t, sim.Credentials(), 2)
	assert.Empty(t, sim.Credentials()[0].TwoFactorCode)
	assert.Equal(t, "123456", sim.Credentials()[1].TwoFactorCode)
	assert.Equal(t, "alice", sim.Credentials()[1].Username)
}

func TestGuardEmailCodeGoesToAuthCode(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	sim.QueueLogOnStatus(steam.StatusGuardEmailRequired)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "hunter2", "")
	require.NoError(t, err)
	assert.Equal(t, ReasonGuardEmailRequired, res.Reason)

	res, err = c.SubmitTwoFactorCode(context.Background(), "EMAIL1")
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, sim.Credentials(), 2)
	assert.Equal(t, "EMAIL1", sim.Credentials()[1].AuthCode)
	assert.Empty(t, sim.Credentials()[1].TwoFactorCode)
}

func TestSubmitTwoFactorWithoutChallenge(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	_, err := c.SubmitTwoFactorCode(context.Background(), "123456")
	assert.ErrorIs(t, err, ErrNoGuardChallenge)
}

func TestLoginWithSessionTokenRaw(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithSessionToken(context.Background(), "raw-bearer-token")
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, sim.LogOns(), 1)
	assert.Equal(t, "raw-bearer-token", sim.LogOns()[0].AccessToken)
	assert.Equal(t, "raw-bearer-token", c.Session().BearerToken())
}

func TestLoginWithSessionTokenEnvelope(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	payload := `{"logged_in": true, "steamid": "76561198000000001", "accountid": 40000001, "account_name": "alice", "token": "abc"}`
	res, err := c.LoginWithSessionToken(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, sim.LogOns(), 1)
	assert.Equal(t, "alice", sim.LogOns()[0].AccountName)
	assert.Equal(t, "abc", sim.LogOns()[0].AccessToken)
}

func TestLoginWithSessionTokenLoggedOutEnvelope(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithSessionToken(context.Background(), `{"logged_in": false, "token": "abc"}`)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonAccessDenied, res.Reason)

	// Fails fast: the network is never contacted.
	assert.Zero(t, sim.Connects())
	assert.Empty(t, sim.LogOns())
}

func TestLoginWithSessionTokenMalformedJSON(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithSessionToken(context.Background(), `{"logged_in": `)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonMalformedSession, res.Reason)
	assert.Zero(t, sim.Connects())
	assert.False(t, c.IsLoggedIn())
}

func TestQrChallengeFlow(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	url, err := c.GenerateQrChallenge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://s.team/q/1/sim-challenge", url)

	res, err := c.LoginWithQr(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, c.IsLoggedIn())

	require.Len(t, sim.LogOns(), 1)
	assert.Equal(t, "sim-account", sim.LogOns()[0].AccountName)
	assert.Equal(t, "sim-refresh-token", sim.LogOns()[0].AccessToken)
}

func TestQrLoginWithoutChallenge(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	_, err := c.LoginWithQr(context.Background())
	assert.ErrorIs(t, err, ErrNoQrChallenge)
}

func TestQrChallengeRegenerationSupersedes(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	_, err := c.GenerateQrChallenge(context.Background())
	require.NoError(t, err)
	first := c.qrSnapshot()

	_, err = c.GenerateQrChallenge(context.Background())
	require.NoError(t, err)
	second := c.qrSnapshot()

	assert.Equal(t, 2, sim.QrSessions())
	assert.NotSame(t, first, second, "challenge must be replaced, not reused")
	// The superseded challenge's refresh timer was stopped.
	assert.False(t, first.refresh.Stop(), "prior timer should already be stopped")
}

func TestQrChallengeExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.QrFreshness = 50 * time.Millisecond

	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, cfg)

	_, err := c.GenerateQrChallenge(context.Background())
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	res, err := c.LoginWithQr(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonTimeout, res.Reason)

	// Expired challenges are replaced, never reused.
	_, err = c.GenerateQrChallenge(context.Background())
	require.NoError(t, err)
	res, err = c.LoginWithQr(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestConcurrentLoginRejected(t *testing.T) {
	cfg := testConfig()
	cfg.LoginTimeout = 300 * time.Millisecond

	sim := steam.NewSimClient(testSteamID)
	stall := &stallClient{SimClient: sim}
	c := New(stall, cfg)
	t.Cleanup(func() {
		c.Close()
		sim.Close()
	})

	done := make(chan LoginResult, 1)
	go func() {
		res, _ := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
		done <- res
	}()

	// Give the first attempt time to install itself.
	require.Eventually(t, func() bool {
		_, err := c.LoginWithSessionToken(context.Background(), "tok")
		return err == ErrLoginInProgress
	}, 200*time.Millisecond, 10*time.Millisecond)

	res := <-done
	assert.False(t, res.Success)
	assert.Equal(t, ReasonTimeout, res.Reason)

	// Timeout cleared the attempt; new logins are accepted again.
	_, err := c.LoginWithSessionToken(context.Background(), "tok")
	require.NoError(t, err)
}

func TestStaleLoginResultIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.LoginTimeout = 200 * time.Millisecond

	sim := steam.NewSimClient(testSteamID)
	stall := &stallClient{SimClient: sim}
	c := New(stall, cfg)
	t.Cleanup(func() {
		c.Close()
		sim.Close()
	})

	// No Connected event was observed for this attempt, so a login result
	// must be treated as a leftover of a superseded attempt.
	go func() {
		time.Sleep(20 * time.Millisecond)
		sim.Emit(steam.LogOnEvent{Status: steam.StatusOK, SteamID: testSteamID})
	}()

	res, err := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, c.IsLoggedIn())
}

func TestDuplicateTerminalEventsDoNotReResolve(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	sim.QueueLogOnStatus(steam.StatusInvalidPassword)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "wrong", "")
	require.NoError(t, err)
	assert.False(t, res.Success)

	// A late success event for the resolved attempt must be dropped.
	sim.Emit(steam.LogOnEvent{Status: steam.StatusOK, SteamID: testSteamID})
	assert.Never(t, c.IsLoggedIn, 100*time.Millisecond, 20*time.Millisecond)
}

func TestDisconnectDuringAttemptResolvesConnectionLost(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	stall := &stallClient{SimClient: sim}
	c := New(stall, testConfig())
	t.Cleanup(func() {
		c.Close()
		sim.Close()
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		sim.Emit(steam.DisconnectedEvent{})
	}()

	res, err := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonConnectionLost, res.Reason)
}

func TestReconnectOnceAfterAuthenticatedDisconnect(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
	require.True(t, res.Success)
	connectsBefore := sim.Connects()

	sim.Emit(steam.DisconnectedEvent{})

	require.Eventually(t, func() bool {
		return sim.Connects() == connectsBefore+1
	}, time.Second, 10*time.Millisecond, "expected exactly one reconnect")

	// Identity is not trusted across the drop.
	assert.False(t, c.IsLoggedIn())
}

func TestLogoutIdempotence(t *testing.T) {
	sim := steam.NewSimClient(testSteamID)
	c := newTestCoordinator(t, sim, testConfig())

	res, err := c.LoginWithCredentials(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.True(t, c.Logout())
	assert.False(t, c.IsLoggedIn())
	assert.False(t, c.Logout(), "second logout has nothing to tear down")
	assert.Equal(t, 1, sim.Disconnects())
}

func TestOutcomeSingleResolution(t *testing.T) {
	o := newOutcome()
	assert.True(t, o.resolve(LoginResult{Success: true}))
	assert.False(t, o.resolve(LoginResult{Reason: ReasonUnknown}))
	assert.Equal(t, LoginResult{Success: true}, o.result())

	res, gaveUp := o.wait(context.Background(), time.Second)
	assert.False(t, gaveUp)
	assert.True(t, res.Success)
}
