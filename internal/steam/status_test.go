// SPDX-License-Identifier: MIT

package steam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "ok"},
		{StatusInvalidPassword, "invalid_password"},
		{StatusGuardEmailRequired, "guard_email_required"},
		{StatusTwoFactorRequired, "two_factor_required"},
		{StatusAccessDenied, "access_denied"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestStatusGuardRequired(t *testing.T) {
	assert.True(t, StatusGuardEmailRequired.GuardRequired())
	assert.True(t, StatusTwoFactorRequired.GuardRequired())
	assert.False(t, StatusOK.GuardRequired())
	assert.False(t, StatusInvalidPassword.GuardRequired())
}

func TestSimClientConnectLifecycle(t *testing.T) {
	sim := NewSimClient(76561198000000001)
	defer sim.Close()

	sim.Connect()
	ev := <-sim.Events()
	assert.IsType(t, ConnectedEvent{}, ev)
	assert.True(t, sim.IsConnected())

	sim.Disconnect()
	ev = <-sim.Events()
	dis, ok := ev.(DisconnectedEvent)
	assert.True(t, ok)
	assert.True(t, dis.UserInitiated)
	assert.False(t, sim.IsConnected())
}

func TestSimClientLogOnStatusQueue(t *testing.T) {
	sim := NewSimClient(42)
	defer sim.Close()

	sim.QueueLogOnStatus(StatusTwoFactorRequired)

	sim.LogOn(LogOnDetails{AccountName: "alice", AccessToken: "tok"})
	ev := (<-sim.Events()).(LogOnEvent)
	assert.Equal(t, StatusTwoFactorRequired, ev.Status)
	assert.False(t, ev.SteamID.Valid())

	sim.LogOn(LogOnDetails{AccountName: "alice", AccessToken: "tok"})
	ev = (<-sim.Events()).(LogOnEvent)
	assert.Equal(t, StatusOK, ev.Status)
	assert.Equal(t, SteamID(42), ev.SteamID)
}
