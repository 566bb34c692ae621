// SPDX-License-Identifier: MIT

// Package steam defines the narrow command/callback boundary to the Steam
// connection library. The wire protocol lives behind this contract; the
// orchestrator only issues commands and drains the event stream.
package steam

import "context"

// SteamID is the stable account identifier assigned after a successful logon.
type SteamID uint64

// Valid reports whether the identifier refers to an account.
func (id SteamID) Valid() bool { return id != 0 }

// CredentialDetails carries everything a credential auth session needs.
// AuthCode is the Steam Guard email code, TwoFactorCode the mobile
// authenticator code; either may be empty.
type CredentialDetails struct {
	Username      string
	Password      string
	AuthCode      string
	TwoFactorCode string
}

// LogOnDetails is the final logon command: an account name plus a bearer
// token obtained from a completed auth session or an imported web session.
type LogOnDetails struct {
	AccountName string
	AccessToken string
}

// PollOutcome is the result of a completed auth session poll: the account
// to log on as and the bearer token to do it with.
type PollOutcome struct {
	AccountName  string
	RefreshToken string
}

// AuthSession is a pending authentication exchange that resolves to a
// logon credential once the remote side approves it.
type AuthSession interface {
	// PollResult blocks until the session is approved, denied, or ctx ends.
	PollResult(ctx context.Context) (PollOutcome, error)
}

// QrSession is a pending QR pairing challenge. The challenge URL is rendered
// as a QR image by the caller; approval on another device completes the poll.
type QrSession interface {
	AuthSession
	ChallengeURL() string
}

// Client is the command surface of the Steam connection library.
//
// Commands are fire-and-forget; their results arrive as events on the
// channel returned by Events. Implementations must deliver events in the
// order connect -> terminal login result for any single attempt.
type Client interface {
	Connect()
	Disconnect()
	IsConnected() bool

	BeginCredentialSession(ctx context.Context, details CredentialDetails) (AuthSession, error)
	BeginQrSession(ctx context.Context) (QrSession, error)
	LogOn(details LogOnDetails)
	RequestProfileInfo(id SteamID)

	// Events returns the stream of out-of-band notifications. The channel is
	// owned by the client and closed when the client shuts down.
	Events() <-chan Event
}
