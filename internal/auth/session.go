// SPDX-License-Identifier: MIT

// Package auth drives Steam logins to completion and owns the resulting
// session state. It bridges the connection library's out-of-band events
// into awaitable outcomes for the three supported login modes.
package auth

import (
	"sync"

	"github.com/steamvault/steamvault/internal/steam"
)

// ConnectionStatus tracks the transport session to the remote service.
type ConnectionStatus int

const (
	ConnDisconnected ConnectionStatus = iota
	ConnConnecting
	ConnConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// LoginMode identifies which of the three login flows an attempt belongs to.
type LoginMode int

const (
	ModeNone LoginMode = iota
	ModeCredentials
	ModeSessionToken
	ModeQr
)

func (m LoginMode) String() string {
	switch m {
	case ModeCredentials:
		return "credentials"
	case ModeSessionToken:
		return "session_token"
	case ModeQr:
		return "qr"
	default:
		return "none"
	}
}

// Session is the single mutable record of the authenticated identity.
// It is written by the coordinator (from the dispatch loop or under its
// single-writer discipline) and read concurrently by callers.
type Session struct {
	mu      sync.RWMutex
	conn    ConnectionStatus
	steamID steam.SteamID
	persona string
	bearer  string // token backing web session synthesis for inventory calls
}

// NewSession returns an empty, disconnected session.
func NewSession() *Session {
	return &Session{}
}

// ConnectionStatus returns the current transport status.
func (s *Session) ConnectionStatus() ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// LoggedIn reports whether an identity is established.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steamID.Valid()
}

// SteamID returns the authenticated identity, zero if not logged in.
func (s *Session) SteamID() steam.SteamID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steamID
}

// PersonaName returns the cached display name, empty if not yet resolved.
func (s *Session) PersonaName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persona
}

// BearerToken returns the credential backing the web session, empty if none.
func (s *Session) BearerToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bearer
}

func (s *Session) setConn(c ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = c
}

// logOn commits a successful logon. The bearer token may be empty when the
// logon was not token-based.
func (s *Session) logOn(id steam.SteamID, bearer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steamID = id
	s.bearer = bearer
	s.conn = ConnConnected
}

// setPersona records the display name. Persona is only trusted once an
// identity is established; callers check that before writing.
func (s *Session) setPersona(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persona = name
}

// reset clears identity, persona and bearer token on disconnect or logout.
func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steamID = 0
	s.persona = ""
	s.bearer = ""
	s.conn = ConnDisconnected
}
