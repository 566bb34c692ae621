// SPDX-License-Identifier: MIT

package steam

// Event is a typed out-of-band notification from the connection library.
// The concrete types below are the complete set the orchestrator handles.
type Event interface {
	event()
}

// ConnectedEvent signals that the transport session is established and
// logon commands may be issued.
type ConnectedEvent struct{}

// DisconnectedEvent signals loss of the transport session. UserInitiated is
// true when the disconnect was requested locally (logout).
type DisconnectedEvent struct {
	UserInitiated bool
}

// LogOnEvent is the terminal result of a logon command.
type LogOnEvent struct {
	Status  Status
	SteamID SteamID
}

// LogOffEvent signals that the remote side ended an authenticated session.
type LogOffEvent struct {
	Status Status
}

// ProfileEvent carries profile info requested via RequestProfileInfo.
type ProfileEvent struct {
	SteamID     SteamID
	PersonaName string
}

func (ConnectedEvent) event()    {}
func (DisconnectedEvent) event() {}
func (LogOnEvent) event()        {}
func (LogOffEvent) event()       {}
func (ProfileEvent) event()      {}
