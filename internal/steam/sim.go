// SPDX-License-Identifier: MIT

package steam

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionDenied is returned by simulator auth sessions scripted to fail.
var ErrSessionDenied = errors.New("auth session denied")

// SimClient is a scriptable in-process Client implementation. It stands in
// for the real connection library in tests and in the daemon's development
// mode: commands are recorded, and the scripted responses are delivered as
// events on the same channel a real client would use.
type SimClient struct {
	mu        sync.Mutex
	events    chan Event
	connected bool
	closed    bool

	// Scripted behavior. Zero values mean the happy path.
	FailConnect   bool        // Connect delivers Disconnected instead of Connected
	AccountID     SteamID     // identity reported by successful logons
	ProfileName   string      // persona delivered for profile requests
	ProfileFor    SteamID     // identity stamped on profile events; 0 echoes the request
	DropProfile   bool        // swallow profile requests entirely
	CredentialErr error       // error from BeginCredentialSession
	PollOutcomes  PollOutcome // outcome delivered by session polls
	PollErr       error       // error delivered by session polls
	QrURL         string      // challenge URL for QR sessions

	logonStatuses []Status // consumed per LogOn; empty means StatusOK

	// Recorded commands, read through the accessors below.
	connectCalls    int
	disconnectCalls int
	logOnCalls      []LogOnDetails
	credentialCalls []CredentialDetails
	qrCalls         int
	profileRequests []SteamID
}

// Connects returns how many Connect commands were issued.
func (s *SimClient) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectCalls
}

// Disconnects returns how many Disconnect commands were issued.
func (s *SimClient) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectCalls
}

// LogOns returns the recorded logon commands in order.
func (s *SimClient) LogOns() []LogOnDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogOnDetails, len(s.logOnCalls))
	copy(out, s.logOnCalls)
	return out
}

// Credentials returns the recorded credential session requests in order.
func (s *SimClient) Credentials() []CredentialDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CredentialDetails, len(s.credentialCalls))
	copy(out, s.credentialCalls)
	return out
}

// QrSessions returns how many QR sessions were opened.
func (s *SimClient) QrSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qrCalls
}

// Profiles returns the identities profile info was requested for.
func (s *SimClient) Profiles() []SteamID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SteamID, len(s.profileRequests))
	copy(out, s.profileRequests)
	return out
}

// NewSimClient returns a simulator with a happy-path script: connects on
// demand, accepts any logon, and reports the given identity.
func NewSimClient(id SteamID) *SimClient {
	return &SimClient{
		events:    make(chan Event, 32),
		AccountID: id,
		QrURL:     "https://s.team/q/1/sim-challenge",
	}
}

// SetProfile scripts the persona delivered for profile requests. A non-zero
// forID stamps that identity on the events instead of echoing the request.
func (s *SimClient) SetProfile(name string, forID SteamID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProfileName = name
	s.ProfileFor = forID
}

// SetDropProfile toggles swallowing of profile requests.
func (s *SimClient) SetDropProfile(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DropProfile = drop
}

// QueueLogOnStatus appends statuses consumed by subsequent LogOn commands,
// in order. Once the queue drains, logons succeed.
func (s *SimClient) QueueLogOnStatus(statuses ...Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logonStatuses = append(s.logonStatuses, statuses...)
}

// Emit injects a raw event, e.g. a stale or foreign-identity notification.
func (s *SimClient) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- ev
	}
}

// Close shuts the event stream down.
func (s *SimClient) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *SimClient) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectCalls++
	if s.closed {
		return
	}
	if s.FailConnect {
		s.events <- DisconnectedEvent{}
		return
	}
	s.connected = true
	s.events <- ConnectedEvent{}
}

func (s *SimClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectCalls++
	if s.closed || !s.connected {
		return
	}
	s.connected = false
	s.events <- DisconnectedEvent{UserInitiated: true}
}

func (s *SimClient) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *SimClient) LogOn(details LogOnDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logOnCalls = append(s.logOnCalls, details)
	if s.closed {
		return
	}
	status := StatusOK
	if len(s.logonStatuses) > 0 {
		status = s.logonStatuses[0]
		s.logonStatuses = s.logonStatuses[1:]
	}
	id := s.AccountID
	if status != StatusOK {
		id = 0
	}
	s.events <- LogOnEvent{Status: status, SteamID: id}
}

func (s *SimClient) RequestProfileInfo(id SteamID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileRequests = append(s.profileRequests, id)
	if s.closed || s.DropProfile {
		return
	}
	target := s.ProfileFor
	if target == 0 {
		target = id
	}
	s.events <- ProfileEvent{SteamID: target, PersonaName: s.ProfileName}
}

func (s *SimClient) BeginCredentialSession(_ context.Context, details CredentialDetails) (AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentialCalls = append(s.credentialCalls, details)
	if s.CredentialErr != nil {
		return nil, s.CredentialErr
	}
	outcome := s.PollOutcomes
	if outcome == (PollOutcome{}) {
		outcome = PollOutcome{AccountName: details.Username, RefreshToken: "sim-refresh-token"}
	}
	return &simSession{outcome: outcome, err: s.PollErr}, nil
}

func (s *SimClient) BeginQrSession(context.Context) (QrSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrCalls++
	outcome := s.PollOutcomes
	if outcome == (PollOutcome{}) {
		outcome = PollOutcome{AccountName: "sim-account", RefreshToken: "sim-refresh-token"}
	}
	return &simSession{url: s.QrURL, outcome: outcome, err: s.PollErr}, nil
}

func (s *SimClient) Events() <-chan Event {
	return s.events
}

type simSession struct {
	url     string
	outcome PollOutcome
	err     error
}

func (q *simSession) ChallengeURL() string { return q.url }

func (q *simSession) PollResult(ctx context.Context) (PollOutcome, error) {
	if q.err != nil {
		return PollOutcome{}, q.err
	}
	select {
	case <-ctx.Done():
		return PollOutcome{}, ctx.Err()
	default:
	}
	return q.outcome, nil
}
