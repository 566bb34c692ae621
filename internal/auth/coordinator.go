// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/steamvault/steamvault/internal/config"
	xvlog "github.com/steamvault/steamvault/internal/log"
	"github.com/steamvault/steamvault/internal/metrics"
	"github.com/steamvault/steamvault/internal/steam"
)

var (
	// ErrLoginInProgress rejects a credential or session-token login while
	// another attempt is pending. QR challenge generation is exempt: it
	// supersedes instead.
	ErrLoginInProgress = errors.New("a login attempt is already in progress")

	// ErrNoQrChallenge signals QR login before any challenge was generated.
	ErrNoQrChallenge = errors.New("no QR challenge has been generated")

	// ErrNoGuardChallenge signals a second-factor submission with no
	// credential attempt awaiting one.
	ErrNoGuardChallenge = errors.New("no pending guard challenge")

	// ErrConnectTimeout signals that the transport never reported connected.
	ErrConnectTimeout = errors.New("connection to the remote service timed out")
)

type attemptState int

const (
	stateConnecting attemptState = iota
	stateAuthenticating
	stateAwaitingSecondFactor
)

// attempt is the tagged "current attempt" value: at most one exists, so only
// one flow can be active by construction.
type attempt struct {
	id    string
	mode  LoginMode
	state attemptState

	creds steam.CredentialDetails // credentials mode only, cleared on terminal
	logon steam.LogOnDetails      // account/token pair submitted on connect
	guard steam.Status            // which guard challenge is outstanding

	// connected flips when a Connected event is observed for this attempt;
	// login results seen before that are stale and ignored.
	connected bool

	out *outcome
}

// qrChallenge is an in-progress QR pairing challenge. It is replaced, never
// mutated in place, on each refresh.
type qrChallenge struct {
	session   steam.QrSession
	url       string
	createdAt time.Time
	refresh   *time.Timer
	expired   bool
}

// Coordinator drives exactly one login attempt at a time to a terminal
// outcome and owns the session state plus the event dispatch loop.
type Coordinator struct {
	client  steam.Client
	cfg     config.Config
	session *Session
	log     zerolog.Logger

	mu           sync.Mutex
	attempt      *attempt
	qr           *qrChallenge
	connWaiters  []chan struct{}
	personaCh    chan string
	reconnecting bool

	sf   singleflight.Group
	stop chan struct{}
	done chan struct{}
}

// New constructs a coordinator and starts its dispatch loop. Callers must
// Close it to stop the loop.
func New(client steam.Client, cfg config.Config) *Coordinator {
	c := &Coordinator{
		client:  client,
		cfg:     cfg,
		session: NewSession(),
		log:     xvlog.WithComponent("auth"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Session exposes the session state for read-only consumers.
func (c *Coordinator) Session() *Session {
	return c.session
}

// Close stops the dispatch loop and cancels any armed QR refresh timer.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.qr != nil && c.qr.refresh != nil {
		c.qr.refresh.Stop()
	}
	c.mu.Unlock()
	close(c.stop)
	<-c.done
}

// dispatch is the single event-processing loop. Handlers run sequentially
// here, never concurrently with each other.
func (c *Coordinator) dispatch() {
	defer close(c.done)
	for {
		select {
		case ev, ok := <-c.client.Events():
			if !ok {
				return
			}
			c.handleEvent(ev)
		case <-c.stop:
			return
		}
	}
}

func (c *Coordinator) handleEvent(ev steam.Event) {
	switch e := ev.(type) {
	case steam.ConnectedEvent:
		c.handleConnected()
	case steam.DisconnectedEvent:
		c.handleDisconnected(e)
	case steam.LogOnEvent:
		c.handleLogOn(e)
	case steam.LogOffEvent:
		c.handleLogOff(e)
	case steam.ProfileEvent:
		c.handleProfile(e)
	default:
		c.log.Debug().Str(xvlog.FieldEvent, "unhandled").Msg("ignoring unknown event type")
	}
}

// IsLoggedIn is a pure read of session state.
func (c *Coordinator) IsLoggedIn() bool {
	return c.session.LoggedIn()
}

// LoginWithCredentials drives the password+second-factor flow to a terminal
// outcome. A guard-required result keeps the attempt alive; the caller then
// continues it via SubmitTwoFactorCode.
func (c *Coordinator) LoginWithCredentials(ctx context.Context, username, password, authCode string) (LoginResult, error) {
	att := &attempt{
		id:   uuid.NewString(),
		mode: ModeCredentials,
		creds: steam.CredentialDetails{
			Username: username,
			Password: password,
			AuthCode: authCode,
		},
		out: newOutcome(),
	}
	if err := c.install(att); err != nil {
		return LoginResult{}, err
	}

	c.log.Info().
		Str(xvlog.FieldAttemptID, att.id).
		Str(xvlog.FieldLoginMode, att.mode.String()).
		Str(xvlog.FieldAccount, username).
		Msg("starting login attempt")

	c.client.Connect()
	return c.await(ctx, att)
}

// sessionEnvelope is the JSON shape accepted by LoginWithSessionToken.
type sessionEnvelope struct {
	LoggedIn    bool   `json:"logged_in"`
	SteamID     string `json:"steamid"`
	AccountID   int64  `json:"accountid"`
	AccountName string `json:"account_name"`
	Token       string `json:"token"`
}

// LoginWithSessionToken accepts a raw bearer token or a JSON envelope with a
// logged_in flag. A false flag or malformed JSON fails fast without touching
// the network or the session state.
func (c *Coordinator) LoginWithSessionToken(ctx context.Context, tokenOrJSON string) (LoginResult, error) {
	trimmed := strings.TrimSpace(tokenOrJSON)
	logon := steam.LogOnDetails{AccessToken: trimmed}
	var envelopeID steam.SteamID

	if strings.HasPrefix(trimmed, "{") {
		var env sessionEnvelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			c.log.Warn().Err(err).Msg("session token payload is not valid JSON")
			metrics.RecordLoginFailure(ModeSessionToken.String(), ReasonMalformedSession.String())
			return LoginResult{Reason: ReasonMalformedSession}, nil
		}
		if !env.LoggedIn {
			c.log.Info().Msg("imported session reports logged_in=false, refusing without network")
			metrics.RecordLoginFailure(ModeSessionToken.String(), ReasonAccessDenied.String())
			return LoginResult{Reason: ReasonAccessDenied}, nil
		}
		logon = steam.LogOnDetails{AccountName: env.AccountName, AccessToken: env.Token}
		if id, err := strconv.ParseUint(env.SteamID, 10, 64); err == nil {
			envelopeID = steam.SteamID(id)
		}
	}

	att := &attempt{
		id:    uuid.NewString(),
		mode:  ModeSessionToken,
		logon: logon,
		out:   newOutcome(),
	}
	if err := c.install(att); err != nil {
		return LoginResult{}, err
	}

	c.log.Info().
		Str(xvlog.FieldAttemptID, att.id).
		Str(xvlog.FieldLoginMode, att.mode.String()).
		Str(xvlog.FieldAccount, logon.AccountName).
		Uint64(xvlog.FieldSteamID, uint64(envelopeID)).
		Msg("starting login attempt")

	c.client.Connect()
	return c.await(ctx, att)
}

// GenerateQrChallenge opens a new QR pairing challenge and returns its URL.
// It reuses an existing connection or establishes one first. Each call
// supersedes any prior unexpired challenge and stops its refresh timer.
func (c *Coordinator) GenerateQrChallenge(ctx context.Context) (string, error) {
	if !c.client.IsConnected() {
		if err := c.waitForConnection(ctx); err != nil {
			return "", err
		}
	}

	qs, err := c.client.BeginQrSession(ctx)
	if err != nil {
		return "", err
	}

	q := &qrChallenge{
		session:   qs,
		url:       qs.ChallengeURL(),
		createdAt: time.Now(),
	}
	q.refresh = time.AfterFunc(c.cfg.QrFreshness, func() { c.expireQr(q) })

	c.mu.Lock()
	if prev := c.qr; prev != nil && prev.refresh != nil {
		prev.refresh.Stop()
	}
	c.qr = q
	c.mu.Unlock()

	c.log.Info().Str(xvlog.FieldEvent, "qr.challenge").Msg("QR challenge generated")
	return q.url, nil
}

// LoginWithQr blocks on approval of the stored QR challenge on another
// device, then submits the returned identity/token pair as the logon
// credential and awaits the terminal login event.
func (c *Coordinator) LoginWithQr(ctx context.Context) (LoginResult, error) {
	c.mu.Lock()
	q := c.qr
	if q == nil {
		c.mu.Unlock()
		return LoginResult{}, ErrNoQrChallenge
	}
	if q.expired {
		c.mu.Unlock()
		return LoginResult{Reason: ReasonTimeout}, nil
	}
	if c.attempt != nil {
		c.mu.Unlock()
		return LoginResult{}, ErrLoginInProgress
	}
	att := &attempt{id: uuid.NewString(), mode: ModeQr, out: newOutcome()}
	c.attempt = att
	deadline := q.createdAt.Add(c.cfg.QrFreshness)
	c.mu.Unlock()

	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	res, err := q.session.PollResult(pollCtx)
	if err != nil {
		reason := ReasonConnectionLost
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			reason = ReasonTimeout
		}
		return c.failAttempt(att, reason), nil
	}

	c.mu.Lock()
	att.logon = steam.LogOnDetails{AccountName: res.AccountName, AccessToken: res.RefreshToken}
	att.state = stateAuthenticating
	connected := c.client.IsConnected()
	att.connected = connected
	c.mu.Unlock()

	if connected {
		c.client.LogOn(att.logon)
	} else {
		// Connection dropped since the challenge was generated; the
		// on-connect handler submits the logon once re-established.
		c.client.Connect()
	}
	return c.await(ctx, att)
}

// SubmitTwoFactorCode continues a credential attempt that stopped at a guard
// challenge. It re-arms the same attempt with the supplied code and repeats
// the connection cycle; the new wait resolves with that attempt's outcome.
func (c *Coordinator) SubmitTwoFactorCode(ctx context.Context, code string) (LoginResult, error) {
	c.mu.Lock()
	att := c.attempt
	if att == nil || att.mode != ModeCredentials || att.state != stateAwaitingSecondFactor {
		c.mu.Unlock()
		return LoginResult{}, ErrNoGuardChallenge
	}
	if att.guard == steam.StatusGuardEmailRequired {
		att.creds.AuthCode = code
	} else {
		att.creds.TwoFactorCode = code
	}
	att.state = stateConnecting
	att.connected = false
	att.out = newOutcome()
	c.session.setConn(ConnConnecting)
	c.mu.Unlock()

	c.log.Info().
		Str(xvlog.FieldAttemptID, att.id).
		Str(xvlog.FieldLoginMode, att.mode.String()).
		Msg("resuming login attempt with second factor")

	c.client.Connect()
	return c.await(ctx, att)
}

// Logout tears the session down if one exists. It reports whether a session
// was actually torn down, so a second call in a row returns false.
func (c *Coordinator) Logout() bool {
	if !c.session.LoggedIn() {
		return false
	}
	c.log.Info().Uint64(xvlog.FieldSteamID, uint64(c.session.SteamID())).Msg("logging out")
	c.client.Disconnect()
	c.session.reset()
	c.mu.Lock()
	c.reconnecting = false
	c.mu.Unlock()
	return true
}

// install registers att as the current attempt, rejecting concurrent flows.
func (c *Coordinator) install(att *attempt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt != nil {
		return ErrLoginInProgress
	}
	c.attempt = att
	c.session.setConn(ConnConnecting)
	return nil
}

// await blocks until the attempt resolves, converting a local timeout into a
// terminal failure so no later event can re-resolve the attempt.
func (c *Coordinator) await(ctx context.Context, att *attempt) (LoginResult, error) {
	res, gaveUp := att.out.wait(ctx, c.cfg.LoginTimeout)
	if gaveUp {
		res = c.failAttempt(att, ReasonTimeout)
	}
	metrics.RecordLoginAttempt(att.mode.String(), res.Success)
	if !res.Success {
		metrics.RecordLoginFailure(att.mode.String(), res.Reason.String())
	}
	return res, nil
}

// failAttempt resolves att as failed and clears it if still current. When a
// terminal event won the race, the event's result is returned instead.
func (c *Coordinator) failAttempt(att *attempt, reason FailureReason) LoginResult {
	res := LoginResult{Reason: reason}
	if !att.out.resolve(res) {
		return att.out.result()
	}
	c.mu.Lock()
	if c.attempt == att {
		c.attempt = nil
	}
	c.mu.Unlock()
	c.log.Warn().
		Str(xvlog.FieldAttemptID, att.id).
		Str(xvlog.FieldLoginMode, att.mode.String()).
		Str(xvlog.FieldReason, reason.String()).
		Msg("login attempt failed")
	return res
}

// handleConnected runs on the dispatch loop when the transport comes up.
// For token-based attempts it submits the logon directly; for credential
// attempts it starts the poll exchange off-loop so the loop stays free.
func (c *Coordinator) handleConnected() {
	c.mu.Lock()
	c.session.setConn(ConnConnected)
	c.reconnecting = false
	for _, ch := range c.connWaiters {
		close(ch)
	}
	c.connWaiters = nil

	att := c.attempt
	if att == nil {
		c.mu.Unlock()
		return
	}
	att.connected = true
	att.state = stateAuthenticating
	mode := att.mode
	logon := att.logon
	c.mu.Unlock()

	switch mode {
	case ModeSessionToken, ModeQr:
		if logon.AccessToken != "" {
			c.client.LogOn(logon)
		}
	case ModeCredentials:
		go c.runCredentialExchange(att)
	}
}

// runCredentialExchange performs the blocking credential auth session poll
// and submits the resulting token logon. Any failure resolves the attempt.
func (c *Coordinator) runCredentialExchange(att *attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LoginTimeout)
	defer cancel()

	c.mu.Lock()
	creds := att.creds
	c.mu.Unlock()

	sess, err := c.client.BeginCredentialSession(ctx, creds)
	if err != nil {
		c.log.Warn().Err(err).Str(xvlog.FieldAttemptID, att.id).Msg("credential auth session rejected")
		c.failAttempt(att, ReasonUnknown)
		return
	}
	res, err := sess.PollResult(ctx)
	if err != nil {
		reason := ReasonUnknown
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		c.log.Warn().Err(err).Str(xvlog.FieldAttemptID, att.id).Msg("credential auth poll failed")
		c.failAttempt(att, reason)
		return
	}

	c.mu.Lock()
	att.logon = steam.LogOnDetails{AccountName: res.AccountName, AccessToken: res.RefreshToken}
	logon := att.logon
	c.mu.Unlock()

	c.client.LogOn(logon)
}

// handleLogOn translates the terminal login event into the pending outcome.
// Results arriving before a Connected event for the attempt are stale
// leftovers of a superseded attempt and are dropped.
func (c *Coordinator) handleLogOn(ev steam.LogOnEvent) {
	c.mu.Lock()
	att := c.attempt
	if att == nil || !att.connected {
		c.mu.Unlock()
		c.log.Debug().
			Str(xvlog.FieldStatus, ev.Status.String()).
			Msg("ignoring login result with no tracked attempt")
		return
	}

	if ev.Status == steam.StatusOK {
		c.session.logOn(ev.SteamID, att.logon.AccessToken)
		c.attempt = nil
		att.creds = steam.CredentialDetails{}
		c.mu.Unlock()

		c.log.Info().
			Str(xvlog.FieldAttemptID, att.id).
			Str(xvlog.FieldLoginMode, att.mode.String()).
			Uint64(xvlog.FieldSteamID, uint64(ev.SteamID)).
			Msg("login succeeded")

		// Warm the persona cache right away, as a logged-on client would.
		c.client.RequestProfileInfo(ev.SteamID)
		att.out.resolve(LoginResult{Success: true})
		return
	}

	if ev.Status.GuardRequired() && att.mode == ModeCredentials {
		att.state = stateAwaitingSecondFactor
		att.guard = ev.Status
		reason := ReasonTwoFactorRequired
		if ev.Status == steam.StatusGuardEmailRequired {
			reason = ReasonGuardEmailRequired
		}
		out := att.out
		c.mu.Unlock()

		c.log.Info().
			Str(xvlog.FieldAttemptID, att.id).
			Str(xvlog.FieldStatus, ev.Status.String()).
			Msg("guard challenge required, attempt retained")
		out.resolve(LoginResult{Reason: reason})
		return
	}

	c.attempt = nil
	att.creds = steam.CredentialDetails{}
	c.mu.Unlock()

	reason := mapStatus(ev.Status)
	c.log.Warn().
		Str(xvlog.FieldAttemptID, att.id).
		Str(xvlog.FieldStatus, ev.Status.String()).
		Str(xvlog.FieldReason, reason.String()).
		Msg("login rejected")
	att.out.resolve(LoginResult{Reason: reason})
}

func (c *Coordinator) handleLogOff(ev steam.LogOffEvent) {
	c.log.Info().Str(xvlog.FieldStatus, ev.Status.String()).Msg("logged off by remote")
	c.session.reset()
}

// handleDisconnected resolves any pending non-guard attempt as a connection
// loss. An authenticated session triggers the reconnect-once policy.
func (c *Coordinator) handleDisconnected(ev steam.DisconnectedEvent) {
	c.mu.Lock()
	wasLoggedIn := c.session.LoggedIn()
	c.session.reset()

	att := c.attempt
	if att != nil && att.state == stateAwaitingSecondFactor {
		// Expected after a guard rejection; the attempt stays parked until
		// the caller supplies a code.
		att = nil
	} else if att != nil {
		c.attempt = nil
	}

	retry := wasLoggedIn && !ev.UserInitiated && !c.reconnecting
	if retry {
		c.reconnecting = true
	} else if c.reconnecting {
		c.reconnecting = false
	}
	c.mu.Unlock()

	if att != nil {
		c.log.Warn().
			Str(xvlog.FieldAttemptID, att.id).
			Str(xvlog.FieldLoginMode, att.mode.String()).
			Msg("disconnected during login attempt")
		att.out.resolve(LoginResult{Reason: ReasonConnectionLost})
	}

	if retry {
		c.log.Info().Msg("authenticated session lost, reconnecting once")
		c.client.Connect()
	} else if !ev.UserInitiated {
		c.log.Info().Str(xvlog.FieldNewState, ConnDisconnected.String()).Msg("disconnected")
	}
}

// waitForConnection connects and blocks until a Connected event or timeout.
func (c *Coordinator) waitForConnection(ctx context.Context) error {
	ch := make(chan struct{})
	c.mu.Lock()
	c.connWaiters = append(c.connWaiters, ch)
	c.mu.Unlock()

	c.client.Connect()

	timer := time.NewTimer(c.cfg.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrConnectTimeout
	}
}

// expireQr marks the challenge stale once its freshness window lapses.
// A superseded challenge's timer was stopped, but a late fire is harmless
// because only the current challenge is ever marked.
func (c *Coordinator) expireQr(q *qrChallenge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.qr == q {
		q.expired = true
		c.log.Info().Str(xvlog.FieldEvent, "qr.expired").Msg("QR challenge expired, a new one must be generated")
	}
}

func mapStatus(s steam.Status) FailureReason {
	switch s {
	case steam.StatusInvalidPassword:
		return ReasonInvalidCredentials
	case steam.StatusGuardEmailRequired:
		return ReasonGuardEmailRequired
	case steam.StatusTwoFactorRequired:
		return ReasonTwoFactorRequired
	case steam.StatusAccessDenied:
		return ReasonAccessDenied
	case steam.StatusTimeout:
		return ReasonTimeout
	case steam.StatusServiceUnavailable:
		return ReasonConnectionLost
	default:
		return ReasonUnknown
	}
}
