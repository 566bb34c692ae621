// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"sync"
	"time"
)

// FailureReason classifies terminal login failures for callers one level up.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonInvalidCredentials
	ReasonGuardEmailRequired
	ReasonTwoFactorRequired
	ReasonAccessDenied
	ReasonConnectionLost
	ReasonTimeout
	ReasonMalformedSession
	ReasonUnknown
)

var reasonNames = map[FailureReason]string{
	ReasonNone:               "",
	ReasonInvalidCredentials: "invalid_credentials",
	ReasonGuardEmailRequired: "guard_email_required",
	ReasonTwoFactorRequired:  "two_factor_required",
	ReasonAccessDenied:       "access_denied",
	ReasonConnectionLost:     "connection_lost",
	ReasonTimeout:            "timeout",
	ReasonMalformedSession:   "malformed_session_payload",
	ReasonUnknown:            "unknown",
}

func (r FailureReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// LoginResult is the terminal outcome of one login attempt.
type LoginResult struct {
	Success bool
	Reason  FailureReason
}

// outcome is a single-resolution future bridged from the event-handler side.
// Multiple goroutines may wait on it; exactly one resolution wins and
// duplicate resolutions are no-ops.
type outcome struct {
	once sync.Once
	done chan struct{}
	res  LoginResult
}

func newOutcome() *outcome {
	return &outcome{done: make(chan struct{})}
}

// resolve stores the result exactly once. It reports whether this call won.
func (o *outcome) resolve(res LoginResult) bool {
	won := false
	o.once.Do(func() {
		o.res = res
		won = true
		close(o.done)
	})
	return won
}

// result returns the stored result; valid only after done is closed.
func (o *outcome) result() LoginResult {
	<-o.done
	return o.res
}

// wait blocks until resolution, context cancellation, or the timeout.
// The boolean reports whether the wait gave up before a resolution arrived.
func (o *outcome) wait(ctx context.Context, timeout time.Duration) (LoginResult, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-o.done:
		return o.res, false
	case <-ctx.Done():
		return LoginResult{Reason: ReasonTimeout}, true
	case <-timer.C:
		return LoginResult{Reason: ReasonTimeout}, true
	}
}
