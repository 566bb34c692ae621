// SPDX-License-Identifier: MIT

package steam

// Status is the result code attached to logon events. The values mirror the
// subset of remote result codes the orchestrator distinguishes; everything
// else collapses to StatusUnknown.
type Status int

const (
	StatusUnknown Status = iota
	StatusOK
	StatusInvalidPassword
	StatusGuardEmailRequired // account protected by Steam Guard email
	StatusTwoFactorRequired  // account protected by the mobile authenticator
	StatusAccessDenied       // expired or invalid bearer token
	StatusTimeout
	StatusServiceUnavailable
)

var statusNames = map[Status]string{
	StatusUnknown:            "unknown",
	StatusOK:                 "ok",
	StatusInvalidPassword:    "invalid_password",
	StatusGuardEmailRequired: "guard_email_required",
	StatusTwoFactorRequired:  "two_factor_required",
	StatusAccessDenied:       "access_denied",
	StatusTimeout:            "timeout",
	StatusServiceUnavailable: "service_unavailable",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// GuardRequired reports whether the status demands a second factor before
// logon can complete.
func (s Status) GuardRequired() bool {
	return s == StatusGuardEmailRequired || s == StatusTwoFactorRequired
}
