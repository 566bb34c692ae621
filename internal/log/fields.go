package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSteamID   = "steam_id"
	FieldAttemptID = "attempt_id"
	FieldRequestID = "request_id"
	FieldAccount   = "account"
	FieldPersona   = "persona"

	// Auth flow fields
	FieldLoginMode = "login_mode"
	FieldStatus    = "status"
	FieldReason    = "reason"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Inventory fields
	FieldTier      = "tier"
	FieldEndpoint  = "endpoint"
	FieldAppID     = "app_id"
	FieldContextID = "context_id"
	FieldItemCount = "item_count"
	FieldAttempt   = "attempt"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
)
