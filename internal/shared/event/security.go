package event

import "time"

const SecurityEventDestination string = "security_event"
const SecurityEventConsumerAlert string = "security_event_alert"

// HeaderCorrelationID carries the publisher's correlation id to consumers.
const HeaderCorrelationID string = "cID"

// SecurityEventType names what happened. Consumers ignore types they do not know.
type SecurityEventType string

const (
	SecurityEventTwoFAActivated      SecurityEventType = "twofa_activated"
	SecurityEventTwoFAReset          SecurityEventType = "twofa_reset"
	SecurityEventNewLogin            SecurityEventType = "new_login"
	SecurityEventFingerprintMismatch SecurityEventType = "fingerprint_mismatch"
	SecurityEventTooManyAttempts     SecurityEventType = "too_many_attempts"
	SecurityEventCodeReplay          SecurityEventType = "code_replay"
	SecurityEventVaultExported       SecurityEventType = "vault_exported"
)

type SecurityEventMessage struct {
	Type       SecurityEventType `json:"type"`
	UserID     int64             `json:"user_id"`
	Email      string            `json:"email"`
	ActionType string            `json:"action_type,omitempty"`
	DeviceID   string            `json:"device_id,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
