package inbound

import "time"

type VerifyRequest struct {
	Code            string `json:"code"`
	DeviceID        string `json:"deviceId"`
	Context         string `json:"context"`
	ActionType      string `json:"actionType"`
	PreSessionToken string `json:"pre_session_token,omitempty"`
}

type VerifyResponse struct {
	Success     bool       `json:"success"`
	ActionType  string     `json:"action_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	AccessToken string     `json:"access_token,omitempty"`
	TokenExpiry *time.Time `json:"token_expires_at,omitempty"`
	CSRFToken   string     `json:"csrf_token,omitempty"`
}

func (VerifyResponse) Message() string {
	return "2FA verified"
}

type CheckActionRequest struct {
	DeviceID   string `json:"device_id"`
	ActionType string `json:"action_type"`
}

type CheckActionResponse struct {
	Authorized bool       `json:"authorized"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type ChallengeResponse struct {
	ID         string     `json:"id"`
	ActionType string     `json:"action_type"`
	Context    string     `json:"context"`
	DeviceID   string     `json:"device_id"`
	Method     string     `json:"method"`
	IsVerified bool       `json:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ListChallengesResponse struct {
	Items []ChallengeResponse `json:"items"`
	count int
}

func (r ListChallengesResponse) Meta() map[string]any {
	return map[string]any{"count": r.count}
}
