package inbound

import (
	"net/http"
	"time"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type UserResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	TwoFAEnabled bool   `json:"twofa_enabled"`
}

type RegisterResponse struct {
	UserResponse
}

func (RegisterResponse) Message() string {
	return "Registration successful"
}

func (RegisterResponse) StatusCode() int {
	return http.StatusCreated
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	PreSessionToken string    `json:"pre_session_token"`
	ExpiresAt       time.Time `json:"expires_at"`
	TwoFAEnabled    bool      `json:"twofa_enabled"`
	SetupRequired   bool      `json:"setup_required"`
}

func (LoginResponse) Message() string {
	return "Password accepted, 2FA required"
}

type LogoutResponse struct{}

func (LogoutResponse) Message() string {
	return "Logged out"
}

type TwoFASetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

func (TwoFASetupResponse) Message() string {
	return "Scan the QR code, then verify a code to finish enrollment"
}
