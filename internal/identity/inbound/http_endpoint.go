package inbound

import (
	"encoding/base64"
	"strconv"

	"github.com/shandysiswandi/govault/internal/identity/usecase"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/router"
	stepupinbound "github.com/shandysiswandi/govault/internal/stepup/inbound"
)

const (
	headerPreSessionToken = "X-PreSession-Token"
	headerDeviceID        = "X-Device-ID"
	headerOTPCode         = "X-OTP-Code"
)

// HTTPEndpoint exposes HTTP handlers for registration, password login and 2FA enrollment.
type HTTPEndpoint struct {
	uc uc
}

// Register creates a new user account.
func (h *HTTPEndpoint) Register(r *router.Request) (any, error) {
	var req RegisterRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Register(r.Context(), usecase.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return nil, err
	}

	return RegisterResponse{UserResponse{
		ID:       strconv.FormatInt(out.ID, 10),
		Email:    out.Email,
		FullName: out.FullName,
		Role:     out.Role,
	}}, nil
}

// Login checks the password and returns a pre-session token for the second factor.
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return LoginResponse{
		PreSessionToken: out.PreSessionToken,
		ExpiresAt:       out.ExpiresAt,
		TwoFAEnabled:    out.TwoFAEnabled,
		SetupRequired:   out.SetupRequired,
	}, nil
}

// Logout revokes the current session token.
func (h *HTTPEndpoint) Logout(r *router.Request) (any, error) {
	if err := h.uc.Logout(r.Context()); err != nil {
		return nil, err
	}
	return LogoutResponse{}, nil
}

// Profile returns the authenticated user.
func (h *HTTPEndpoint) Profile(r *router.Request) (any, error) {
	out, err := h.uc.Profile(r.Context())
	if err != nil {
		return nil, err
	}

	return UserResponse{
		ID:           strconv.FormatInt(out.ID, 10),
		Email:        out.Email,
		FullName:     out.FullName,
		Role:         out.Role,
		TwoFAEnabled: out.TwoFAEnabled,
	}, nil
}

// TwoFASetup provisions a TOTP secret.
func (h *HTTPEndpoint) TwoFASetup(r *router.Request) (any, error) {
	in := usecase.TwoFASetupInput{
		PreSessionToken: r.Header.Get(headerPreSessionToken),
		DeviceID:        r.Header.Get(headerDeviceID),
		Code:            r.Header.Get(headerOTPCode),
		IPAddress:       r.ClientIP(),
		UserAgent:       r.UserAgent(),
	}
	if clm := jwt.GetAuth(r.Context()); clm != nil {
		in.SessionUserID = clm.UserID
	}

	out, err := h.uc.TwoFASetup(r.Context(), in)
	if err != nil {
		return nil, stepupinbound.MapError(err)
	}

	return TwoFASetupResponse{
		Secret:     out.Secret,
		OTPAuthURL: out.URI,
		QRCode:     base64.StdEncoding.EncodeToString(out.QRCode),
	}, nil
}
