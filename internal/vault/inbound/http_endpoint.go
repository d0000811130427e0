package inbound

import (
	"strconv"

	"github.com/samber/lo"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/router"
	stepupinbound "github.com/shandysiswandi/govault/internal/stepup/inbound"
	"github.com/shandysiswandi/govault/internal/vault/usecase"
)

const (
	headerDeviceID       = "X-Device-ID"
	headerOTPCode        = "X-OTP-Code"
	headerIdempotencyKey = "Idempotency-Key"
)

// HTTPEndpoint exposes the credential vault. Reads of secret material go through step-up.
type HTTPEndpoint struct {
	uc uc
}

func toResponse(c usecase.CredentialOutput) CredentialResponse {
	return CredentialResponse{
		ID:        strconv.FormatInt(c.ID, 10),
		Name:      c.Name,
		Username:  c.Username,
		URL:       c.URL,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
	}
}

func caller(r *router.Request) (*jwt.Claims, error) {
	clm := jwt.GetAuth(r.Context())
	if clm == nil {
		return nil, goerror.NewBusiness("Unauthorized", goerror.CodeUnauthorized)
	}
	return clm, nil
}

func gate(r *router.Request, clm *jwt.Claims, deviceID, code string) usecase.Gate {
	return usecase.Gate{
		UserID:    clm.UserID,
		Email:     clm.UserEmail,
		DeviceID:  deviceID,
		Code:      code,
		IPAddress: r.ClientIP(),
		UserAgent: r.UserAgent(),
	}
}

// Create stores a new credential.
func (h *HTTPEndpoint) Create(r *router.Request) (any, error) {
	clm, err := caller(r)
	if err != nil {
		return nil, err
	}

	var req CreateCredentialRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.CreateCredential(r.Context(), usecase.CreateInput{
		UserID:   clm.UserID,
		Name:     req.Name,
		Username: req.Username,
		URL:      req.URL,
		Password: req.Password,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, err
	}

	return CreateCredentialResponse{toResponse(*out)}, nil
}

// List returns the caller's credentials without secrets.
func (h *HTTPEndpoint) List(r *router.Request) (any, error) {
	clm, err := caller(r)
	if err != nil {
		return nil, err
	}

	items, err := h.uc.ListCredentials(r.Context(), clm.UserID)
	if err != nil {
		return nil, err
	}

	return ListCredentialsResponse{Items: lo.Map(items, func(c usecase.CredentialOutput, _ int) CredentialResponse {
		return toResponse(c)
	})}, nil
}

// Copy returns the plaintext password once a copy_password grant exists.
func (h *HTTPEndpoint) Copy(r *router.Request) (any, error) {
	clm, err := caller(r)
	if err != nil {
		return nil, err
	}

	id, err := r.GetParamInt64("id")
	if err != nil {
		return nil, err
	}

	var req CopyPasswordRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.CopyPassword(r.Context(), usecase.CopyInput{
		Gate:         gate(r, clm, req.DeviceID, req.Code),
		CredentialID: id,
	})
	if err != nil {
		return nil, stepupinbound.MapError(err)
	}

	return CopyPasswordResponse{Password: out.Password}, nil
}

// Delete removes a credential once a delete_credential grant exists.
func (h *HTTPEndpoint) Delete(r *router.Request) (any, error) {
	clm, err := caller(r)
	if err != nil {
		return nil, err
	}

	id, err := r.GetParamInt64("id")
	if err != nil {
		return nil, err
	}

	err = h.uc.DeleteCredential(r.Context(), usecase.DeleteInput{
		Gate:         gate(r, clm, r.Header.Get(headerDeviceID), r.Header.Get(headerOTPCode)),
		CredentialID: id,
	})
	if err != nil {
		return nil, stepupinbound.MapError(err)
	}

	return DeleteCredentialResponse{}, nil
}

// Export writes the decrypted vault to object storage and returns a download link.
func (h *HTTPEndpoint) Export(r *router.Request) (any, error) {
	clm, err := caller(r)
	if err != nil {
		return nil, err
	}

	var req ExportRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.ExportVault(r.Context(), usecase.ExportInput{
		Gate:           gate(r, clm, req.DeviceID, req.Code),
		IdempotencyKey: r.Header.Get(headerIdempotencyKey),
	})
	if err != nil {
		return nil, stepupinbound.MapError(err)
	}

	return ExportResponse{
		Key:       out.Key,
		URL:       out.URL,
		Count:     out.Count,
		ExpiresAt: out.ExpiresAt,
		Replayed:  out.Replayed,
	}, nil
}
