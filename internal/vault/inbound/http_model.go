package inbound

import (
	"net/http"
	"time"
)

type CreateCredentialRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	URL      string `json:"url"`
	Password string `json:"password"`
	Notes    string `json:"notes"`
}

type CredentialResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	URL       string    `json:"url"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCredentialResponse struct {
	CredentialResponse
}

func (CreateCredentialResponse) Message() string {
	return "Credential saved"
}

func (CreateCredentialResponse) StatusCode() int {
	return http.StatusCreated
}

type ListCredentialsResponse struct {
	Items []CredentialResponse `json:"items"`
}

func (r ListCredentialsResponse) Meta() map[string]any {
	return map[string]any{"total": len(r.Items)}
}

type CopyPasswordRequest struct {
	DeviceID string `json:"device_id"`
	Code     string `json:"code,omitempty"`
}

type CopyPasswordResponse struct {
	Password string `json:"password"`
}

type DeleteCredentialResponse struct{}

func (DeleteCredentialResponse) Message() string {
	return "Credential deleted"
}

type ExportRequest struct {
	DeviceID string `json:"device_id"`
	Code     string `json:"code,omitempty"`
}

type ExportResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
	Replayed  bool      `json:"replayed"`
}

func (ExportResponse) Message() string {
	return "Vault export ready"
}
