package inbound

import (
	"context"

	"github.com/shandysiswandi/govault/internal/pkg/router"
	"github.com/shandysiswandi/govault/internal/vault/usecase"
)

type uc interface {
	CreateCredential(ctx context.Context, in usecase.CreateInput) (*usecase.CredentialOutput, error)
	ListCredentials(ctx context.Context, userID int64) ([]usecase.CredentialOutput, error)
	CopyPassword(ctx context.Context, in usecase.CopyInput) (*usecase.CopyOutput, error)
	DeleteCredential(ctx context.Context, in usecase.DeleteInput) error
	ExportVault(ctx context.Context, in usecase.ExportInput) (*usecase.ExportOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/vault/credentials", end.Create)
	r.GET("/api/v1/vault/credentials", end.List)

	// step-up gated
	r.POST("/api/v1/vault/credentials/:id/copy", end.Copy)
	r.DELETE("/api/v1/vault/credentials/:id", end.Delete)
	r.POST("/api/v1/vault/exports", end.Export, r.Authorize("vault.exports", "create"))
}
