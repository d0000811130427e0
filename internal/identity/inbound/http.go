package inbound

import (
	"context"

	"github.com/shandysiswandi/govault/internal/identity/usecase"
	"github.com/shandysiswandi/govault/internal/pkg/router"
)

type uc interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.RegisterOutput, error)
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*usecase.ProfileOutput, error)
	TwoFASetup(ctx context.Context, in usecase.TwoFASetupInput) (*usecase.TwoFASetupOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/identity/register", end.Register)
	r.POST("/api/v1/identity/login", end.Login)
	r.POST("/api/v1/identity/logout", end.Logout) // need authenticated

	r.GET("/api/v1/identity/profile", end.Profile) // need authenticated

	// Bearer or pre-session
	r.POST("/api/v1/identity/2fa/setup", end.TwoFASetup)
}
