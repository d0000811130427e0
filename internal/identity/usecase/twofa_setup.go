package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/shared/session"
	stepupentity "github.com/shandysiswandi/govault/internal/stepup/entity"
	stepupusecase "github.com/shandysiswandi/govault/internal/stepup/usecase"
)

const qrCodeSize = 256

// TwoFASetupInput identifies the caller either by a full session or, for
// first-time enrollment, by the pre-session token from the password step.
// Replacing an enabled factor also needs a disable_2fa grant for DeviceID,
// either already live or earned with Code.
type TwoFASetupInput struct {
	SessionUserID   int64
	PreSessionToken string
	DeviceID        string
	Code            string
	IPAddress       string
	UserAgent       string
}

type TwoFASetupOutput struct {
	Secret string
	URI    string
	QRCode []byte // PNG
}

// TwoFASetup provisions a fresh TOTP secret. The secret is stored sealed and
// 2FA stays in whatever state it was; the first verified login enables it.
func (s *Usecase) TwoFASetup(ctx context.Context, in TwoFASetupInput) (*TwoFASetupOutput, error) {
	ctx, span := s.startSpan(ctx, "TwoFASetup")
	defer span.End()

	userID, viaPreSession, err := s.setupCaller(ctx, in)
	if err != nil {
		return nil, err
	}

	user, err := s.repoDB.GetUserByID(ctx, userID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user account not found", "user_id", userID)
		return nil, goerror.NewBusiness("authentication required", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", userID, "error", err)
		return nil, goerror.NewServer(err)
	}

	// a password alone must not be able to replace an active second factor
	if viaPreSession && user.TwoFAEnabled {
		slog.WarnContext(ctx, "2fa setup with pre-session on enabled account", "user_id", user.ID)
		return nil, goerror.NewBusiness("2FA already enabled, sign in to reset it", goerror.CodeForbidden)
	}

	if user.TwoFAEnabled {
		if err := s.requireResetGrant(ctx, user.ID, in); err != nil {
			return nil, err
		}
	}

	secret, uri, err := s.totp.Generate(user.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	sealed, err := s.sealer.Seal([]byte(secret), sealer.Scope{UserID: user.ID, Purpose: sealer.PurposeOTPSeed})
	if err != nil {
		slog.ErrorContext(ctx, "failed to seal totp secret", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	qr, err := s.totp.QRCode(uri, qrCodeSize)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render totp qr code", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	if err := s.repoDB.UpdateTOTPSecret(ctx, user.ID, sealed, now); err != nil {
		slog.ErrorContext(ctx, "failed to repo update totp secret", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if user.TwoFAEnabled {
		ev := TwoFAResetEvent{
			UserID:     user.ID,
			Email:      user.Email,
			IPAddress:  in.IPAddress,
			UserAgent:  in.UserAgent,
			OccurredAt: now,
		}
		s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
			if err := s.repoMessaging.PublishTwoFAReset(ctx, ev); err != nil {
				slog.WarnContext(ctx, "failed to publish 2fa reset", "user_id", ev.UserID, "error", err)
			}
			return nil
		})
	}

	return &TwoFASetupOutput{Secret: secret, URI: uri, QRCode: qr}, nil
}

func (s *Usecase) setupCaller(ctx context.Context, in TwoFASetupInput) (int64, bool, error) {
	if in.SessionUserID > 0 {
		return in.SessionUserID, false, nil
	}

	if in.PreSessionToken == "" {
		return 0, false, goerror.NewBusiness("authentication required", goerror.CodeUnauthorized)
	}

	ps, err := s.session.PeekPreSession(ctx, in.PreSessionToken)
	if errors.Is(err, session.ErrPreSessionNotFound) || errors.Is(err, session.ErrEmptyToken) {
		return 0, false, goerror.NewBusiness("authentication required", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to peek pre-session", "error", err)
		return 0, false, goerror.NewServer(err)
	}

	return ps.UserID, true, nil
}

// requireResetGrant returns nil only when step-up authorizes disable_2fa.
// Denials come back as *stepupentity.DenialError.
func (s *Usecase) requireResetGrant(ctx context.Context, userID int64, in TwoFASetupInput) error {
	res, err := s.stepUp.Authorize(ctx, stepupusecase.AuthorizeInput{
		UserID:      userID,
		ActionType:  stepupentity.ActionTypeDisable2FA,
		Context:     stepupentity.ContextSensitive,
		DeviceID:    in.DeviceID,
		Code:        in.Code,
		Environment: stepupentity.Environment{IPAddress: in.IPAddress, UserAgent: in.UserAgent},
	})
	if err != nil {
		return err
	}
	if !res.Authorized() {
		slog.InfoContext(ctx, "2fa reset not authorized",
			"user_id", userID,
			"result", res.Kind.String(),
			"reason", res.Reason.String(),
		)
	}

	return res.Err()
}
