package inbound

import (
	"errors"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

// ResultError maps a decision to the transport error clients see. Messages are
// uniform per class; the reason field carries the precise code.
func ResultError(res entity.Result) error {
	if res.Authorized() {
		return nil
	}

	var err error
	switch res.Reason {
	case entity.ReasonChallengeNotFoundOrExpired:
		err = goerror.NewBusiness("2FA required", goerror.CodeUnauthorized)
	case entity.ReasonUnauthenticated:
		err = goerror.NewBusiness("Unauthorized", goerror.CodeUnauthorized)
	case entity.ReasonInvalidCode, entity.ReasonFingerprintMismatch:
		err = goerror.NewBusiness("Invalid code", goerror.CodeForbidden)
	case entity.ReasonSecretMissing:
		err = goerror.NewBusiness("2FA setup required", goerror.CodeConflict)
	case entity.ReasonMalformedRequest:
		err = goerror.NewInvalidFormat()
	case entity.ReasonTooManyAttempts:
		err = goerror.NewBusiness("Too many attempts, try again later", goerror.CodeTooManyRequest)
	case entity.ReasonUnavailable:
		err = goerror.NewBusiness("Service temporarily unavailable, try again", goerror.CodeUnavailable)
	default:
		err = goerror.NewBusiness("Unauthorized", goerror.CodeUnauthorized)
	}

	return goerror.WithReason(err, res.Reason.String())
}

// MapError converts a *entity.DenialError anywhere in err's chain and passes
// everything else through untouched.
func MapError(err error) error {
	var denial *entity.DenialError
	if errors.As(err, &denial) {
		return ResultError(denial.Result)
	}
	return err
}
