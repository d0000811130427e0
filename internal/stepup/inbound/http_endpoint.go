package inbound

import (
	"errors"
	"strconv"

	"github.com/samber/lo"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/router"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
	"github.com/shandysiswandi/govault/internal/stepup/usecase"
)

const headerPreSessionToken = "X-PreSession-Token"

// HTTPEndpoint exposes the step-up verification protocol over HTTP.
type HTTPEndpoint struct {
	uc uc
}

// malformed tags request shape errors with the malformed_request reason.
func malformed(err error) error {
	var gerr *goerror.Error
	if errors.As(err, &gerr) && gerr.Type() == goerror.TypeValidation {
		return goerror.WithReason(err, entity.ReasonMalformedRequest.String())
	}
	return err
}

func environment(r *router.Request) entity.Environment {
	return entity.Environment{IPAddress: r.ClientIP(), UserAgent: r.UserAgent()}
}

// Verify submits a TOTP code for the login or the sensitive context.
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, malformed(err)
	}

	token := r.Header.Get(headerPreSessionToken)
	if token == "" {
		token = req.PreSessionToken
	}

	var sessionUserID int64
	if clm := jwt.GetAuth(r.Context()); clm != nil {
		sessionUserID = clm.UserID
	}

	out, err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Code:            req.Code,
		DeviceID:        req.DeviceID,
		Context:         entity.Context(req.Context),
		ActionType:      entity.ActionType(req.ActionType),
		PreSessionToken: token,
		SessionUserID:   sessionUserID,
		Environment:     environment(r),
	})
	if err != nil {
		return nil, malformed(err)
	}
	if !out.Result.Authorized() {
		return nil, ResultError(out.Result)
	}

	resp := VerifyResponse{Success: true, ActionType: req.ActionType}
	if ch := out.Result.Challenge; ch != nil {
		resp.ExpiresAt = lo.ToPtr(ch.ExpiresAt)
	}
	if s := out.Session; s != nil {
		resp.AccessToken = s.AccessToken
		resp.TokenExpiry = lo.ToPtr(s.ExpiresAt)
		resp.CSRFToken = s.CSRFToken
	}

	return resp, nil
}

// CheckAction reports whether a live grant covers the action without a code.
func (h *HTTPEndpoint) CheckAction(r *router.Request) (any, error) {
	clm := jwt.GetAuth(r.Context())
	if clm == nil {
		return nil, ResultError(entity.Denied(entity.ReasonUnauthenticated))
	}

	var req CheckActionRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, malformed(err)
	}

	res, err := h.uc.CheckAction(r.Context(), usecase.CheckActionInput{
		UserID:      clm.UserID,
		DeviceID:    req.DeviceID,
		ActionType:  entity.ActionType(req.ActionType),
		Environment: environment(r),
	})
	if err != nil {
		return nil, malformed(err)
	}
	if !res.Authorized() {
		return nil, ResultError(res)
	}

	resp := CheckActionResponse{Authorized: true}
	if res.Challenge != nil {
		resp.ExpiresAt = lo.ToPtr(res.Challenge.ExpiresAt)
	}
	return resp, nil
}

// ListChallenges returns the ledger history of one user.
func (h *HTTPEndpoint) ListChallenges(r *router.Request) (any, error) {
	userID, err := strconv.ParseInt(r.GetQuery("user_id"), 10, 64)
	if err != nil {
		return nil, goerror.NewInvalidFormat("user_id must be an integer")
	}

	limit, err := r.GetQueryInt("limit", 0)
	if err != nil {
		return nil, err
	}

	items, err := h.uc.ListChallenges(r.Context(), usecase.ListChallengesInput{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}

	return ListChallengesResponse{
		Items: lo.Map(items, func(c entity.Challenge, _ int) ChallengeResponse {
			return ChallengeResponse{
				ID:         strconv.FormatInt(c.ID, 10),
				ActionType: c.Key.ActionType.String(),
				Context:    c.Key.Context.String(),
				DeviceID:   c.Key.DeviceID,
				Method:     string(c.Method),
				IsVerified: c.IsVerified,
				VerifiedAt: c.VerifiedAt,
				ExpiresAt:  c.ExpiresAt,
				IPAddress:  c.Environment.IPAddress,
				UserAgent:  c.Environment.UserAgent,
				CreatedAt:  c.CreatedAt,
			}
		}),
		count: len(items),
	}, nil
}
