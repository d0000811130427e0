package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/shared/event"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

func TestAuthorize_CodeThenGrantWithinTTL(t *testing.T) {
	h := newHarness(t, defaultTestConfig)

	res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t)))
	if !res.Authorized() {
		t.Fatalf("first call = %+v, want Authorized", res)
	}
	if h.db.count() != 1 {
		t.Fatalf("rows = %d, want 1", h.db.count())
	}

	h.clock.Advance(4 * time.Minute)

	res = mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", ""))
	if !res.Authorized() {
		t.Fatalf("follow-up = %+v, want Authorized", res)
	}
	if h.db.count() != 1 {
		t.Fatalf("follow-up must refresh in place, rows = %d", h.db.count())
	}
}

func TestAuthorize_ExpiresWithoutRefresh(t *testing.T) {
	h := newHarness(t, defaultTestConfig)

	if res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t))); !res.Authorized() {
		t.Fatalf("setup = %+v", res)
	}

	h.clock.Advance(5*time.Minute + time.Second)

	res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", ""))
	if res.Kind != entity.ResultRequiresVerification || res.Reason != entity.ReasonChallengeNotFoundOrExpired {
		t.Fatalf("got %+v, want RequiresVerification", res)
	}
}

func TestAuthorize_RefreshSlidesTheWindow(t *testing.T) {
	h := newHarness(t, defaultTestConfig)

	if res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeViewPassword, "dev-a", h.code(t))); !res.Authorized() {
		t.Fatalf("setup = %+v", res)
	}

	for range 3 {
		h.clock.Advance(4 * time.Minute)
		if res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeViewPassword, "dev-a", "")); !res.Authorized() {
			t.Fatalf("at %v = %+v, want Authorized", h.clock.Now(), res)
		}
	}
}

func TestAuthorize_GrantIsScopedToTheTuple(t *testing.T) {
	h := newHarness(t, defaultTestConfig)

	if res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t))); !res.Authorized() {
		t.Fatalf("setup = %+v", res)
	}

	tests := []struct {
		name string
		in   AuthorizeInput
	}{
		{name: "other action", in: sensitive(userWithSecret, entity.ActionTypeDeleteCredential, "dev-a", "")},
		{name: "other device", in: sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-b", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustAuthorize(t, h, tt.in)
			if res.Kind != entity.ResultRequiresVerification {
				t.Fatalf("got %+v, want RequiresVerification", res)
			}
		})
	}
}

func TestAuthorize_WrongCodeWritesNothing(t *testing.T) {
	h := newHarness(t, defaultTestConfig)

	res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.wrongCode(t)))
	if res.Kind != entity.ResultDenied || res.Reason != entity.ReasonInvalidCode || res.Retryable {
		t.Fatalf("got %+v, want Denied(invalid_code)", res)
	}
	if h.db.count() != 0 {
		t.Fatalf("rows = %d, want 0", h.db.count())
	}
}

func TestAuthorize_ConcurrentValidCodes(t *testing.T) {
	h := newHarness(t, defaultTestConfig)
	code := h.code(t)

	// both lookups miss before either request records its grant
	var barrier sync.WaitGroup
	barrier.Add(2)
	h.db.onFindMiss = func() {
		barrier.Done()
		barrier.Wait()
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []entity.Result
	)
	for range 2 {
		wg.Go(func() {
			res, err := h.uc.Authorize(context.Background(), sensitive(userWithSecret, entity.ActionTypeExportVault, "dev-a", code))
			if err != nil {
				t.Errorf("Authorize() error = %v", err)
				return
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		})
	}
	wg.Wait()

	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	for _, res := range results {
		if !res.Authorized() {
			t.Fatalf("got %+v, want both Authorized", results)
		}
	}
	if h.db.count() != 2 {
		t.Fatalf("rows = %d, want 2 duplicate live rows", h.db.count())
	}

	// duplicates stay usable: the next call reuses a grant without a code
	h.db.onFindMiss = nil
	if res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeExportVault, "dev-a", "")); !res.Authorized() {
		t.Fatalf("follow-up = %+v, want Authorized", res)
	}
	if h.db.count() != 2 {
		t.Fatalf("follow-up inserted a row, rows = %d", h.db.count())
	}
}

func TestAuthorize_RecordsGrantAfterClientLeaves(t *testing.T) {
	h := newHarness(t, defaultTestConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cache.onClaim = cancel

	res, err := h.uc.Authorize(ctx, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t)))
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("request context was not canceled during the code check")
	}
	if !res.Authorized() {
		t.Fatalf("got %+v, want Authorized", res)
	}
	if h.db.count() != 1 {
		t.Fatalf("rows = %d, want the grant written after cancel", h.db.count())
	}
}

func TestAuthorize_LoginGrantDoesNotCoverSensitive(t *testing.T) {
	h := newHarness(t, defaultTestConfig)
	h.sess.tokens["pre"] = preSessionFor(userWithSecret)

	out, err := h.uc.Verify(context.Background(), VerifyInput{
		Code:            h.code(t),
		DeviceID:        "dev-a",
		Context:         entity.ContextLogin,
		ActionType:      entity.ActionTypeLogin,
		PreSessionToken: "pre",
	})
	if err != nil || !out.Result.Authorized() {
		t.Fatalf("login = %+v, %v", out, err)
	}

	h.clock.Advance(4 * time.Minute)

	res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", ""))
	if res.Kind != entity.ResultRequiresVerification {
		t.Fatalf("got %+v, want RequiresVerification", res)
	}
}

func TestAuthorize_Scenario(t *testing.T) {
	h := newHarness(t, defaultTestConfig)
	in := sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", "")

	if res := mustAuthorize(t, h, in); res.Kind != entity.ResultRequiresVerification {
		t.Fatalf("step 1 = %+v, want RequiresVerification", res)
	}

	in.Code = h.wrongCode(t)
	if res := mustAuthorize(t, h, in); res.Reason != entity.ReasonInvalidCode {
		t.Fatalf("step 2 = %+v, want Denied(invalid_code)", res)
	}
	if h.db.count() != 0 {
		t.Fatalf("wrong code created %d rows", h.db.count())
	}

	in.Code = h.code(t)
	res := mustAuthorize(t, h, in)
	if !res.Authorized() {
		t.Fatalf("step 3 = %+v, want Authorized", res)
	}
	want := h.clock.Now().Add(5 * time.Minute)
	if got := res.Challenge.ExpiresAt; !got.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", got, want)
	}
}

func TestAuthorize_Denials(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		h := newHarness(t, defaultTestConfig)
		res := mustAuthorize(t, h, sensitive(404, entity.ActionTypeCopyPassword, "dev-a", ""))
		if res.Reason != entity.ReasonUnauthenticated {
			t.Fatalf("got %+v", res)
		}
	})

	t.Run("secret missing is not retryable", func(t *testing.T) {
		h := newHarness(t, defaultTestConfig)
		res := mustAuthorize(t, h, sensitive(userWithoutSecret, entity.ActionTypeCopyPassword, "dev-a", "123456"))
		if res.Reason != entity.ReasonSecretMissing || res.Retryable {
			t.Fatalf("got %+v", res)
		}
	})

	t.Run("ledger down fails closed", func(t *testing.T) {
		h := newHarness(t, defaultTestConfig)
		h.db.failFind = errDown
		res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t)))
		if res.Authorized() || res.Reason != entity.ReasonUnavailable || !res.Retryable {
			t.Fatalf("got %+v", res)
		}
	})

	t.Run("ledger write failure fails closed", func(t *testing.T) {
		h := newHarness(t, defaultTestConfig)
		h.db.failCreate = errDown
		res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t)))
		if res.Authorized() || res.Reason != entity.ReasonUnavailable || !res.Retryable {
			t.Fatalf("got %+v", res)
		}
	})

	t.Run("limiter down fails closed", func(t *testing.T) {
		h := newHarness(t, defaultTestConfig)
		h.cache.fail = errDown
		res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t)))
		if res.Reason != entity.ReasonUnavailable {
			t.Fatalf("got %+v", res)
		}
	})

	t.Run("too many attempts", func(t *testing.T) {
		h := newHarness(t, defaultTestConfig)
		in := sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.wrongCode(t))
		for range 5 {
			mustAuthorize(t, h, in)
		}

		in.Code = h.code(t)
		res := mustAuthorize(t, h, in)
		if res.Reason != entity.ReasonTooManyAttempts || !res.Retryable {
			t.Fatalf("got %+v", res)
		}

		events := h.publishedEvents(t)
		if len(events) == 0 || events[len(events)-1].Type != event.SecurityEventTooManyAttempts {
			t.Fatalf("events = %+v", events)
		}
	})
}

func TestAuthorize_MalformedInput(t *testing.T) {
	h := newHarness(t, defaultTestConfig)

	tests := []struct {
		name string
		in   AuthorizeInput
	}{
		{name: "short code", in: sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", "123")},
		{name: "negative code", in: sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", "-12345")},
		{name: "signed code", in: sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", "+12345")},
		{name: "decimal code", in: sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", "1.2345")},
		{name: "unknown action", in: sensitive(userWithSecret, entity.ActionType("drop_table"), "dev-a", "")},
		{name: "missing device", in: sensitive(userWithSecret, entity.ActionTypeCopyPassword, "", "")},
		{name: "login action in sensitive context", in: sensitive(userWithSecret, entity.ActionTypeLogin, "dev-a", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.uc.Authorize(context.Background(), tt.in)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if code := err.(*goerror.Error).Code(); code != goerror.CodeInvalidInput {
				t.Fatalf("code = %v", code)
			}
			if res.Authorized() || res.Reason != entity.ReasonMalformedRequest {
				t.Fatalf("result = %+v, want Denied(malformed_request)", res)
			}
		})
	}

	if n := h.cache.attempts[userWithSecret]; n != 0 {
		t.Fatalf("malformed codes spent %d attempts", n)
	}
}

func TestAuthorize_ReplayedCode(t *testing.T) {
	h := newHarness(t, defaultTestConfig)
	code := h.code(t)

	if res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", code)); !res.Authorized() {
		t.Fatalf("first use = %+v", res)
	}

	res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeExportVault, "dev-a", code))
	if res.Reason != entity.ReasonInvalidCode {
		t.Fatalf("replay for another action = %+v, want Denied(invalid_code)", res)
	}

	events := h.publishedEvents(t)
	if len(events) != 1 || events[0].Type != event.SecurityEventCodeReplay {
		t.Fatalf("events = %+v", events)
	}
}

func TestAuthorize_ReplayAllowedWhenConfigured(t *testing.T) {
	h := newHarness(t, "modules:\n  stepup:\n    allow_code_reuse: true\n")
	code := h.code(t)

	mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", code))
	if res := mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeExportVault, "dev-a", code)); !res.Authorized() {
		t.Fatalf("got %+v, want Authorized", res)
	}
}

func TestAuthorize_Fingerprint(t *testing.T) {
	moved := func(in AuthorizeInput) AuthorizeInput {
		in.Environment = entity.Environment{IPAddress: "203.0.113.9", UserAgent: "vault-cli/1.0"}
		return in
	}

	t.Run("soft by default", func(t *testing.T) {
		h := newHarness(t, defaultTestConfig)
		mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t)))

		res := mustAuthorize(t, h, moved(sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", "")))
		if !res.Authorized() {
			t.Fatalf("got %+v, want Authorized", res)
		}

		events := h.publishedEvents(t)
		if len(events) != 1 || events[0].Type != event.SecurityEventFingerprintMismatch {
			t.Fatalf("events = %+v", events)
		}
	})

	t.Run("enforced by policy", func(t *testing.T) {
		h := newHarness(t, "modules:\n  stepup:\n    fingerprint_enforce: true\n")
		mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t)))

		res := mustAuthorize(t, h, moved(sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", "")))
		if res.Reason != entity.ReasonFingerprintMismatch {
			t.Fatalf("got %+v, want Denied(fingerprint_mismatch)", res)
		}
	})

	t.Run("unknown environment never mismatches", func(t *testing.T) {
		h := newHarness(t, "modules:\n  stepup:\n    fingerprint_enforce: true\n")
		mustAuthorize(t, h, sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", h.code(t)))

		in := sensitive(userWithSecret, entity.ActionTypeCopyPassword, "dev-a", "")
		in.Environment = entity.Environment{}
		if res := mustAuthorize(t, h, in); !res.Authorized() {
			t.Fatalf("got %+v, want Authorized", res)
		}
	})
}
