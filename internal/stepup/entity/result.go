package entity

// ResultKind is the outcome of an authorization decision.
type ResultKind int

const (
	ResultDenied ResultKind = iota
	ResultRequiresVerification
	ResultAuthorized
)

func (k ResultKind) String() string {
	switch k {
	case ResultAuthorized:
		return "authorized"
	case ResultRequiresVerification:
		return "requires_verification"
	default:
		return "denied"
	}
}

// Reason is the stable machine code surfaced next to a uniform client message.
type Reason string

const (
	ReasonNone                       Reason = ""
	ReasonUnauthenticated            Reason = "unauthenticated"
	ReasonChallengeNotFoundOrExpired Reason = "challenge_not_found_or_expired"
	ReasonInvalidCode                Reason = "invalid_code"
	ReasonSecretMissing              Reason = "secret_missing"
	ReasonMalformedRequest           Reason = "malformed_request"
	ReasonTooManyAttempts            Reason = "too_many_attempts"
	ReasonFingerprintMismatch        Reason = "fingerprint_mismatch"
	ReasonUnavailable                Reason = "unavailable"
)

func (r Reason) String() string {
	return string(r)
}

// Result is the tagged decision returned by the authorizer and the dispatcher.
// The zero value is a Denied result, so an unset Result never authorizes.
type Result struct {
	Kind      ResultKind
	Reason    Reason
	Retryable bool
	Challenge *Challenge
}

// Authorized reports whether the action may proceed.
func (r Result) Authorized() bool {
	return r.Kind == ResultAuthorized
}

func Authorized(c *Challenge) Result {
	return Result{Kind: ResultAuthorized, Challenge: c}
}

func RequiresVerification() Result {
	return Result{Kind: ResultRequiresVerification, Reason: ReasonChallengeNotFoundOrExpired}
}

func Denied(reason Reason) Result {
	return Result{Kind: ResultDenied, Reason: reason}
}

// DeniedRetryable is a denial the client may retry unchanged, such as an infrastructure timeout.
func DeniedRetryable(reason Reason) Result {
	return Result{Kind: ResultDenied, Reason: reason, Retryable: true}
}

// DenialError carries a non-authorized Result through layers that only return errors.
type DenialError struct {
	Result Result
}

func (e *DenialError) Error() string {
	return "step-up " + e.Result.Kind.String() + ": " + e.Result.Reason.String()
}

// Err returns nil for an Authorized result and a *DenialError otherwise.
func (r Result) Err() error {
	if r.Authorized() {
		return nil
	}
	return &DenialError{Result: r}
}
