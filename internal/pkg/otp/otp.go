package otp

import (
	"bytes"
	"crypto/subtle"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// OTP defines the contract for TOTP operations.
type OTP interface {
	// Generate creates a secret and provisioning URI for an account name.
	Generate(accountName string) (secret string, uri string, err error)
	// Validate checks whether a code is valid at the given time.
	Validate(code, secret string, at time.Time) bool
	// Verify is Validate that also reports the time step the code matched.
	Verify(code, secret string, at time.Time) (step uint64, ok bool)
	// GenerateCode creates a TOTP code for the given secret and time.
	GenerateCode(secret string, at time.Time) (string, error)
	// QRCode renders the provisioning URI as a PNG image.
	QRCode(uri string, size int) ([]byte, error)
	// Period returns the time step length.
	Period() time.Duration
	// Skew returns the number of steps accepted on each side of the current one.
	Skew() uint
}

// TOTP implements OTP using the Time-based One-Time Password algorithm (RFC 6238).
type TOTP struct {
	issuer string
	period uint
	skew   uint
	digits otp.Digits
}

// NewTOTP constructs a TOTP instance.
//
// If digits is not 6 or 8, it falls back to 6 digits. A zero period means 30
// seconds and a zero skew means one step.
func NewTOTP(issuer string, period, skew uint, digits otp.Digits) *TOTP {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}

	if period == 0 {
		period = 30
	}

	if skew == 0 {
		skew = 1
	}

	return &TOTP{
		issuer: issuer,
		period: period,
		skew:   skew,
		digits: digits,
	}
}

// Generate creates a secret and provisioning URI for an account name.
func (o *TOTP) Generate(accountName string) (secret string, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: accountName,
		Period:      o.period,
		SecretSize:  20,
		Digits:      o.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

// Validate checks whether a code is valid at the given time.
func (o *TOTP) Validate(code, secret string, at time.Time) bool {
	_, ok := o.Verify(code, secret, at)
	return ok
}

// Verify walks the accepted window and returns the step counter of the first match.
// Malformed codes or secrets are reported as a mismatch, never as an error.
func (o *TOTP) Verify(code, secret string, at time.Time) (uint64, bool) {
	if !o.wellFormed(code) || secret == "" {
		return 0, false
	}

	period := int64(o.period)
	skew := int64(o.skew)
	for offset := -skew; offset <= skew; offset++ {
		t := at.Add(time.Duration(offset*period) * time.Second)
		want, err := o.GenerateCode(secret, t)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return uint64(t.Unix()) / uint64(o.period), true
		}
	}

	return 0, false
}

// GenerateCode creates a TOTP code for the given secret and time.
func (o *TOTP) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    o.period,
		Skew:      o.skew,
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// QRCode renders uri as a square PNG of the given size in pixels.
func (o *TOTP) QRCode(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, err
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Period returns the time step length.
func (o *TOTP) Period() time.Duration {
	return time.Duration(o.period) * time.Second
}

// Skew returns the accepted number of steps on each side.
func (o *TOTP) Skew() uint {
	return o.skew
}

func (o *TOTP) wellFormed(code string) bool {
	if len(code) != o.digits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
