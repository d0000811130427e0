package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	libOTP "github.com/pquerna/otp"
	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/hash"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/metrics"
	"github.com/shandysiswandi/govault/internal/pkg/otp"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	stepupentity "github.com/shandysiswandi/govault/internal/stepup/entity"
)

// configPath resolves CONFIG_PATH, then the container default, then the
// repository copy when LOCAL=true.
func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if os.Getenv("LOCAL") == "true" {
		return "./config/config.yaml"
	}
	return "/config/config.yaml"
}

func (a *App) initConfig() error {
	cfg, err := config.NewViper(configPath())
	if err != nil {
		return err
	}
	if tz := cfg.GetString("app.tz"); tz != "" {
		_ = os.Setenv("TZ", tz) //nolint:errcheck // best effort
	}

	a.config = cfg
	a.onClose("config", func(context.Context) error { return cfg.Close() })
	return nil
}

func (a *App) initInstrument() error {
	ins, err := instrument.New(context.Background(), instrument.Config{
		Enabled:         a.config.GetBool("instrument.otel.enabled"),
		Service:         a.config.GetString("instrument.service_name"),
		Version:         a.config.GetString("instrument.service_version"),
		Environment:     a.config.GetString("instrument.env"),
		OTLPEndpoint:    a.config.GetString("instrument.otel.endpoint"),
		OTLPSecure:      a.config.GetBool("instrument.otel.secure"),
		SampleRatio:     a.config.GetFloat64("instrument.otel.trace_sample_ratio"),
		MetricsInterval: a.config.GetSecond("instrument.otel.metric_interval_seconds"),
		Log: instrument.LogConfig{
			Level:  a.config.GetString("instrument.log.level"),
			Format: a.config.GetString("instrument.log.format"),
			Redact: a.config.GetArray("instrument.log.redact"),
		},
	})
	if err != nil {
		return err
	}

	a.ins = ins
	a.onClose("instrument", ins.Shutdown)

	if a.config.GetBool("instrument.prometheus.enabled") {
		a.metrics = metrics.New(a.config.GetString("instrument.prometheus.namespace"))
	}
	return nil
}

func (a *App) initLibraries() error {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.oid = uid.NewULID()
	a.token = uid.NewToken()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.hmac = hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))
	a.bcrypt = hash.NewBcrypt(a.config.GetInt("hash.bcrypt.cost"), a.config.GetString("hash.bcrypt.pepper"))
	a.totp = otp.NewTOTP(
		a.config.GetString("mfa.totp.issuer"),
		a.config.GetUint("mfa.totp.period"),
		a.config.GetUint("mfa.totp.skew"),
		libOTP.DigitsSix,
	)

	v, err := validator.NewV10Validator(
		validator.WithEnum("action_type", stepupentity.ActionTypeNames()...),
		validator.WithEnum("twofa_context", stepupentity.ContextNames()...),
	)
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	a.validator = v

	snow, err := uid.NewSnowflakeWithNode(a.config.GetInt64("app.node_id"))
	if err != nil {
		return fmt.Errorf("snowflake: %w", err)
	}
	a.uid = snow

	return nil
}

// parseKeyring turns the mfa.keys mapping of version to base64 key into
// raw key material.
func parseKeyring(raw map[string]string) (map[uint16][]byte, error) {
	keys := make(map[uint16][]byte, len(raw))
	for version, encoded := range raw {
		v, err := strconv.ParseUint(version, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("key version %q: %w", version, err)
		}
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("key version %d: %w", v, err)
		}
		keys[uint16(v)] = key
	}
	return keys, nil
}

// initSealer loads the versioned keys. New data is sealed with
// mfa.current_key_version; older versions stay readable.
func (a *App) initSealer() error {
	keys, err := parseKeyring(a.config.GetMap("mfa.keys"))
	if err != nil {
		return err
	}

	ring, err := sealer.NewKeyring(a.config.GetUint16("mfa.current_key_version"), keys)
	if err != nil {
		return err
	}

	a.sealer = sealer.NewAESGCM(ring)
	return nil
}

func (a *App) initJWT() error {
	j, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(a.config.GetString("jwt.secret")),
		Issuer:    a.config.GetString("jwt.issuer"),
		Audiences: a.config.GetArray("jwt.audiences"),
		TTL:       a.config.GetMinute("jwt.ttl_minutes"),
		Clock:     a.clock,
		IDs:       a.uuid,
	})
	if err != nil {
		return err
	}

	a.jwt = j
	return nil
}
