package usecase

import "time"

const (
	defaultGrantTTL      = 5 * time.Minute
	defaultReadTimeout   = 2 * time.Second
	defaultWriteTimeout  = 3 * time.Second
	defaultMaxAttempts   = 5
	defaultAttemptWindow = 15 * time.Minute
)

// policy is read from config on every decision so a hot reload applies to the next request.
type policy struct {
	grantTTL           time.Duration
	readTimeout        time.Duration
	writeTimeout       time.Duration
	maxAttempts        int64
	attemptWindow      time.Duration
	fingerprintEnforce bool
	allowCodeReuse     bool
}

func (s *Usecase) policy() policy {
	p := policy{
		grantTTL:           s.cfg.GetDuration("modules.stepup.grant_ttl"),
		readTimeout:        s.cfg.GetDuration("modules.stepup.ledger_read_timeout"),
		writeTimeout:       s.cfg.GetDuration("modules.stepup.ledger_write_timeout"),
		maxAttempts:        s.cfg.GetInt64("modules.stepup.max_attempts"),
		attemptWindow:      s.cfg.GetDuration("modules.stepup.attempt_window"),
		fingerprintEnforce: s.cfg.GetBool("modules.stepup.fingerprint_enforce"),
		allowCodeReuse:     s.cfg.GetBool("modules.stepup.allow_code_reuse"),
	}

	if p.grantTTL <= 0 {
		p.grantTTL = defaultGrantTTL
	}
	if p.readTimeout <= 0 {
		p.readTimeout = defaultReadTimeout
	}
	if p.writeTimeout <= 0 {
		p.writeTimeout = defaultWriteTimeout
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if p.attemptWindow <= 0 {
		p.attemptWindow = defaultAttemptWindow
	}

	return p
}
