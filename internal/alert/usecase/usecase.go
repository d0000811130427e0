package usecase

import (
	"bytes"
	"context"
	"html/template"

	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/idempotency"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/mail"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

type Usecase struct {
	repoMail    repoMail
	idempotency idempotency.Idempotency
	cfg         config.Config
	clock       clock.Clocker
	validator   validator.Validator
	ins         instrument.Instrumentation
}

type Dependency struct {
	RepoMail    repoMail
	Idempotency idempotency.Idempotency
	Config      config.Config
	Clock       clock.Clocker
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoMail:    dep.RepoMail,
		idempotency: dep.Idempotency,
		cfg:         dep.Config,
		clock:       dep.Clock,
		validator:   dep.Validator,
		ins:         dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("alert.usecase").Start(ctx, name)
}

func (s *Usecase) renderTemplate(name, tpl string, data map[string]any) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Usecase) baseTemplateData() map[string]any {
	support := s.cfg.GetString("modules.alert.support_email")
	if support == "" {
		support = "security@govault.local"
	}

	return map[string]any{
		"support_email": support,
		"year":          s.clock.Now().Format("2006"),
	}
}
