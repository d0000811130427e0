package validator

import (
	"encoding/json"
	"errors"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shandysiswandi/govault/internal/pkg/strcase"
)

var ErrTranslatorNotFound = errors.New("validator: translator not found")

// FieldErrors maps a snake_case field name to a human readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation error"
	}
	b, _ := json.Marshal(map[string]string(fe)) //nolint:errcheck // a string map always marshals
	return string(b)
}

func (fe FieldErrors) Values() map[string]string {
	return fe
}

// V10Validator implements Validator on go-playground/validator.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

type Option func(*V10Validator) error

// WithEnum registers tag as a rule that accepts exactly the given values.
func WithEnum(tag string, values ...string) Option {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}

	return func(v *V10Validator) error {
		return v.rule(tag, "{0} has an unsupported value", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			_, ok := allowed[fl.Field().String()]
			return ok
		})
	}
}

func NewV10Validator(opts ...Option) (*V10Validator, error) {
	lang := en.New()
	trans, ok := ut.New(lang, lang).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	v := &V10Validator{validate: validate, translator: trans}

	// NIST 800-63B length bounds; 72 is the bcrypt input limit.
	if err := v.rule("password", "{0} must be 8-72 characters", stringRule(func(s string) bool {
		n := utf8.RuneCountInString(s)
		return n >= 8 && len(s) <= 72
	})); err != nil {
		return nil, err
	}
	if err := v.rule("alphaspace", "{0} can contain only letters and spaces", stringRule(func(s string) bool {
		for _, r := range s {
			if !unicode.IsLetter(r) && r != ' ' {
				return false
			}
		}
		return true
	})); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s, isString := fl.Field().Interface().(string)
		return isString && ok(s)
	}
}

// rule registers a custom tag together with its English message.
func (v *V10Validator) rule(tag, msg string, fn validator.Func) error {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		return err
	}

	return v.validate.RegisterTranslation(tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, msg, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return s
		},
	)
}

// Validate returns FieldErrors when data breaks a rule, or the underlying
// error when data cannot be validated at all.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.translator)
	}
	return out
}
