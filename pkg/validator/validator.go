// Package validator validates request bodies with go-playground/validator and
// renders the first failure as an English or Chinese message.
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Language constants.
const (
	LangEN = "en"
	LangZH = "zh"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Error is returned when a struct fails validation.
type Error struct {
	Errors []FieldError `json:"errors"`
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// First returns the first failure.
func (e *Error) First() FieldError {
	if e == nil || len(e.Errors) == 0 {
		return FieldError{}
	}
	return e.Errors[0]
}

// Validator wraps a validator.Validate with translators.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var (
	global     *Validator
	globalOnce sync.Once
)

// Global returns the shared validator.
func Global() *Validator {
	globalOnce.Do(func() { global = New() })
	return global
}

// New creates a validator that names fields by their json tag and knows the
// rating and web_url rules.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    make(map[string]ut.Translator),
	}
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())
	enTrans, _ := uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans
	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	v.register("rating", validateRating, map[string]string{
		LangEN: "{0} must be positive or negative",
		LangZH: "{0}必须是 positive 或 negative",
	})
	v.register("web_url", validateWebURL, map[string]string{
		LangEN: "{0} must be an absolute http or https URL",
		LangZH: "{0}必须是完整的 http 或 https 地址",
	})
	return v
}

func (v *Validator) register(tag string, fn validator.Func, messages map[string]string) {
	_ = v.validate.RegisterValidation(tag, fn)
	for lang, msg := range messages {
		_ = v.validate.RegisterTranslation(tag, v.trans[lang],
			func(t ut.Translator) error { return t.Add(tag, msg, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(tag, fe.Field())
				return s
			},
		)
	}
}

// Struct validates s and returns *Error with messages in lang, or nil.
func (v *Validator) Struct(s any, lang string) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !asValidationErrors(err, &errs) {
		return &Error{Errors: []FieldError{{Field: "body", Tag: "invalid", Message: err.Error()}}}
	}

	trans, ok := v.trans[lang]
	if !ok {
		trans = v.trans[LangEN]
	}
	out := &Error{Errors: make([]FieldError, 0, len(errs))}
	for _, fe := range errs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// Struct validates s with the shared validator.
func Struct(s any, lang string) error {
	return Global().Struct(s, lang)
}

// LangFromHeader picks a message language from an Accept-Language value.
func LangFromHeader(acceptLanguage string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(acceptLanguage)), "zh") {
		return LangZH
	}
	return LangEN
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	errs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = errs
	}
	return ok
}
