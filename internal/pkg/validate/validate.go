package validate

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// v is the package-level singleton validator. It is initialised once at
// package load time together with its English translator.
var (
	v     = validator.New(validator.WithRequiredStructEnabled())
	trans ut.Translator
)

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		panic("validate: register translations: " + err.Error())
	}
	err := v.RegisterTranslation("eqfield", trans,
		func(t ut.Translator) error {
			return t.Add("eqfield", "{0} confirmation does not match", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("eqfield", fe.Field())
			return msg
		},
	)
	if err != nil {
		panic("validate: register eqfield translation: " + err.Error())
	}
}

// FieldErrors maps a json field name to its human-readable messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var msgs []string
	for _, f := range fields {
		msgs = append(msgs, strings.Join(fe[f], ", "))
	}
	return strings.Join(msgs, "; ")
}

// Struct validates the given struct using its validate tags.
// Returns FieldErrors when any rule fails, or nil.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range ve {
		out.Add(fe.Field(), fe.Translate(trans))
	}
	return out
}
