// Package validator wraps go-playground/validator with English messages and
// field names taken from json (or yaml) tags.
package validator

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once     sync.Once
	validate *govalidator.Validate
	trans    ut.Translator
)

func instance() *govalidator.Validate {
	once.Do(setup)
	return validate
}

func setup() {
	validate = govalidator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "yaml"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	// "duration" accepts an empty string or anything time.ParseDuration does.
	_ = validate.RegisterValidation("duration", func(fl govalidator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == "" {
			return true
		}
		_, err := time.ParseDuration(raw)
		return err == nil
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
	_ = validate.RegisterTranslation("duration", trans,
		func(ut ut.Translator) error {
			return ut.Add("duration", "{0} must be a duration such as 90s or 5m", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			msg, _ := ut.T("duration", fe.Field())
			return msg
		},
	)
}

// Struct validates s against its `validate` tags.
func Struct(s interface{}) error {
	return instance().Struct(s)
}

// TranslateErrors turns a validation error into field name -> message. Any
// other error ends up under "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		instance()
		for _, fe := range ve {
			fields[fe.Namespace()] = fe.Translate(trans)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}

// Message flattens TranslateErrors into one line, sorted by field.
func Message(err error) string {
	fields := TranslateErrors(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fields[k])
	}
	return strings.Join(parts, "; ")
}
