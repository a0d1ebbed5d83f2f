// Package validation wires go-playground/validator with English messages
// and the canteen's custom tags.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/seatmap"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "{0} cannot be blank"

	phoneTag   = "phone"
	phoneText  = "{0} must be a phone number of 8 to 15 digits"
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

	seatRowTag  = "seatrow"
	seatRowText = "{0} must be a row label such as A or AA"

	permissionTag  = "permission"
	permissionText = "{0} contains an unknown permission"

	requiredTag  = "required"
	requiredText = "{0} is required"
)

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = Validate.RegisterValidation(phoneTag, phoneValidation)
	_ = Validate.RegisterValidation(seatRowTag, seatRowValidation)
	_ = Validate.RegisterValidation(permissionTag, permissionValidation)

	RegisterCustomTranslation(notBlankTag, notBlankText)
	RegisterCustomTranslation(phoneTag, phoneText)
	RegisterCustomTranslation(seatRowTag, seatRowText)
	RegisterCustomTranslation(permissionTag, permissionText)
	RegisterCustomTranslation(requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers an English message for tag.
func RegisterCustomTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// EchoValidator adapts Validate to echo.Validator.
type EchoValidator struct{}

func (EchoValidator) Validate(i interface{}) error {
	return Validate.Struct(i)
}

// Struct validates s.
func Struct(s interface{}) error {
	return Validate.Struct(s)
}

// Fields converts a validation error into a field -> message map. It returns
// nil when err is not a validation error.
func Fields(err error) map[string]string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return nil
	}
	out := make(map[string]string, len(vErrs))
	for _, fe := range vErrs {
		out[fieldPath(fe)] = fe.Translate(Translator)
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace so nested
// fields read like items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func seatRowValidation(fl validator.FieldLevel) bool {
	_, ok := seatmap.RowLabelToIndex(fl.Field().String())
	return ok
}

func permissionValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case string:
		return model.IsPermission(v)
	case []string:
		for _, p := range v {
			if !model.IsPermission(p) {
				return false
			}
		}
		return true
	}
	return false
}
