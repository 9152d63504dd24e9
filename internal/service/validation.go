package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

const (
	requiredTag  = "required"
	requiredText = "This field is required."
	roleTag      = "role"
	roleText     = "{0} must be a known role"
	mealTag      = "meal"
	mealText     = "{0} must be lunch or dinner"
)

func init() {
	validate = validator.New()
	locale := en.New()
	translator, _ = ut.New(locale, locale).GetTranslator("en")
	InitValidators(validate, translator)
}

// InitValidators registers translations, tag naming and custom tags on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report form/json field names instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
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

	_ = validate.RegisterValidation(roleTag, func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "admin" || v == "provider"
	})
	_ = validate.RegisterValidation(mealTag, func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "" || v == "lunch" || v == "dinner"
	})

	registerTranslation(validate, translator, requiredTag, requiredText, true)
	registerTranslation(validate, translator, roleTag, roleText, false)
	registerTranslation(validate, translator, mealTag, mealText, false)
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// validateStruct runs the struct validator and returns a *ValidationError on failure.
func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fromValidator(err)
	}
	return nil
}
