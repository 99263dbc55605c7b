package item

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/zombor/declutter/internal/scanning"
)

// ScanInput is the body of a scan request
type ScanInput struct {
	ImageURL   string             `json:"imageUrl" validate:"required,image_url"`
	Condition  scanning.Condition `json:"condition" validate:"required,oneof=EXCELLENT GOOD FAIR POOR"`
	ManualName string             `json:"manualName" validate:"max=200"`
}

func (in ScanInput) normalized() ScanInput {
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.ManualName = strings.TrimSpace(in.ManualName)
	return in
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func scanValidator() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		var found bool
		translator, found = uni.GetTranslator("en")
		if !found {
			panic("registering validator: en translator not found")
		}

		validate = validator.New(validator.WithRequiredStructEnabled())

		// report json names, not Go field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})

		if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
			panic(fmt.Sprintf("registering validator translations: %v", err))
		}

		err := validate.RegisterValidation("image_url", func(fl validator.FieldLevel) bool {
			u, err := url.ParseRequestURI(fl.Field().String())
			return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
		})
		if err != nil {
			panic(fmt.Sprintf("registering image_url validation: %v", err))
		}
		err = validate.RegisterTranslation("image_url", translator,
			func(ut ut.Translator) error {
				return ut.Add("image_url", "{0} must be an http or https URL", true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T("image_url", fe.Field())
				return msg
			},
		)
		if err != nil {
			panic(fmt.Sprintf("registering image_url translation: %v", err))
		}
	})
	return validate, translator
}

// validateScanInput returns a message per invalid field, or nil
func validateScanInput(in ScanInput, manual bool) map[string]string {
	v, trans := scanValidator()

	fields := make(map[string]string)
	if err := v.Struct(in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			fields["body"] = err.Error()
			return fields
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Translate(trans)
		}
	}
	if manual && in.ManualName == "" {
		if _, seen := fields["manualName"]; !seen {
			fields["manualName"] = "manualName is a required field"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}
