package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report field errors under their JSON names so clients can match
	// them against what they sent.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("recording_type", validateRecordingType)
	_ = validate.RegisterValidation("tag_mode", validateTagMode)
}

// ValidateStruct validates a struct using its validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(errs)
		}
		return err
	}
	return nil
}

func validateRecordingType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "audio", "thermalRaw":
		return true
	}
	return false
}

func validateTagMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "any", "all":
		return true
	}
	return false
}
