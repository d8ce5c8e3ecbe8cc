package validator

import (
	"errors"
	"strings"

	"accizard/internal/domain"
	"accizard/pkg/e"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		lat := fl.Field().Float()
		return lat >= -90 && lat <= 90
	})
	validate.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		lng := fl.Field().Float()
		return lng >= -180 && lng <= 180
	})
	validate.RegisterValidation("pin_type", func(fl validator.FieldLevel) bool {
		return domain.PinType(fl.Field().String()).Valid()
	})
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// Validate runs the struct tags and converts failures into an e.ValidationError
// keyed by the lower-cased field name.
func Validate(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return e.Wrap("validator.Validate", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return e.NewValidationError(fields)
}
