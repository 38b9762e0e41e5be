package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs tag based validation and wraps failures in ErrValidation.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			fields := make([]string, 0, len(invalid))
			for _, fe := range invalid {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return Validationf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return Validationf("%v", err)
	}
	return nil
}
