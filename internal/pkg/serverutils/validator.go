package serverutils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest runs the `validate` struct tags. The returned error is a
// validator.ValidationErrors, which ErrorHandlerMiddleware turns into a 400.
func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}

func validationMessages(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = "is required"
		case "max":
			out[field] = "must be at most " + fe.Param()
		case "oneof":
			out[field] = "must be one of: " + fe.Param()
		default:
			out[field] = "failed on " + fe.Tag()
		}
	}
	return out
}
