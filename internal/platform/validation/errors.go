package validation

import (
	"github.com/go-playground/validator/v10"
)

// ErrorBody is the validation failure payload: one human-readable
// message per offending field, keyed by its JSON name.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ErrorResponse converts a validator error into the standard payload.
func ErrorResponse(err error) ErrorBody {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ErrorBody{Error: err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return ErrorBody{Error: "validation failed", Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
