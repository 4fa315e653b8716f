package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Secret   string `json:"-" validate:"omitempty"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(&signupForm{Email: "not-an-email"})
	require.Error(t, err)

	body := ErrorResponse(err)
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, "is required", body.Fields["username"])
	assert.Equal(t, "must be a valid email address", body.Fields["email"])
	assert.NotContains(t, body.Fields, "Username")
}

func TestValidatePassesCleanInput(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&signupForm{Username: "alice", Email: "alice@example.com"}))
}

func TestErrorResponseNonValidatorError(t *testing.T) {
	body := ErrorResponse(errors.New("boom"))
	assert.Equal(t, "boom", body.Error)
	assert.Empty(t, body.Fields)
}
