package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errCause = errors.New("cause")

func TestWrapPreservesCause(t *testing.T) {
	err := Wrap(errCause, CodeConflict, "token 6 is locked")

	assert.ErrorIs(t, err, errCause)
	assert.True(t, HasCode(err, CodeConflict))
	assert.Equal(t, "token 6 is locked: cause", err.Error())
}

func TestHasCodeWalksNestedErrors(t *testing.T) {
	inner := Wrap(errCause, CodeNotFound, "token not minted")
	outer := fmt.Errorf("lookup: %w", Wrap(inner, CodeInternal, "toggle failed"))

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(outer, CodeForbidden))
	assert.Equal(t, CodeInternal, CodeOf(outer))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errCause))
	assert.False(t, Is(errCause, CodeInternal))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:         http.StatusBadRequest,
		CodeValidation:         http.StatusUnprocessableEntity,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodePrecondition:       http.StatusPreconditionFailed,
		CodeDependency:         http.StatusBadGateway,
		CodeInvariantViolation: http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), code)
	}
}
