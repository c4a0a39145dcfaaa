package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(Validation("bad input")))
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("missing")))
	assert.Equal(t, CodeInsufficientFunds, CodeOf(InsufficientFunds("broke")))

	// wrapping keeps the code visible
	wrapped := fmt.Errorf("handler: %w", Conflict("duplicate"))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))

	// unknown errors default to the store code
	assert.Equal(t, CodeStore, CodeOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("bad")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InsufficientFunds("broke")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("missing")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(Unauthorized("no")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("dup")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Store(errors.New("db down"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(CodeStore, "query users", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "query users")
}
