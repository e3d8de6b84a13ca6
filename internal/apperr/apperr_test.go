package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusPerKind(t *testing.T) {
	cases := map[*Error]int{
		Validation("bad input"):        http.StatusBadRequest,
		Auth("bad token"):              http.StatusUnauthorized,
		AccessDenied("nope"):           http.StatusForbidden,
		NotFound("missing"):            http.StatusNotFound,
		Conflict("taken"):              http.StatusConflict,
		Internal("boom", errors.New("cause")): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, err.HTTPStatus(), "kind %s", err.Kind)
	}
}

func TestFromPassesStructuredErrorsThrough(t *testing.T) {
	orig := NotFound("channel not found")

	got := From(fmt.Errorf("wrapping: %w", orig))
	assert.Same(t, orig, got)
	assert.Equal(t, KindNotFound, KindOf(orig))
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("pg is down")

	got := From(cause)
	require.NotNil(t, got)
	assert.Equal(t, KindInternal, got.Kind)
	assert.ErrorIs(t, got, cause)

	assert.Nil(t, From(nil))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("row scan failed")
	err := Internal("load channel", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "load channel")
}
