package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("create order: %w", Newf(CodeCurrentlyReserved, "listing %s is reserved", "l-1"))

	assert.ErrorIs(t, err, ErrCurrentlyReserved)
	assert.NotErrorIs(t, err, ErrAlreadySold)
	assert.Equal(t, CodeCurrentlyReserved, CodeOf(err))
	assert.Equal(t, "create order: listing l-1 is reserved", err.Error())
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeInternal, "load listing", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "load listing: connection reset", err.Error())
}

func TestWithMetadata_DoesNotMutateOriginal(t *testing.T) {
	base := New(CodeNotFound, "listing not found")
	withID := base.WithMetadata("listing_id", "l-1")

	assert.Nil(t, base.Metadata)
	assert.Equal(t, "l-1", withID.Metadata["listing_id"])
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil, "x"))

	typed := New(CodeImmutable, "cannot edit a sold listing")
	assert.Same(t, typed, Classify(typed, "x"))

	raw := errors.New("boom")
	got := Classify(raw, "update listing")
	assert.Equal(t, CodeInternal, CodeOf(got))
	assert.ErrorIs(t, got, raw)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeUnauthorized, http.StatusForbidden},
		{CodeSelfPurchase, http.StatusBadRequest},
		{CodeAlreadySold, http.StatusConflict},
		{CodeCurrentlyReserved, http.StatusConflict},
		{CodeNotActive, http.StatusBadRequest},
		{CodeNotPending, http.StatusBadRequest},
		{CodeImmutable, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
			assert.Equal(t, tt.want, HTTPStatus(New(tt.code, "x")))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
