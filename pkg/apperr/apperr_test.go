package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPassesThroughTaggedErrors(t *testing.T) {
	orig := NotFound("invalid coupon code")
	wrapped := fmt.Errorf("handler: %w", orig)

	got := From(wrapped)
	assert.Equal(t, CodeNotFound, got.Code)
	assert.Equal(t, "invalid coupon code", got.Message)
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("pq: connection refused")
	got := From(cause)

	assert.Equal(t, CodeServer, got.Code)
	assert.NotContains(t, got.Message, "connection refused", "internal detail must not leak into the message")
	assert.True(t, errors.Is(got, cause), "cause must stay reachable for logging")
}

func TestAlreadyRedeemedCarriesTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	err := AlreadyRedeemed(at)

	assert.Equal(t, CodeConflict, err.Code)
	require.NotNil(t, err.RedeemedAt)
	assert.True(t, err.RedeemedAt.Equal(at))
	assert.Contains(t, err.Message, "2026-03-14T12:30:00Z")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeValidation, http.StatusUnprocessableEntity},
		{CodeServer, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.code), "code %s", tt.code)
	}
}
