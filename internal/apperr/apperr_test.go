package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("decode: %w", InvalidToken("bad ciphertext", cause))

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvalidMetadata)
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{InvalidToken("x", nil), http.StatusBadRequest},
		{InvalidMetadata("x"), http.StatusBadRequest},
		{AssetNotFound("bg.png", nil), http.StatusNotFound},
		{CacheMiss("ABC"), http.StatusNotFound},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusCode(c.err), c.err.Error())
	}
}

func TestMessageHidesUnknownErrors(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("secret path /var/x")))
	assert.Equal(t, "invalid metadata: couponCode is required", Message(InvalidMetadata("couponCode is required")))
}
