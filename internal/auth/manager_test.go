package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skymarshal/core/internal/skyerr"
)

func TestLooksLikeAppPassword(t *testing.T) {
	cases := map[string]bool{
		"abcd-1234-efgh-5678": true,
		"ABCD-1234-efgh-5678": false,
		"hunter2":             false,
		"":                    false,
		"abcd-1234-efgh-567":  false,
	}
	for input, want := range cases {
		assert.Equal(t, want, LooksLikeAppPassword(input), "input %q", input)
	}
}

func TestCallWithReauthPassesThroughNonAuthError(t *testing.T) {
	m := &Manager{}
	calls := 0
	wantErr := skyerr.New(skyerr.NotFound, "missing")

	err := m.CallWithReauth(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithReauthWithoutSessionReturnsOriginalAuthError(t *testing.T) {
	m := &Manager{}
	calls := 0
	wantErr := skyerr.New(skyerr.Auth, "token expired")

	err := m.CallWithReauth(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithReauthSucceedsOnFirstTry(t *testing.T) {
	m := &Manager{}
	err := m.CallWithReauth(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}
