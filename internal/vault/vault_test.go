package vault

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemRoundTrip(t *testing.T) {
	keyring.MockInit()
	kr := NewSystem()

	_, err := kr.Get("kura-test", "secrets")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, kr.Set("kura-test", "secrets", `{"api_key":"secret123"}`))
	got, err := kr.Get("kura-test", "secrets")
	require.NoError(t, err)
	assert.Equal(t, `{"api_key":"secret123"}`, got)

	require.NoError(t, kr.Delete("kura-test", "secrets"))
	_, err = kr.Get("kura-test", "secrets")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, kr.Delete("kura-test", "secrets"), "deleting a missing entry is a no-op")
}

func TestSystemSurfacesAccessFailure(t *testing.T) {
	boom := errors.New("secret service unavailable")
	keyring.MockInitWithError(boom)
	t.Cleanup(keyring.MockInit)

	_, err := NewSystem().Get("kura-test", "secrets")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, boom))
}
