package errors

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorClassifiesLibraryErrors(t *testing.T) {
	m := NewDefaultErrorMapper()

	_, statErr := os.ReadFile("/definitely/not/here.yaml")
	mapped := m.MapError(statErr)
	assert.True(t, errors.Is(mapped, ErrFile))
	assert.True(t, errors.Is(mapped, os.ErrNotExist), "cause must stay in the chain")
	assert.Equal(t, "FileError", m.Category(mapped))

	var v map[string]any
	jsonErr := json.Unmarshal([]byte("{not json"), &v)
	mapped = m.MapError(jsonErr)
	assert.True(t, errors.Is(mapped, ErrDeserialize))
	assert.Equal(t, "DeserializeError", m.Category(mapped))

	assert.Nil(t, m.MapError(nil))
}

func TestMapErrorKeepsExistingCategory(t *testing.T) {
	m := NewDefaultErrorMapper()
	err := NotFound("api_key")
	assert.Same(t, err, m.MapError(err))
	assert.Equal(t, "NotFound", m.Category(err))
	assert.Contains(t, err.Error(), "api_key")
}

func TestIsFatal(t *testing.T) {
	cause := errors.New("boom")

	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(NotFound("k")))
	assert.False(t, IsFatal(Deserialize(cause)))
	assert.True(t, IsFatal(File(cause)))
	assert.True(t, IsFatal(Directory(cause)))
	assert.True(t, IsFatal(Vault(cause)))
	assert.Equal(t, "VaultError", NewDefaultErrorMapper().Category(Vault(cause)))
	assert.Equal(t, "DirectoryError", NewDefaultErrorMapper().Category(Directory(cause)))
}

func TestMapErrorLeavesUnknownErrorsAlone(t *testing.T) {
	m := NewDefaultErrorMapper()
	err := errors.New("negative permission ttl -1s")

	mapped := m.MapError(err)
	assert.Same(t, err, mapped)
	assert.Equal(t, "Unknown", m.Category(mapped))
	assert.False(t, m.IsFatal(mapped))
}
