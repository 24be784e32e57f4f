package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrorMapper maps library errors onto the kura error taxonomy.
type ErrorMapper interface {
	MapError(err error) error
	IsFatal(err error) bool
	Category(err error) string
}

// DefaultErrorMapper classifies errors coming from the filesystem and the codecs.
type DefaultErrorMapper struct{}

// NewDefaultErrorMapper creates a new error mapper
func NewDefaultErrorMapper() *DefaultErrorMapper {
	return &DefaultErrorMapper{}
}

// MapError attaches a taxonomy sentinel to err while keeping err in the chain.
// Errors already carrying a sentinel, and errors it does not recognize, are
// returned unchanged.
func (m *DefaultErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if m.Category(err) != "Unknown" {
		return err
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		yamlErr   *yaml.TypeError
		pathErr   *fs.PathError
		linkErr   *os.LinkError
	)

	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.As(err, &yamlErr):
		return Deserialize(err)
	case errors.As(err, &pathErr), errors.As(err, &linkErr):
		return File(err)
	default:
		return err
	}
}

// IsFatal reports whether err means storage is broken rather than a value never having been set.
func (m *DefaultErrorMapper) IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrFile) || errors.Is(err, ErrDirectory) || errors.Is(err, ErrVault)
}

// Category returns the taxonomy name for an error
func (m *DefaultErrorMapper) Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDeserialize):
		return "DeserializeError"
	case errors.Is(err, ErrDirectory):
		return "DirectoryError"
	case errors.Is(err, ErrVault):
		return "VaultError"
	case errors.Is(err, ErrFile):
		return "FileError"
	default:
		return "Unknown"
	}
}

// NotFound reports key as absent from every layer.
func NotFound(key string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Deserialize wraps err as a deserialize failure.
func Deserialize(err error) error {
	return fmt.Errorf("%w: %w", ErrDeserialize, err)
}

// File wraps err as a file failure.
func File(err error) error {
	return fmt.Errorf("%w: %w", ErrFile, err)
}

// Directory wraps err as a directory failure.
func Directory(err error) error {
	return fmt.Errorf("%w: %w", ErrDirectory, err)
}

// Vault wraps err as a keyring failure.
func Vault(err error) error {
	return fmt.Errorf("%w: %w", ErrVault, err)
}

// IsFatal reports whether err means storage is broken.
func IsFatal(err error) bool {
	return NewDefaultErrorMapper().IsFatal(err)
}
