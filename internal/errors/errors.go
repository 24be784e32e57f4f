package errors

import (
	"errors"
)

// Sentinel errors for the storage taxonomy. Callers branch on these with errors.Is.
var (
	// ErrNotFound - key absent from both the environment and the persisted layer (recoverable by defaulting or prompting)
	ErrNotFound = errors.New("configuration value not found")

	// ErrDeserialize - value present but does not match the requested shape, or the backing file is not valid YAML/JSON
	ErrDeserialize = errors.New("failed to deserialize value")

	// ErrFile - I/O failure reading or writing a backing file
	ErrFile = errors.New("failed to access config file")

	// ErrDirectory - the config directory could not be determined or created
	ErrDirectory = errors.New("failed to create config directory")

	// ErrVault - the system keyring reported a failure other than a missing entry
	ErrVault = errors.New("failed to access keyring")
)
