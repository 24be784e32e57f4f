// Package vault adapts the operating system keyring (macOS Keychain, Linux
// Secret Service, Windows Credential Manager) to a small key-value contract.
package vault

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when no credential exists for the service/user pair.
var ErrNotFound = errors.New("keyring entry not found")

// Keyring stores one opaque string per service/user pair.
type Keyring interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
	Delete(service, user string) error
}

// System is the Keyring backed by the platform secret store.
type System struct{}

// NewSystem returns the platform keyring.
func NewSystem() *System {
	return &System{}
}

func (System) Get(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return secret, nil
}

func (System) Set(service, user, secret string) error {
	return keyring.Set(service, user, secret)
}

// Delete removes the credential. A missing credential is not an error.
func (System) Delete(service, user string) error {
	err := keyring.Delete(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

var _ Keyring = (*System)(nil)
