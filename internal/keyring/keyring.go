package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/daystreak/internal/constants"
)

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func get(user string) (string, error) {
	v, err := keyring.Get(constants.AppName, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func set(user, what, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if err := keyring.Set(constants.AppName, user, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", what, err)
	}
	return nil
}

func del(user, what string) error {
	if err := keyring.Delete(constants.AppName, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", what, err)
	}
	return nil
}

// GetAccessToken returns the stored bearer token for the sync server.
func GetAccessToken() (string, error) { return get(constants.KeyringAccessTokenUser) }

// SetAccessToken stores the bearer token for the sync server.
func SetAccessToken(token string) error {
	return set(constants.KeyringAccessTokenUser, "access token", token)
}

// DeleteAccessToken removes the stored bearer token.
func DeleteAccessToken() error { return del(constants.KeyringAccessTokenUser, "access token") }

// GetAccount returns the label of the signed-in account.
func GetAccount() (string, error) { return get(constants.KeyringAccountUser) }

func SetAccount(label string) error {
	return set(constants.KeyringAccountUser, "account label", label)
}

func DeleteAccount() error { return del(constants.KeyringAccountUser, "account label") }

// GetConnectionString retrieves the server database connection string.
// Returns ErrNotFound if no credentials are stored.
func GetConnectionString() (string, error) { return get(constants.KeyringDatabaseUser) }

// SetConnectionString stores the server database connection string.
func SetConnectionString(connStr string) error {
	return set(constants.KeyringDatabaseUser, "connection string", connStr)
}

// DeleteConnectionString removes the server database connection string.
func DeleteConnectionString() error {
	return del(constants.KeyringDatabaseUser, "connection string")
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// Credentials adapts the package functions to the session's token store.
type Credentials struct{}

func (Credentials) Token() (string, error)   { return GetAccessToken() }
func (Credentials) SetToken(t string) error  { return SetAccessToken(t) }
func (Credentials) Account() (string, error) { return GetAccount() }
func (Credentials) SetAccount(a string) error {
	return SetAccount(a)
}

// Clear removes the token and account label, ignoring entries that are already gone.
func (Credentials) Clear() error {
	if err := DeleteAccessToken(); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := DeleteAccount(); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
