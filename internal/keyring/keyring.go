// Package keyring stores secrets in the OS keychain.
package keyring

import (
	"errors"
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const serviceName = "hitomi"

// ErrNotFound is returned when no secret is stored for the account.
var ErrNotFound = errors.New("keychain: secret not found")

// Get retrieves the secret stored for account.
func Get(account string) (string, error) {
	v, err := zkr.Get(serviceName, account)
	if errors.Is(err, zkr.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain get: %w", err)
	}
	return v, nil
}

// Set stores secret for account.
func Set(account, secret string) error {
	if err := zkr.Set(serviceName, account, secret); err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

// Delete removes the secret for account. Missing secrets are not an error.
func Delete(account string) error {
	err := zkr.Delete(serviceName, account)
	if err != nil && !errors.Is(err, zkr.ErrNotFound) {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}

// Available returns true if the OS keychain is functional.
// Returns false if HITOMI_KEYRING_DISABLED=1 is set (headless/CI/Docker).
// Otherwise probes the keychain with a test write/read/delete cycle.
func Available() bool {
	if os.Getenv("HITOMI_KEYRING_DISABLED") == "1" {
		return false
	}
	testService := "hitomi-keyring-probe"
	testAccount := "probe"
	if err := zkr.Set(testService, testAccount, "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(testService, testAccount)
	return true
}
