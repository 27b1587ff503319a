package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups leadsync secrets in the OS keychain.
const KeyringService = "leadsync"

// RefPrefix marks a config value that lives in the keychain, e.g.
// "keyring:gemini" is the secret stored under account "gemini".
const RefPrefix = "keyring:"

// Get returns the secret stored under account.
func Get(account string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", errors.New("keyring account name is empty")
	}
	v, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", fmt.Errorf("reading keyring secret %q: %w", account, err)
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("keyring secret %q is empty", account)
	}
	return v, nil
}

// Set stores value under account, replacing any previous value.
func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

// Delete removes the secret stored under account.
func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// Resolve returns value unchanged unless it carries RefPrefix, in which case
// the referenced secret is looked up with get.
func Resolve(value string, get func(account string) (string, error)) (string, error) {
	account, ok := strings.CutPrefix(strings.TrimSpace(value), RefPrefix)
	if !ok {
		return value, nil
	}
	return get(account)
}
