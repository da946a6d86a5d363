// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ErrSecretNotFound is returned when a keyring reference names an entry
// that does not exist.
var ErrSecretNotFound = errors.New("keyring entry not found")

// keyringGet reads one secret from the system keyring.
//
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
func keyringGet(service, name string) (string, error) {
	value, err := keyring.Get(service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", err
	}
	return value, nil
}

// StoreSecret writes a secret to the system keyring so config files can
// reference it as "keyring:<name>" instead of embedding the literal.
func StoreSecret(name, value string) error {
	return keyring.Set(keyringService, name, value)
}

// DeleteSecret removes a secret from the system keyring.
func DeleteSecret(name string) error {
	if err := keyring.Delete(keyringService, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return err
	}
	return nil
}
