// Package credential resolves the remove.bg API key from a flag, the
// environment or the OS secure storage.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	EnvAPIKey = "REMOVEBG_API_KEY"
	Service   = "removebg-square"
	KeyName   = "api-key"
)

var (
	ErrNotFound = errors.New("secret not found")
	ErrNoAPIKey = errors.New("no API key: pass --api-key, set " + EnvAPIKey + " or run login")
)

// Store is a secure key/value storage for secrets.
type Store interface {
	Get(name string) (string, error)
	Set(name, secret string) error
	Delete(name string) error
}

// Keyring stores secrets in the OS keychain (macOS Keychain, Secret Service, Windows Credential Manager).
type Keyring struct {
	Service string
}

func NewKeyring() *Keyring {
	return &Keyring{Service: Service}
}

func (k *Keyring) Get(name string) (string, error) {
	s, err := keyring.Get(k.Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return s, err
}

func (k *Keyring) Set(name, secret string) error {
	return keyring.Set(k.Service, name, secret)
}

func (k *Keyring) Delete(name string) error {
	err := keyring.Delete(k.Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	secrets map[string]string
}

func NewMemory() *Memory {
	return &Memory{secrets: map[string]string{}}
}

func (m *Memory) Get(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[name]
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (m *Memory) Set(name, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[name] = secret
	return nil
}

func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[name]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, name)
	return nil
}

// Source tells where a resolved key came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
)

// Resolver looks the key up in flag, environment and store order.
// A nil Getenv reads the process environment.
type Resolver struct {
	Store  Store
	Getenv func(string) string
}

func (r *Resolver) Resolve(flagValue string) (string, Source, error) {
	if k := strings.TrimSpace(flagValue); k != "" {
		return k, SourceFlag, nil
	}

	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if k := strings.TrimSpace(getenv(EnvAPIKey)); k != "" {
		return k, SourceEnv, nil
	}

	if r.Store != nil {
		k, err := r.Store.Get(KeyName)
		switch {
		case err == nil && strings.TrimSpace(k) != "":
			return strings.TrimSpace(k), SourceKeyring, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return "", "", fmt.Errorf("read keyring: %w", err)
		}
	}
	return "", "", ErrNoAPIKey
}

// Login saves the key in the store.
func Login(store Store, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("empty API key")
	}
	if err := store.Set(KeyName, apiKey); err != nil {
		return fmt.Errorf("save API key: %w", err)
	}
	return nil
}

// Logout removes the key; a missing key is not an error.
func Logout(store Store) error {
	if err := store.Delete(KeyName); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete API key: %w", err)
	}
	return nil
}
