// Package secret stores the single API credential. The desktop builds keep
// it in the OS keychain; this package covers the portable backends: an
// environment variable, a mode-0600 file in the data dir, and a chain that
// prefers the environment for reads and the file for writes.
package secret

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvVar is the environment variable consulted by the env backend.
const EnvVar = "SNIPSENSE_API_KEY"

// Store holds one string credential.
type Store interface {
	Has() bool
	Get() (string, error)
	Set(value string) error
	Delete() error
}

// Env reads the credential from the environment. It is read-only: Set and
// Delete report an error rather than mutating the process environment.
type Env struct{}

func (Env) Has() bool {
	return strings.TrimSpace(os.Getenv(EnvVar)) != ""
}

func (Env) Get() (string, error) {
	return strings.TrimSpace(os.Getenv(EnvVar)), nil
}

func (Env) Set(string) error {
	return fmt.Errorf("credential is provided via %s; unset it to manage the credential here", EnvVar)
}

func (Env) Delete() error {
	return fmt.Errorf("credential is provided via %s; unset it to manage the credential here", EnvVar)
}

// File keeps the credential in a single file with restrictive permissions.
type File struct {
	path string
}

// NewFile creates a file store at baseDir/api_key.
func NewFile(baseDir string) *File {
	return &File{path: filepath.Join(baseDir, "api_key")}
}

func (f *File) Has() bool {
	v, err := f.Get()
	return err == nil && v != ""
}

func (f *File) Get() (string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *File) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("credential must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(value+"\n"), 0600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

func (f *File) Delete() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Chain reads from the first store that has a credential and writes to the
// last one. The default chain is [Env, File]: the environment wins for reads,
// `credential set` lands in the file.
type Chain []Store

// Default returns the standard chain for baseDir.
func Default(baseDir string) Chain {
	return Chain{Env{}, NewFile(baseDir)}
}

func (c Chain) Has() bool {
	for _, s := range c {
		if s.Has() {
			return true
		}
	}
	return false
}

func (c Chain) Get() (string, error) {
	for _, s := range c {
		if s.Has() {
			return s.Get()
		}
	}
	return "", nil
}

func (c Chain) Set(value string) error {
	if len(c) == 0 {
		return fmt.Errorf("no credential store configured")
	}
	return c[len(c)-1].Set(value)
}

func (c Chain) Delete() error {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1].Delete()
}
