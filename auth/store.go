// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Store.Get when no value is stored under a
// key.
var ErrNotFound = errors.New("httpq/auth: key not found")

// ErrInvalidKey is returned by DirStore for a key that cannot name a
// file.
var ErrInvalidKey = errors.New("httpq/auth: invalid key")

// A Store is secure persistent storage, such as an operating system
// keychain. Implementations must be safe for concurrent use by
// multiple goroutines.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// A MemoryStore is an in-process Store. The zero value is an empty
// store ready to use.
type MemoryStore struct {
	lock sync.Mutex
	m    map[string][]byte
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.m == nil {
		s.m = make(map[string][]byte)
	}
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.m, key)
	return nil
}

// A DirStore is a Store keeping each value in its own file, readable
// only by the owner, in directory Dir. Dir is created on the first Set.
type DirStore struct {
	Dir string
}

func (s *DirStore) Get(key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *DirStore) Set(key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.Dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err = f.Write(value); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func (s *DirStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// path maps key to a file directly inside Dir. Keys are escaped, so
// distinct keys never share a file.
func (s *DirStore) path(key string) (string, error) {
	switch key {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.Dir, url.PathEscape(key)), nil
}

// DefaultKey is the key Keychain uses when Key is empty.
const DefaultKey = "httpq.auth.history"

// A Keychain persists a token history in a Store.
type Keychain struct {
	// Store holds the encoded history. It must not be nil.
	Store Store
	// Key is the storage key. If empty, DefaultKey is used.
	Key string
	// Logger receives warnings about discarded data. If nil, nothing
	// is logged.
	Logger *zerolog.Logger
}

// Save encodes h and stores it.
func (k *Keychain) Save(h *History) error {
	b, err := EncodeHistory(h)
	if err != nil {
		return err
	}
	return k.Store.Set(k.key(), b)
}

// Restore loads the stored history. A missing entry yields an empty
// history. Corrupt data also yields an empty history: it is logged,
// deleted from the store, and never reported to the caller as an error.
// Only failures of the Store itself are returned.
func (k *Keychain) Restore() (*History, error) {
	b, err := k.Store.Get(k.key())
	if errors.Is(err, ErrNotFound) {
		return &History{}, nil
	} else if err != nil {
		return nil, err
	}
	h, err := DecodeHistory(b)
	if err != nil {
		k.logger().Warn().Err(err).Str("key", k.key()).Msg("discarding stored token history")
		if err := k.Store.Delete(k.key()); err != nil {
			k.logger().Warn().Err(err).Str("key", k.key()).Msg("failed to delete stored token history")
		}
		return &History{}, nil
	}
	return h, nil
}

// Clear deletes the stored history.
func (k *Keychain) Clear() error {
	return k.Store.Delete(k.key())
}

func (k *Keychain) key() string {
	if k.Key == "" {
		return DefaultKey
	}
	return k.Key
}

func (k *Keychain) logger() *zerolog.Logger {
	if k.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return k.Logger
}
