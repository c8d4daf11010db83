// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func newMockStore(t *testing.T) *mockStore {
	m := &mockStore{}
	m.Test(t)
	return m
}

func (m *mockStore) Get(key string) ([]byte, error) {
	args := m.Called(key)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *mockStore) Set(key string, value []byte) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *mockStore) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func TestMemoryStore(t *testing.T) {
	var s MemoryStore
	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete("k"))

	v := []byte("value")
	require.NoError(t, s.Set("k", v))
	v[0] = 'X'
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
	got[0] = 'Y'
	got, _ = s.Get("k")
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	s := &DirStore{Dir: dir}
	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete("k"))

	require.NoError(t, s.Set("k", []byte("one")))
	require.NoError(t, s.Set("k", []byte("two")))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	fi, err := os.Stat(filepath.Join(dir, "k"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	t.Run("key stays inside dir", func(t *testing.T) {
		require.NoError(t, s.Set("../escape", []byte("x")))
		_, err := os.Stat(filepath.Join(dir, "..%2Fescape"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape"))
		assert.True(t, errors.Is(err, os.ErrNotExist))
		require.NoError(t, s.Delete("../escape"))
	})

	t.Run("distinct keys", func(t *testing.T) {
		require.NoError(t, s.Set("a/b", []byte("slash")))
		require.NoError(t, s.Set("b", []byte("plain")))
		require.NoError(t, s.Set(`a\b`, []byte("backslash")))
		for key, want := range map[string]string{"a/b": "slash", "b": "plain", `a\b`: "backslash"} {
			b, err := s.Get(key)
			require.NoError(t, err, key)
			assert.Equal(t, want, string(b), key)
		}
		require.NoError(t, s.Delete("a/b"))
		b, err := s.Get("b")
		require.NoError(t, err)
		assert.Equal(t, "plain", string(b))
		require.NoError(t, s.Delete("b"))
		require.NoError(t, s.Delete(`a\b`))
	})

	t.Run("invalid key", func(t *testing.T) {
		for _, key := range []string{"", ".", ".."} {
			assert.ErrorIs(t, s.Set(key, []byte("x")), ErrInvalidKey, key)
			_, err := s.Get(key)
			assert.ErrorIs(t, err, ErrInvalidKey, key)
			assert.ErrorIs(t, s.Delete(key), ErrInvalidKey, key)
		}
	})

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("keychain", func(t *testing.T) {
		k := &Keychain{Store: s}
		h := &History{}
		require.NoError(t, h.Append(mustToken(t, WithAuthToken("a"), WithStartTime(t0))))
		require.NoError(t, k.Save(h))
		restored, err := (&Keychain{Store: &DirStore{Dir: dir}}).Restore()
		require.NoError(t, err)
		assert.Equal(t, h.Entries(), restored.Entries())
	})
}

func TestKeychain_SaveRestore(t *testing.T) {
	store := &MemoryStore{}
	k := &Keychain{Store: store}
	h, err := NewHistory(
		mustToken(t, WithAuthToken("a"), WithStartTime(t0)),
		mustToken(t, WithAuthToken("b"), WithStartTime(t0.Add(time.Hour))),
	)
	require.NoError(t, err)
	require.NoError(t, k.Save(h))
	_, err = store.Get(DefaultKey)
	require.NoError(t, err)

	restored, err := k.Restore()
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())
	tok, ok := restored.Applicable(t0.Add(30 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, "a", secretOf(tok))

	require.NoError(t, k.Clear())
	restored, err = k.Restore()
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Len())
}

func TestKeychain_RestoreMissing(t *testing.T) {
	k := &Keychain{Store: &MemoryStore{}, Key: "custom"}
	h, err := k.Restore()
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
}

func TestKeychain_RestoreCorrupt(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	store := newMockStore(t)
	store.On("Get", "custom").Return([]byte(`{"v":1,"tokens":[{"startTime":"nope"}]}`), nil).Once()
	store.On("Delete", "custom").Return(nil).Once()
	k := &Keychain{Store: store, Key: "custom", Logger: &logger}

	h, err := k.Restore()
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
	store.AssertExpectations(t)
	assert.Contains(t, buf.String(), "discarding stored token history")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestKeychain_StoreFailure(t *testing.T) {
	boom := errors.New("keychain locked")
	store := newMockStore(t)
	store.On("Get", DefaultKey).Return(nil, boom).Once()
	store.On("Set", DefaultKey, mock.Anything).Return(boom).Once()
	k := &Keychain{Store: store}

	_, err := k.Restore()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, k.Save(&History{}), boom)
	store.AssertExpectations(t)
}
