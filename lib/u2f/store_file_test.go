/*
Copyright 2015 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package u2f

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFileStoreLoadWithMissingFileStartsEmpty(t *testing.T) {
	store := newTestFileStore(t)

	var app ApplicationParameter
	var handle KeyHandle
	key, err := store.RetrieveApplicationKey(app, handle)
	require.NoError(t, err)
	require.Nil(t, key)
}

func TestFileStoreAddAndRetrieveApplicationKey(t *testing.T) {
	store := newTestFileStore(t)

	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	appKey, err := NewSoftwareCrypto(attestation).GenerateApplicationKey(ApplicationParameter{1, 2, 3})
	require.NoError(t, err)

	require.NoError(t, store.AddApplicationKey(appKey))

	got, err := store.RetrieveApplicationKey(appKey.Application, appKey.Handle)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, appKey.Key.PublicKeyRaw(), got.Key.PublicKeyRaw())
}

func TestFileStoreAddApplicationKeyIsIdempotentForIdenticalKey(t *testing.T) {
	store := newTestFileStore(t)

	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	appKey, err := NewSoftwareCrypto(attestation).GenerateApplicationKey(ApplicationParameter{1})
	require.NoError(t, err)

	require.NoError(t, store.AddApplicationKey(appKey))
	require.NoError(t, store.AddApplicationKey(appKey))
}

func TestFileStoreAddApplicationKeyRejectsHandleCollisionWithDifferentKey(t *testing.T) {
	store := newTestFileStore(t)

	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	crypto := NewSoftwareCrypto(attestation)

	appKey1, err := crypto.GenerateApplicationKey(ApplicationParameter{1})
	require.NoError(t, err)
	require.NoError(t, store.AddApplicationKey(appKey1))

	appKey2, err := crypto.GenerateApplicationKey(ApplicationParameter{1})
	require.NoError(t, err)
	appKey2.Handle = appKey1.Handle

	err = store.AddApplicationKey(appKey2)
	require.Error(t, err)
}

func TestFileStoreCounterIsPerApplicationNotPerHandle(t *testing.T) {
	store := newTestFileStore(t)

	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	crypto := NewSoftwareCrypto(attestation)

	app := ApplicationParameter{9}
	key1, err := crypto.GenerateApplicationKey(app)
	require.NoError(t, err)
	key2, err := crypto.GenerateApplicationKey(app)
	require.NoError(t, err)
	require.NoError(t, store.AddApplicationKey(key1))
	require.NoError(t, store.AddApplicationKey(key2))

	c1, err := store.GetAndIncrementCounter(app, key1.Handle)
	require.NoError(t, err)
	require.Equal(t, Counter(1), c1)

	c2, err := store.GetAndIncrementCounter(app, key2.Handle)
	require.NoError(t, err)
	require.Equal(t, Counter(2), c2, "counter is shared across handles for the same application")
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)

	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	appKey, err := NewSoftwareCrypto(attestation).GenerateApplicationKey(ApplicationParameter{7})
	require.NoError(t, err)
	require.NoError(t, store.AddApplicationKey(appKey))
	require.NoError(t, store.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	got, err := reopened.RetrieveApplicationKey(appKey.Application, appKey.Handle)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestOpenFileStoreFailsWhenAlreadyLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	first, err := OpenFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { first.Close() })

	_, err = OpenFileStore(path)
	require.Error(t, err)
}
