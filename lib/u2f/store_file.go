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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/gravitational/trace"
)

// fileStoreDocument is the on-disk JSON shape: two maps. application_keys is
// keyed by the base64 KeyHandle (see itemKey); counters is keyed by the
// base64 ApplicationParameter.
type fileStoreDocument struct {
	ApplicationKeys map[string]fileStoreKey `json:"application_keys"`
	Counters        map[string]uint32       `json:"counters"`
}

// fileStoreKey is how an ApplicationKey is serialized inside the store's
// JSON document: application and handle as base64, the private key as its
// PKCS#8 PEM text stored as-is (the PEM is not base64-wrapped).
type fileStoreKey struct {
	Application string `json:"application"`
	Handle      string `json:"handle"`
	Key         string `json:"key"`
}

// FileStore is the C4 collaborator: a single JSON document at path,
// guarded by an advisory file lock so multiple processes never interleave
// writes. Counter storage is per-application (not per-handle): every
// registered key handle for a given application shares one counter, the
// semantics spec section 4.9 recommends when unifying with the
// secret-service backend's naturally per-item counter.
type FileStore struct {
	path string
	lock *flock.Flock

	mu  sync.Mutex
	doc fileStoreDocument
}

// OpenFileStore loads (or initializes) the JSON document at path and
// acquires an advisory lock on a sibling .lock file for the lifetime of the
// returned FileStore.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, trace.Wrap(err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, trace.Wrap(err, "acquiring lock on %v", path)
	}
	if !locked {
		return nil, trace.AlreadyExists("secret store %v is locked by another process", path)
	}

	s := &FileStore{path: path, lock: lock}

	doc, err := loadFileStoreDocument(path)
	if err != nil {
		lock.Unlock()
		return nil, trace.Wrap(err)
	}
	s.doc = doc

	return s, nil
}

// Close releases the advisory lock. It does not flush anything: every
// mutating method already persists before returning.
func (s *FileStore) Close() error {
	return trace.Wrap(s.lock.Unlock())
}

func loadFileStoreDocument(path string) (fileStoreDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newFileStoreDocument(), nil
		}
		return fileStoreDocument{}, trace.Wrap(err)
	}
	if len(data) == 0 {
		return newFileStoreDocument(), nil
	}

	var doc fileStoreDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fileStoreDocument{}, trace.Wrap(err, "parsing %v", path)
	}
	if doc.ApplicationKeys == nil {
		doc.ApplicationKeys = map[string]fileStoreKey{}
	}
	if doc.Counters == nil {
		doc.Counters = map[string]uint32{}
	}
	return doc, nil
}

func newFileStoreDocument() fileStoreDocument {
	return fileStoreDocument{
		ApplicationKeys: map[string]fileStoreKey{},
		Counters:        map[string]uint32{},
	}
}

// save serializes the document to a sibling temp file, fsyncs it, and
// renames it over s.path. A crash mid-write leaves the previous version of
// the file intact. Caller must hold s.mu.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return trace.Wrap(err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".store.json.*.tmp")
	if err != nil {
		return trace.Wrap(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return trace.Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return trace.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return trace.Wrap(err)
	}

	return trace.Wrap(os.Rename(tmpPath, s.path))
}

// itemKey packs a key handle into the per-item key used to index
// application_keys. The application alone indexes counters (spec section
// 4.4's per-application semantics); the handle alone indexes individual keys,
// so multiple handles can be registered for one application, and lookups
// compare the stored application against the requested one.
func itemKey(handle KeyHandle) string {
	return handle.Base64()
}

func (s *FileStore) AddApplicationKey(key *ApplicationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.doc.ApplicationKeys[itemKey(key.Handle)]
	if ok {
		pem, err := key.Key.PEM()
		if err != nil {
			return trace.Wrap(err)
		}
		if existing.Application == key.Application.Base64() && existing.Key == string(pem) {
			return nil
		}
		return trace.AlreadyExists("a different key is already registered for this key handle")
	}

	pem, err := key.Key.PEM()
	if err != nil {
		return trace.Wrap(err)
	}

	s.doc.ApplicationKeys[itemKey(key.Handle)] = fileStoreKey{
		Application: key.Application.Base64(),
		Handle:      key.Handle.Base64(),
		Key:         string(pem),
	}

	return trace.Wrap(s.save())
}

func (s *FileStore) RetrieveApplicationKey(application ApplicationParameter, handle KeyHandle) (*ApplicationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.doc.ApplicationKeys[itemKey(handle)]
	if !ok || entry.Application != application.Base64() {
		return nil, nil
	}

	key, err := PrivateKeyFromPEM([]byte(entry.Key))
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &ApplicationKey{
		Application: application,
		Handle:      handle,
		Key:         key,
	}, nil
}

func (s *FileStore) GetAndIncrementCounter(application ApplicationParameter, handle KeyHandle) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := application.Base64()
	next := s.doc.Counters[key] + 1
	if next == 0 {
		return 0, trace.LimitExceeded("counter for application %v has overflowed", key)
	}
	s.doc.Counters[key] = next

	if err := s.save(); err != nil {
		return 0, trace.Wrap(err)
	}
	return Counter(next), nil
}
