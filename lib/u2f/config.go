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

	"github.com/gravitational/trace"
)

// SecretStoreType selects which Store backend a daemon run uses. It is a
// closed set fixed by this package, not an open interface: every value is
// switched on by openStore in tool/u2fd/common/run.go, so adding a backend
// means adding both a value here and a case there.
type SecretStoreType string

const (
	// SecretStoreFile selects the flat JSON file backend (see store_file.go).
	// "File" is the exact on-disk token; config.json written by any
	// conforming implementation of this daemon must use it verbatim.
	SecretStoreFile SecretStoreType = "File"
	// SecretStoreSecretService selects the secret-service D-Bus backend (see
	// store_secretservice.go). "SecretService" is the exact on-disk token.
	SecretStoreSecretService SecretStoreType = "SecretService"
)

// Config is the persisted daemon configuration.
type Config struct {
	SecretStoreType SecretStoreType `json:"secret_store_type"`
}

// DefaultConfig returns the configuration a freshly installed daemon starts
// with: the file backend, which requires no system services.
func DefaultConfig() Config {
	return Config{SecretStoreType: SecretStoreFile}
}

// ConfigFilePath returns the config.json path within a daemon state
// directory.
func ConfigFilePath(stateDir string) string {
	return filepath.Join(stateDir, "config.json")
}

// LoadConfig reads and parses the config file at path. It returns
// (Config{}, false, nil) if the file does not exist, so callers can fall
// back to DefaultConfig on first run.
func LoadConfig(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}
		return Config{}, false, trace.Wrap(err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, trace.Wrap(err, "parsing %v", path)
	}
	return cfg, true, nil
}

// SaveConfig writes cfg to path as pretty-printed JSON, replacing any
// existing file atomically: it writes to a sibling temp file, syncs it, then
// renames over the destination so a crash mid-write can never leave a
// truncated config.json behind.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return trace.Wrap(err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return trace.Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config.json.*.tmp")
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

	if err := os.Rename(tmpPath, path); err != nil {
		return trace.Wrap(err)
	}
	return nil
}
