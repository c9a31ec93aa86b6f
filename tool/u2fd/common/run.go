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

package common

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gravitational/kingpin"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/danstiner/go-u2f/lib/u2f"
	"github.com/danstiner/go-u2f/lib/u2f/knownapps"
)

var log = logrus.WithFields(logrus.Fields{
	trace.Component: "u2fd",
})

// RunCommand implements `u2fd run`: load config, open the configured store,
// build the core, then block until the context is cancelled. It serves no
// requests itself: this standalone binary exposes only the daemon's
// lifecycle; wiring it to an
// actual USB/HID or virtual transport is left to the embedder per spec
// section 4.10's non-goal on transport framing.
type RunCommand struct {
	cmd      *kingpin.CmdClause
	certPath string
	keyPath  string
}

// ConfigCommand implements `u2fd config show` and `u2fd config set-store`.
type ConfigCommand struct {
	show     *kingpin.CmdClause
	setStore *kingpin.CmdClause
	store    string
}

// KnownAppsCommand implements `u2fd known-apps`, listing the fixed
// reverse-lookup table for operator debugging.
type KnownAppsCommand struct {
	cmd *kingpin.CmdClause
}

// Initialize registers RunCommand's flags on app.
func (c *RunCommand) Initialize(app *kingpin.Application) {
	c.cmd = app.Command("run", "Run the U2F authenticator daemon in the foreground.")
	c.cmd.Flag("attestation-cert", "Path to a DER-encoded attestation certificate.").StringVar(&c.certPath)
	c.cmd.Flag("attestation-key", "Path to a PEM-encoded (PKCS#8) attestation private key.").StringVar(&c.keyPath)
}

// TryRun runs the daemon if selectedCommand is "run".
func (c *RunCommand) TryRun(ctx context.Context, selectedCommand string, flags GlobalCLIFlags) (match bool, err error) {
	if selectedCommand != c.cmd.FullCommand() {
		return false, nil
	}

	cfgPath := u2f.ConfigFilePath(flags.StateDir)
	cfg, found, err := u2f.LoadConfig(cfgPath)
	if err != nil {
		return true, trace.Wrap(err)
	}
	if !found {
		cfg = u2f.DefaultConfig()
		if err := u2f.SaveConfig(cfgPath, cfg); err != nil {
			return true, trace.Wrap(err)
		}
		log.Infof("No configuration found at %v, wrote default configuration.", cfgPath)
	}

	attestation, err := c.loadOrGenerateAttestation()
	if err != nil {
		return true, trace.Wrap(err)
	}

	store, closeStore, err := openStore(cfg, flags.StateDir)
	if err != nil {
		return true, trace.Wrap(err)
	}
	defer closeStore()

	core := u2f.NewCore(u2f.AlwaysApprove{}, u2f.NewSoftwareCrypto(attestation), store)

	log.Infof("u2fd ready, version %s, store %v.", core.GetVersionString(), cfg.SecretStoreType)
	<-ctx.Done()
	return true, nil
}

func (c *RunCommand) loadOrGenerateAttestation() (u2f.Attestation, error) {
	if c.certPath != "" && c.keyPath != "" {
		return u2f.LoadAttestation(c.certPath, c.keyPath)
	}

	// No attestation material configured; this is fine for local testing
	// against relying parties that don't verify the attestation chain, but
	// every run generates a fresh one rather than persisting it, so an
	// embedder that needs a stable attestation identity across restarts
	// must pass --attestation-cert/--attestation-key.
	log.Warn("No attestation certificate/key configured, generating an ephemeral self-signed one.")
	return u2f.GenerateSelfSignedAttestation(0, 1<<34)
}

func openStore(cfg u2f.Config, stateDir string) (u2f.Store, func(), error) {
	switch cfg.SecretStoreType {
	case u2f.SecretStoreFile:
		path := filepath.Join(stateDir, "store.json")
		store, err := u2f.OpenFileStore(path)
		if err != nil {
			return nil, nil, trace.Wrap(err)
		}
		return store, func() { store.Close() }, nil
	case u2f.SecretStoreSecretService:
		store, err := u2f.OpenSecretServiceStore()
		if err != nil {
			return nil, nil, trace.Wrap(err)
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, trace.BadParameter("unknown secret store type %q", cfg.SecretStoreType)
	}
}

// Initialize registers ConfigCommand's flags on app.
func (c *ConfigCommand) Initialize(app *kingpin.Application) {
	configCmd := app.Command("config", "Inspect or change the daemon's persisted configuration.")
	c.show = configCmd.Command("show", "Print the current configuration.")
	c.setStore = configCmd.Command("set-store", "Change which secret store backend the daemon uses.")
	c.setStore.Arg("type", "File|SecretService").Required().StringVar(&c.store)
}

// TryRun handles `config show` and `config set-store`.
func (c *ConfigCommand) TryRun(ctx context.Context, selectedCommand string, flags GlobalCLIFlags) (match bool, err error) {
	cfgPath := u2f.ConfigFilePath(flags.StateDir)

	switch selectedCommand {
	case c.show.FullCommand():
		cfg, found, err := u2f.LoadConfig(cfgPath)
		if err != nil {
			return true, trace.Wrap(err)
		}
		if !found {
			fmt.Println("(no configuration file written yet, default would be used)")
			return true, nil
		}
		fmt.Printf("secret_store_type: %s\n", cfg.SecretStoreType)
		return true, nil

	case c.setStore.FullCommand():
		var storeType u2f.SecretStoreType
		switch c.store {
		case string(u2f.SecretStoreFile):
			storeType = u2f.SecretStoreFile
		case string(u2f.SecretStoreSecretService):
			storeType = u2f.SecretStoreSecretService
		default:
			return true, trace.BadParameter("unknown store type %q, expected %q or %q", c.store, u2f.SecretStoreFile, u2f.SecretStoreSecretService)
		}
		if err := u2f.SaveConfig(cfgPath, u2f.Config{SecretStoreType: storeType}); err != nil {
			return true, trace.Wrap(err)
		}
		fmt.Printf("secret_store_type set to %s\n", storeType)
		return true, nil
	}

	return false, nil
}

// Initialize registers KnownAppsCommand's flags on app.
func (c *KnownAppsCommand) Initialize(app *kingpin.Application) {
	c.cmd = app.Command("known-apps", "List known AppID hashes this daemon can reverse to a hostname.")
}

// TryRun prints the fixed known-app table.
func (c *KnownAppsCommand) TryRun(ctx context.Context, selectedCommand string, flags GlobalCLIFlags) (match bool, err error) {
	if selectedCommand != c.cmd.FullCommand() {
		return false, nil
	}

	bogus := knownapps.BogusAppIDHash
	if _, ok := knownapps.Reverse(bogus); ok {
		return true, trace.BadParameter("bogus AppID hash unexpectedly present in the known-app table")
	}

	for _, entry := range knownapps.All() {
		fmt.Fprintf(os.Stdout, "%-24s %s\n", entry.Hostname, base64.StdEncoding.EncodeToString(entry.Hash[:]))
	}
	return true, nil
}
