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

// Command u2fd is a software implementation of a FIDO U2F authenticator: it
// holds application keys and signs registration/authentication challenges
// on behalf of whatever transport an embedder wires in front of it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/danstiner/go-u2f/tool/u2fd/common"
)

const appHelp = "u2fd is a software FIDO U2F authenticator daemon."

func main() {
	if err := run(os.Args[1:]); err != nil {
		common.FatalError(err)
	}
}

func run(args []string) error {
	app := common.InitCLIParser("u2fd", appHelp)

	var flags common.GlobalCLIFlags
	app.Flag("debug", "Enable verbose logging.").BoolVar(&flags.Debug)
	defaultStateDir := defaultStateDir()
	app.Flag("state-dir", "Directory holding config.json and, for the file store, store.json.").Default(defaultStateDir).StringVar(&flags.StateDir)

	runCmd := &common.RunCommand{}
	configCmd := &common.ConfigCommand{}
	knownAppsCmd := &common.KnownAppsCommand{}

	runCmd.Initialize(app)
	configCmd.Initialize(app)
	knownAppsCmd.Initialize(app)

	selected, err := app.Parse(args)
	if err != nil {
		return err
	}

	common.InitLogger(flags.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, cmd := range []common.CLICommand{runCmd, configCmd, knownAppsCmd} {
		match, err := cmd.TryRun(ctx, selected, flags)
		if err != nil {
			return err
		}
		if match {
			return nil
		}
	}

	return fmt.Errorf("unhandled command %q", selected)
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".u2fd"
	}
	return filepath.Join(home, ".local", "share", "u2fd")
}
