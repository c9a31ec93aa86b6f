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

// Package common implements the u2fd command-line tool: argument parsing,
// logging setup, and the run/config/known-apps subcommands. The layout
// mirrors tctl's CLICommand/Run/TryRun split so that output routing is
// consistent whether u2fd is invoked directly or driven from tests.
package common

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/gravitational/kingpin"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// CLICommand is implemented by every u2fd subcommand. Initialize registers
// the subcommand's flags; TryRun is called once after parsing and must
// report whether selectedCommand belonged to it.
type CLICommand interface {
	Initialize(app *kingpin.Application)
	TryRun(ctx context.Context, selectedCommand string, flags GlobalCLIFlags) (match bool, err error)
}

// GlobalCLIFlags holds flags shared by every u2fd subcommand.
type GlobalCLIFlags struct {
	Debug    bool
	StateDir string
}

// InitLogger configures the global logrus logger. Debug mode writes
// human-readable logs to stderr; otherwise only warnings and above are
// shown, matching the "quiet unless something's wrong" CLI convention.
func InitLogger(debug bool) {
	logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	logrus.SetOutput(os.Stderr)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.WarnLevel)
}

// InitCLIParser builds the kingpin application shared by every subcommand.
func InitCLIParser(appName, appHelp string) *kingpin.Application {
	app := kingpin.New(appName, appHelp)
	app.HelpFlag.Hidden()
	app.HelpFlag.NoEnvar()
	return app
}

// UserMessageFromError renders err the way a user should see it: the full
// trace.DebugReport in debug mode, otherwise just the message of the original
// (innermost) error; messages added by trace.Wrap are not shown.
func UserMessageFromError(err error) string {
	if err == nil {
		return ""
	}
	if logrus.GetLevel() == logrus.DebugLevel {
		return trace.DebugReport(err)
	}
	var buf bytes.Buffer
	fmt.Fprint(&buf, "ERROR: ")
	if traceErr, ok := err.(*trace.TraceErr); ok {
		fmt.Fprintln(&buf, trace.Unwrap(traceErr).Error())
	} else {
		fmt.Fprintln(&buf, err.Error())
	}
	return buf.String()
}

// FatalError prints err in user-friendly form and exits with status 1.
func FatalError(err error) {
	fmt.Fprintln(os.Stderr, UserMessageFromError(err))
	os.Exit(1)
}
