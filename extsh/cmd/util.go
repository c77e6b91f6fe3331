// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd holds implementations of the extsh commands.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"

	"extfs.dev/extfs/extsh/config"
	"extfs.dev/extfs/pkg/ext"
	log "github.com/sirupsen/logrus"
)

// noLabel is printed in place of the label of unlabeled volumes.
const noLabel = "No Label"

// Standard streams, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Fatalf logs the message, writes it to stderr and exits with status 1.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warningf("FATAL ERROR: %s", msg)
	fmt.Fprintln(stderr, msg)
	os.Exit(1)
}

// imagePath returns the single image argument, or the configured image if
// there is none. It returns false if more than one argument was given.
func imagePath(f *flag.FlagSet, conf *config.Config) (string, bool) {
	switch f.NArg() {
	case 0:
		return conf.Image, true
	case 1:
		return f.Arg(0), true
	default:
		return "", false
	}
}

// openVolume opens path the way conf says. If the volume is not usable it
// reports so on stderr, closes it and returns nil.
func openVolume(path string, conf *config.Config) *ext.Volume {
	v := ext.Open(path, conf.VolumeMode())
	if !v.IsOpen() {
		log.Debugf("Opening %q failed: %v", path, v.Err())
		fmt.Fprintf(stderr, "Failed to open ext*fs at: '%s'\n", path)
		v.Close()
		return nil
	}
	return v
}

// displayLabel returns the label of v, or noLabel.
func displayLabel(v *ext.Volume) string {
	if v.HasLabel() {
		return v.Label()
	}
	return noLabel
}
