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

package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"extfs.dev/extfs/extsh/config"
	"extfs.dev/extfs/pkg/ext"
	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Shell implements subcommands.Command for the "shell" command.
type Shell struct{}

// Name implements subcommands.Command.Name.
func (*Shell) Name() string {
	return "shell"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Shell) Synopsis() string {
	return "interactively inspect a volume"
}

// Usage implements subcommands.Command.Usage.
func (*Shell) Usage() string {
	return `shell [image] - interactively inspect a volume.

Commands are read from stdin, one word at a time:
  label     print the volume label
  features  list feature flags by namespace
  info      print a summary of the superblock
  help      list commands
  exit      leave the shell (also: quit)
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Shell) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Shell) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	path, ok := imagePath(f, conf)
	if !ok {
		f.Usage()
		return subcommands.ExitUsageError
	}

	v := openVolume(path, conf)
	if v == nil {
		return subcommands.ExitFailure
	}
	defer v.Close()

	if err := repl(stdin, stdout, v, isTerminal(stdin)); err != nil {
		log.Warningf("Reading commands: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// repl runs commands read from in against v until "exit" or the end of in.
// The prompt is only written if prompt is set.
func repl(in io.Reader, out io.Writer, v *ext.Volume, prompt bool) error {
	s := bufio.NewScanner(in)
	s.Split(bufio.ScanWords)
	for {
		if prompt {
			fmt.Fprintf(out, "[%s] >>> ", displayLabel(v))
		}
		if !s.Scan() {
			if prompt {
				fmt.Fprintln(out)
			}
			return s.Err()
		}

		switch command := s.Text(); command {
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case "label":
			fmt.Fprintln(out, displayLabel(v))
		case "features":
			if err := writeFeatures(out, v.SuperBlock(), ""); err != nil {
				return err
			}
		case "info":
			if err := infoText(out, newVolumeInfo(v)); err != nil {
				return err
			}
		case "help":
			fmt.Fprintln(out, "commands: label, features, info, help, exit, quit")
		default:
			log.Debugf("Unknown shell command %q", command)
			fmt.Fprintln(out, "unknown command")
		}
	}
}
