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
	"context"
	"flag"
	"fmt"

	"extfs.dev/extfs/extsh/config"
	"github.com/google/subcommands"
)

// Label implements subcommands.Command for the "label" command.
type Label struct{}

// Name implements subcommands.Command.Name.
func (*Label) Name() string {
	return "label"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Label) Synopsis() string {
	return "print the volume label"
}

// Usage implements subcommands.Command.Usage.
func (*Label) Usage() string {
	return `label [image] - print the volume label, or "No Label".
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Label) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Label) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
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

	fmt.Fprintln(stdout, displayLabel(v))
	return subcommands.ExitSuccess
}
