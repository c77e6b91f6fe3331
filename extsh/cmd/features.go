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
	"io"
	"text/tabwriter"

	"extfs.dev/extfs/extsh/config"
	"extfs.dev/extfs/pkg/ext/disklayout"
	"github.com/google/subcommands"
)

// Feature namespaces accepted by -namespace.
const (
	nsCompat   = "compat"
	nsIncompat = "incompat"
	nsRoCompat = "ro_compat"
)

// Features implements subcommands.Command for the "features" command.
type Features struct {
	namespace string
}

// Name implements subcommands.Command.Name.
func (*Features) Name() string {
	return "features"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Features) Synopsis() string {
	return "list the feature flags of a volume"
}

// Usage implements subcommands.Command.Usage.
func (*Features) Usage() string {
	return `features [-namespace=compat|incompat|ro_compat] [image] - list feature flags.

Without -namespace, prints one line per namespace. With it, prints the
features of that namespace one per line, followed by unknown bits in hex.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (fs *Features) SetFlags(f *flag.FlagSet) {
	f.StringVar(&fs.namespace, "namespace", "", "only list this namespace: compat, incompat or ro_compat.")
}

// Execute implements subcommands.Command.Execute.
func (fs *Features) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	path, ok := imagePath(f, conf)
	if !ok {
		f.Usage()
		return subcommands.ExitUsageError
	}
	switch fs.namespace {
	case "", nsCompat, nsIncompat, nsRoCompat:
	default:
		fmt.Fprintf(stderr, "unknown namespace %q\n", fs.namespace)
		return subcommands.ExitUsageError
	}

	v := openVolume(path, conf)
	if v == nil {
		return subcommands.ExitFailure
	}
	defer v.Close()

	if err := writeFeatures(stdout, v.SuperBlock(), fs.namespace); err != nil {
		Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// writeFeatures writes the features of sb in namespace ns, or a summary of all
// namespaces if ns is empty.
func writeFeatures(w io.Writer, sb disklayout.SuperBlock, ns string) error {
	var names []string
	var unknown uint32
	switch ns {
	case "":
		tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
		fmt.Fprintf(tw, "%s:\t%v\n", nsCompat, sb.CompatibleFeatures())
		fmt.Fprintf(tw, "%s:\t%v\n", nsIncompat, sb.IncompatibleFeatures())
		fmt.Fprintf(tw, "%s:\t%v\n", nsRoCompat, sb.ReadOnlyCompatibleFeatures())
		return tw.Flush()
	case nsCompat:
		names = flagNames(sb.CompatibleFeatures().List())
		unknown = sb.CompatibleFeatures().Unknown()
	case nsIncompat:
		names = flagNames(sb.IncompatibleFeatures().List())
		unknown = sb.IncompatibleFeatures().Unknown()
	case nsRoCompat:
		names = flagNames(sb.ReadOnlyCompatibleFeatures().List())
		unknown = sb.ReadOnlyCompatibleFeatures().Unknown()
	default:
		return fmt.Errorf("unknown namespace %q", ns)
	}

	for _, name := range names {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	if unknown != 0 {
		if _, err := fmt.Fprintf(w, "%#x\n", unknown); err != nil {
			return err
		}
	}
	return nil
}

func flagNames[F fmt.Stringer](fs []F) []string {
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.String())
	}
	return names
}
