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
	"extfs.dev/extfs/pkg/ext"
	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Probe implements subcommands.Command for the "probe" command.
type Probe struct {
	jobs int
}

// probeResult is what probing one path found.
type probeResult struct {
	path  string
	isExt bool
	label string
}

func (r probeResult) String() string {
	kind := "-"
	if r.isExt {
		kind = "ext"
	}
	return fmt.Sprintf("%s\t%s\t%s", r.path, kind, r.label)
}

// Name implements subcommands.Command.Name.
func (*Probe) Name() string {
	return "probe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Probe) Synopsis() string {
	return "report which images hold an ext file system"
}

// Usage implements subcommands.Command.Usage.
func (*Probe) Usage() string {
	return `probe [-jobs=N] <image>... - report which images hold an ext file system.

Prints one "<path> TAB ext|- TAB <label>" line per image, in argument order.
Exits with status 1 if any image is not an ext file system.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Probe) SetFlags(f *flag.FlagSet) {
	f.IntVar(&p.jobs, "jobs", 0, "number of images probed concurrently. Defaults to the global -jobs.")
}

// Execute implements subcommands.Command.Execute.
func (p *Probe) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	jobs := p.jobs
	if jobs <= 0 {
		jobs = conf.Jobs
	}

	results, err := probeAll(ctx, f.Args(), conf.VolumeMode(), jobs)
	if err != nil {
		log.Warningf("Probe interrupted: %v", err)
		return subcommands.ExitFailure
	}

	status := subcommands.ExitSuccess
	for _, r := range results {
		fmt.Fprintln(stdout, r)
		if !r.isExt {
			status = subcommands.ExitFailure
		}
	}
	return status
}

// probeAll opens every path with at most jobs volumes open at once. Results
// are in the order of paths.
func probeAll(ctx context.Context, paths []string, mode ext.Mode, jobs int) ([]probeResult, error) {
	results := make([]probeResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v := ext.Open(path, mode)
			defer v.Close()
			results[i] = probeResult{
				path:  path,
				isExt: v.IsOpen(),
				label: v.Label(),
			}
			log.Debugf("Probed %q: ext=%t", path, v.IsOpen())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
