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
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"extfs.dev/extfs/extsh/config"
	"extfs.dev/extfs/pkg/abi/linux"
	"extfs.dev/extfs/pkg/ext"
	"github.com/google/subcommands"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Info implements subcommands.Command for the "info" command.
type Info struct {
	format string
}

// VolumeInfo is the summary printed by the "info" command.
type VolumeInfo struct {
	Path          string        `json:"path" yaml:"path"`
	Label         string        `json:"label" yaml:"label"`
	UUID          string        `json:"uuid" yaml:"uuid"`
	Revision      string        `json:"revision" yaml:"revision"`
	State         string        `json:"state" yaml:"state"`
	ErrorPolicy   string        `json:"error_policy" yaml:"error_policy"`
	CreatorOS     string        `json:"creator_os" yaml:"creator_os"`
	BlockSize     uint64        `json:"block_size" yaml:"block_size"`
	FragmentSize  uint64        `json:"fragment_size" yaml:"fragment_size"`
	InodeSize     uint16        `json:"inode_size" yaml:"inode_size"`
	Blocks        uint32        `json:"blocks" yaml:"blocks"`
	FreeBlocks    uint32        `json:"free_blocks" yaml:"free_blocks"`
	Reserved      uint32        `json:"reserved_blocks" yaml:"reserved_blocks"`
	Inodes        uint32        `json:"inodes" yaml:"inodes"`
	FreeInodes    uint32        `json:"free_inodes" yaml:"free_inodes"`
	BlocksPerGrp  uint32        `json:"blocks_per_group" yaml:"blocks_per_group"`
	InodesPerGrp  uint32        `json:"inodes_per_group" yaml:"inodes_per_group"`
	MountCount    uint16        `json:"mount_count" yaml:"mount_count"`
	MaxMountCount int16         `json:"max_mount_count" yaml:"max_mount_count"`
	LastMounted   string        `json:"last_mounted,omitempty" yaml:"last_mounted,omitempty"`
	MountTime     time.Time     `json:"mount_time" yaml:"mount_time"`
	WriteTime     time.Time     `json:"write_time" yaml:"write_time"`
	LastCheck     time.Time     `json:"last_check" yaml:"last_check"`
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
	HashVersion   string        `json:"hash_version" yaml:"hash_version"`
	JournalUUID   string        `json:"journal_uuid,omitempty" yaml:"journal_uuid,omitempty"`
	Compression   []string      `json:"compression,omitempty" yaml:"compression,omitempty"`
	Features      FeatureInfo   `json:"features" yaml:"features"`
	Mountable     bool          `json:"mountable" yaml:"mountable"`
	DeviceSize    uint64        `json:"device_size,omitempty" yaml:"device_size,omitempty"`
	StatFS        linux.Statfs  `json:"statfs" yaml:"statfs"`
}

// FeatureInfo lists the features of a volume by namespace.
type FeatureInfo struct {
	Compat   []string `json:"compat" yaml:"compat"`
	Incompat []string `json:"incompat" yaml:"incompat"`
	RoCompat []string `json:"ro_compat" yaml:"ro_compat"`

	// Unknown holds the bits of each namespace that have no name, in hex.
	Unknown map[string]string `json:"unknown,omitempty" yaml:"unknown,omitempty"`
}

type infoOutputFunc func(io.Writer, *VolumeInfo) error

// infoOutputs maps -format values to output functions.
var infoOutputs = map[string]infoOutputFunc{
	"text": infoText,
	"json": infoJSON,
	"yaml": infoYAML,
}

// Name implements subcommands.Command.Name.
func (*Info) Name() string {
	return "info"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Info) Synopsis() string {
	return "print a summary of the superblock"
}

// Usage implements subcommands.Command.Usage.
func (*Info) Usage() string {
	return `info [-format=text|json|yaml] [image] - print a summary of the superblock.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (i *Info) SetFlags(f *flag.FlagSet) {
	f.StringVar(&i.format, "format", "text", "output format (text, json, yaml).")
}

// Execute implements subcommands.Command.Execute.
func (i *Info) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	out, ok := infoOutputs[i.format]
	if !ok {
		fmt.Fprintf(stderr, "unsupported output format %q\n", i.format)
		return subcommands.ExitUsageError
	}
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

	info := newVolumeInfo(v)
	if size, err := deviceSize(path); err != nil {
		log.Debugf("Size of %q unknown: %v", path, err)
	} else {
		info.DeviceSize = size
	}

	if err := out(stdout, info); err != nil {
		Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// newVolumeInfo summarizes the superblock of v.
func newVolumeInfo(v *ext.Volume) *VolumeInfo {
	sb := v.SuperBlock()
	info := &VolumeInfo{
		Path:          v.Path(),
		Label:         v.Label(),
		UUID:          sb.UUID().String(),
		Revision:      sb.Revision().String(),
		State:         sb.FSState().String(),
		ErrorPolicy:   sb.ErrorPolicy().String(),
		CreatorOS:     sb.OS().String(),
		BlockSize:     sb.BlockSize(),
		FragmentSize:  sb.FragmentSize(),
		InodeSize:     sb.InodeSize(),
		Blocks:        sb.BlocksCount,
		FreeBlocks:    sb.FreeBlocksCount,
		Reserved:      sb.ReservedBlocksCount,
		Inodes:        sb.InodesCount,
		FreeInodes:    sb.FreeInodesCount,
		BlocksPerGrp:  sb.BlocksPerGroup,
		InodesPerGrp:  sb.InodesPerGroup,
		MountCount:    sb.MountCount,
		MaxMountCount: int16(sb.MaxMountCount),
		LastMounted:   sb.LastMountPoint(),
		MountTime:     sb.MountTimestamp(),
		WriteTime:     sb.WriteTimestamp(),
		LastCheck:     sb.LastCheckTimestamp(),
		CheckInterval: sb.CheckIntervalDuration(),
		HashVersion:   sb.HashVersion().String(),
		Compression:   flagNames(sb.Compression().List()),
		Features: FeatureInfo{
			Compat:   flagNames(sb.CompatibleFeatures().List()),
			Incompat: flagNames(sb.IncompatibleFeatures().List()),
			RoCompat: flagNames(sb.ReadOnlyCompatibleFeatures().List()),
		},
		Mountable: v.Mountable(),
		StatFS:    sb.StatFS(),
	}
	if id := sb.JournalUUID(); id != uuid.Nil {
		info.JournalUUID = id.String()
	}
	if len(info.Compression) == 0 {
		info.Compression = nil
	}
	for ns, bits := range map[string]uint32{
		nsCompat:   sb.CompatibleFeatures().Unknown(),
		nsIncompat: sb.IncompatibleFeatures().Unknown(),
		nsRoCompat: sb.ReadOnlyCompatibleFeatures().Unknown(),
	} {
		if bits == 0 {
			continue
		}
		if info.Features.Unknown == nil {
			info.Features.Unknown = make(map[string]string)
		}
		info.Features.Unknown[ns] = fmt.Sprintf("%#x", bits)
	}
	return info
}

// deviceSize returns the size in bytes of the regular file or block device at
// path.
func deviceSize(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	switch mode := fi.Mode(); {
	case mode.IsRegular():
		return uint64(fi.Size()), nil
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0:
		return blockDeviceSize(f)
	default:
		return 0, fmt.Errorf("%q is neither a regular file nor a block device", path)
	}
}

func infoJSON(w io.Writer, info *VolumeInfo) error {
	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func infoYAML(w io.Writer, info *VolumeInfo) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(info); err != nil {
		return err
	}
	return enc.Close()
}

func infoText(w io.Writer, info *VolumeInfo) error {
	label := info.Label
	if label == "" {
		label = noLabel
	}
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	row := func(key string, value any) {
		fmt.Fprintf(tw, "%s:\t%v\n", key, value)
	}
	row("Path", info.Path)
	row("Label", label)
	row("UUID", info.UUID)
	row("Revision", info.Revision)
	row("State", info.State)
	row("Errors behavior", info.ErrorPolicy)
	row("Creator OS", info.CreatorOS)
	row("Block size", info.BlockSize)
	row("Fragment size", info.FragmentSize)
	row("Inode size", info.InodeSize)
	row("Block count", info.Blocks)
	row("Free blocks", info.FreeBlocks)
	row("Reserved blocks", info.Reserved)
	row("Inode count", info.Inodes)
	row("Free inodes", info.FreeInodes)
	row("Blocks per group", info.BlocksPerGrp)
	row("Inodes per group", info.InodesPerGrp)
	row("Mount count", info.MountCount)
	row("Maximum mount count", info.MaxMountCount)
	if info.LastMounted != "" {
		row("Last mounted on", info.LastMounted)
	}
	row("Last mount time", formatTime(info.MountTime))
	row("Last write time", formatTime(info.WriteTime))
	row("Last checked", formatTime(info.LastCheck))
	row("Check interval", info.CheckInterval)
	row("Default hash", info.HashVersion)
	if info.JournalUUID != "" {
		row("Journal UUID", info.JournalUUID)
	}
	if len(info.Compression) > 0 {
		row("Compression", strings.Join(info.Compression, ","))
	}
	row("Features (compat)", joinNames(info.Features.Compat))
	row("Features (incompat)", joinNames(info.Features.Incompat))
	row("Features (ro_compat)", joinNames(info.Features.RoCompat))
	nss := make([]string, 0, len(info.Features.Unknown))
	for ns := range info.Features.Unknown {
		nss = append(nss, ns)
	}
	sort.Strings(nss)
	for _, ns := range nss {
		row(fmt.Sprintf("Unknown features (%s)", ns), info.Features.Unknown[ns])
	}
	row("Mountable", info.Mountable)
	if info.DeviceSize != 0 {
		row("Device size", info.DeviceSize)
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.Unix() == 0 {
		return "n/a"
	}
	return t.Format(time.RFC3339)
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ",")
}
