// Copyright 2019 The gVisor Authors.
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

package disklayout

import (
	"fmt"
	"strings"
)

// The superblock carries three independent feature bitmasks. The same bit
// means different things in each of them, so every namespace gets its own
// flag type and its own set type; a flag of one namespace cannot be used to
// query another.
//
// Names follow mke2fs(8) and e2fsprogs' lib/e2p/feature.c.

// CompatFeature is a single compatible feature flag.
type CompatFeature uint32

// Compatible features.
const (
	CompatDirPrealloc   CompatFeature = 0x1
	CompatImagicInodes  CompatFeature = 0x2
	CompatHasJournal    CompatFeature = 0x4
	CompatExtAttr       CompatFeature = 0x8
	CompatResizeInode   CompatFeature = 0x10
	CompatDirIndex      CompatFeature = 0x20
	CompatLazyBG        CompatFeature = 0x40
	CompatExcludeInode  CompatFeature = 0x80
	CompatExcludeBitmap CompatFeature = 0x100
	CompatSparseSuper2  CompatFeature = 0x200
)

// IncompatFeature is a single incompatible feature flag.
type IncompatFeature uint32

// Incompatible features.
const (
	IncompatCompression IncompatFeature = 0x1
	IncompatFileType    IncompatFeature = 0x2
	IncompatRecover     IncompatFeature = 0x4
	IncompatJournalDev  IncompatFeature = 0x8
	IncompatMetaBG      IncompatFeature = 0x10
	IncompatExtents     IncompatFeature = 0x40
	IncompatIs64Bit     IncompatFeature = 0x80
	IncompatMMP         IncompatFeature = 0x100
	IncompatFlexBG      IncompatFeature = 0x200
	IncompatEAInode     IncompatFeature = 0x400
	IncompatDirData     IncompatFeature = 0x1000
	IncompatCsumSeed    IncompatFeature = 0x2000
	IncompatLargeDir    IncompatFeature = 0x4000
	IncompatInlineData  IncompatFeature = 0x8000
	IncompatEncrypt     IncompatFeature = 0x10000
)

// RoCompatFeature is a single read-only compatible feature flag.
type RoCompatFeature uint32

// Read-only compatible features.
const (
	RoCompatSparseSuper  RoCompatFeature = 0x1
	RoCompatLargeFile    RoCompatFeature = 0x2
	RoCompatBtreeDir     RoCompatFeature = 0x4
	RoCompatHugeFile     RoCompatFeature = 0x8
	RoCompatGdtCsum      RoCompatFeature = 0x10
	RoCompatDirNlink     RoCompatFeature = 0x20
	RoCompatExtraIsize   RoCompatFeature = 0x40
	RoCompatHasSnapshot  RoCompatFeature = 0x80
	RoCompatQuota        RoCompatFeature = 0x100
	RoCompatBigAlloc     RoCompatFeature = 0x200
	RoCompatMetadataCsum RoCompatFeature = 0x400
	RoCompatReplica      RoCompatFeature = 0x800
	RoCompatReadOnly     RoCompatFeature = 0x1000
	RoCompatProject      RoCompatFeature = 0x2000
)

// CompressionAlgorithm is a single compression algorithm flag.
type CompressionAlgorithm uint32

// Compression algorithms, from the ext2 compression patches.
const (
	CompressLZV1   CompressionAlgorithm = 0x1
	CompressLZRW3A CompressionAlgorithm = 0x2
	CompressGZIP   CompressionAlgorithm = 0x4
	CompressBZIP2  CompressionAlgorithm = 0x8
	CompressLZO    CompressionAlgorithm = 0x10
)

type flag interface {
	~uint32
}

type flagName[F flag] struct {
	flag F
	name string
}

// Name tables are sorted by flag value.
var (
	compatNames = []flagName[CompatFeature]{
		{CompatDirPrealloc, "dir_prealloc"},
		{CompatImagicInodes, "imagic_inodes"},
		{CompatHasJournal, "has_journal"},
		{CompatExtAttr, "ext_attr"},
		{CompatResizeInode, "resize_inode"},
		{CompatDirIndex, "dir_index"},
		{CompatLazyBG, "lazy_bg"},
		{CompatExcludeInode, "snapshot_exclude_inode"},
		{CompatExcludeBitmap, "snapshot_exclude_bitmap"},
		{CompatSparseSuper2, "sparse_super2"},
	}

	incompatNames = []flagName[IncompatFeature]{
		{IncompatCompression, "compression"},
		{IncompatFileType, "filetype"},
		{IncompatRecover, "needs_recovery"},
		{IncompatJournalDev, "journal_dev"},
		{IncompatMetaBG, "meta_bg"},
		{IncompatExtents, "extent"},
		{IncompatIs64Bit, "64bit"},
		{IncompatMMP, "mmp"},
		{IncompatFlexBG, "flex_bg"},
		{IncompatEAInode, "ea_inode"},
		{IncompatDirData, "dirdata"},
		{IncompatCsumSeed, "metadata_csum_seed"},
		{IncompatLargeDir, "large_dir"},
		{IncompatInlineData, "inline_data"},
		{IncompatEncrypt, "encrypt"},
	}

	roCompatNames = []flagName[RoCompatFeature]{
		{RoCompatSparseSuper, "sparse_super"},
		{RoCompatLargeFile, "large_file"},
		{RoCompatBtreeDir, "btree_dir"},
		{RoCompatHugeFile, "huge_file"},
		{RoCompatGdtCsum, "uninit_bg"},
		{RoCompatDirNlink, "dir_nlink"},
		{RoCompatExtraIsize, "extra_isize"},
		{RoCompatHasSnapshot, "snapshot"},
		{RoCompatQuota, "quota"},
		{RoCompatBigAlloc, "bigalloc"},
		{RoCompatMetadataCsum, "metadata_csum"},
		{RoCompatReplica, "replica"},
		{RoCompatReadOnly, "read-only"},
		{RoCompatProject, "project"},
	}

	compressionNames = []flagName[CompressionAlgorithm]{
		{CompressLZV1, "lzv1"},
		{CompressLZRW3A, "lzrw3a"},
		{CompressGZIP, "gzip"},
		{CompressBZIP2, "bzip2"},
		{CompressLZO, "lzo"},
	}
)

// AllCompatFeatures lists every known compatible feature.
var AllCompatFeatures = flags(compatNames)

// AllIncompatFeatures lists every known incompatible feature.
var AllIncompatFeatures = flags(incompatNames)

// AllRoCompatFeatures lists every known read-only compatible feature.
var AllRoCompatFeatures = flags(roCompatNames)

// AllCompressionAlgorithms lists every known compression algorithm.
var AllCompressionAlgorithms = flags(compressionNames)

// String implements fmt.Stringer.
func (f CompatFeature) String() string { return nameOf(f, compatNames) }

// String implements fmt.Stringer.
func (f IncompatFeature) String() string { return nameOf(f, incompatNames) }

// String implements fmt.Stringer.
func (f RoCompatFeature) String() string { return nameOf(f, roCompatNames) }

// String implements fmt.Stringer.
func (f CompressionAlgorithm) String() string { return nameOf(f, compressionNames) }

// CompatFeatures is the compatible feature bitmask of a superblock.
type CompatFeatures uint32

// Has returns true iff f is set.
func (s CompatFeatures) Has(f CompatFeature) bool { return hasAll(uint32(s), f) }

// HasAll returns true iff every flag in fs is set. It is true for no flags.
func (s CompatFeatures) HasAll(fs ...CompatFeature) bool { return hasAll(uint32(s), fs...) }

// HasAny returns true iff at least one flag in fs is set. It is false for no
// flags.
func (s CompatFeatures) HasAny(fs ...CompatFeature) bool { return hasAny(uint32(s), fs...) }

// List returns the known flags that are set, in ascending order.
func (s CompatFeatures) List() []CompatFeature { return list(uint32(s), compatNames) }

// Unknown returns the set bits that do not correspond to a known flag.
func (s CompatFeatures) Unknown() uint32 { return unknown(uint32(s), compatNames) }

// String implements fmt.Stringer.
func (s CompatFeatures) String() string { return join(uint32(s), compatNames) }

// IncompatFeatures is the incompatible feature bitmask of a superblock.
type IncompatFeatures uint32

// Has returns true iff f is set.
func (s IncompatFeatures) Has(f IncompatFeature) bool { return hasAll(uint32(s), f) }

// HasAll returns true iff every flag in fs is set. It is true for no flags.
func (s IncompatFeatures) HasAll(fs ...IncompatFeature) bool { return hasAll(uint32(s), fs...) }

// HasAny returns true iff at least one flag in fs is set. It is false for no
// flags.
func (s IncompatFeatures) HasAny(fs ...IncompatFeature) bool { return hasAny(uint32(s), fs...) }

// List returns the known flags that are set, in ascending order.
func (s IncompatFeatures) List() []IncompatFeature { return list(uint32(s), incompatNames) }

// Unknown returns the set bits that do not correspond to a known flag.
func (s IncompatFeatures) Unknown() uint32 { return unknown(uint32(s), incompatNames) }

// String implements fmt.Stringer.
func (s IncompatFeatures) String() string { return join(uint32(s), incompatNames) }

// RoCompatFeatures is the read-only compatible feature bitmask of a
// superblock.
type RoCompatFeatures uint32

// Has returns true iff f is set.
func (s RoCompatFeatures) Has(f RoCompatFeature) bool { return hasAll(uint32(s), f) }

// HasAll returns true iff every flag in fs is set. It is true for no flags.
func (s RoCompatFeatures) HasAll(fs ...RoCompatFeature) bool { return hasAll(uint32(s), fs...) }

// HasAny returns true iff at least one flag in fs is set. It is false for no
// flags.
func (s RoCompatFeatures) HasAny(fs ...RoCompatFeature) bool { return hasAny(uint32(s), fs...) }

// List returns the known flags that are set, in ascending order.
func (s RoCompatFeatures) List() []RoCompatFeature { return list(uint32(s), roCompatNames) }

// Unknown returns the set bits that do not correspond to a known flag.
func (s RoCompatFeatures) Unknown() uint32 { return unknown(uint32(s), roCompatNames) }

// String implements fmt.Stringer.
func (s RoCompatFeatures) String() string { return join(uint32(s), roCompatNames) }

// CompressionSet is the compression algorithm bitmask of a superblock.
// Several algorithms may be in use at once.
type CompressionSet uint32

// Has returns true iff a is in use.
func (s CompressionSet) Has(a CompressionAlgorithm) bool { return hasAll(uint32(s), a) }

// HasAll returns true iff every algorithm in as is in use.
func (s CompressionSet) HasAll(as ...CompressionAlgorithm) bool { return hasAll(uint32(s), as...) }

// HasAny returns true iff at least one algorithm in as is in use.
func (s CompressionSet) HasAny(as ...CompressionAlgorithm) bool { return hasAny(uint32(s), as...) }

// List returns the known algorithms in use, in ascending order.
func (s CompressionSet) List() []CompressionAlgorithm { return list(uint32(s), compressionNames) }

// String implements fmt.Stringer.
func (s CompressionSet) String() string { return join(uint32(s), compressionNames) }

func hasAll[F flag](mask uint32, fs ...F) bool {
	for _, f := range fs {
		if mask&uint32(f) == 0 {
			return false
		}
	}
	return true
}

func hasAny[F flag](mask uint32, fs ...F) bool {
	for _, f := range fs {
		if mask&uint32(f) != 0 {
			return true
		}
	}
	return false
}

func flags[F flag](names []flagName[F]) []F {
	fs := make([]F, 0, len(names))
	for _, n := range names {
		fs = append(fs, n.flag)
	}
	return fs
}

func list[F flag](mask uint32, names []flagName[F]) []F {
	var fs []F
	for _, n := range names {
		if mask&uint32(n.flag) != 0 {
			fs = append(fs, n.flag)
		}
	}
	return fs
}

func unknown[F flag](mask uint32, names []flagName[F]) uint32 {
	for _, n := range names {
		mask &^= uint32(n.flag)
	}
	return mask
}

func nameOf[F flag](f F, names []flagName[F]) string {
	for _, n := range names {
		if n.flag == f {
			return n.name
		}
	}
	return fmt.Sprintf("FEATURE_%#x", uint32(f))
}

// join renders the set flags by name, followed by any unknown bits in hex.
func join[F flag](mask uint32, names []flagName[F]) string {
	var parts []string
	for _, f := range list(mask, names) {
		parts = append(parts, nameOf(f, names))
	}
	if u := unknown(mask, names); u != 0 {
		parts = append(parts, fmt.Sprintf("%#x", u))
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, ",")
}
