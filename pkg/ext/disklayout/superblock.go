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

// Package disklayout provides the on-disk layout of the ext2/3/4 superblock
// and the queries that can be answered from it.
//
// The superblock is a positional little-endian record: every field lives at
// a fixed byte offset, so the Go struct below must declare fields in exactly
// the on-disk order with exactly the on-disk widths. See
// https://www.kernel.org/doc/html/latest/filesystems/ext4/globals.html#super-block.
package disklayout

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"extfs.dev/extfs/pkg/abi/linux"
	"extfs.dev/extfs/pkg/binary"
	"github.com/google/uuid"
)

const (
	// SuperBlockOffset is the byte offset of the primary superblock from the
	// start of the volume. It does not depend on the block size: the first
	// 1024 bytes are reserved for boot records.
	SuperBlockOffset = 1024

	// SuperBlockSize is the exact size of the on-disk superblock. It is the
	// smallest possible block size, so the superblock always fits in one
	// block.
	SuperBlockSize = 1024

	// minBlockSize is the block size for a LogBlockSize of 0.
	minBlockSize = 1024
)

// ErrBadSize is returned by Decode when handed a buffer that is not exactly
// SuperBlockSize bytes long. It indicates a bug in the caller, which should
// have performed a SuperBlockSize read at SuperBlockOffset.
var ErrBadSize = errors.New("superblock buffer has wrong size")

// SuperBlock is the ext2/3/4 superblock, as found at SuperBlockOffset. It
// emulates the classic ext2_super_block struct: the fields that ext4 later
// carved out of the trailing reserved area are left opaque.
//
// A SuperBlock is a plain value. It is decoded once and never modified, and
// can be shared between goroutines without synchronization.
type SuperBlock struct {
	InodesCount         uint32
	BlocksCount         uint32
	ReservedBlocksCount uint32
	FreeBlocksCount     uint32
	FreeInodesCount     uint32
	FirstDataBlock      uint32
	LogBlockSize        uint32

	// LogFragmentSize is signed: fragments may be smaller than 1024 bytes.
	LogFragmentSize int32

	BlocksPerGroup    uint32
	FragmentsPerGroup uint32
	InodesPerGroup    uint32

	// Times are in seconds since the epoch.
	MountTime     uint32
	WriteTime     uint32
	MountCount    uint16
	MaxMountCount uint16

	Magic         uint16
	State         int16
	Errors        int16
	MinorRevision uint16
	LastCheck     uint32
	CheckInterval uint32
	CreatorOS     uint32
	RevisionLevel uint32

	DefaultReservedUID uint16
	DefaultReservedGID uint16

	// The following fields are only meaningful for DynamicRev.
	FirstInode       uint32
	InodeSizeRaw     uint16
	BlockGroupNumber uint16

	FeatureCompat   uint32
	FeatureIncompat uint32
	FeatureRoCompat uint32

	UUIDRaw     [16]byte
	VolumeName  [16]byte
	LastMounted [64]byte

	AlgorithmUsageBitmap uint32

	PreallocBlocks    uint8
	PreallocDirBlocks uint8
	_                 uint16

	JournalUUIDRaw [16]byte
	JournalInode   uint32
	JournalDevice  uint32
	LastOrphan     uint32

	HashSeed           [4]uint32
	DefaultHashVersion uint8
	_                  [3]uint8

	DefaultMountOptions uint32
	FirstMetaBlockGroup uint32
	_                   [760]uint8
}

func init() {
	if got := binary.Size(SuperBlock{}); got != SuperBlockSize {
		panic(fmt.Sprintf("SuperBlock layout is %d bytes, want %d", got, SuperBlockSize))
	}
}

// Decode reinterprets buf as a superblock.
//
// Any SuperBlockSize buffer decodes, including one made entirely of zeroes;
// whether it describes an ext volume is answered by SuperBlock.IsValid. A
// buffer of any other length yields an error wrapping ErrBadSize and is never
// truncated or padded.
func Decode(buf []byte) (SuperBlock, error) {
	var sb SuperBlock
	if len(buf) != SuperBlockSize {
		return sb, fmt.Errorf("%w: got %d bytes, want %d", ErrBadSize, len(buf), SuperBlockSize)
	}
	binary.Unmarshal(buf, binary.LittleEndian, &sb)
	return sb, nil
}

// Encode returns the on-disk representation of sb. Reserved areas are written
// as zeroes.
func Encode(sb SuperBlock) []byte {
	return binary.Marshal(make([]byte, 0, SuperBlockSize), binary.LittleEndian, sb)
}

// IsValid returns true iff the magic number identifies an ext2/3/4 volume.
// No other field takes part in the decision.
func (sb SuperBlock) IsValid() bool { return sb.Magic == linux.EXT_SUPER_MAGIC }

// BlockSize returns the size of one logical block in bytes.
func (sb SuperBlock) BlockSize() uint64 { return minBlockSize << sb.LogBlockSize }

// FragmentSize returns the size of one fragment in bytes.
func (sb SuperBlock) FragmentSize() uint64 {
	if sb.LogFragmentSize < 0 {
		return minBlockSize >> uint32(-sb.LogFragmentSize)
	}
	return minBlockSize << uint32(sb.LogFragmentSize)
}

// Label returns the volume label. The label field is NUL padded but is not
// NUL terminated when all 16 bytes are in use.
func (sb SuperBlock) Label() string { return cString(sb.VolumeName[:]) }

// HasLabel returns true iff the first byte of the label field is set. The
// remaining bytes are deliberately not inspected: a field with an empty first
// byte reads as unlabelled no matter what follows it.
func (sb SuperBlock) HasLabel() bool { return sb.VolumeName[0] != 0 }

// LastMountPoint returns the directory where the file system was last
// mounted, or "" if it was never recorded.
func (sb SuperBlock) LastMountPoint() string { return cString(sb.LastMounted[:]) }

// UUID returns the volume UUID.
func (sb SuperBlock) UUID() uuid.UUID { return uuid.UUID(sb.UUIDRaw) }

// JournalUUID returns the UUID of the external journal superblock. It is the
// nil UUID when the journal lives inside the file system.
func (sb SuperBlock) JournalUUID() uuid.UUID { return uuid.UUID(sb.JournalUUIDRaw) }

// MountTimestamp returns the time of the last mount.
func (sb SuperBlock) MountTimestamp() time.Time { return unixTime(sb.MountTime) }

// WriteTimestamp returns the time of the last write.
func (sb SuperBlock) WriteTimestamp() time.Time { return unixTime(sb.WriteTime) }

// LastCheckTimestamp returns the time of the last consistency check.
func (sb SuperBlock) LastCheckTimestamp() time.Time { return unixTime(sb.LastCheck) }

// CheckIntervalDuration returns the maximum time between consistency checks.
// Zero means checks are not time based.
func (sb SuperBlock) CheckIntervalDuration() time.Duration {
	return time.Duration(sb.CheckInterval) * time.Second
}

// FSState returns the recorded file system state.
func (sb SuperBlock) FSState() State { return State(sb.State) }

// ErrorPolicy returns what the kernel does when it detects errors.
func (sb SuperBlock) ErrorPolicy() ErrorPolicy { return ErrorPolicy(sb.Errors) }

// Revision returns the superblock revision.
func (sb SuperBlock) Revision() SbRevision { return SbRevision(sb.RevisionLevel) }

// OS returns the operating system that created the file system.
func (sb SuperBlock) OS() CreatorOS { return CreatorOS(sb.CreatorOS) }

// InodeSize returns the size of an on-disk inode. OldRev file systems always
// use 128 byte inodes and leave InodeSizeRaw unset.
func (sb SuperBlock) InodeSize() uint16 {
	if sb.Revision() == OldRev {
		return oldInodeSize
	}
	return sb.InodeSizeRaw
}

// HashVersion returns the default directory hash algorithm.
func (sb SuperBlock) HashVersion() HashAlgorithm { return HashAlgorithm(sb.DefaultHashVersion) }

// Compression returns the set of compression algorithms in use.
func (sb SuperBlock) Compression() CompressionSet { return CompressionSet(sb.AlgorithmUsageBitmap) }

// CompatibleFeatures returns the compatible feature set. A kernel that does
// not know one of these may still mount the file system read/write.
func (sb SuperBlock) CompatibleFeatures() CompatFeatures {
	return CompatFeatures(sb.FeatureCompat)
}

// IncompatibleFeatures returns the incompatible feature set. A kernel that
// does not know one of these must not mount the file system.
func (sb SuperBlock) IncompatibleFeatures() IncompatFeatures {
	return IncompatFeatures(sb.FeatureIncompat)
}

// ReadOnlyCompatibleFeatures returns the read-only compatible feature set. A
// kernel that does not know one of these may only mount read-only.
func (sb SuperBlock) ReadOnlyCompatibleFeatures() RoCompatFeatures {
	return RoCompatFeatures(sb.FeatureRoCompat)
}

// StatFS fills in the statfs(2) view of the file system.
func (sb SuperBlock) StatFS() linux.Statfs {
	avail := uint64(0)
	if sb.FreeBlocksCount > sb.ReservedBlocksCount {
		avail = uint64(sb.FreeBlocksCount - sb.ReservedBlocksCount)
	}
	return linux.Statfs{
		Type:            uint64(sb.Magic),
		BlockSize:       int64(sb.BlockSize()),
		Blocks:          uint64(sb.BlocksCount),
		BlocksFree:      uint64(sb.FreeBlocksCount),
		BlocksAvailable: avail,
		Files:           uint64(sb.InodesCount),
		FilesFree:       uint64(sb.FreeInodesCount),
		NameLength:      linux.NAME_MAX,
		FragmentSize:    int64(sb.FragmentSize()),
	}
}

// cString returns b up to, but excluding, the first NUL byte.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func unixTime(secs uint32) time.Time {
	return time.Unix(int64(secs), 0).UTC()
}
