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

// Package exttest builds small ext images for tests.
package exttest

import (
	"os"
	"path/filepath"
	"testing"

	"extfs.dev/extfs/pkg/abi/linux"
	"extfs.dev/extfs/pkg/ext/disklayout"
)

// ImageSize is the size of the images built by Image when asked for size 0:
// a 64 KiB ext2 volume with 1 KiB blocks.
const ImageSize = 64 << 10

// TinySuperBlock returns the superblock mke2fs writes for a 64 KiB ext2 image
// with default options. Time stamps and the UUID are fixed.
func TinySuperBlock() disklayout.SuperBlock {
	sb := disklayout.SuperBlock{
		InodesCount:         16,
		BlocksCount:         64,
		ReservedBlocksCount: 3,
		FreeBlocksCount:     43,
		FreeInodesCount:     5,
		FirstDataBlock:      1,
		BlocksPerGroup:      8192,
		FragmentsPerGroup:   8192,
		InodesPerGroup:      16,
		WriteTime:           1559677519,
		MaxMountCount:       0xffff,
		Magic:               linux.EXT_SUPER_MAGIC,
		State:               int16(disklayout.StateClean),
		Errors:              int16(disklayout.ErrorsContinue),
		LastCheck:           1559677519,
		RevisionLevel:       uint32(disklayout.DynamicRev),
		FirstInode:          11,
		InodeSizeRaw:        128,
		FeatureCompat:       uint32(disklayout.CompatExtAttr | disklayout.CompatResizeInode | disklayout.CompatDirIndex),
		FeatureIncompat:     uint32(disklayout.IncompatFileType),
		FeatureRoCompat:     uint32(disklayout.RoCompatSparseSuper | disklayout.RoCompatLargeFile),
		UUIDRaw: [16]byte{
			0x8a, 0x2c, 0x9e, 0x1b, 0x4f, 0x63, 0x4d, 0x71,
			0x9c, 0x2e, 0x61, 0x0b, 0x5a, 0x3d, 0xe4, 0x07,
		},
		HashSeed:           [4]uint32{0x1b2c3d4e, 0x5f607182, 0x93a4b5c6, 0xd7e8f901},
		DefaultHashVersion: uint8(disklayout.HashHalfMD4),
	}
	return sb
}

// SetLabel copies label into the label field of sb. Labels longer than the
// field are truncated, as e2label does.
func SetLabel(sb *disklayout.SuperBlock, label string) {
	sb.VolumeName = [16]byte{}
	copy(sb.VolumeName[:], label)
}

// Image returns a volume of size bytes holding sb at the primary superblock
// offset. size 0 means ImageSize. A size smaller than the end of the
// superblock yields a truncated image.
func Image(sb disklayout.SuperBlock, size int) []byte {
	if size == 0 {
		size = ImageSize
	}
	img := make([]byte, max(size, disklayout.SuperBlockOffset+disklayout.SuperBlockSize))
	copy(img[disklayout.SuperBlockOffset:], disklayout.Encode(sb))
	return img[:size]
}

// WriteImage writes img to a file called name in a temporary directory owned
// by t and returns its path.
func WriteImage(t testing.TB, name string, img []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, img, 0644); err != nil {
		t.Fatalf("writing image %q: %v", path, err)
	}
	return path
}

// Labeled writes an ext2 image with the given label and returns its path.
func Labeled(t testing.TB, label string) string {
	t.Helper()
	sb := TinySuperBlock()
	SetLabel(&sb, label)
	return WriteImage(t, "labeled.img", Image(sb, 0))
}

// Unlabeled writes an ext2 image without a label and returns its path.
func Unlabeled(t testing.TB) string {
	t.Helper()
	return WriteImage(t, "unlabeled.img", Image(TinySuperBlock(), 0))
}
