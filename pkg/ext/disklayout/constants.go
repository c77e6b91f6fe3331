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

import "fmt"

// oldInodeSize is the inode size in ext2/ext3 OldRev file systems.
const oldInodeSize = 128

// SbRevision is the type for superblock revisions.
type SbRevision uint32

// Super block revisions.
const (
	// OldRev is the good old (original) format.
	OldRev SbRevision = 0

	// DynamicRev is v2 format w/ dynamic inode sizes.
	DynamicRev SbRevision = 1
)

// String implements fmt.Stringer.
func (r SbRevision) String() string {
	switch r {
	case OldRev:
		return "0 (original)"
	case DynamicRev:
		return "1 (dynamic)"
	}
	return fmt.Sprintf("%d (unknown)", uint32(r))
}

// State is the file system state recorded in the superblock.
type State int16

// File system states. A mounted file system has StateClean unset.
const (
	StateClean                 State = 0x1
	StateHasErrors             State = 0x2
	StateOrphansBeingRecovered State = 0x4
)

// String implements fmt.Stringer.
func (s State) String() string {
	var str string
	if s&StateClean != 0 {
		str = "clean"
	} else {
		str = "not clean"
	}
	if s&StateHasErrors != 0 {
		str += " with errors"
	}
	if s&StateOrphansBeingRecovered != 0 {
		str += ", orphans being recovered"
	}
	return str
}

// ErrorPolicy is the behaviour when the kernel detects file system errors.
type ErrorPolicy int16

// Error policies.
const (
	ErrorsContinue  ErrorPolicy = 1
	ErrorsRemountRO ErrorPolicy = 2
	ErrorsPanic     ErrorPolicy = 3
)

// String implements fmt.Stringer.
func (p ErrorPolicy) String() string {
	switch p {
	case ErrorsContinue:
		return "continue"
	case ErrorsRemountRO:
		return "remount-ro"
	case ErrorsPanic:
		return "panic"
	}
	return fmt.Sprintf("unknown (%d)", int16(p))
}

// CreatorOS identifies the operating system that created the file system.
type CreatorOS uint32

// Creator operating systems.
const (
	OSLinux   CreatorOS = 0
	OSHurd    CreatorOS = 1
	OSMasix   CreatorOS = 2
	OSFreeBSD CreatorOS = 3
	OSLites   CreatorOS = 4
)

var osNames = map[CreatorOS]string{
	OSLinux:   "Linux",
	OSHurd:    "Hurd",
	OSMasix:   "Masix",
	OSFreeBSD: "FreeBSD",
	OSLites:   "Lites",
}

// String implements fmt.Stringer.
func (o CreatorOS) String() string {
	if name, ok := osNames[o]; ok {
		return name
	}
	return fmt.Sprintf("(unknown os %d)", uint32(o))
}

// HashAlgorithm is a directory index hash algorithm.
type HashAlgorithm uint8

// Directory hash algorithms.
const (
	HashLegacy          HashAlgorithm = 0
	HashHalfMD4         HashAlgorithm = 1
	HashTea             HashAlgorithm = 2
	HashLegacyUnsigned  HashAlgorithm = 3
	HashHalfMD4Unsigned HashAlgorithm = 4
	HashTeaUnsigned     HashAlgorithm = 5
	HashSipHash         HashAlgorithm = 6
)

var hashNames = map[HashAlgorithm]string{
	HashLegacy:          "legacy",
	HashHalfMD4:         "half_md4",
	HashTea:             "tea",
	HashLegacyUnsigned:  "legacy_unsigned",
	HashHalfMD4Unsigned: "half_md4_unsigned",
	HashTeaUnsigned:     "tea_unsigned",
	HashSipHash:         "siphash",
}

// String implements fmt.Stringer.
func (h HashAlgorithm) String() string {
	if name, ok := hashNames[h]; ok {
		return name
	}
	return fmt.Sprintf("unknown (%d)", uint8(h))
}
