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

// Package linux contains the constants and types needed to describe ext
// volumes the way Linux reports them.
package linux

// Filesystem types used in statfs(2).
//
// See linux/magic.h.
const (
	EXT_SUPER_MAGIC  = 0xef53
	EXT2_SUPER_MAGIC = EXT_SUPER_MAGIC
	EXT3_SUPER_MAGIC = EXT_SUPER_MAGIC
	EXT4_SUPER_MAGIC = EXT_SUPER_MAGIC
)

// Filesystem path limits, from uapi/linux/limits.h.
const (
	NAME_MAX = 255
	PATH_MAX = 4096
)

// Statfs is struct statfs, from uapi/asm-generic/statfs.h.
type Statfs struct {
	// Type is one of the filesystem magic values, defined above.
	Type uint64 `json:"type" yaml:"type"`

	// BlockSize is the data block size.
	BlockSize int64 `json:"block_size" yaml:"block_size"`

	// Blocks is the number of data blocks in use.
	Blocks uint64 `json:"blocks" yaml:"blocks"`

	// BlocksFree is the number of free blocks.
	BlocksFree uint64 `json:"blocks_free" yaml:"blocks_free"`

	// BlocksAvailable is the number of blocks free for use by
	// unprivileged users.
	BlocksAvailable uint64 `json:"blocks_available" yaml:"blocks_available"`

	// Files is the number of used file nodes on the filesystem.
	Files uint64 `json:"files" yaml:"files"`

	// FilesFree is the number of free file nodes on the filesystem.
	FilesFree uint64 `json:"files_free" yaml:"files_free"`

	// NameLength is the maximum file name length.
	NameLength uint64 `json:"name_length" yaml:"name_length"`

	// FragmentSize is the fragment size, equal to BlockSize on every ext
	// revision Linux still mounts.
	FragmentSize int64 `json:"fragment_size" yaml:"fragment_size"`
}
