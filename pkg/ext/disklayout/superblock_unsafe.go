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

import "unsafe"

// Compiles only if SuperBlock occupies exactly SuperBlockSize bytes in
// memory. Every field is naturally aligned at its on-disk offset, so the Go
// compiler inserts no padding and the in-memory size equals the on-disk size.
var (
	_ [SuperBlockSize - unsafe.Sizeof(SuperBlock{})]struct{}
	_ [unsafe.Sizeof(SuperBlock{}) - SuperBlockSize]struct{}
)
