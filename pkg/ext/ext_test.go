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

package ext

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"extfs.dev/extfs/pkg/ext/disklayout"
	"extfs.dev/extfs/pkg/ext/exttest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestOpenNonexistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.img")
	v := Open(path, ReadOnly)
	defer v.Close()

	if v.IsOpen() {
		t.Fatalf("Open(%q).IsOpen() = true, want false", path)
	}
	if !errors.Is(v.Err(), fs.ErrNotExist) {
		t.Errorf("Err() = %v, want %v", v.Err(), fs.ErrNotExist)
	}
	if got := v.Label(); got != "" {
		t.Errorf("Label() = %q, want empty", got)
	}
	if v.HasLabel() {
		t.Errorf("HasLabel() = true, want false")
	}
	if v.Path() != path {
		t.Errorf("Path() = %q, want %q", v.Path(), path)
	}
}

func TestOpen(t *testing.T) {
	labeled := exttest.TinySuperBlock()
	exttest.SetLabel(&labeled, "labeleddisk")

	full := exttest.TinySuperBlock()
	exttest.SetLabel(&full, "0123456789abcdef")

	badMagic := exttest.TinySuperBlock()
	badMagic.Magic = 0x53ef
	exttest.SetLabel(&badMagic, "labeleddisk")

	firstByteEmpty := exttest.TinySuperBlock()
	firstByteEmpty.VolumeName = [16]byte{0, 'x', 'y'}

	tests := []struct {
		name      string
		img       []byte
		wantOpen  bool
		wantLabel string
		wantHas   bool
		wantErr   error
	}{
		{
			name:      "labeled",
			img:       exttest.Image(labeled, 0),
			wantOpen:  true,
			wantLabel: "labeleddisk",
			wantHas:   true,
		},
		{
			name:     "unlabeled",
			img:      exttest.Image(exttest.TinySuperBlock(), 0),
			wantOpen: true,
		},
		{
			name:      "label fills field",
			img:       exttest.Image(full, 0),
			wantOpen:  true,
			wantLabel: "0123456789abcdef",
			wantHas:   true,
		},
		{
			name:     "label with empty first byte",
			img:      exttest.Image(firstByteEmpty, 0),
			wantOpen: true,
		},
		{
			name:      "superblock only",
			img:       exttest.Image(labeled, disklayout.SuperBlockOffset+disklayout.SuperBlockSize),
			wantOpen:  true,
			wantLabel: "labeleddisk",
			wantHas:   true,
		},
		{
			name:    "truncated superblock",
			img:     exttest.Image(labeled, disklayout.SuperBlockOffset+disklayout.SuperBlockSize-1),
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "boot sector only",
			img:     exttest.Image(labeled, disklayout.SuperBlockOffset),
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "empty file",
			img:     []byte{},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "bad magic",
			img:     exttest.Image(badMagic, 0),
			wantErr: ErrBadMagic,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := exttest.WriteImage(t, "disk.img", test.img)
			v := Open(path, ReadOnly)
			defer v.Close()

			if got := v.IsOpen(); got != test.wantOpen {
				t.Errorf("IsOpen() = %t, want %t (err: %v)", got, test.wantOpen, v.Err())
			}
			if got := v.Label(); got != test.wantLabel {
				t.Errorf("Label() = %q, want %q", got, test.wantLabel)
			}
			if got := v.HasLabel(); got != test.wantHas {
				t.Errorf("HasLabel() = %t, want %t", got, test.wantHas)
			}
			if test.wantErr != nil && !errors.Is(v.Err(), test.wantErr) {
				t.Errorf("Err() = %v, want %v", v.Err(), test.wantErr)
			}
			if test.wantOpen && v.Err() != nil {
				t.Errorf("Err() = %v, want nil", v.Err())
			}
		})
	}
}

func TestOpenWriteable(t *testing.T) {
	path := exttest.Labeled(t, "rw")
	v := Open(path, Writeable)
	defer v.Close()

	if !v.IsOpen() {
		t.Fatalf("Open(%q, Writeable) failed: %v", path, v.Err())
	}
	if v.Mode() != Writeable {
		t.Errorf("Mode() = %v, want %v", v.Mode(), Writeable)
	}
	if got, want := v.Label(), "rw"; got != want {
		t.Errorf("Label() = %q, want %q", got, want)
	}
}

func TestWriteableLock(t *testing.T) {
	path := exttest.Labeled(t, "locked")

	first := Open(path, Writeable)
	if !first.IsOpen() {
		t.Fatalf("first Open(%q, Writeable) failed: %v", path, first.Err())
	}

	second := Open(path, Writeable)
	if second.IsOpen() {
		t.Errorf("second Open(%q, Writeable).IsOpen() = true, want false", path)
	}
	if !errors.Is(second.Err(), ErrLocked) {
		t.Errorf("second Err() = %v, want %v", second.Err(), ErrLocked)
	}
	second.Close()

	reader := Open(path, ReadOnly)
	if !reader.IsOpen() {
		t.Errorf("Open(%q, ReadOnly) while locked failed: %v", path, reader.Err())
	}
	reader.Close()

	if err := first.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	third := Open(path, Writeable)
	defer third.Close()
	if !third.IsOpen() {
		t.Errorf("Open(%q, Writeable) after Close failed: %v", path, third.Err())
	}
}

func TestOpenWriteableReadOnlyFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	path := exttest.Unlabeled(t)
	if err := os.Chmod(path, 0444); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if v := Open(path, ReadOnly); !v.IsOpen() {
		t.Errorf("Open(%q, ReadOnly) failed: %v", path, v.Err())
	} else {
		v.Close()
	}

	v := Open(path, Writeable)
	defer v.Close()
	if v.IsOpen() {
		t.Errorf("Open(%q, Writeable).IsOpen() = true, want false", path)
	}
	if !errors.Is(v.Err(), fs.ErrPermission) {
		t.Errorf("Err() = %v, want %v", v.Err(), fs.ErrPermission)
	}
}

func TestSuperBlockSnapshot(t *testing.T) {
	want := exttest.TinySuperBlock()
	exttest.SetLabel(&want, "snapshot")
	v := Open(exttest.WriteImage(t, "disk.img", exttest.Image(want, 0)), ReadOnly)
	defer v.Close()

	if diff := cmp.Diff(want, v.SuperBlock(), cmpopts.IgnoreUnexported(disklayout.SuperBlock{})); diff != "" {
		t.Errorf("SuperBlock() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRestoresOffset(t *testing.T) {
	sb := exttest.TinySuperBlock()
	exttest.SetLabel(&sb, "offset")

	for _, test := range []struct {
		name string
		img  []byte
		open bool
	}{
		{"valid", exttest.Image(sb, 0), true},
		{"short", exttest.Image(sb, 1500), false},
	} {
		t.Run(test.name, func(t *testing.T) {
			r := bytes.NewReader(test.img)
			const start = 100
			if _, err := r.Seek(start, io.SeekStart); err != nil {
				t.Fatalf("Seek: %v", err)
			}

			v := New(r)
			if v.IsOpen() != test.open {
				t.Errorf("IsOpen() = %t, want %t (err: %v)", v.IsOpen(), test.open, v.Err())
			}
			pos, err := r.Seek(0, io.SeekCurrent)
			if err != nil {
				t.Fatalf("Seek: %v", err)
			}
			if pos != start {
				t.Errorf("offset after New = %d, want %d", pos, start)
			}
		})
	}
}

func TestNewDoesNotClose(t *testing.T) {
	f, err := os.Open(exttest.Labeled(t, "owned"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	v := New(f)
	if !v.IsOpen() {
		t.Fatalf("New failed: %v", v.Err())
	}
	if v.Path() != f.Name() {
		t.Errorf("Path() = %q, want %q", v.Path(), f.Name())
	}
	if err := v.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Errorf("file unusable after Volume.Close: %v", err)
	}
}

type brokenSeeker struct {
	io.Reader
}

func (brokenSeeker) Seek(int64, int) (int64, error) {
	return 0, errors.New("seek not supported")
}

func TestNewSeekFailure(t *testing.T) {
	v := New(brokenSeeker{bytes.NewReader(exttest.Image(exttest.TinySuperBlock(), 0))})
	if v.IsOpen() {
		t.Errorf("IsOpen() = true, want false")
	}
	if v.Err() == nil {
		t.Errorf("Err() = nil, want seek error")
	}
}

func TestCloseIdempotent(t *testing.T) {
	v := Open(exttest.Unlabeled(t), ReadOnly)
	if err := v.Close(); err != nil {
		t.Fatalf("first Close() = %v, want nil", err)
	}
	if err := v.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}

	// The snapshot outlives the file.
	if !v.IsOpen() {
		t.Errorf("IsOpen() after Close = false, want true")
	}
}

func TestMountable(t *testing.T) {
	unknownIncompat := exttest.TinySuperBlock()
	unknownIncompat.FeatureIncompat |= 0x80000000

	unknownRoCompat := exttest.TinySuperBlock()
	unknownRoCompat.FeatureRoCompat |= 0x80000000

	tests := []struct {
		name string
		img  []byte
		mode Mode
		want bool
	}{
		{"known features ro", exttest.Image(exttest.TinySuperBlock(), 0), ReadOnly, true},
		{"known features rw", exttest.Image(exttest.TinySuperBlock(), 0), Writeable, true},
		{"unknown incompat ro", exttest.Image(unknownIncompat, 0), ReadOnly, false},
		{"unknown ro_compat ro", exttest.Image(unknownRoCompat, 0), ReadOnly, true},
		{"unknown ro_compat rw", exttest.Image(unknownRoCompat, 0), Writeable, false},
		{"not ext", make([]byte, exttest.ImageSize), ReadOnly, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := Open(exttest.WriteImage(t, "disk.img", test.img), test.mode)
			defer v.Close()
			if got := v.Mountable(); got != test.want {
				t.Errorf("Mountable() = %t, want %t", got, test.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ReadOnly, Writeable} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v, want %v, nil", m.String(), got, err, m)
		}
	}
	if _, err := ParseMode("wo"); err == nil {
		t.Errorf("ParseMode(\"wo\") succeeded, want error")
	}
}
