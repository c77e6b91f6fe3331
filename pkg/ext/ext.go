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

// Package ext opens ext(2/3/4) images and block devices and exposes what their
// superblock says about them.
package ext

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"extfs.dev/extfs/pkg/abi/linux"
	"extfs.dev/extfs/pkg/ext/disklayout"
	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

// ErrBadMagic is recorded by a Volume whose superblock was read in full but
// does not carry the ext magic number.
var ErrBadMagic = errors.New("not an ext file system: bad superblock magic")

// ErrLocked is recorded by a Writeable Volume whose file is already open by
// another Writeable Volume.
var ErrLocked = errors.New("volume is locked by another writer")

// Mode selects how Open opens the underlying file.
type Mode int

const (
	// ReadOnly opens the file with os.O_RDONLY.
	ReadOnly Mode = iota

	// Writeable opens the file with os.O_RDWR and holds an exclusive advisory
	// lock on it until Close. The volume is still only ever read.
	Writeable
)

// ParseMode parses "ro" or "rw".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "ro":
		return ReadOnly, nil
	case "rw":
		return Writeable, nil
	default:
		return 0, fmt.Errorf("invalid mode %q, must be ro or rw", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "ro"
	case Writeable:
		return "rw"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) openFlags() int {
	if m == Writeable {
		return os.O_RDWR
	}
	return os.O_RDONLY
}

// Volume is a handle to an ext volume. The superblock is read once, when the
// handle is created, and never again.
//
// Creating a Volume never fails. IsOpen reports whether the handle is usable
// and Err explains why it is not.
//
// All methods are safe for concurrent use.
type Volume struct {
	path string
	mode Mode
	sb   disklayout.SuperBlock

	// err is nil iff the volume is open. It is immutable after construction.
	err error

	mu sync.Mutex
	// closer is the file opened by Open. It is nil for volumes created with
	// New and after Close.
	closer io.Closer
	// lock is held by Writeable volumes until Close.
	lock *flock.Flock
}

// Open opens the file at path and reads its superblock.
//
// The file stays open until Close, even if it turns out not to hold an ext
// file system.
func Open(path string, mode Mode) *Volume {
	v := &Volume{path: path, mode: mode}
	f, err := os.OpenFile(path, mode.openFlags(), 0)
	if err != nil {
		log.Warningf("ext: failed to open %q: %v", path, err)
		v.err = err
		return v
	}
	v.closer = f
	if mode == Writeable {
		if err := v.lockFile(); err != nil {
			log.Warningf("ext: failed to lock %q: %v", path, err)
			v.err = err
			return v
		}
	}
	v.probe(f)
	return v
}

// lockFile takes the writer lock on v.path without blocking.
func (v *Volume) lockFile() error {
	l := flock.New(v.path)
	locked, err := l.TryLock()
	if err != nil {
		return fmt.Errorf("locking %q: %w", v.path, err)
	}
	if !locked {
		l.Unlock()
		return fmt.Errorf("%w: %q", ErrLocked, v.path)
	}
	v.lock = l
	return nil
}

// New reads the superblock from dev. The caller keeps ownership of dev: it is
// not closed by Close, and its offset is the same on return as on entry.
func New(dev io.ReadSeeker) *Volume {
	v := &Volume{}
	if f, ok := dev.(*os.File); ok {
		v.path = f.Name()
	}
	v.probe(dev)
	return v
}

func (v *Volume) probe(dev io.ReadSeeker) {
	v.sb, v.err = readSuperBlock(dev)
	if v.err == nil && !v.sb.IsValid() {
		v.err = fmt.Errorf("%w: got %#x, want %#x", ErrBadMagic, v.sb.Magic, linux.EXT_SUPER_MAGIC)
	}
	if v.err != nil {
		log.Warningf("ext: %q is not a usable ext volume: %v", v.path, v.err)
		return
	}
	log.Debugf("ext: opened %q: label %q, %d blocks of %d bytes, features compat=%v incompat=%v ro_compat=%v",
		v.path, v.sb.Label(), v.sb.BlocksCount, v.sb.BlockSize(),
		v.sb.CompatibleFeatures(), v.sb.IncompatibleFeatures(), v.sb.ReadOnlyCompatibleFeatures())
}

// readSuperBlock reads the primary superblock from dev and puts the offset of
// dev back where it was.
//
// On a short read the returned superblock holds whatever was read followed by
// zeroes, and the error wraps io.ErrUnexpectedEOF.
func readSuperBlock(dev io.ReadSeeker) (disklayout.SuperBlock, error) {
	pos, err := dev.Seek(0, io.SeekCurrent)
	if err != nil {
		return disklayout.SuperBlock{}, fmt.Errorf("reading current offset: %w", err)
	}
	if _, err := dev.Seek(disklayout.SuperBlockOffset, io.SeekStart); err != nil {
		return disklayout.SuperBlock{}, fmt.Errorf("seeking to superblock: %w", err)
	}

	buf := make([]byte, disklayout.SuperBlockSize)
	n, readErr := io.ReadFull(dev, buf)
	log.Debugf("ext: read %d superblock bytes at offset %d", n, disklayout.SuperBlockOffset)
	if _, err := dev.Seek(pos, io.SeekStart); err != nil && readErr == nil {
		readErr = fmt.Errorf("restoring offset %d: %w", pos, err)
	}

	sb, err := disklayout.Decode(buf)
	if err != nil {
		// Unreachable: buf always has the right size.
		panic(err)
	}
	if readErr != nil {
		if readErr == io.EOF {
			readErr = io.ErrUnexpectedEOF
		}
		return sb, fmt.Errorf("reading superblock: %w", readErr)
	}
	return sb, nil
}

// IsOpen returns true iff the volume was opened, the whole superblock was read
// and the superblock magic identifies an ext file system.
func (v *Volume) IsOpen() bool { return v.err == nil }

// Err returns why the volume is not open, or nil if it is.
func (v *Volume) Err() error { return v.err }

// Label returns the volume label, or "" if the volume is not open.
func (v *Volume) Label() string {
	if !v.IsOpen() {
		return ""
	}
	return v.sb.Label()
}

// HasLabel returns true iff the volume is open and carries a label.
func (v *Volume) HasLabel() bool {
	return v.IsOpen() && v.sb.HasLabel()
}

// SuperBlock returns a copy of the superblock read when the volume was
// created. It is the zero value if the read never happened.
func (v *Volume) SuperBlock() disklayout.SuperBlock { return v.sb }

// Path returns the path the volume was opened from. It is "" for volumes
// created with New over something other than an *os.File.
func (v *Volume) Path() string { return v.path }

// Mode returns the mode the volume was opened with.
func (v *Volume) Mode() Mode { return v.mode }

// Mountable returns true iff a kernel that knows exactly the enumerated
// features could mount the volume in its mode. Unknown incompatible features
// rule out any mount and unknown read-only compatible features rule out a
// read/write mount.
func (v *Volume) Mountable() bool {
	if !v.IsOpen() {
		return false
	}
	if unknown := v.sb.IncompatibleFeatures().Unknown(); unknown != 0 {
		log.Warningf("ext: %q has unknown incompatible features %#x", v.path, unknown)
		return false
	}
	if v.mode == Writeable {
		if unknown := v.sb.ReadOnlyCompatibleFeatures().Unknown(); unknown != 0 {
			log.Warningf("ext: %q has unknown read-only compatible features %#x", v.path, unknown)
			return false
		}
	}
	return true
}

// Close closes the file opened by Open and releases the writer lock. It does
// nothing for volumes created with New, and does nothing when called again.
func (v *Volume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	var err error
	if v.lock != nil {
		err = v.lock.Unlock()
		v.lock = nil
	}
	if v.closer != nil {
		if cerr := v.closer.Close(); err == nil {
			err = cerr
		}
		v.closer = nil
	}
	return err
}
