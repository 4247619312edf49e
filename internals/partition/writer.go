// Copyright (c) 2023 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package partition

import (
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/flotter/wifiio/internals/firmware"
)

type slotWriter struct {
	slot     *Slot
	f        *os.File
	size     int64
	written  int64
	digest   hash.Hash
	infoPath string
	closed   bool
}

func newSlotWriter(slot *Slot, f *os.File, size int64, infoPath string) (*slotWriter, error) {
	digest, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &slotWriter{
		slot:     slot,
		f:        f,
		size:     size,
		digest:   digest,
		infoPath: infoPath,
	}, nil
}

func (w *slotWriter) Write(b []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	if w.written+int64(len(b)) > w.size {
		return 0, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, w.size)
	}
	n, err := w.f.WriteAt(b, w.slot.Offset+w.written)
	w.digest.Write(b[:n])
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("cannot write slot %s: %w", w.slot.Label, err)
	}
	return n, nil
}

func (w *slotWriter) Written() int64 {
	return w.written
}

func (w *slotWriter) Finalize() error {
	if w.closed {
		return os.ErrClosed
	}
	if w.written != w.size {
		w.Abort()
		return fmt.Errorf("cannot finalize slot %s: wrote %d of %d bytes", w.slot.Label, w.written, w.size)
	}
	w.closed = true
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("cannot sync slot %s: %w", w.slot.Label, err)
	}
	if err := w.f.Close(); err != nil {
		return err
	}

	info := &firmware.SlotInfo{
		Label:   w.slot.Label,
		Size:    w.size,
		Digest:  hex.EncodeToString(w.digest.Sum(nil)),
		Written: time.Now().UTC(),
	}
	data, err := info.Marshal()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(w.infoPath, data, 0o644); err != nil {
		return fmt.Errorf("cannot record slot info: %w", err)
	}
	return nil
}

func (w *slotWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}
