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

// Package partition manages the firmware slots of the device: which slot
// runs, which one receives the next update, and which one boots next.
package partition

import (
	"errors"
	"fmt"

	"github.com/docker/go-units"

	"github.com/flotter/wifiio/internals/firmware"
)

type Role int

const (
	Candidate Role = iota
	Running
)

func (r Role) String() string {
	if r == Running {
		return "running"
	}
	return "candidate"
}

// Slot is a region of storage that holds one firmware image.
type Slot struct {
	Label  string
	Path   string
	Offset int64
	Size   int64
	Role   Role
}

func (s *Slot) String() string {
	return fmt.Sprintf("label=%s, addr=0x%x, size=%s", s.Label, s.Offset, units.BytesSize(float64(s.Size)))
}

var (
	ErrNoCandidate   = errors.New("no slot available for an update")
	ErrRunningSlot   = errors.New("cannot modify the running slot")
	ErrImageTooLarge = errors.New("image does not fit in slot")
	ErrNotFinalized  = errors.New("slot does not hold a finalized image")
)

// Provider gives access to firmware slots and the boot selection.
type Provider interface {
	// Running returns the slot the current image was booted from.
	Running() (*Slot, error)
	// NextCandidate returns the slot the next update should be written to.
	NextCandidate() (*Slot, error)
	// Begin starts writing an image of the given size into slot.
	Begin(slot *Slot, size int64) (ImageWriter, error)
	// SetBoot selects slot for the next boot. The image must have
	// been finalized.
	SetBoot(slot *Slot) error
	RunningInfo() (*firmware.Info, error)
	// PendingVerification reports whether the running image was booted
	// for the first time after an update and has not been marked valid.
	PendingVerification() (bool, error)
	MarkValid() error
}

// ImageWriter receives an image sequentially.
type ImageWriter interface {
	Write(p []byte) (int, error)
	// Finalize makes the written image durable. All of the announced
	// size must have been written.
	Finalize() error
	// Abort discards the session. The slot content is undefined
	// afterwards and cannot be selected for boot.
	Abort() error
	Written() int64
}
