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

package fwstate

import (
	"fmt"

	"github.com/flotter/wifiio/internals/partition"
)

type SessionState int

const (
	Idle SessionState = iota
	Receiving
	Finalizing
	Completed
	Aborted
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Receiving:
		return "receiving"
	case Finalizing:
		return "finalizing"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Session tracks one firmware transfer. Written never exceeds Total,
// and Slot is never the running slot.
type Session struct {
	ID      string
	Slot    partition.Slot
	Total   int64
	Written int64
	// Percent is the last progress percentage marked.
	Percent int
	State   SessionState
}
