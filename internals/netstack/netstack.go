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

// Package netstack connects the device to its uplink and reports link
// and address changes as events.
package netstack

import (
	"errors"
	"fmt"
	"net"
)

type EventKind int

const (
	// EventLinkDown reports that the link lost its carrier.
	EventLinkDown EventKind = iota + 1
	// EventAddrAcquired reports that the interface obtained an IPv4
	// address.
	EventAddrAcquired
)

func (k EventKind) String() string {
	switch k {
	case EventLinkDown:
		return "link-down"
	case EventAddrAcquired:
		return "addr-acquired"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

type Event struct {
	Kind EventKind
	Link string
	Addr net.IP
}

// LinkInfo describes the quality of the current association.
type LinkInfo struct {
	SSID     string
	Channel  int
	AuthMode string
	Cipher   string
	RSSI     int
}

func (li *LinkInfo) String() string {
	return fmt.Sprintf("ssid=%q channel=%d auth=%s cipher=%s rssi=%d",
		li.SSID, li.Channel, li.AuthMode, li.Cipher, li.RSSI)
}

var ErrNoGateway = errors.New("no default gateway")

// Stack is the network stack the connectivity supervisor drives.
type Stack interface {
	// Init prepares the interface and starts event delivery.
	Init() error
	// Connect starts an association. Completion is reported by an
	// EventAddrAcquired.
	Connect() error
	Disconnect() error
	Events() <-chan Event
	Gateway() (net.IP, error)
	LinkInfo() (*LinkInfo, error)
	Close() error
}
