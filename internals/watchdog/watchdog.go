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

// Package watchdog provides the heartbeat acknowledged by the supervisor
// loop. Missing the heartbeat resets the device independently of the
// loop itself.
package watchdog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/tomb.v2"

	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/restart"
)

// Heartbeat is acknowledged once per supervisor iteration.
type Heartbeat interface {
	Feed() error
}

var ErrStopped = errors.New("watchdog stopped")

// Device drives a kernel watchdog node such as /dev/watchdog. Once
// opened, the hardware resets the board if Feed is not called within
// the configured timeout.
type Device struct {
	f *os.File
}

var _ Heartbeat = (*Device)(nil)

// OpenDevice opens the watchdog node at path and arms it with timeout.
func OpenDevice(path string, timeout time.Duration) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open watchdog: %w", err)
	}
	secs := int(timeout / time.Second)
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.WDIOC_SETTIMEOUT, secs); err != nil {
		// Not every driver supports changing the timeout; the board
		// default still protects the loop.
		logger.Noticef("Cannot set watchdog timeout to %ds: %v", secs, err)
	}
	logger.Noticef("Hardware watchdog %s armed", path)
	return &Device{f: f}, nil
}

// Feed resets the watchdog countdown. Any write counts as a keepalive.
func (d *Device) Feed() error {
	if _, err := d.f.Write([]byte{0}); err != nil {
		return fmt.Errorf("cannot feed watchdog: %w", err)
	}
	return nil
}

// Close disarms the watchdog using the magic close character, where the
// driver allows it.
func (d *Device) Close() error {
	if _, err := d.f.Write([]byte("V")); err != nil {
		logger.Noticef("Cannot disarm watchdog: %v", err)
	}
	return d.f.Close()
}

// Soft is a software watchdog for hosts without a hardware one. If Feed
// is not called within the timeout, it restarts the device.
type Soft struct {
	timeout   time.Duration
	restarter restart.Restarter
	feed      chan struct{}
	tomb      tomb.Tomb
}

var _ Heartbeat = (*Soft)(nil)

// NewSoft starts a software watchdog that is already armed.
func NewSoft(timeout time.Duration, r restart.Restarter) *Soft {
	s := &Soft{
		timeout:   timeout,
		restarter: r,
		feed:      make(chan struct{}),
	}
	s.tomb.Go(s.loop)
	return s
}

func (s *Soft) loop() error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	for {
		select {
		case <-s.tomb.Dying():
			return nil
		case <-s.feed:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.timeout)
		case <-timer.C:
			logger.Noticef("Heartbeat not acknowledged within %s", s.timeout)
			s.restarter.Restart("heartbeat missed")
			return nil
		}
	}
}

func (s *Soft) Feed() error {
	select {
	case s.feed <- struct{}{}:
		return nil
	case <-s.tomb.Dying():
		return ErrStopped
	}
}

// Close stops the watchdog without restarting.
func (s *Soft) Close() error {
	s.tomb.Kill(nil)
	return s.tomb.Wait()
}
