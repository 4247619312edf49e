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

// Package restart implements the only recovery primitive of the device:
// a full restart. Every escalation path ends here rather than in an
// in-process retry.
package restart

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/flotter/wifiio/internals/logger"
)

// ExitCode is the process status used in exit mode, so a service
// manager can tell a requested restart from a crash.
const ExitCode = 42

// Restarter resets the device. In production Restart does not return.
type Restarter interface {
	Restart(reason string)
}

type Mode string

const (
	// ModeReboot reboots the host kernel.
	ModeReboot Mode = "reboot"
	// ModeExit exits the daemon and leaves the restart to the service
	// manager.
	ModeExit Mode = "exit"
)

var (
	osExit     = os.Exit
	unixSync   = unix.Sync
	unixReboot = unix.Reboot
)

// System restarts the host or the daemon process.
type System struct {
	Mode Mode

	once sync.Once
}

var _ Restarter = (*System)(nil)

func (s *System) Restart(reason string) {
	s.once.Do(func() {
		logger.Noticef("Restarting (%s): %s", s.Mode, reason)
		if s.Mode == ModeReboot {
			unixSync()
			err := unixReboot(unix.LINUX_REBOOT_CMD_RESTART)
			if err == nil {
				return
			}
			logger.Noticef("Cannot reboot, exiting instead: %v", err)
		}
		osExit(ExitCode)
	})
}

// After restarts the device once delay elapses, on its own goroutine, so
// the caller can finish flushing a response first.
func After(r Restarter, delay time.Duration, reason string) *time.Timer {
	logger.Debugf("Restart scheduled in %s: %s", delay, reason)
	return time.AfterFunc(delay, func() {
		r.Restart(reason)
	})
}

// Recorder is a Restarter that only records requests, for tests and for
// dry runs of the daemon.
type Recorder struct {
	mu      sync.Mutex
	reasons []string
	ch      chan string
}

func NewRecorder() *Recorder {
	return &Recorder{ch: make(chan string, 16)}
}

func (r *Recorder) Restart(reason string) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
	select {
	case r.ch <- reason:
	default:
	}
}

// Reasons returns the reasons of all restarts requested so far.
func (r *Recorder) Reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

// Wait returns the next restart reason, or an error after timeout.
func (r *Recorder) Wait(timeout time.Duration) (string, error) {
	select {
	case reason := <-r.ch:
		return reason, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("no restart within %s", timeout)
	}
}
