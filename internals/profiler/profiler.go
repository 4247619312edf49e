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

// Package profiler records CPU and blocking profiles around daemon
// startup and shutdown. The WIFIIO_PROF environment variable selects
// the phase: "startup", "shutdown" or "all".
package profiler

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/osutil"
)

const (
	modeNone     = "none"
	modeStartup  = "startup"
	modeShutdown = "shutdown"
	modeAll      = "all"
)

var (
	cpuProfile *os.File
	deltaStart time.Time
	profMode   string
	profDir    = "."
	running    bool
)

func init() {
	setMode(os.Getenv("WIFIIO_PROF"))
}

func setMode(mode string) {
	switch mode {
	case modeStartup, modeShutdown, modeAll:
		profMode = mode
	default:
		profMode = modeNone
	}
}

// StartupStartMarker enables profiling before startup for both
// 'startup' and 'all' profiling mode.
func StartupStartMarker() {
	if profMode == modeStartup || profMode == modeAll {
		start()
	}
}

// StartupStopMarker ends startup profiling if selected, and logs how
// long the device took to come up.
func StartupStopMarker() {
	logger.Debugf("Serving %.2fs after kernel start", osutil.KernelUptime().Seconds())
	if profMode == modeStartup {
		stop()
	}
}

// ShutdownStartMarker enables profiling if shutdown profiling is
// selected.
func ShutdownStartMarker() {
	if profMode == modeShutdown {
		start()
	}
}

// ShutdownStopMarker stops profiling if either "shutdown" or "all"
// profiling mode is selected.
func ShutdownStopMarker() {
	if profMode == modeShutdown || profMode == modeAll {
		stop()
	}
}

func start() {
	if running {
		return
	}
	runtime.SetBlockProfileRate(1)

	f, err := os.Create(filepath.Join(profDir, fmt.Sprintf("cpu-%s.pprof", profMode)))
	if err != nil {
		logger.Noticef("Cannot create CPU profile: %v", err)
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		logger.Noticef("Cannot start CPU profile: %v", err)
		f.Close()
		return
	}
	cpuProfile = f
	running = true
	deltaStart = time.Now()
}

func stop() {
	if !running {
		return
	}
	running = false
	pprof.StopCPUProfile()
	cpuProfile.Close()
	runtime.SetBlockProfileRate(0)

	f, err := os.Create(filepath.Join(profDir, fmt.Sprintf("block-%s.pprof", profMode)))
	if err != nil {
		logger.Noticef("Cannot create block profile: %v", err)
	} else {
		if err := pprof.Lookup("block").WriteTo(f, 0); err != nil {
			logger.Noticef("Cannot write block profile: %v", err)
		}
		f.Close()
	}

	logger.Noticef("Profiled %s in %.2fs", profMode, time.Since(deltaStart).Seconds())
}
