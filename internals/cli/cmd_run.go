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

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/flotter/wifiio/internals/config"
	"github.com/flotter/wifiio/internals/daemon"
	"github.com/flotter/wifiio/internals/gpio"
	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/netstack"
	"github.com/flotter/wifiio/internals/partition"
	"github.com/flotter/wifiio/internals/probe"
	"github.com/flotter/wifiio/internals/profiler"
	"github.com/flotter/wifiio/internals/restart"
	"github.com/flotter/wifiio/internals/watchdog"
)

const cmdRunSummary = "Run the device daemon"
const cmdRunDescription = `
The run command keeps the device connected to its network and serves the
firmware update, status and pin endpoints.
`

type cmdRun struct {
	ConfigPath string `long:"config" short:"c" description:"Configuration file, or directory of configuration layers"`
	Verbose    bool   `long:"verbose" short:"v" description:"Include debug messages in the log"`
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "run",
		Summary:     cmdRunSummary,
		Description: cmdRunDescription,
		Builder:     func() flags.Commander { return &cmdRun{} },
	})
}

var newStack = func(ifname string) netstack.Stack {
	return netstack.NewNetlink(ifname)
}

func (rcmd *cmdRun) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	return runDaemon(rcmd, sigs)
}

// loadConfig reads a configuration file, or a directory of layers.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		return config.LoadDir(path)
	}
	return config.Load(path)
}

// openHeartbeat prefers the hardware watchdog and falls back to a
// software one, which can only restart a live process.
func openHeartbeat(cfg *config.HeartbeatConfig, r restart.Restarter) (watchdog.Heartbeat, io.Closer) {
	if cfg.Device != "" {
		dev, err := watchdog.OpenDevice(cfg.Device, cfg.Timeout.Value)
		if err == nil {
			return dev, dev
		}
		logger.Noticef("Cannot use hardware watchdog, using software watchdog: %v", err)
	}
	soft := watchdog.NewSoft(cfg.Timeout.Value, r)
	return soft, soft
}

func runDaemon(rcmd *cmdRun, ch <-chan os.Signal) (err error) {
	if rcmd.Verbose {
		logger.SetLogger(logger.NewDebug(Stderr, "wifiio "))
	} else {
		logger.SetLogger(logger.New(Stderr, "wifiio "))
	}

	profiler.StartupStartMarker()

	cfg, err := loadConfig(rcmd.ConfigPath)
	if err != nil {
		return err
	}

	provider, err := partition.Open(&cfg.Storage)
	if err != nil {
		return err
	}
	defer provider.Close()

	restarter := &restart.System{Mode: restart.Mode(cfg.Restart.Mode)}
	stack := newStack(cfg.Network.Interface)
	prober, err := probe.New(&cfg.Probe, stack)
	if err != nil {
		return err
	}
	hb, closer := openHeartbeat(&cfg.Heartbeat, restarter)
	defer closer.Close()

	d, err := daemon.New(&daemon.Options{
		Config:    cfg,
		Provider:  provider,
		Stack:     stack,
		Prober:    prober,
		Heartbeat: hb,
		Restarter: restarter,
		Pulser:    &gpio.Chip{Name: cfg.GPIO.Chip},
	})
	if err != nil {
		return err
	}
	if err := d.Init(); err != nil {
		return err
	}
	defer func() {
		profiler.ShutdownStartMarker()
		if stopErr := d.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
		profiler.ShutdownStopMarker()
	}()

	// A signal received while waiting for the network aborts the wait.
	ctx, cancel := context.WithCancel(context.Background())
	interrupted := false
	waitDone := make(chan struct{})
	go func() {
		defer close(waitDone)
		select {
		case sig := <-ch:
			logger.Noticef("Exiting on %s signal before the network came up.", sig)
			interrupted = true
			cancel()
		case <-ctx.Done():
		}
	}()
	err = d.Start(ctx)
	cancel()
	<-waitDone
	if interrupted {
		return nil
	}
	if err != nil {
		return err
	}

	profiler.StartupStopMarker()

	select {
	case sig := <-ch:
		logger.Noticef("Exiting on %s signal.", sig)
	case <-d.Dying():
		return fmt.Errorf("server stopped unexpectedly")
	}
	return nil
}
