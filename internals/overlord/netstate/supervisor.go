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

// Package netstate supervises the uplink: it connects, reconnects after
// link loss, probes the gateway, and restarts the device once failures
// persist.
package netstate

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/flotter/wifiio/internals/config"
	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/netstack"
	"github.com/flotter/wifiio/internals/probe"
	"github.com/flotter/wifiio/internals/restart"
	"github.com/flotter/wifiio/internals/watchdog"
)

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// Counters hold consecutive failures. Each resets on the matching
// success.
type Counters struct {
	ConnectFailures    int
	ProbeTimeoutCycles int
}

// Snapshot is a read-only copy of the supervisor state.
type Snapshot struct {
	State    ConnectionState
	Counters Counters
}

type Config struct {
	ConnectTimeout        time.Duration
	DisconnectWait        time.Duration
	MaxConnectFailures    int
	MaxProbeTimeoutCycles int
}

// ConfigFrom extracts the supervisor settings from the daemon
// configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ConnectTimeout:        cfg.Network.ConnectTimeout.Value,
		DisconnectWait:        cfg.Network.DisconnectWait.Value,
		MaxConnectFailures:    cfg.Network.MaxConnectFailures,
		MaxProbeTimeoutCycles: cfg.Probe.MaxTimeouts,
	}
}

// loopState is owned by the supervisor loop and never shared.
type loopState struct {
	state             ConnectionState
	counters          Counters
	disconnectPending bool
}

type Supervisor struct {
	cfg       Config
	stack     netstack.Stack
	prober    probe.Prober
	heartbeat watchdog.Heartbeat
	restarter restart.Restarter
	gate      *ReadinessGate

	snapshot atomic.Pointer[Snapshot]

	mu      sync.Mutex
	started bool
	tomb    tomb.Tomb
}

func NewSupervisor(cfg Config, stack netstack.Stack, prober probe.Prober, hb watchdog.Heartbeat, r restart.Restarter) *Supervisor {
	s := &Supervisor{
		cfg:       cfg,
		stack:     stack,
		prober:    prober,
		heartbeat: hb,
		restarter: r,
		gate:      NewReadinessGate(),
	}
	s.snapshot.Store(&Snapshot{})
	return s
}

// Gate returns the gate given on every successful connection.
func (s *Supervisor) Gate() *ReadinessGate {
	return s.gate
}

func (s *Supervisor) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Start initializes the network stack and starts the supervisor loop.
// An initialization error leaves no safe way to operate and must end
// the process.
func (s *Supervisor) Start() error {
	if err := s.stack.Init(); err != nil {
		return fmt.Errorf("cannot initialize network stack: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.tomb.Go(s.loop)
	return nil
}

// Stop ends the loop without restarting the device.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	s.tomb.Kill(nil)
	return s.tomb.Wait()
}

func (s *Supervisor) loop() error {
	st := &loopState{}
	if !s.connect(st) {
		return nil
	}
	for s.iterate(st) {
	}
	return nil
}

// iterate runs one supervision cycle and reports whether the loop
// should go on.
func (s *Supervisor) iterate(st *loopState) bool {
	triggered, alive := s.waitDisconnect(st)
	if !alive {
		return false
	}
	if triggered {
		logger.Noticef("Link lost, %d consecutive connect failures", st.counters.ConnectFailures)
		if st.counters.ConnectFailures >= s.cfg.MaxConnectFailures {
			s.restarter.Restart("too many connect failures")
			return false
		}
		if err := s.stack.Disconnect(); err != nil {
			logger.Noticef("Cannot disconnect: %v", err)
		}
		st.state = Disconnected
		if !s.connect(st) {
			return false
		}
	}

	res := s.prober.Probe(s.tomb.Context(nil))
	if res.AllLost() {
		st.counters.ProbeTimeoutCycles++
		logger.Noticef("Probe cycle lost all replies (%s), %d consecutive", res, st.counters.ProbeTimeoutCycles)
		if st.counters.ProbeTimeoutCycles >= s.cfg.MaxProbeTimeoutCycles {
			s.publish(st)
			s.restarter.Restart("too many probe timeouts")
			return false
		}
	} else {
		st.counters.ProbeTimeoutCycles = 0
	}
	s.publish(st)

	if err := s.heartbeat.Feed(); err != nil {
		logger.Noticef("Cannot acknowledge heartbeat: %v", err)
	}
	return true
}

// waitDisconnect waits for a reason to reconnect: a failed connection
// attempt or loss of the link. It reports false in alive when the
// supervisor is stopping.
func (s *Supervisor) waitDisconnect(st *loopState) (triggered, alive bool) {
	if st.disconnectPending {
		st.disconnectPending = false
		return true, true
	}
	timer := time.NewTimer(s.cfg.DisconnectWait)
	defer timer.Stop()
	for {
		select {
		case <-s.tomb.Dying():
			return false, false
		case ev := <-s.stack.Events():
			if ev.Kind == netstack.EventLinkDown {
				return true, true
			}
		case <-timer.C:
			return false, true
		}
	}
}

// connect starts a connection attempt and waits for an address. It
// reports false only when the supervisor is stopping.
func (s *Supervisor) connect(st *loopState) bool {
	st.state = Connecting
	s.publish(st)

	// Notifications from earlier attempts say nothing about this one.
	s.drainEvents()

	if err := s.stack.Connect(); err != nil {
		logger.Noticef("Cannot connect: %v", err)
		s.connectFailed(st)
		return true
	}

	timer := time.NewTimer(s.cfg.ConnectTimeout)
	defer timer.Stop()
	for {
		select {
		case <-s.tomb.Dying():
			return false
		case ev := <-s.stack.Events():
			if ev.Kind != netstack.EventAddrAcquired {
				continue
			}
			logger.Noticef("Connected, address %s", ev.Addr)
			if info, err := s.stack.LinkInfo(); err == nil {
				logger.Noticef("Link: %s", info)
			} else {
				logger.Debugf("Cannot read link quality: %v", err)
			}
			st.counters.ConnectFailures = 0
			st.state = Connected
			s.publish(st)
			s.gate.Give()
			return true
		case <-timer.C:
			logger.Noticef("No address within %s", s.cfg.ConnectTimeout)
			s.connectFailed(st)
			return true
		}
	}
}

func (s *Supervisor) connectFailed(st *loopState) {
	st.counters.ConnectFailures++
	st.disconnectPending = true
	st.state = Disconnected
	s.publish(st)
}

func (s *Supervisor) drainEvents() {
	for {
		select {
		case <-s.stack.Events():
		default:
			return
		}
	}
}

func (s *Supervisor) publish(st *loopState) {
	s.snapshot.Store(&Snapshot{State: st.state, Counters: st.counters})
}
