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

// Package probe checks that the uplink carries traffic by sending a
// batch of probes to the default gateway.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/flotter/wifiio/internals/config"
)

// Result summarises one probe batch.
type Result struct {
	Target   string
	Sent     int
	Received int
}

// AllLost reports whether no probe of the batch was answered.
func (r Result) AllLost() bool {
	return r.Received == 0
}

func (r Result) String() string {
	target := r.Target
	if target == "" {
		target = "<none>"
	}
	return fmt.Sprintf("%s: %d/%d replies", target, r.Received, r.Sent)
}

// Prober runs one probe batch. It never blocks for longer than its
// configured batch timeout.
type Prober interface {
	Probe(ctx context.Context) Result
}

// GatewayResolver returns the address probes are sent to.
type GatewayResolver interface {
	Gateway() (net.IP, error)
}

type Config struct {
	Count        int
	Interval     time.Duration
	Timeout      time.Duration
	BatchTimeout time.Duration
	Privileged   bool
	Port         int
	Command      string
}

// New returns the prober selected by the configuration.
func New(cfg *config.ProbeConfig, resolver GatewayResolver) (Prober, error) {
	c := Config{
		Count:        cfg.Count,
		Interval:     cfg.Interval.Value,
		Timeout:      cfg.Timeout.Value,
		BatchTimeout: cfg.BatchTimeout.Value,
		Privileged:   cfg.Privileged,
		Port:         cfg.Port,
		Command:      cfg.Command,
	}
	switch cfg.Type {
	case config.ProbeICMP:
		return NewICMP(c, resolver), nil
	case config.ProbeTCP:
		return NewTCP(c, resolver), nil
	case config.ProbeExec:
		return NewExec(c, resolver)
	}
	return nil, fmt.Errorf("unknown probe type %q", cfg.Type)
}
