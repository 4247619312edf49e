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

package probe

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/flotter/wifiio/internals/logger"
)

type batch interface {
	RunWithContext(ctx context.Context) error
	Stop()
	Statistics() *probing.Statistics
}

var newBatch = func(target string, cfg Config) (batch, error) {
	p, err := probing.NewPinger(target)
	if err != nil {
		return nil, err
	}
	p.Count = cfg.Count
	p.Interval = cfg.Interval
	p.Timeout = batchDeadline(cfg)
	p.SetPrivileged(cfg.Privileged)
	return p, nil
}

// batchDeadline bounds one batch: the last request goes out after
// (Count-1) intervals and then has Timeout to be answered, capped by
// BatchTimeout.
func batchDeadline(cfg Config) time.Duration {
	d := cfg.Timeout
	if cfg.Count > 1 {
		d += time.Duration(cfg.Count-1) * cfg.Interval
	}
	if d <= 0 || d > cfg.BatchTimeout {
		return cfg.BatchTimeout
	}
	return d
}

// ICMPProber sends echo requests to the gateway.
type ICMPProber struct {
	cfg      Config
	resolver GatewayResolver
}

func NewICMP(cfg Config, resolver GatewayResolver) *ICMPProber {
	return &ICMPProber{cfg: cfg, resolver: resolver}
}

// Probe sends one batch of echo requests. Each call uses its own pinger
// and result channel, so a late reply from a previous batch can never be
// counted again.
func (p *ICMPProber) Probe(ctx context.Context) Result {
	gw, err := p.resolver.Gateway()
	if err != nil {
		logger.Noticef("Cannot probe uplink: %v", err)
		return Result{}
	}
	res := Result{Target: gw.String()}

	b, err := newBatch(res.Target, p.cfg)
	if err != nil {
		logger.Noticef("Cannot probe %s: %v", res.Target, err)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, batchDeadline(p.cfg))
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- b.RunWithContext(ctx)
	}()
	select {
	case err = <-done:
		b.Stop()
	case <-ctx.Done():
		b.Stop()
		err = <-done
	}
	if err != nil {
		logger.Debugf("Probe batch to %s ended: %v", res.Target, err)
	}

	stats := b.Statistics()
	res.Sent = stats.PacketsSent
	res.Received = stats.PacketsRecv
	logger.Debugf("Probe %s", res)
	return res
}
