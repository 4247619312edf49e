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
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/flotter/wifiio/internals/logger"
)

// TCPProber opens connections to a port on the gateway. A refused
// connection still proves the gateway answered.
type TCPProber struct {
	cfg      Config
	resolver GatewayResolver
}

func NewTCP(cfg Config, resolver GatewayResolver) *TCPProber {
	return &TCPProber{cfg: cfg, resolver: resolver}
}

func (p *TCPProber) Probe(ctx context.Context) Result {
	gw, err := p.resolver.Gateway()
	if err != nil {
		logger.Noticef("Cannot probe uplink: %v", err)
		return Result{}
	}
	addr := net.JoinHostPort(gw.String(), strconv.Itoa(p.cfg.Port))
	res := Result{Target: addr}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.BatchTimeout)
	defer cancel()

	dialer := net.Dialer{Timeout: p.cfg.Timeout}
	for i := 0; i < p.cfg.Count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return res
			case <-time.After(p.cfg.Interval):
			}
		}
		res.Sent++
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			res.Received++
			continue
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			res.Received++
			continue
		}
		logger.Debugf("Probe %s failed: %v", addr, err)
		if ctx.Err() != nil {
			return res
		}
	}
	return res
}
