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

package netstate

import (
	"context"
)

// ReadinessGate signals that the uplink became available. It holds at
// most one token: giving it again before the token was taken has no
// effect.
type ReadinessGate struct {
	ch chan struct{}
}

func NewReadinessGate() *ReadinessGate {
	return &ReadinessGate{ch: make(chan struct{}, 1)}
}

func (g *ReadinessGate) Give() {
	select {
	case g.ch <- struct{}{}:
	default:
	}
}

// Take waits for the token, or for ctx to be done.
func (g *ReadinessGate) Take(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready returns a channel that delivers the token, for use in select.
func (g *ReadinessGate) Ready() <-chan struct{} {
	return g.ch
}
