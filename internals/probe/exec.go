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
	"fmt"
	"os"
	"os/exec"

	"github.com/canonical/x-go/strutil/shlex"

	"github.com/flotter/wifiio/internals/logger"
)

// ExecProber runs a command once per batch; exit status zero counts as
// a reply. "$GATEWAY" in the command expands to the gateway address.
type ExecProber struct {
	cfg      Config
	args     []string
	resolver GatewayResolver
}

func NewExec(cfg Config, resolver GatewayResolver) (*ExecProber, error) {
	args, err := shlex.Split(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("cannot parse probe command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("cannot parse probe command: empty command")
	}
	return &ExecProber{cfg: cfg, args: args, resolver: resolver}, nil
}

func (p *ExecProber) Probe(ctx context.Context) Result {
	gw, err := p.resolver.Gateway()
	if err != nil {
		logger.Noticef("Cannot probe uplink: %v", err)
		return Result{}
	}
	gateway := gw.String()
	args := make([]string, len(p.args))
	for i, arg := range p.args {
		args[i] = os.Expand(arg, func(name string) string {
			if name == "GATEWAY" {
				return gateway
			}
			return os.Getenv(name)
		})
	}
	res := Result{Target: gateway, Sent: 1}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.BatchTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		logger.Debugf("Probe command %q failed: %v: %s", p.cfg.Command, err, out)
		return res
	}
	res.Received = 1
	return res
}
