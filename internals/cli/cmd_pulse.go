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
	"fmt"

	"github.com/jessevdk/go-flags"

	"github.com/flotter/wifiio/client"
)

const cmdPulseSummary = "Pulse a device pin"
const cmdPulseDescription = `
The pulse command drives a pin of the device high for a short time. The
device answers before the pulse completes.
`

type cmdPulse struct {
	clientMixin

	Positional struct {
		Pin int `positional-arg-name:"<pin>" required:"1"`
	} `positional-args:"yes"`
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "pulse",
		Summary:     cmdPulseSummary,
		Description: cmdPulseDescription,
		Builder:     func() flags.Commander { return &cmdPulse{} },
	})
}

func (cmd *cmdPulse) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	err := cmd.client.Pulse(&client.PulseOptions{Pin: cmd.Positional.Pin})
	if err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "Pin %d pulsed.\n", cmd.Positional.Pin)
	return nil
}
