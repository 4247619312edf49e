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
	"text/tabwriter"

	"github.com/jessevdk/go-flags"
)

const cmdStatusSummary = "Show device status"
const cmdStatusDescription = `
The status command shows the firmware running on the device and how long
it has been up.
`

type cmdStatus struct {
	clientMixin
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "status",
		Summary:     cmdStatusSummary,
		Description: cmdStatusDescription,
		Builder:     func() flags.Commander { return &cmdStatus{} },
	})
}

func (cmd *cmdStatus) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	status, err := cmd.client.Status()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", status.Name)
	fmt.Fprintf(w, "Version:\t%s\n", status.Version)
	fmt.Fprintf(w, "Toolchain:\t%s\n", status.Toolchain)
	fmt.Fprintf(w, "Built:\t%s %s\n", status.CompileDate, status.CompileTime)
	fmt.Fprintf(w, "Uptime:\t%s\n", status.Elapsed)
	return w.Flush()
}
