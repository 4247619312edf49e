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
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/flotter/wifiio/client"
)

const cmdRefreshSummary = "Update device firmware"
const cmdRefreshDescription = `
The refresh command streams a firmware image to the device. The device
writes it to its spare slot and restarts into it once complete.
`

type cmdRefresh struct {
	clientMixin

	Quiet bool `long:"quiet" short:"q" description:"Do not show update progress"`

	Positional struct {
		LocalPath string `positional-arg-name:"<local-path>" required:"1"`
	} `positional-args:"yes"`
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "refresh",
		Summary:     cmdRefreshSummary,
		Description: cmdRefreshDescription,
		Builder:     func() flags.Commander { return &cmdRefresh{} },
	})
}

var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (cmd *cmdRefresh) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	f, err := os.Open(cmd.Positional.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("cannot refresh from %q: not a regular file", cmd.Positional.LocalPath)
	}

	// The device draws its progress bar for a terminal.
	var progress io.Writer
	if !cmd.Quiet && isTerminal(Stdout) {
		progress = Stdout
	}
	err = cmd.client.Refresh(&client.RefreshOptions{
		Source:   f,
		Size:     st.Size(),
		Progress: progress,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "Firmware %s installed, device restarting.\n", cmd.Positional.LocalPath)
	return nil
}
