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
	"io"
	"os"

	"github.com/flotter/wifiio/internals/netstack"
)

type CmdRun = cmdRun

func RunDaemon(rcmd *CmdRun, ch <-chan os.Signal) error {
	return runDaemon(rcmd, ch)
}

func MockNewStack(f func(ifname string) netstack.Stack) (restore func()) {
	old := newStack
	newStack = f
	return func() { newStack = old }
}

func MockIsTerminal(f func(w io.Writer) bool) (restore func()) {
	old := isTerminal
	isTerminal = f
	return func() { isTerminal = old }
}
