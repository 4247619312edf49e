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

// Package cli implements the wifiio command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/flotter/wifiio/client"
	"github.com/flotter/wifiio/internals/firmware"
)

var (
	// Standard streams, redirected for testing.
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// ErrExtraArgs is returned if extra arguments to a command are found
var ErrExtraArgs = errors.New("too many arguments for command")

// CmdInfo holds information needed by the CLI to execute commands and
// populate entries in the help manual.
type CmdInfo struct {
	// Name of the command
	Name string

	// Summary is a single-line help string that will be displayed
	// in the full wifiio help manual.
	Summary string

	// Description contains exhaustive documentation about the command.
	Description string

	// Builder is a function that creates a new instance of the command
	// struct containing an Execute(args []string) implementation.
	Builder func() flags.Commander
}

var commands []*CmdInfo

// AddCommand replaces parser.AddCommand() in order to better control the
// presentation of commands.
func AddCommand(info *CmdInfo) {
	commands = append(commands, info)
}

type clientSetter interface {
	setClient(*client.Client)
}

type clientMixin struct {
	client *client.Client
}

func (ch *clientMixin) setClient(cli *client.Client) {
	ch.client = cli
}

type globalOptions struct {
	Version func() `long:"version" description:"Print the version and exit"`
	URL     string `long:"url" env:"WIFIIO_URL" default:"http://wifiio.local" description:"Address of the device"`
}

// Parser creates and populates a fresh parser. Since commands are
// configured on the parser, the client is only known after parsing, so
// it is handed to commands lazily through newClient.
func Parser(opts *globalOptions, newClient func() (*client.Client, error)) *flags.Parser {
	opts.Version = func() {
		fmt.Fprintln(Stdout, firmware.Running())
		panic(&exitStatus{0})
	}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash|flags.PassAfterNonOption)
	parser.ShortDescription = "Supervisor for network attached controllers"
	parser.LongDescription = `
wifiio keeps a device on its wireless network, and serves firmware
updates, status and pin control over HTTP.
`
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if setter, ok := cmd.(clientSetter); ok {
			cli, err := newClient()
			if err != nil {
				return err
			}
			setter.setClient(cli)
		}
		return cmd.Execute(args)
	}

	for _, c := range commands {
		obj := c.Builder()
		if _, err := parser.AddCommand(c.Name, c.Summary, strings.TrimSpace(c.Description), obj); err != nil {
			panic(fmt.Sprintf("cannot add command %q: %v", c.Name, err))
		}
	}
	return parser
}

type exitStatus struct {
	code int
}

func (e *exitStatus) Error() string {
	return fmt.Sprintf("internal error: exitStatus{%d} being handled as normal error", e.code)
}

// Run parses the command line and executes the selected command. It
// returns the process exit status.
func Run(args []string) (code int) {
	defer func() {
		if v := recover(); v != nil {
			if e, ok := v.(*exitStatus); ok {
				code = e.code
				return
			}
			panic(v)
		}
	}()

	var opts globalOptions
	parser := Parser(&opts, func() (*client.Client, error) {
		return client.New(&client.Config{
			BaseURL:   opts.URL,
			UserAgent: "wifiio/" + firmware.Version,
		})
	})
	parser.Usage = "[OPTIONS] <command>"

	_, err := parser.ParseArgs(args)
	if err == nil {
		return 0
	}
	var flagErr *flags.Error
	if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
		fmt.Fprintln(Stdout, err)
		return 0
	}
	var exit *exitStatus
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(Stderr, "error: %v\n", err)
	return 1
}
