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

package cli_test

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	. "gopkg.in/check.v1"

	"github.com/flotter/wifiio/internals/cli"
	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/netstack"
)

// offlineStack never obtains an address.
type offlineStack struct {
	mu       sync.Mutex
	ifname   string
	connects int
	closed   bool
	events   chan netstack.Event
}

func (f *offlineStack) Init() error { return nil }

func (f *offlineStack) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return nil
}

func (f *offlineStack) Disconnect() error { return nil }

func (f *offlineStack) Events() <-chan netstack.Event { return f.events }

func (f *offlineStack) Gateway() (net.IP, error) { return nil, netstack.ErrNoGateway }

func (f *offlineStack) LinkInfo() (*netstack.LinkInfo, error) { return &netstack.LinkInfo{}, nil }

func (f *offlineStack) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *offlineStack) state() (connects int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.closed
}

func writeConfig(c *C, dir string) string {
	path := filepath.Join(dir, "wifiio.yaml")
	content := fmt.Sprintf(`
network:
    interface: wlp1s0
    connect-timeout: 10s
storage:
    state: %[1]s/state/boot.json
    slots:
        - label: a
          path: %[1]s/a.img
          size: 64KiB
        - label: b
          path: %[1]s/b.img
          size: 64KiB
http:
    address: 127.0.0.1:0
restart:
    mode: exit
`, dir)
	c.Assert(os.WriteFile(path, []byte(content), 0o644), IsNil)
	return path
}

func (s *cliSuite) TestRunInterruptedWhileOffline(c *C) {
	_, restore := logger.MockLogger("")
	s.restore = append(s.restore, restore)
	stack := &offlineStack{events: make(chan netstack.Event)}
	s.restore = append(s.restore, cli.MockNewStack(func(ifname string) netstack.Stack {
		stack.ifname = ifname
		return stack
	}))
	dir := c.MkDir()
	rcmd := &cli.CmdRun{ConfigPath: writeConfig(c, dir)}

	ch := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- cli.RunDaemon(rcmd, ch) }()

	// Wait for the first connection attempt.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if connects, _ := stack.state(); connects > 0 {
			break
		}
		if time.Now().After(deadline) {
			c.Fatalf("no connection attempt")
		}
		time.Sleep(time.Millisecond)
	}
	ch <- syscall.SIGTERM

	select {
	case err := <-done:
		c.Assert(err, IsNil)
	case <-time.After(5 * time.Second):
		c.Fatalf("daemon did not stop")
	}
	c.Check(stack.ifname, Equals, "wlp1s0")
	_, closed := stack.state()
	c.Check(closed, Equals, true)
	c.Check(filepath.Join(dir, "state", "boot.json"), testutilFileExists)
}

func (s *cliSuite) TestRunLogsToStderr(c *C) {
	_, restore := logger.MockLogger("")
	s.restore = append(s.restore, restore)

	err := cli.RunDaemon(&cli.CmdRun{ConfigPath: filepath.Join(c.MkDir(), "missing.yaml")}, nil)
	c.Assert(err, NotNil)
	logger.Noticef("Daemon log line")
	logger.Debugf("Hidden debug line")
	restore()

	c.Check(s.stdout.String(), Equals, "")
	c.Check(s.stderr.String(), Matches, `(?s).* wifiio Daemon log line\n`)
	if os.Getenv("WIFIIO_DEBUG") != "1" {
		c.Check(strings.Contains(s.stderr.String(), "Hidden debug line"), Equals, false)
	}
}

func (s *cliSuite) TestRunVerboseLogsDebug(c *C) {
	_, restore := logger.MockLogger("")
	s.restore = append(s.restore, restore)

	err := cli.RunDaemon(&cli.CmdRun{ConfigPath: filepath.Join(c.MkDir(), "missing.yaml"), Verbose: true}, nil)
	c.Assert(err, NotNil)
	logger.Debugf("Shown debug line")
	restore()

	c.Check(s.stderr.String(), Matches, `(?s).* wifiio DEBUG Shown debug line\n`)
}

func (s *cliSuite) TestRunBadConfig(c *C) {
	err := cli.RunDaemon(&cli.CmdRun{ConfigPath: filepath.Join(c.MkDir(), "missing.yaml")}, nil)
	c.Check(err, ErrorMatches, "cannot read configuration: .*")
}

func (s *cliSuite) TestRunWithoutStorage(c *C) {
	path := filepath.Join(c.MkDir(), "wifiio.yaml")
	c.Assert(os.WriteFile(path, []byte("http:\n    address: 127.0.0.1:0\n"), 0o644), IsNil)

	err := cli.RunDaemon(&cli.CmdRun{ConfigPath: path}, nil)
	c.Check(err, ErrorMatches, "cannot open storage: at least two slots are required, got 0")
}

type fileExistsChecker struct {
	*CheckerInfo
}

var testutilFileExists Checker = &fileExistsChecker{
	&CheckerInfo{Name: "FileExists", Params: []string{"filename"}},
}

func (c *fileExistsChecker) Check(params []interface{}, names []string) (result bool, error string) {
	filename, ok := params[0].(string)
	if !ok {
		return false, "filename must be a string"
	}
	_, err := os.Stat(filename)
	if err != nil {
		return false, err.Error()
	}
	return true, ""
}

func (s *cliSuite) TestRunReadsLayerDirectory(c *C) {
	dir := c.MkDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("{}\n"), 0o644), IsNil)

	err := cli.RunDaemon(&cli.CmdRun{ConfigPath: dir}, nil)
	c.Check(err, ErrorMatches, `invalid layer filename: "base.yaml" .*`)
}
