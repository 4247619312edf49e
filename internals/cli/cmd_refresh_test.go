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
	"bytes"
	"io"
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/flotter/wifiio/internals/cli"
)

const progressOutput = "Starting OTA update...\n***\n*\nComplete.\n"

func (s *cliSuite) writeImage(c *C) (path string, image []byte) {
	image = bytes.Repeat([]byte("wifiio"), 1000)
	path = filepath.Join(c.MkDir(), "image.bin")
	c.Assert(os.WriteFile(path, image, 0o644), IsNil)
	return path, image
}

func (s *cliSuite) TestRefresh(c *C) {
	s.reply(200, "text/plain", progressOutput)
	path, image := s.writeImage(c)

	c.Assert(s.run("refresh", path), Equals, 0)
	c.Check(s.req.Method, Equals, "POST")
	c.Check(s.req.URL.Path, Equals, "/ota")
	c.Check(s.body, DeepEquals, image)
	c.Check(s.stdout.String(), Equals, "Firmware "+path+" installed, device restarting.\n")
}

func (s *cliSuite) TestRefreshShowsProgressOnTerminal(c *C) {
	s.restore = append(s.restore, cli.MockIsTerminal(func(io.Writer) bool { return true }))
	s.reply(200, "text/plain", progressOutput)
	path, _ := s.writeImage(c)

	c.Assert(s.run("refresh", path), Equals, 0)
	c.Check(s.stdout.String(), Equals, progressOutput+"Firmware "+path+" installed, device restarting.\n")
}

func (s *cliSuite) TestRefreshQuiet(c *C) {
	s.restore = append(s.restore, cli.MockIsTerminal(func(io.Writer) bool { return true }))
	s.reply(200, "text/plain", progressOutput)
	path, _ := s.writeImage(c)

	c.Assert(s.run("refresh", "--quiet", path), Equals, 0)
	c.Check(s.stdout.String(), Equals, "Firmware "+path+" installed, device restarting.\n")
}

func (s *cliSuite) TestRefreshRejected(c *C) {
	s.reply(413, "text/plain", "Firmware image too large.\n")
	path, _ := s.writeImage(c)

	c.Assert(s.run("refresh", path), Equals, 1)
	c.Check(s.stderr.String(), Equals, "error: Firmware image too large.\n")
}

func (s *cliSuite) TestRefreshMissingFile(c *C) {
	c.Assert(s.run("refresh", filepath.Join(c.MkDir(), "missing.bin")), Equals, 1)
	c.Check(s.stderr.String(), Matches, "error: open .*missing.bin: no such file or directory\n")
	c.Check(s.req, IsNil)
}

func (s *cliSuite) TestRefreshDirectory(c *C) {
	dir := c.MkDir()
	c.Assert(s.run("refresh", dir), Equals, 1)
	c.Check(s.stderr.String(), Equals, `error: cannot refresh from "`+dir+`": not a regular file`+"\n")
}
