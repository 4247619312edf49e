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
	. "gopkg.in/check.v1"
)

func (s *cliSuite) TestPulse(c *C) {
	s.reply(200, "application/json", `{"status":"OK"}`)

	c.Assert(s.run("pulse", "4"), Equals, 0)
	c.Check(s.req.URL.Path, Equals, "/api/4")
	c.Check(s.stdout.String(), Equals, "Pin 4 pulsed.\n")
}

func (s *cliSuite) TestPulseRefused(c *C) {
	s.reply(200, "application/json", `{"status":"NG"}`)

	c.Assert(s.run("pulse", "40"), Equals, 1)
	c.Check(s.stderr.String(), Equals, "error: device refused to pulse pin 40\n")
}

func (s *cliSuite) TestPulseNeedsPin(c *C) {
	c.Assert(s.run("pulse"), Equals, 1)
	c.Check(s.stderr.String(), Matches, "error: .*<pin>.*\n")
	c.Check(s.req, IsNil)
}
