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

package client_test

import (
	. "gopkg.in/check.v1"

	"github.com/flotter/wifiio/client"
)

func (cs *clientSuite) TestStatus(c *C) {
	cs.reply(200, "application/json", `{"name":"wifiio","version":"1.2.3","esp_idf":"go1.21.0",`+
		`"compile_date":"Mar  1 2024","compile_time":"12:34:56","elapsed":"0 day(s) 00:00:42"}`)

	status, err := cs.cli.Status()
	c.Assert(err, IsNil)
	c.Check(cs.req.Method, Equals, "GET")
	c.Check(cs.req.URL.Path, Equals, "/status")
	c.Check(cs.req.Header.Get("User-Agent"), Equals, "wifiio-test")
	c.Check(status, DeepEquals, &client.Status{
		Name:        "wifiio",
		Version:     "1.2.3",
		Toolchain:   "go1.21.0",
		CompileDate: "Mar  1 2024",
		CompileTime: "12:34:56",
		Elapsed:     "0 day(s) 00:00:42",
	})
}

func (cs *clientSuite) TestStatusError(c *C) {
	cs.reply(404, "application/json", `{"message":"not found"}`)

	_, err := cs.cli.Status()
	c.Assert(err, ErrorMatches, "not found")
	e, ok := err.(*client.Error)
	c.Assert(ok, Equals, true)
	c.Check(e.StatusCode, Equals, 404)
}

func (cs *clientSuite) TestStatusBadJSON(c *C) {
	cs.reply(200, "application/json", `{`)

	_, err := cs.cli.Status()
	c.Check(err, ErrorMatches, "cannot decode device response: .*")
}

func (cs *clientSuite) TestPulse(c *C) {
	cs.reply(200, "application/json", `{"status":"OK"}`)

	err := cs.cli.Pulse(&client.PulseOptions{Pin: 17})
	c.Assert(err, IsNil)
	c.Check(cs.req.URL.Path, Equals, "/api/17")
}

func (cs *clientSuite) TestPulseRefused(c *C) {
	cs.reply(200, "application/json", `{"status":"NG"}`)

	err := cs.cli.Pulse(&client.PulseOptions{Pin: 99})
	c.Check(err, ErrorMatches, "device refused to pulse pin 99")
}

func (cs *clientSuite) TestPulseNegativePin(c *C) {
	err := cs.cli.Pulse(&client.PulseOptions{Pin: -1})
	c.Check(err, ErrorMatches, "invalid pin -1")
	c.Check(cs.req, IsNil)
}
