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

package daemon

import (
	"net/http"
)

// ResponseFunc handles one method of a Command.
type ResponseFunc func(*Command, *http.Request) Response

// A Command routes a request to an individual per-method ResponseFunc.
type Command struct {
	Path string
	// PathPrefix matches every path starting with Path.
	PathPrefix bool

	GET  ResponseFunc
	POST ResponseFunc

	d *Daemon
}

var api = []*Command{{
	Path:       "/ota",
	PathPrefix: true,
	POST:       v1PostOta,
}, {
	Path:       "/status",
	PathPrefix: true,
	GET:        v1GetStatus,
}, {
	Path:       "/api",
	PathPrefix: true,
	GET:        v1GetApi,
}}

func (c *Command) Daemon() *Daemon {
	return c.d
}

func (c *Command) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var rspf ResponseFunc
	switch r.Method {
	case "GET":
		rspf = c.GET
	case "POST":
		rspf = c.POST
	}

	var rsp Response
	if rspf == nil {
		rsp = statusMethodNotAllowed("method %q not allowed", r.Method)
	} else {
		rsp = rspf(c, r)
	}
	rsp.ServeHTTP(w, r)
}
