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
	"bytes"
	"strings"

	. "gopkg.in/check.v1"

	"github.com/flotter/wifiio/client"
)

func (cs *clientSuite) TestRefresh(c *C) {
	cs.reply(200, "text/plain; charset=utf-8", "Starting OTA update...\n*****\n*\nComplete.\n")

	image := bytes.Repeat([]byte{0xa5}, 4096)
	var progress bytes.Buffer
	err := cs.cli.Refresh(&client.RefreshOptions{
		Source:   bytes.NewReader(image),
		Size:     int64(len(image)),
		Progress: &progress,
	})
	c.Assert(err, IsNil)
	c.Check(cs.req.Method, Equals, "POST")
	c.Check(cs.req.URL.Path, Equals, "/ota")
	c.Check(cs.req.ContentLength, Equals, int64(4096))
	c.Check(cs.req.Header.Get("Content-Type"), Equals, "application/octet-stream")
	c.Check(cs.body, DeepEquals, image)
	c.Check(progress.String(), Equals, "Starting OTA update...\n*****\n*\nComplete.\n")
}

func (cs *clientSuite) TestRefreshEmptyImage(c *C) {
	cs.reply(200, "text/plain", "*\nComplete.\n")

	err := cs.cli.Refresh(&client.RefreshOptions{Source: strings.NewReader(""), Size: 0})
	c.Assert(err, IsNil)
	c.Check(cs.req.ContentLength, Equals, int64(0))
	c.Check(cs.req.TransferEncoding, HasLen, 0)
}

func (cs *clientSuite) TestRefreshFailure(c *C) {
	cs.reply(500, "text/plain", "Failed to receive firmware.\n")

	var progress bytes.Buffer
	err := cs.cli.Refresh(&client.RefreshOptions{Source: strings.NewReader("abc"), Size: 3, Progress: &progress})
	c.Assert(err, ErrorMatches, "Failed to receive firmware.")
	c.Check(err.(*client.Error).StatusCode, Equals, 500)
	c.Check(progress.Len(), Equals, 0)
}

func (cs *clientSuite) TestRefreshUnconfirmed(c *C) {
	cs.reply(200, "text/plain", "Starting OTA update...\n**")

	err := cs.cli.Refresh(&client.RefreshOptions{Source: strings.NewReader("abc"), Size: 3})
	c.Check(err, ErrorMatches, "device did not confirm the update")
}

func (cs *clientSuite) TestRefreshInvalid(c *C) {
	err := cs.cli.Refresh(&client.RefreshOptions{Size: 3})
	c.Check(err, ErrorMatches, "invalid firmware file description")
	c.Check(cs.req, IsNil)
}
