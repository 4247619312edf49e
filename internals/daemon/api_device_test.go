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
	"net/http/httptest"
	"strings"
	"time"

	. "gopkg.in/check.v1"
)

func (s *daemonSuite) serve(c *C, d *Daemon, method, url string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, url, nil)
	c.Assert(err, IsNil)
	rec := httptest.NewRecorder()
	d.router.ServeHTTP(rec, req)
	return rec
}

func (s *daemonSuite) TestStatus(c *C) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	restore := mockTimeNow(func() time.Time { return now })
	defer restore()

	d := s.newDaemon(c, nil)
	now = start.Add(90061*time.Second + 400*time.Millisecond)

	for _, url := range []string{"/status", "/status/", "/status.json"} {
		rec := s.serve(c, d, "GET", url)
		c.Check(rec.Code, Equals, 200, Commentf(url))
		c.Check(rec.Header().Get("Content-Type"), Equals, "application/json")
		c.Check(rec.Body.String(), Equals, `{"name":"wifiio","version":"1.2.3","esp_idf":"v5.0.1",`+
			`"compile_date":"Mar  1 2024","compile_time":"12:34:56","elapsed":"1 day(s) 01:01:01"}`)
	}
}

func (s *daemonSuite) TestFormatElapsed(c *C) {
	for _, t := range []struct {
		d        time.Duration
		expected string
	}{
		{0, "0 day(s) 00:00:00"},
		{999 * time.Millisecond, "0 day(s) 00:00:00"},
		{59 * time.Second, "0 day(s) 00:00:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "0 day(s) 01:02:03"},
		{86399 * time.Second, "0 day(s) 23:59:59"},
		{86400 * time.Second, "1 day(s) 00:00:00"},
		{90061 * time.Second, "1 day(s) 01:01:01"},
		{1000 * 24 * time.Hour, "1000 day(s) 00:00:00"},
	} {
		c.Check(formatElapsed(t.d), Equals, t.expected)
	}
}

func (s *daemonSuite) TestApiPulse(c *C) {
	d := s.newDaemon(c, nil)

	rec := s.serve(c, d, "GET", "/api/17")
	c.Check(rec.Code, Equals, 200)
	c.Check(rec.Body.String(), Equals, `{"status":"OK"}`)

	select {
	case p := <-s.pulser.pulses:
		c.Check(p.pin, Equals, 17)
		c.Check(p.hold, Equals, 300*time.Millisecond)
	case <-time.After(5 * time.Second):
		c.Fatalf("pin not pulsed")
	}
}

func (s *daemonSuite) TestApiBadPin(c *C) {
	d := s.newDaemon(c, nil)

	for _, url := range []string{"/api", "/api/", "/api/abc", "/api/-1", "/api/1.5"} {
		rec := s.serve(c, d, "GET", url)
		c.Check(rec.Code, Equals, 200, Commentf(url))
		c.Check(rec.Body.String(), Equals, `{"status":"NG"}`, Commentf(url))
	}
	select {
	case p := <-s.pulser.pulses:
		c.Fatalf("unexpected pulse of pin %d", p.pin)
	case <-time.After(20 * time.Millisecond):
	}
}

func (s *daemonSuite) TestMethodNotAllowed(c *C) {
	d := s.newDaemon(c, nil)

	rec := s.serve(c, d, "POST", "/status")
	c.Check(rec.Code, Equals, 405)
	c.Check(rec.Body.String(), Equals, `{"message":"method \"POST\" not allowed"}`)

	rec = s.serve(c, d, "GET", "/ota")
	c.Check(rec.Code, Equals, 405)
}

func (s *daemonSuite) TestNotFound(c *C) {
	d := s.newDaemon(c, nil)

	rec := s.serve(c, d, "GET", "/app/index.html")
	c.Check(rec.Code, Equals, 404)
	c.Check(strings.TrimSpace(rec.Body.String()), Equals, `{"message":"not found"}`)
}
