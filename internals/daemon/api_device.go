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
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/flotter/wifiio/internals/logger"
)

type statusResult struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Toolchain   string `json:"esp_idf"`
	CompileDate string `json:"compile_date"`
	CompileTime string `json:"compile_time"`
	Elapsed     string `json:"elapsed"`
}

func v1GetStatus(c *Command, req *http.Request) Response {
	info, err := c.d.provider.RunningInfo()
	if err != nil {
		return statusInternalError("cannot read firmware information: %v", err)
	}
	return SyncResponse(&statusResult{
		Name:        info.Name,
		Version:     info.Version,
		Toolchain:   info.Toolchain,
		CompileDate: info.CompileDate,
		CompileTime: info.CompileTime,
		Elapsed:     formatElapsed(c.d.Uptime()),
	})
}

// formatElapsed renders whole seconds as "<days> day(s) HH:MM:SS".
func formatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400
	return fmt.Sprintf("%d day(s) %02d:%02d:%02d", days, secs/3600, secs%3600/60, secs%60)
}

type apiResult struct {
	Status string `json:"status"`
}

// v1GetApi pulses the pin named by the last path segment. The pulse
// runs after the response was sent.
func v1GetApi(c *Command, req *http.Request) Response {
	pin, err := strconv.Atoi(path.Base(req.URL.Path))
	if err != nil || pin < 0 {
		return SyncResponse(&apiResult{Status: "NG"})
	}

	pulser, hold := c.d.pulser, c.d.pulseHold
	go func() {
		if err := pulser.Pulse(pin, hold); err != nil {
			logger.Noticef("Cannot pulse pin %d: %v", pin, err)
		}
	}()
	return SyncResponse(&apiResult{Status: "OK"})
}
