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
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/overlord/fwstate"
	"github.com/flotter/wifiio/internals/partition"
)

const failedReceipt = "Failed to receive firmware."

func v1PostOta(c *Command, req *http.Request) Response {
	if req.ContentLength < 0 {
		return &textResponse{
			Status: http.StatusLengthRequired,
			Body:   []byte("Content-Length required."),
		}
	}
	return &otaResponse{
		firmware:    c.d.firmware,
		readTimeout: c.d.readTimeout,
	}
}

// otaResponse receives the image while serving, as reads from the body
// need the response writer to extend their deadline.
type otaResponse struct {
	firmware    *fwstate.FirmwareManager
	readTimeout time.Duration
}

func (r *otaResponse) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body := &deadlineReader{
		r:       req.Body,
		rc:      http.NewResponseController(w),
		timeout: r.readTimeout,
	}

	// The status line cannot change once progress was sent, so the
	// progress is held back until the outcome is known.
	var progress bytes.Buffer
	_, err := r.firmware.Receive(body, req.ContentLength, &progress)

	var rsp textResponse
	switch {
	case err == nil:
		rsp = textResponse{Status: http.StatusOK, Body: progress.Bytes()}
	case errors.Is(err, fwstate.ErrStorageUnavailable):
		rsp = textResponse{Status: http.StatusServiceUnavailable, Body: []byte("Storage unavailable.")}
	case errors.Is(err, fwstate.ErrBusy):
		rsp = textResponse{Status: http.StatusConflict, Body: []byte("Update already in progress.")}
	case errors.Is(err, partition.ErrImageTooLarge):
		rsp = textResponse{Status: http.StatusRequestEntityTooLarge, Body: []byte("Firmware image too large.")}
	default:
		rsp = textResponse{Status: http.StatusInternalServerError, Body: []byte(failedReceipt)}
	}
	if err != nil {
		logger.Noticef("Firmware update failed: %v", err)
	}
	rsp.ServeHTTP(w, req)
}

// deadlineReader gives every read its own deadline, so a stalled client
// shows up as a timed out read instead of blocking forever.
type deadlineReader struct {
	r          io.Reader
	rc         *http.ResponseController
	timeout    time.Duration
	noDeadline bool
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if d.timeout > 0 && !d.noDeadline {
		if err := d.rc.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
			logger.Debugf("Cannot set read deadline: %v", err)
			d.noDeadline = true
		}
	}
	return d.r.Read(p)
}
