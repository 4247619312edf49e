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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flotter/wifiio/internals/logger"
)

// ResponseType is the response type
type ResponseType string

const (
	ResponseTypeSync  ResponseType = "sync"
	ResponseTypeError ResponseType = "error"
)

// Response knows how to serve itself.
type Response interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// resp is a JSON response. The device endpoints answer with the result
// document itself, without an envelope.
type resp struct {
	Status int
	Type   ResponseType
	Result any
}

type errorResult struct {
	Message string `json:"message"`
}

func (r *resp) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	bs, err := json.Marshal(r.Result)
	if err != nil {
		logger.Noticef("Cannot marshal %#v to JSON: %v", r.Result, err)
		bs = []byte(`{"message":"internal error"}`)
		r.Status = http.StatusInternalServerError
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(bs)
}

// SyncResponse builds a 200 response with result, or an internal error
// response if result is an error.
func SyncResponse(result any) Response {
	if err, ok := result.(error); ok {
		return statusInternalError("internal error: %v", err)
	}
	return &resp{
		Type:   ResponseTypeSync,
		Status: http.StatusOK,
		Result: result,
	}
}

type errorResponder func(string, ...any) Response

func makeErrorResponder(status int) errorResponder {
	return func(format string, v ...any) Response {
		msg := format
		if len(v) > 0 {
			msg = fmt.Sprintf(format, v...)
		}
		return &resp{
			Type:   ResponseTypeError,
			Status: status,
			Result: &errorResult{Message: msg},
		}
	}
}

var (
	statusNotFound         = makeErrorResponder(http.StatusNotFound)
	statusMethodNotAllowed = makeErrorResponder(http.StatusMethodNotAllowed)
	statusInternalError    = makeErrorResponder(http.StatusInternalServerError)
)

// textResponse is a plain text response, as used by the update
// endpoint.
type textResponse struct {
	Status int
	Body   []byte
}

func (r *textResponse) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(r.Status)
	w.Write(r.Body)
}
