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

package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RefreshOptions describes the firmware image to send.
type RefreshOptions struct {
	Source io.Reader
	Size   int64

	// Progress receives the progress bar drawn by the device. The
	// device holds the bar back until the image is committed, so it
	// arrives in one write once the upload is complete and nothing is
	// written for a failed upload.
	Progress io.Writer
}

func (opts *RefreshOptions) validate() error {
	if opts.Source == nil || opts.Size < 0 {
		return errors.New("invalid firmware file description")
	}
	return nil
}

// Refresh uploads a firmware image. The device restarts into the new
// image shortly after Refresh returns successfully.
func (client *Client) Refresh(opts *RefreshOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	headers := map[string]string{
		"Content-Type": "application/octet-stream",
	}
	rsp, err := client.raw("POST", "/ota", headers, opts.Source, opts.Size, 0)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		return responseError(rsp)
	}
	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return fmt.Errorf("cannot read update progress: %w", err)
	}
	if opts.Progress != nil {
		opts.Progress.Write(data)
	}
	if !strings.HasSuffix(string(data), "Complete.\n") {
		return errors.New("device did not confirm the update")
	}
	return nil
}
