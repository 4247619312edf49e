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
	"fmt"
	"strconv"
)

// Status describes the firmware running on the device.
type Status struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Toolchain   string `json:"esp_idf"`
	CompileDate string `json:"compile_date"`
	CompileTime string `json:"compile_time"`
	Elapsed     string `json:"elapsed"`
}

func (client *Client) Status() (*Status, error) {
	var status Status
	if err := client.doSync("GET", "/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// PulseOptions hold options for the pulse command
type PulseOptions struct {
	Pin int
}

type pulseResult struct {
	Status string `json:"status"`
}

// Pulse asks the device to pulse a pin. The device answers before the
// pulse completes.
func (client *Client) Pulse(opts *PulseOptions) error {
	if opts.Pin < 0 {
		return fmt.Errorf("invalid pin %d", opts.Pin)
	}
	var result pulseResult
	if err := client.doSync("GET", "/api/"+strconv.Itoa(opts.Pin), &result); err != nil {
		return err
	}
	if result.Status != "OK" {
		return fmt.Errorf("device refused to pulse pin %d", opts.Pin)
	}
	return nil
}
