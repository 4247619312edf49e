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

// Package firmware describes firmware images: the build running on this
// device and the images stored in update slots.
package firmware

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Set at link time with -ldflags "-X github.com/flotter/wifiio/internals/firmware.Version=...".
var (
	Name        = "wifiio"
	Version     = "unknown"
	Toolchain   = ""
	CompileDate = ""
	CompileTime = ""
)

// Info identifies a firmware build.
type Info struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Toolchain   string `json:"toolchain" yaml:"toolchain"`
	CompileDate string `json:"compile-date" yaml:"compile-date"`
	CompileTime string `json:"compile-time" yaml:"compile-time"`
}

// Running returns the information of the build running right now.
func Running() *Info {
	info := &Info{
		Name:        Name,
		Version:     Version,
		Toolchain:   Toolchain,
		CompileDate: CompileDate,
		CompileTime: CompileTime,
	}
	if info.Toolchain == "" {
		info.Toolchain = runtime.Version()
	}
	return info
}

func (info *Info) String() string {
	return fmt.Sprintf("%s %s (%s, built %s %s)", info.Name, info.Version, info.Toolchain, info.CompileDate, info.CompileTime)
}

// SlotInfo records what was written to an update slot.
type SlotInfo struct {
	Label   string    `yaml:"label"`
	Size    int64     `yaml:"size"`
	Digest  string    `yaml:"digest"`
	Written time.Time `yaml:"written"`
}

// ReadSlotInfo reads slot information from a YAML file.
func ReadSlotInfo(path string) (*SlotInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var si SlotInfo
	if err := yaml.Unmarshal(data, &si); err != nil {
		return nil, fmt.Errorf("invalid slot info %s: %w", path, err)
	}
	if si.Label == "" {
		return nil, fmt.Errorf("invalid slot info %s: missing label", path)
	}
	return &si, nil
}

// Marshal returns the YAML form of the slot information.
func (si *SlotInfo) Marshal() ([]byte, error) {
	return yaml.Marshal(si)
}
