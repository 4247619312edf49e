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

package config

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

type OptionalDuration struct {
	Value time.Duration
	IsSet bool
}

func (o OptionalDuration) IsZero() bool {
	return !o.IsSet
}

func (o OptionalDuration) IsNegative() bool {
	return o.IsSet && o.Value < time.Duration(0)
}

func (o OptionalDuration) MarshalYAML() (any, error) {
	if !o.IsSet {
		return nil, nil
	}
	return o.Value.String(), nil
}

func (o *OptionalDuration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a YAML string")
	}
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	o.Value = duration
	o.IsSet = true
	return nil
}

// setDefault fills in def when the duration was not given.
func (o *OptionalDuration) setDefault(def time.Duration) {
	if !o.IsSet {
		o.Value = def
		o.IsSet = true
	}
}

// ByteSize is a size in bytes, written in YAML as "16MiB", "1KiB", "4096".
type ByteSize int64

func (b ByteSize) MarshalYAML() (any, error) {
	return units.BytesSize(float64(b)), nil
}

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("size must be a YAML string")
	}
	size, err := units.RAMInBytes(value.Value)
	if err != nil {
		return fmt.Errorf("invalid size %q", value.Value)
	}
	*b = ByteSize(size)
	return nil
}

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}
