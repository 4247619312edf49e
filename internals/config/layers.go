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
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var layerName = regexp.MustCompile(`^([0-9]{3})-([a-z](?:-?[a-z0-9]){2,})\.yaml$`)

// LoadDir reads the configuration from the layer files in dir, named
// like "001-base.yaml" or "010-site.yaml". Layers apply in order, each
// replacing the values it sets. Slot lists are replaced as a whole.
func LoadDir(dir string) (*Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration directory: %w", err)
	}

	orders := make(map[int]string)
	labels := make(map[string]int)

	// ReadDir sorts by filename, which is the layer order.
	cfg := &Config{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		match := layerName.FindStringSubmatch(name)
		if match == nil {
			return nil, &FormatError{
				Message: fmt.Sprintf("invalid layer filename: %q (must look like \"123-some-label.yaml\")", name),
			}
		}
		order, err := strconv.Atoi(match[1])
		if err != nil {
			panic(fmt.Sprintf("internal error: layer filename regexp is wrong: %v", err))
		}
		label := match[2]
		if other, ok := orders[order]; ok {
			return nil, &FormatError{
				Message: fmt.Sprintf("invalid layer filename: %q not unique (have \"%03d-%s.yaml\" already)", name, order, other),
			}
		}
		if other, ok := labels[label]; ok {
			return nil, &FormatError{
				Message: fmt.Sprintf("invalid layer filename: %q not unique (have \"%03d-%s.yaml\" already)", name, other, label),
			}
		}
		orders[order] = label
		labels[label] = order

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("cannot read configuration layer: %w", err)
		}
		if err := decodeOnto(cfg, data); err != nil {
			return nil, &FormatError{
				Message: fmt.Sprintf("cannot parse configuration layer %q: %v", label, err),
			}
		}
	}
	return cfg.complete()
}
