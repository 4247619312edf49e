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

package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"

	"github.com/flotter/wifiio/internals/config"
)

func writeLayers(c *C, layers map[string]string) string {
	dir := c.MkDir()
	for name, content := range layers {
		c.Assert(os.WriteFile(filepath.Join(dir, name), reindent(content), 0o644), IsNil)
	}
	return dir
}

func (s *configSuite) TestLoadDirOrder(c *C) {
	dir := writeLayers(c, map[string]string{
		"001-base.yaml": `
			network:
				interface: wlan0
				connect-timeout: 5s
			storage:
				slots:
					- label: a
					  path: /dev/mmcblk0p2
					  size: 16MiB
					- label: b
					  path: /dev/mmcblk0p3
					  size: 16MiB
		`,
		"010-site.yaml": `
			network:
				interface: wlp2s0
			storage:
				slots:
					- label: ota0
					  path: /dev/sda2
					  size: 32MiB
					- label: ota1
					  path: /dev/sda3
					  size: 32MiB
		`,
		"README": "not a layer",
	})
	c.Assert(os.Mkdir(filepath.Join(dir, "999-ignored.yaml"), 0o755), IsNil)

	cfg, err := config.LoadDir(dir)
	c.Assert(err, IsNil)
	c.Check(cfg.Network.Interface, Equals, "wlp2s0")
	c.Check(cfg.Network.ConnectTimeout.Value, Equals, 5*time.Second)
	c.Check(cfg.Network.DisconnectWait.Value, Equals, 10*time.Second)
	c.Assert(cfg.Storage.Slots, HasLen, 2)
	c.Check(cfg.Storage.Slots[0].Label, Equals, "ota0")
	c.Check(cfg.Storage.Slots[1].Size, Equals, config.ByteSize(32<<20))
}

func (s *configSuite) TestLoadDirEmpty(c *C) {
	cfg, err := config.LoadDir(c.MkDir())
	c.Assert(err, IsNil)
	c.Check(cfg, DeepEquals, config.Default())
}

func (s *configSuite) TestLoadDirErrors(c *C) {
	tests := []struct {
		layers map[string]string
		err    string
	}{{
		layers: map[string]string{"base.yaml": "network: {}"},
		err:    `invalid layer filename: "base.yaml" \(must look like "123-some-label.yaml"\)`,
	}, {
		layers: map[string]string{
			"001-base.yaml":  "network: {}",
			"001-other.yaml": "network: {}",
		},
		err: `invalid layer filename: "001-other.yaml" not unique \(have "001-base.yaml" already\)`,
	}, {
		layers: map[string]string{
			"001-base.yaml": "network: {}",
			"002-base.yaml": "network: {}",
		},
		err: `invalid layer filename: "002-base.yaml" not unique \(have "001-base.yaml" already\)`,
	}, {
		layers: map[string]string{"001-base.yaml": "wifi: {}"},
		err:    `(?s)cannot parse configuration layer "base": .*field wifi not found.*`,
	}, {
		layers: map[string]string{"001-base.yaml": "probe:\n    type: dns\n"},
		err:    `unknown probe type "dns"`,
	}}
	for _, test := range tests {
		dir := writeLayers(c, test.layers)
		_, err := config.LoadDir(dir)
		c.Check(err, ErrorMatches, test.err, Commentf("layers %v", test.layers))
	}
}

func (s *configSuite) TestLoadDirMissing(c *C) {
	_, err := config.LoadDir(filepath.Join(c.MkDir(), "missing"))
	c.Check(err, ErrorMatches, "cannot read configuration directory: .*")
}
