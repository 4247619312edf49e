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

// Package gpio drives output pins on a GPIO character device.
package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/flotter/wifiio/internals/logger"
)

// Pulser raises a pin for a while and then releases it.
type Pulser interface {
	Pulse(pin int, hold time.Duration) error
}

type line interface {
	Reconfigure(options ...gpiocdev.LineConfigOption) error
	Close() error
}

var requestLine = func(chip string, offset int, options ...gpiocdev.LineReqOption) (line, error) {
	return gpiocdev.RequestLine(chip, offset, options...)
}

var sleep = time.Sleep

// Chip pulses lines of one GPIO chip, such as "gpiochip0".
type Chip struct {
	Name string
}

var _ Pulser = (*Chip)(nil)

// Pulse drives pin high for hold, then turns it back into an input so
// the line floats as it did before.
func (c *Chip) Pulse(pin int, hold time.Duration) error {
	l, err := requestLine(c.Name, pin, gpiocdev.AsOutput(1))
	if err != nil {
		return fmt.Errorf("cannot request %s line %d: %w", c.Name, pin, err)
	}
	defer l.Close()

	logger.Debugf("Pulsing %s line %d for %s", c.Name, pin, hold)
	sleep(hold)

	if err := l.Reconfigure(gpiocdev.AsInput); err != nil {
		return fmt.Errorf("cannot release %s line %d: %w", c.Name, pin, err)
	}
	return nil
}
