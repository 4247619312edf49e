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

package gpio

import (
	"time"

	"github.com/warthog618/go-gpiocdev"
)

type Line = line

func MockRequestLine(f func(chip string, offset int, options ...gpiocdev.LineReqOption) (Line, error)) (restore func()) {
	old := requestLine
	requestLine = f
	return func() {
		requestLine = old
	}
}

func MockSleep(f func(time.Duration)) (restore func()) {
	old := sleep
	sleep = f
	return func() {
		sleep = old
	}
}
