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

package profiler

func MockMode(mode, dir string) (restore func()) {
	oldMode, oldDir := profMode, profDir
	setMode(mode)
	profDir = dir
	return func() {
		profMode, profDir = oldMode, oldDir
	}
}

func Mode() string {
	return profMode
}
