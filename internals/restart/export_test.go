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

package restart

func MockExit(f func(int)) (restore func()) {
	old := osExit
	osExit = f
	return func() { osExit = old }
}

func MockReboot(f func(cmd int) error) (restore func()) {
	oldReboot, oldSync := unixReboot, unixSync
	unixReboot = f
	unixSync = func() {}
	return func() {
		unixReboot = oldReboot
		unixSync = oldSync
	}
}
