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

package netstack

import (
	"github.com/vishvananda/netlink"
)

var (
	ChannelFromFrequency = channelFromFrequency
	DefaultGateway       = defaultGateway
)

func (n *Netlink) StartPump(linkCh <-chan netlink.LinkUpdate, addrCh <-chan netlink.AddrUpdate, index int, running bool) {
	n.startPump(linkCh, addrCh, index, running)
}

func (n *Netlink) SetLink(link netlink.Link) {
	n.mu.Lock()
	n.link = link
	n.mu.Unlock()
}

func MockLinkSetUp(f func(netlink.Link) error) (restore func()) {
	old := linkSetUp
	linkSetUp = f
	return func() { linkSetUp = old }
}

func MockLinkByIndex(f func(int) (netlink.Link, error)) (restore func()) {
	old := linkByIndex
	linkByIndex = f
	return func() { linkByIndex = old }
}

func MockAddrList(f func(netlink.Link, int) ([]netlink.Addr, error)) (restore func()) {
	old := addrList
	addrList = f
	return func() { addrList = old }
}

var SecurityFromRSN = securityFromRSN
