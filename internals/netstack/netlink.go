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
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/mdlayher/wifi"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
	"gopkg.in/tomb.v2"

	"github.com/flotter/wifiio/internals/logger"
)

const eventBuffer = 16

var (
	linkSetUp   = netlink.LinkSetUp
	linkSetDown = netlink.LinkSetDown
	linkByIndex = netlink.LinkByIndex
	addrList    = netlink.AddrList
)

// Netlink drives a Linux network interface through rtnetlink. The
// association itself and address configuration are left to the host
// (wpa_supplicant, a DHCP client); Netlink brings the link up and down
// and observes the results.
type Netlink struct {
	ifname string
	events chan Event

	mu      sync.Mutex
	link    netlink.Link
	wifi    *wifi.Client
	started bool
	// awaiting is set while a connect waits for the link to carry an
	// address.
	awaiting bool
	tomb    tomb.Tomb

	done     chan struct{}
	doneOnce sync.Once
}

var _ Stack = (*Netlink)(nil)

func NewNetlink(ifname string) *Netlink {
	return &Netlink{
		ifname: ifname,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

func (n *Netlink) Init() error {
	link, err := netlink.LinkByName(n.ifname)
	if err != nil {
		return fmt.Errorf("cannot find interface %s: %w", n.ifname, err)
	}
	linkCh := make(chan netlink.LinkUpdate, eventBuffer)
	if err := netlink.LinkSubscribe(linkCh, n.done); err != nil {
		return fmt.Errorf("cannot subscribe to link updates: %w", err)
	}
	addrCh := make(chan netlink.AddrUpdate, eventBuffer)
	if err := netlink.AddrSubscribe(addrCh, n.done); err != nil {
		n.stopSubscriptions()
		return fmt.Errorf("cannot subscribe to address updates: %w", err)
	}

	client, err := wifi.New()
	if err != nil {
		logger.Noticef("Cannot access nl80211, link quality unavailable: %v", err)
		client = nil
	}

	n.mu.Lock()
	n.link = link
	n.wifi = client
	n.mu.Unlock()

	running := link.Attrs().OperState == netlink.OperUp
	n.startPump(linkCh, addrCh, link.Attrs().Index, running)
	return nil
}

func (n *Netlink) startPump(linkCh <-chan netlink.LinkUpdate, addrCh <-chan netlink.AddrUpdate, index int, running bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return
	}
	n.started = true
	n.tomb.Go(func() error {
		return n.pump(linkCh, addrCh, index, running)
	})
}

func (n *Netlink) stopSubscriptions() {
	n.doneOnce.Do(func() { close(n.done) })
}

// pump translates rtnetlink updates for the interface into events.
func (n *Netlink) pump(linkCh <-chan netlink.LinkUpdate, addrCh <-chan netlink.AddrUpdate, index int, running bool) error {
	for {
		select {
		case <-n.tomb.Dying():
			return nil
		case upd, ok := <-linkCh:
			if !ok {
				return errors.New("link subscription closed")
			}
			if int(upd.Index) != index {
				continue
			}
			nowRunning := upd.Flags&unix.IFF_RUNNING != 0
			if running && !nowRunning {
				n.push(Event{Kind: EventLinkDown, Link: n.ifname})
			}
			if !running && nowRunning {
				n.reportAddress()
			}
			running = nowRunning
		case upd, ok := <-addrCh:
			if !ok {
				return errors.New("address subscription closed")
			}
			if upd.LinkIndex != index || !upd.NewAddr {
				continue
			}
			if ip := upd.LinkAddress.IP.To4(); ip != nil {
				n.mu.Lock()
				n.awaiting = false
				n.mu.Unlock()
				n.push(Event{Kind: EventAddrAcquired, Link: n.ifname, Addr: ip})
			}
		}
	}
}

func (n *Netlink) push(ev Event) {
	select {
	case n.events <- ev:
		logger.Debugf("Network event %s on %s", ev.Kind, ev.Link)
	default:
		logger.Noticef("Network event queue full, dropping %s", ev.Kind)
	}
}

func (n *Netlink) Events() <-chan Event {
	return n.events
}

func (n *Netlink) currentLink() (netlink.Link, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.link == nil {
		return nil, fmt.Errorf("interface %s not initialized", n.ifname)
	}
	return n.link, nil
}

func (n *Netlink) Connect() error {
	link, err := n.currentLink()
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.awaiting = true
	n.mu.Unlock()
	if err := linkSetUp(link); err != nil {
		return fmt.Errorf("cannot bring %s up: %w", n.ifname, err)
	}
	// Addresses survive a link going down, so a configured address
	// only counts once the link runs again. Until then the pump reports
	// it when the link comes back.
	cur, err := linkByIndex(link.Attrs().Index)
	if err != nil {
		return fmt.Errorf("cannot read state of %s: %w", n.ifname, err)
	}
	if cur.Attrs().OperState == netlink.OperUp {
		n.reportAddress()
	}
	return nil
}

// reportAddress completes a pending connect with an address already on
// the link. Without one, a new address update completes it later.
func (n *Netlink) reportAddress() {
	n.mu.Lock()
	link, awaiting := n.link, n.awaiting
	n.mu.Unlock()
	if !awaiting || link == nil {
		return
	}
	addrs, err := addrList(link, netlink.FAMILY_V4)
	if err != nil {
		logger.Noticef("Cannot list addresses of %s: %v", n.ifname, err)
		return
	}
	if len(addrs) == 0 {
		return
	}
	n.mu.Lock()
	if !n.awaiting {
		n.mu.Unlock()
		return
	}
	n.awaiting = false
	n.mu.Unlock()
	n.push(Event{Kind: EventAddrAcquired, Link: n.ifname, Addr: addrs[0].IP})
}

func (n *Netlink) Disconnect() error {
	link, err := n.currentLink()
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.awaiting = false
	n.mu.Unlock()
	if err := linkSetDown(link); err != nil {
		return fmt.Errorf("cannot bring %s down: %w", n.ifname, err)
	}
	return nil
}

// Gateway returns the gateway of the default IPv4 route.
func (n *Netlink) Gateway() (net.IP, error) {
	link, err := n.currentLink()
	if err != nil {
		return nil, err
	}
	routes, err := netlink.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("cannot list routes of %s: %w", n.ifname, err)
	}
	return defaultGateway(routes)
}

func defaultGateway(routes []netlink.Route) (net.IP, error) {
	for _, r := range routes {
		if r.Gw == nil {
			continue
		}
		if r.Dst == nil {
			return r.Gw, nil
		}
		if ones, _ := r.Dst.Mask.Size(); ones == 0 {
			return r.Gw, nil
		}
	}
	return nil, ErrNoGateway
}

// LinkInfo reports the current association as seen by nl80211.
func (n *Netlink) LinkInfo() (*LinkInfo, error) {
	n.mu.Lock()
	client := n.wifi
	n.mu.Unlock()
	if client == nil {
		return nil, errors.New("link quality unavailable")
	}

	ifis, err := client.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("cannot list wireless interfaces: %w", err)
	}
	for _, ifi := range ifis {
		if ifi.Name != n.ifname {
			continue
		}
		bss, err := client.BSS(ifi)
		if err != nil {
			return nil, fmt.Errorf("cannot read BSS of %s: %w", n.ifname, err)
		}
		info := &LinkInfo{
			SSID:    bss.SSID,
			Channel: channelFromFrequency(bss.Frequency),
		}
		info.AuthMode, info.Cipher = securityFromRSN(bss.RSN)
		stations, err := client.StationInfo(ifi)
		if err == nil && len(stations) > 0 {
			info.RSSI = stations[0].Signal
		}
		return info, nil
	}
	return nil, fmt.Errorf("%s is not a wireless interface", n.ifname)
}

// securityFromRSN names the authentication mode and pairwise cipher
// advertised in a BSS's RSN element. A BSS without one is open.
func securityFromRSN(rsn wifi.RSNInfo) (auth, cipher string) {
	if !rsn.IsInitialized() {
		return "open", "none"
	}

	var psk, sae, eap, suiteB bool
	for _, akm := range rsn.AKMs {
		switch akm {
		case wifi.RSNAkmPSK, wifi.RSNAkmFTPSK, wifi.RSNAkmPSKSHA256, wifi.RSNAkmPSKSHA384, wifi.RSNAkmFTPSKSHA384:
			psk = true
		case wifi.RSNAkmSAE, wifi.RSNAkmFTSAE:
			sae = true
		case wifi.RSNAkm8021X, wifi.RSNAkmFT8021X, wifi.RSNAkm8021XSHA256, wifi.RSNAkmFT8021XSHA384:
			eap = true
		case wifi.RSNAkm8021XSuiteB, wifi.RSNAkm8021XCNSA:
			suiteB = true
		}
	}
	switch {
	case sae && psk:
		auth = "WPA2_WPA3_PSK"
	case sae:
		auth = "WPA3_PSK"
	case psk:
		auth = "WPA2_PSK"
	case suiteB:
		auth = "WPA3_ENTERPRISE"
	case eap:
		auth = "WPA2_ENTERPRISE"
	default:
		auth = "?"
	}

	var names []string
	for _, c := range rsn.PairwiseCiphers {
		if c == wifi.RSNCipherUseGroup {
			c = rsn.GroupCipher
		}
		name := cipherName(c)
		if !contains(names, name) {
			names = append(names, name)
		}
	}
	switch len(names) {
	case 0:
		cipher = cipherName(rsn.GroupCipher)
	case 1:
		cipher = names[0]
	default:
		cipher = strings.Join(names, " and ")
	}
	return auth, cipher
}

func cipherName(c wifi.RSNCipher) string {
	switch c {
	case wifi.RSNCipherWEP40:
		return "WEP40"
	case wifi.RSNCipherWEP104:
		return "WEP104"
	case wifi.RSNCipherTKIP:
		return "TKIP"
	case wifi.RSNCipherCCMP128:
		return "CCMP"
	case wifi.RSNCipherCCMP256:
		return "CCMP256"
	case wifi.RSNCipherGCMP128:
		return "GCMP"
	case wifi.RSNCipherGCMP256:
		return "GCMP256"
	}
	return "?"
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// channelFromFrequency converts a centre frequency in MHz to an IEEE
// 802.11 channel number, or 0 when unknown.
func channelFromFrequency(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz < 2484:
		return (mhz - 2407) / 5
	case mhz >= 5000 && mhz < 5900:
		return (mhz - 5000) / 5
	case mhz > 5950 && mhz <= 7115:
		return (mhz - 5950) / 5
	}
	return 0
}

func (n *Netlink) Close() error {
	n.mu.Lock()
	started := n.started
	n.started = true
	if n.wifi != nil {
		n.wifi.Close()
		n.wifi = nil
	}
	n.mu.Unlock()

	n.stopSubscriptions()
	if !started {
		return nil
	}
	n.tomb.Kill(nil)
	return n.tomb.Wait()
}
