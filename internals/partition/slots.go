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

package partition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/flotter/wifiio/internals/config"
	"github.com/flotter/wifiio/internals/firmware"
	"github.com/flotter/wifiio/internals/logger"
)

// bootState is what the bootloader would keep in its environment.
type bootState struct {
	Boot     string `json:"boot"`
	Previous string `json:"previous,omitempty"`
	// Pending is set when Boot holds a new image that has not been
	// marked valid yet. Tried is set once that image was started.
	Pending bool `json:"pending"`
	Tried   bool `json:"tried"`
}

// SlotProvider keeps images in files or block devices and the boot
// selection in a JSON state file. It emulates the bootloader safeguard
// that falls back to the previous image when a new one never marks
// itself valid.
type SlotProvider struct {
	mu        sync.Mutex
	statePath string
	lock      *flock.Flock
	slots     []*Slot
	running   *Slot
	state     bootState
}

var _ Provider = (*SlotProvider)(nil)

// Open loads the boot state and determines the running slot. Only one
// provider may have the state open at a time.
func Open(cfg *config.StorageConfig) (*SlotProvider, error) {
	if len(cfg.Slots) < 2 {
		return nil, fmt.Errorf("cannot open storage: at least two slots are required, got %d", len(cfg.Slots))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.State), 0o755); err != nil {
		return nil, fmt.Errorf("cannot open storage: %w", err)
	}

	lock := flock.New(cfg.State + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot lock boot state: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cannot lock boot state: %s is in use", cfg.State)
	}

	p := &SlotProvider{statePath: cfg.State, lock: lock}
	for _, sc := range cfg.Slots {
		p.slots = append(p.slots, &Slot{
			Label:  sc.Label,
			Path:   sc.Path,
			Offset: int64(sc.Offset),
			Size:   int64(sc.Size),
		})
	}
	if err := p.load(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return p, nil
}

func (p *SlotProvider) load() error {
	data, err := os.ReadFile(p.statePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		p.state = bootState{Boot: p.slots[0].Label}
		logger.Noticef("No boot state found, booting from slot %s", p.state.Boot)
		if err := p.save(); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("cannot read boot state: %w", err)
	default:
		if err := json.Unmarshal(data, &p.state); err != nil {
			return fmt.Errorf("cannot parse boot state %s: %w", p.statePath, err)
		}
	}

	if p.state.Pending {
		if p.state.Tried {
			logger.Noticef("Image in slot %s was never marked valid, rolling back to slot %s",
				p.state.Boot, p.state.Previous)
			p.state = bootState{Boot: p.state.Previous}
		} else {
			p.state.Tried = true
		}
		if err := p.save(); err != nil {
			return err
		}
	}

	p.running = p.slot(p.state.Boot)
	if p.running == nil {
		return fmt.Errorf("cannot open storage: boot slot %q is not configured", p.state.Boot)
	}
	for _, s := range p.slots {
		s.Role = Candidate
	}
	p.running.Role = Running
	return nil
}

func (p *SlotProvider) save() error {
	if err := writeJSONAtomic(p.statePath, &p.state); err != nil {
		return fmt.Errorf("cannot write boot state: %w", err)
	}
	return nil
}

func (p *SlotProvider) slot(label string) *Slot {
	for _, s := range p.slots {
		if s.Label == label {
			return s
		}
	}
	return nil
}

func (p *SlotProvider) infoPath(label string) string {
	return filepath.Join(filepath.Dir(p.statePath), label+".yaml")
}

// Close releases the boot state.
func (p *SlotProvider) Close() error {
	return p.lock.Unlock()
}

func (p *SlotProvider) Running() (*Slot, error) {
	s := *p.running
	return &s, nil
}

// NextCandidate returns the slot following the running one.
func (p *SlotProvider) NextCandidate() (*Slot, error) {
	for i, s := range p.slots {
		if s == p.running {
			next := *p.slots[(i+1)%len(p.slots)]
			if next.Label == s.Label {
				break
			}
			return &next, nil
		}
	}
	return nil, ErrNoCandidate
}

func (p *SlotProvider) Begin(slot *Slot, size int64) (ImageWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.slot(slot.Label)
	if target == nil {
		return nil, fmt.Errorf("cannot write image: unknown slot %q", slot.Label)
	}
	if target == p.running {
		return nil, ErrRunningSlot
	}
	if size < 0 || size > target.Size {
		return nil, fmt.Errorf("%w: %d bytes into %s", ErrImageTooLarge, size, target)
	}

	// The slot content is about to change; it must not stay selected
	// for boot nor look finalized.
	if p.state.Boot == target.Label {
		p.state = bootState{Boot: p.running.Label}
		if err := p.save(); err != nil {
			return nil, err
		}
	}
	if err := os.Remove(p.infoPath(target.Label)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot reset slot info: %w", err)
	}

	f, err := os.OpenFile(target.Path, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("cannot open slot %s: %w", target.Label, err)
	}
	logger.Noticef("Target partition: %s", target)
	return newSlotWriter(target, f, size, p.infoPath(target.Label))
}

func (p *SlotProvider) SetBoot(slot *Slot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.slot(slot.Label)
	if target == nil {
		return fmt.Errorf("cannot set boot slot: unknown slot %q", slot.Label)
	}
	if target == p.running {
		return ErrRunningSlot
	}
	if _, err := firmware.ReadSlotInfo(p.infoPath(target.Label)); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFinalized, target.Label)
	}

	p.state = bootState{
		Boot:     target.Label,
		Previous: p.running.Label,
		Pending:  true,
	}
	if err := p.save(); err != nil {
		return err
	}
	logger.Noticef("Next boot from slot %s", target.Label)
	return nil
}

func (p *SlotProvider) RunningInfo() (*firmware.Info, error) {
	return firmware.Running(), nil
}

func (p *SlotProvider) PendingVerification() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Pending && p.state.Boot == p.running.Label, nil
}

func (p *SlotProvider) MarkValid() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.Pending || p.state.Boot != p.running.Label {
		return nil
	}
	p.state = bootState{Boot: p.running.Label}
	if err := p.save(); err != nil {
		return err
	}
	logger.Noticef("Image in slot %s marked valid", p.running.Label)
	return nil
}
