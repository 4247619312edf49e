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

// Package fwstate receives firmware images into the candidate slot and
// activates them.
package fwstate

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flotter/wifiio/internals/config"
	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/partition"
	"github.com/flotter/wifiio/internals/restart"
)

var (
	ErrStorageUnavailable = errors.New("no storage available for the update")
	ErrReceiveFailed      = errors.New("cannot receive firmware")
	ErrBusy               = errors.New("another update is in progress")
)

type Config struct {
	ChunkSize    int
	RestartDelay time.Duration
	// ReadRetries bounds consecutive reads that time out or return no
	// data before the transfer is given up.
	ReadRetries int
}

func ConfigFrom(cfg *config.UpdateConfig) Config {
	return Config{
		ChunkSize:    int(cfg.ChunkSize),
		RestartDelay: cfg.RestartDelay.Value,
		ReadRetries:  cfg.ReadRetries,
	}
}

// FirmwareManager owns firmware updates and the validation of the
// running image.
type FirmwareManager struct {
	cfg       Config
	provider  partition.Provider
	restarter restart.Restarter

	busy atomic.Bool

	validateOnce sync.Once
	validateErr  error
}

func NewManager(provider partition.Provider, r restart.Restarter, cfg Config) *FirmwareManager {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	return &FirmwareManager{
		cfg:       cfg,
		provider:  provider,
		restarter: r,
	}
}

// ValidateRunning marks the running image valid if this is its first
// boot after an update, which cancels the rollback to the previous
// image. Only the first call has an effect.
func (fm *FirmwareManager) ValidateRunning() error {
	fm.validateOnce.Do(func() {
		running, err := fm.provider.Running()
		if err != nil {
			fm.validateErr = err
			return
		}
		logger.Noticef("Running partition: %s", running)

		pending, err := fm.provider.PendingVerification()
		if err != nil {
			fm.validateErr = err
			return
		}
		if !pending {
			return
		}
		logger.Noticef("First boot after update, marking image in slot %s valid", running.Label)
		fm.validateErr = fm.provider.MarkValid()
	})
	return fm.validateErr
}
