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

package fwstate

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/partition"
	"github.com/flotter/wifiio/internals/restart"
)

const (
	progressStart  = "Start to update firmware.\n"
	progressScale  = "0        20        40        60        80       100%\n"
	progressRuler  = "|---------+---------+---------+---------+---------+\n"
	progressMark   = "*"
	progressFinish = "*\nComplete.\n"
)

// Receive streams an image of total bytes from body into the candidate
// slot, writing a progress bar to out. On success the candidate is
// selected for boot and a restart is scheduled. On failure the boot
// selection is left alone.
func (fm *FirmwareManager) Receive(body io.Reader, total int64, out io.Writer) (*Session, error) {
	if !fm.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer fm.busy.Store(false)

	slot, err := fm.provider.NextCandidate()
	if err != nil {
		logger.Noticef("Cannot find a slot for the update: %v", err)
		return nil, ErrStorageUnavailable
	}
	sess := &Session{
		ID:    uuid.New().String(),
		Slot:  *slot,
		Total: total,
	}
	logger.Noticef("Update %s: receiving %s into slot %s", sess.ID, units.HumanSize(float64(total)), slot.Label)

	w, err := fm.provider.Begin(slot, total)
	if err != nil {
		sess.State = Aborted
		return sess, err
	}
	sess.State = Receiving

	fmt.Fprint(out, progressStart, progressScale, progressRuler, progressMark)

	if err := fm.receive(sess, w, body, out); err != nil {
		w.Abort()
		sess.State = Aborted
		logger.Noticef("Update %s aborted after %d of %d bytes: %v", sess.ID, sess.Written, sess.Total, err)
		return sess, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
	}

	sess.State = Finalizing
	if err := w.Finalize(); err != nil {
		w.Abort()
		sess.State = Aborted
		return sess, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
	}
	if err := fm.provider.SetBoot(slot); err != nil {
		sess.State = Aborted
		return sess, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
	}
	sess.State = Completed
	fmt.Fprint(out, progressFinish)

	logger.Noticef("Update %s complete, restarting in %s", sess.ID, fm.cfg.RestartDelay)
	restart.After(fm.restarter, fm.cfg.RestartDelay, "firmware updated")
	return sess, nil
}

func (fm *FirmwareManager) receive(sess *Session, w partition.ImageWriter, body io.Reader, out io.Writer) error {
	buf := make([]byte, fm.cfg.ChunkSize)
	retries := 0
	for sess.Written < sess.Total {
		want := sess.Total - sess.Written
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}
		n, err := body.Read(buf[:want])
		if n > 0 {
			retries = 0
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			sess.Written += int64(n)
			fm.mark(sess, out)
		}
		switch {
		case err == nil || isTimeout(err):
			if n > 0 {
				continue
			}
			// Nothing arrived in time; try the same read again.
			retries++
			if retries > fm.cfg.ReadRetries {
				return fmt.Errorf("no data after %d attempts", retries)
			}
			logger.Debugf("Update %s: read timed out, retrying", sess.ID)
		case errors.Is(err, io.EOF):
			if sess.Written < sess.Total {
				return io.ErrUnexpectedEOF
			}
		default:
			return err
		}
	}
	return nil
}

// mark emits one mark per 2% of the image received since the last one.
func (fm *FirmwareManager) mark(sess *Session, out io.Writer) {
	remaining := sess.Total - sess.Written
	for next := sess.Percent + 2; next <= 100; next += 2 {
		if remaining > sess.Total*int64(100-next)/100 {
			break
		}
		fmt.Fprint(out, progressMark)
		sess.Percent = next
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
