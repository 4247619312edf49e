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

// Package daemon serves the device endpoints and ties the supervisor
// and the firmware manager together.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/tomb.v2"

	"github.com/flotter/wifiio/internals/config"
	"github.com/flotter/wifiio/internals/gpio"
	"github.com/flotter/wifiio/internals/logger"
	"github.com/flotter/wifiio/internals/netstack"
	"github.com/flotter/wifiio/internals/overlord/fwstate"
	"github.com/flotter/wifiio/internals/overlord/netstate"
	"github.com/flotter/wifiio/internals/partition"
	"github.com/flotter/wifiio/internals/probe"
	"github.com/flotter/wifiio/internals/restart"
	"github.com/flotter/wifiio/internals/watchdog"
)

const shutdownTimeout = 5 * time.Second

var timeNow = time.Now

// Options holds the daemon configuration and its collaborators.
type Options struct {
	Config    *config.Config
	Provider  partition.Provider
	Stack     netstack.Stack
	Prober    probe.Prober
	Heartbeat watchdog.Heartbeat
	Restarter restart.Restarter
	Pulser    gpio.Pulser
}

// A Daemon listens for requests and routes them to the right command
type Daemon struct {
	cfg        *config.Config
	provider   partition.Provider
	stack      netstack.Stack
	firmware   *fwstate.FirmwareManager
	supervisor *netstate.Supervisor
	pulser     gpio.Pulser

	pulseHold   time.Duration
	readTimeout time.Duration
	started     time.Time

	router *mux.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	tomb     tomb.Tomb
}

func New(opts *Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("internal error: no configuration")
	}
	cfg := opts.Config
	d := &Daemon{
		cfg:         cfg,
		provider:    opts.Provider,
		stack:       opts.Stack,
		pulser:      opts.Pulser,
		pulseHold:   cfg.GPIO.Hold.Value,
		readTimeout: cfg.Update.ReadTimeout.Value,
		started:     timeNow(),
	}
	d.firmware = fwstate.NewManager(opts.Provider, opts.Restarter, fwstate.ConfigFrom(&cfg.Update))
	d.supervisor = netstate.NewSupervisor(netstate.ConfigFrom(cfg), opts.Stack, opts.Prober, opts.Heartbeat, opts.Restarter)
	d.addRoutes()
	return d, nil
}

func (d *Daemon) addRoutes() {
	d.router = mux.NewRouter()
	for _, c := range api {
		cmd := *c
		cmd.d = d
		var route *mux.Route
		if cmd.PathPrefix {
			route = d.router.PathPrefix(cmd.Path)
		} else {
			route = d.router.Path(cmd.Path)
		}
		route.Handler(logit(&cmd))
	}
	d.router.NotFoundHandler = statusNotFound("not found")
}

// Init validates the running image and starts supervising the uplink.
// Errors are fatal.
func (d *Daemon) Init() error {
	if err := d.firmware.ValidateRunning(); err != nil {
		return fmt.Errorf("cannot validate running image: %w", err)
	}
	if err := d.supervisor.Start(); err != nil {
		return err
	}
	logger.Noticef("Started daemon")
	return nil
}

// Start waits for the first connection and then serves requests.
func (d *Daemon) Start(ctx context.Context) error {
	logger.Noticef("Waiting for the network")
	if err := d.supervisor.Gate().Take(ctx); err != nil {
		return fmt.Errorf("cannot start serving: %w", err)
	}

	l, err := net.Listen("tcp", d.cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", d.cfg.HTTP.Address, err)
	}
	server := &http.Server{
		Handler:           d.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	d.mu.Lock()
	d.listener = l
	d.server = server
	d.tomb.Go(func() error {
		err := server.Serve(l)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	d.mu.Unlock()

	logger.Noticef("Serving on %s", l.Addr())
	return nil
}

// Addr returns the address served on, once started.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Dying is closed when serving stopped.
func (d *Daemon) Dying() <-chan struct{} {
	return d.tomb.Dying()
}

// Uptime returns how long the daemon has been running.
func (d *Daemon) Uptime() time.Duration {
	return timeNow().Sub(d.started)
}

// Stop shuts the server down and stops supervising the uplink. It does
// not restart the device.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	server := d.server
	d.mu.Unlock()

	var err error
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := server.Shutdown(ctx); serr != nil {
			err = serr
		}
		d.tomb.Kill(nil)
		if terr := d.tomb.Wait(); terr != nil && err == nil {
			err = terr
		}
	}
	if serr := d.supervisor.Stop(); serr != nil && err == nil {
		err = serr
	}
	if cerr := d.stack.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

type wrappedWriter struct {
	w http.ResponseWriter
	s int
}

func (w *wrappedWriter) Header() http.Header {
	return w.w.Header()
}

func (w *wrappedWriter) Write(bs []byte) (int, error) {
	return w.w.Write(bs)
}

func (w *wrappedWriter) WriteHeader(s int) {
	w.w.WriteHeader(s)
	w.s = s
}

// Unwrap lets http.ResponseController reach the connection.
func (w *wrappedWriter) Unwrap() http.ResponseWriter {
	return w.w
}

func (w *wrappedWriter) status() int {
	return w.s
}

func logit(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &wrappedWriter{w: w}
		t0 := time.Now()
		handler.ServeHTTP(ww, r)
		t := time.Since(t0)
		logger.Debugf("%s %s %s %s %d", r.RemoteAddr, r.Method, r.URL, t, ww.status())
	})
}
