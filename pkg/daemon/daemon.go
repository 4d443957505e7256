// Package daemon implements the liocfgd daemon lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/openlio/liocfg/pkg/api"
	"github.com/openlio/liocfg/pkg/cli"
	"github.com/openlio/liocfg/pkg/configstore"
	"github.com/openlio/liocfg/pkg/logging"
	"github.com/openlio/liocfg/pkg/target"
)

// Options configures the daemon.
type Options struct {
	SaveFile  string // saved configuration path
	PolicyDir string // directory of *.lio policy files
	APIAddr   string // HTTP API listen address, empty disables
	NoShell   bool   // run headless, API only
	NoRestore bool   // do not load the saved configuration on start
}

// Daemon is the liocfgd daemon: a config engine with an HTTP API and
// an optional interactive shell.
type Daemon struct {
	opts     Options
	store    *configstore.Store
	backend  target.Backend
	eventBuf *logging.EventBuffer
}

// New creates a new Daemon.
func New(opts Options, eventBuf *logging.EventBuffer) (*Daemon, error) {
	// The kernel target tree is not manipulated directly; all live
	// state flows through the backend collaborator. Without configfs
	// the in-memory backend still gives a full config-only workflow.
	backend := target.NewMemBackend()
	if !target.ConfigFSMounted() {
		slog.Warn("configfs not mounted, running in config-only mode")
	} else if !target.Privileged() {
		slog.Warn("not running as root, target changes will be rejected by the kernel")
	}

	store, err := configstore.New(configstore.Options{
		PolicyDir: opts.PolicyDir,
		Backend:   backend,
		SavePath:  opts.SaveFile,
	})
	if err != nil {
		return nil, err
	}
	return &Daemon{
		opts:     opts,
		store:    store,
		backend:  backend,
		eventBuf: eventBuf,
	}, nil
}

// Store returns the daemon's configuration engine.
func (d *Daemon) Store() *configstore.Store {
	return d.store
}

// Run starts the daemon and blocks until shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("starting liocfgd",
		"save_path", d.store.SavePath(),
		"pid", os.Getpid())

	if !d.opts.NoRestore {
		nodes, err := d.store.Restore("")
		switch {
		case err != nil:
			slog.Warn("failed to restore saved configuration", "err", err)
		case nodes == nil:
			slog.Info("no saved configuration, starting empty")
		default:
			slog.Info("configuration restored", "path", d.store.SavePath(), "nodes", len(nodes))
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if d.opts.APIAddr != "" {
		srv := api.NewServer(api.Config{
			Addr:     d.opts.APIAddr,
			Store:    d.store,
			EventBuf: d.eventBuf,
			Live:     target.ConfigFSMounted(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				errCh <- fmt.Errorf("API server: %w", err)
			}
		}()
	}

	if !d.opts.NoShell {
		shell := cli.New(d.store, d.eventBuf)
		go func() {
			errCh <- shell.Run()
		}()
	}

	var runErr error
	select {
	case err := <-errCh:
		runErr = err
	case <-ctx.Done():
		slog.Info("signal received, shutting down")
	}

	stop()
	wg.Wait()

	slog.Info("shutdown complete")
	return runErr
}
