// cmd/notecardd/run.go
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tamzrod/notecard-handler/internal/config"
	"github.com/tamzrod/notecard-handler/internal/connection"
	"github.com/tamzrod/notecard-handler/internal/mirror"
	"github.com/tamzrod/notecard-handler/internal/notecard"
	"github.com/tamzrod/notecard-handler/internal/relay"
	"github.com/tamzrod/notecard-handler/internal/status"
)

// teardownLimit bounds the graceful disconnect on shutdown.
const teardownLimit = 5 * time.Second

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the connection supervisor until interrupted",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, log); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// ---- handler ----
	h, closeBus, err := notecard.Build(cfg.Notecard, log.Named("notecard"))
	if err != nil {
		return fmt.Errorf("handler build failed: %w", err)
	}
	defer closeBus()

	sup := connection.NewSupervisor(h, connection.WithLogger(log.Named("connection")))

	// ---- status mirror (optional) ----
	var m *mirror.StatusMirror
	if cfg.Mirror != nil {
		mm, closeMirror, err := mirror.Build(*cfg.Mirror)
		if err != nil {
			return fmt.Errorf("mirror build failed: %w", err)
		}
		defer closeMirror()
		m = mm
	}

	// ---- payload relay (optional) ----
	var r *relay.Relay
	if rc := cfg.Relay; rc != nil {
		r = relay.New(relay.Config{
			Broker:      rc.Broker,
			ClientID:    rc.ClientID,
			TopicPrefix: rc.TopicPrefix,
			QoS:         rc.QoS,
		}, log.Named("relay"))
		if err := r.Start(); err != nil {
			return err
		}
		defer r.Stop(250)
	}

	// ---- service readiness ----
	notified := false
	sup.On(connection.EventConnected, func(_, _ connection.State) {
		if notified {
			return
		}
		notified = true
		if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			log.Debug("sd_notify failed", zap.Error(err))
		}
	})
	sup.On(connection.EventError, func(from, _ connection.State) {
		log.Error("connection entered ERROR", zap.Stringer("from", from))
	})

	o := &orchestrator{h: h, sup: sup, mirror: m, relay: r, log: log, last: -1}
	tick := time.Duration(cfg.Notecard.TickMs) * time.Millisecond

	log.Info("notecardd started",
		zap.String("product", cfg.Notecard.ProductUID),
		zap.Duration("tick", tick),
		zap.Bool("mirror", m != nil),
		zap.Bool("relay", r != nil),
	)

	sup.Run(ctx, tick, o.tick)

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	o.teardown()
	return nil
}

// orchestrator owns everything that runs between supervisor ticks.
// All of it happens on the supervisor goroutine.
type orchestrator struct {
	h      *notecard.Handler
	sup    *connection.Supervisor
	mirror *mirror.StatusMirror
	relay  *relay.Relay
	log    *zap.Logger

	last       connection.State
	mirrorDown bool
}

func (o *orchestrator) tick(st connection.State) {
	// --- payloads ---
	if o.relay != nil && (st == connection.Connected || st == connection.Connecting) {
		o.relay.Flush(o.h)
		o.relay.Drain(o.h)
	}

	if st != o.last {
		o.last = st
		if o.relay != nil {
			if err := o.relay.PublishState(st, o.h.LastStatus(), o.h.DeviceUID()); err != nil {
				o.log.Warn("state publish failed", zap.Error(err))
			}
		}
	}

	// --- status mirror ---
	if o.mirror == nil {
		return
	}
	if uid := o.h.DeviceUID(); uid != "" {
		o.mirror.SetDeviceUID(uid)
	}
	err := o.mirror.WriteStatus(o.snapshot(st))
	switch {
	case err != nil && !o.mirrorDown:
		o.mirrorDown = true
		o.log.Error("status mirror write failed", zap.Error(err))
	case err == nil && o.mirrorDown:
		o.mirrorDown = false
		o.log.Info("status mirror recovered")
	}
}

func (o *orchestrator) snapshot(st connection.State) status.Snapshot {
	secs := o.sup.Since() / time.Second
	if secs > status.MaxSecondsInState {
		secs = status.MaxSecondsInState
	}
	return status.Snapshot{
		State:          uint16(st),
		Status:         o.h.LastStatus(),
		SecondsInState: uint16(secs),
	}
}

// teardown disconnects the bridge from Notehub and steps the supervisor
// until it settles in CLOSED or ERROR.
func (o *orchestrator) teardown() {
	o.sup.Disconnect()
	deadline := time.Now().Add(teardownLimit)
	for !o.sup.State().Terminal() && time.Now().Before(deadline) {
		o.tick(o.sup.Step())
	}
	o.log.Info("notecardd stopped", zap.Stringer("state", o.sup.State()))
}
