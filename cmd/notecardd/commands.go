// cmd/notecardd/commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tamzrod/notecard-handler/internal/config"
	"github.com/tamzrod/notecard-handler/internal/connection"
	"github.com/tamzrod/notecard-handler/internal/notecard"
)

// session is a short-lived handler + supervisor for one-shot commands.
type session struct {
	h     *notecard.Handler
	sup   *connection.Supervisor
	close func() error
}

func openSession(cfg *config.Config, log *zap.Logger) (*session, error) {
	h, closeBus, err := notecard.Build(cfg.Notecard, log.Named("notecard"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("handler build failed: %v", err), 1)
	}
	return &session{
		h:     h,
		sup:   connection.NewSupervisor(h, connection.WithLogger(log.Named("connection"))),
		close: closeBus,
	}, nil
}

// initialize runs INIT once: transport up, bridge configured, UID read.
func (s *session) initialize() error {
	st := s.sup.Step()
	if st == connection.Init || st == connection.Error {
		return cli.Exit("bridge initialization failed", 1)
	}
	return nil
}

// ---- status ----

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "initialize the bridge and print its connection status",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := openSession(cfg, log)
			if err != nil {
				return err
			}
			defer s.close()

			s.h.SetKeepAlive(true)
			if err := s.initialize(); err != nil {
				return err
			}
			// One CONNECTING pass queries hub.status.
			st := s.sup.Step()

			fmt.Printf("state:      %s\n", st)
			fmt.Printf("device:     %s\n", s.h.DeviceUID())
			fmt.Printf("status:     %s (0x%02x)\n", s.h.LastStatus(), s.h.LastStatus().Encode())
			if t := s.h.Time(); t != 0 {
				fmt.Printf("time:       %s\n", time.Unix(int64(t), 0).UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

// ---- connect ----

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "bring the bridge online and wait for Notehub",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "wait",
				Value: notecard.DefaultConnectTimeout,
				Usage: "give up after `DURATION`",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := openSession(cfg, log)
			if err != nil {
				return err
			}
			defer s.close()

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("wait"))
			defer cancel()

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			sp.Suffix = " connecting to Notehub"
			sp.Start()

			s.sup.Connect()
			st, err := waitFor(ctx, s.sup, connection.Connected, time.Duration(cfg.Notecard.TickMs)*time.Millisecond)
			sp.Stop()
			if err != nil {
				return cli.Exit(fmt.Sprintf("not connected (state %s): %v", st, err), 1)
			}

			fmt.Printf("connected as %s\n", s.h.DeviceUID())
			return nil
		},
	}
}

// waitFor ticks sup until it reaches want, enters a terminal state, or ctx ends.
func waitFor(ctx context.Context, sup *connection.Supervisor, want connection.State, tick time.Duration) (connection.State, error) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		st := sup.Check()
		switch {
		case st == want:
			return st, nil
		case st.Terminal():
			return st, errors.New("supervisor stopped")
		}

		select {
		case <-ctx.Done():
			return sup.State(), ctx.Err()
		case <-ticker.C:
		}
	}
}

// ---- send ----

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "queue one outbound note",
		ArgsUsage: "PAYLOAD",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("send: exactly one PAYLOAD argument required", 2)
			}

			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := openSession(cfg, log)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.initialize(); err != nil {
				return err
			}
			if code := s.h.Write([]byte(c.Args().First())); code != notecard.ErrorNone {
				return cli.Exit(fmt.Sprintf("send failed: %s", code), 1)
			}
			fmt.Println("queued")
			return nil
		},
	}
}

// ---- time ----

func timeCommand() *cli.Command {
	return &cli.Command{
		Name:  "time",
		Usage: "print the bridge's clock",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := openSession(cfg, log)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.initialize(); err != nil {
				return err
			}
			t := s.h.Time()
			if t == 0 {
				return cli.Exit("bridge time not available", 1)
			}
			fmt.Println(time.Unix(int64(t), 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
}
