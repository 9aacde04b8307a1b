// cmd/notecardd/main.go
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tamzrod/notecard-handler/internal/config"
)

const defaultConfigPath = "/etc/notecardd/config.yaml"

func main() {
	app := cli.NewApp()
	app.Name = "notecardd"
	app.Usage = "supervise a Notecard bridge connection"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:      "config",
			Aliases:   []string{"c"},
			Value:     defaultConfigPath,
			TakesFile: true,
			Usage:     "load configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "override the configured log `LEVEL`",
		},
	}

	app.Commands = []*cli.Command{
		runCommand(),
		statusCommand(),
		connectCommand(),
		sendCommand(),
		timeCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// --------------------
// Config + logger
// --------------------

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("config load failed: %v", err), 1)
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, cli.Exit(fmt.Sprintf("config validation failed: %v", err), 1)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	return zc.Build()
}

// setup loads config and builds the logger every subcommand needs.
func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("logger: %v", err), 1)
	}
	return cfg, log, nil
}
