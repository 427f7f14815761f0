// Package main is the datalog command: it runs the sensors named in a config file and reports
// what they acquire.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/datalog/acquisition"
	"go.viam.com/datalog/config"
	_ "go.viam.com/datalog/drivers/register"
	"go.viam.com/datalog/logging"
	"go.viam.com/datalog/manager"
	"go.viam.com/datalog/utils"
)

const (
	flagConfig        = "config"
	flagDebug         = "debug"
	flagFake          = "fake"
	flagWatch         = "watch"
	flagStatsInterval = "stats-interval"
)

func main() {
	logger := logging.NewLogger("datalog")

	configFlag := &cli.StringFlag{
		Name:     flagConfig,
		Aliases:  []string{"c"},
		Usage:    "load configuration from `FILE`",
		Required: true,
	}

	app := &cli.App{
		Name:  "datalog",
		Usage: "acquire samples from periodic sensors",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger.SetLevel(logging.DEBUG)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run the configured sensors until interrupted",
				UsageText: "datalog run -c datalog.json [--fake]",
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:  flagFake,
						Usage: "use simulated sensors instead of the i2c buses",
					},
					&cli.BoolFlag{
						Name:  flagWatch,
						Usage: "apply changes to the config file while running",
						Value: true,
					},
					&cli.DurationFlag{
						Name:  flagStatsInterval,
						Usage: "how often to print acquisition statistics, 0 to disable",
						Value: 10 * time.Second,
					},
				},
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "describe",
				Usage: "print the channels of the configured sensors, or the known models without a config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagConfig,
						Aliases: []string{"c"},
						Usage:   "load configuration from `FILE`",
					},
				},
				Action: func(c *cli.Context) error {
					return describeAction(c, logger)
				},
			},
			{
				Name:  "validate",
				Usage: "check a config file",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					cfg, err := config.Read(c.String(flagConfig))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s is valid (%d sensors)\n", cfg.ConfigFilePath, len(cfg.Sensors))
					return nil
				},
			},
			{
				Name:  "schema",
				Usage: "print the JSON schema of the config file",
				Action: func(c *cli.Context) error {
					raw, err := config.SchemaJSON()
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(raw))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context, logger logging.Logger) error {
	path := c.String(flagConfig)
	cfg, err := config.Read(path)
	if err != nil {
		return err
	}
	if c.Bool(flagDebug) {
		cfg.LogLevel = "debug"
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Bool(flagDebug) {
		ctx = logging.EnableDebugMode(ctx, "")
	}

	sink := acquisition.DataReadyFunc(func(batch acquisition.Batch) {
		values := batch.Values()
		logger.Debugw("batch", "sensor", batch.Sensor, "channel", batch.Channel,
			"samples", len(values), "timestamp", batch.Timestamp, "first", values[0])
	})
	m, err := manager.NewFromConfig(ctx, cfg, logger, manager.WithFake(c.Bool(flagFake)), manager.WithDataReady(sink))
	if err != nil {
		return err
	}
	if c.Bool(flagWatch) {
		if err := m.WatchConfig(ctx, path); err != nil {
			return multierr.Combine(errors.Wrap(err, "watching config"), m.Close(context.Background()))
		}
	}

	var statsWorker utils.StoppableWorkers
	if interval := c.Duration(flagStatsInterval); interval > 0 {
		statsWorker = utils.NewStoppableWorkerWithTicker(clock.New(), interval, func(context.Context) {
			fmt.Fprintln(c.App.Writer, statsTable(m))
		})
	}

	m.StartAll()
	logger.Infow("acquiring", "sensors", len(m.SensorIDs()), "fake", c.Bool(flagFake))
	<-ctx.Done()

	if statsWorker != nil {
		statsWorker.Stop()
	}
	m.StopAll()
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Close(closeCtx)
}

func describeAction(c *cli.Context, logger logging.Logger) error {
	path := c.String(flagConfig)
	if path == "" {
		fmt.Fprintln(c.App.Writer, modelsTable())
		return nil
	}
	cfg, err := config.Read(path)
	if err != nil {
		return err
	}
	// simulators stand in for the hardware so describing never touches a bus
	m, err := manager.NewFromConfig(c.Context, cfg, logger, manager.WithFake(true))
	if err != nil {
		return err
	}
	table, err := channelsTable(cfg, m)
	if err != nil {
		return multierr.Combine(err, m.Close(c.Context))
	}
	fmt.Fprintln(c.App.Writer, table)
	return m.Close(c.Context)
}
