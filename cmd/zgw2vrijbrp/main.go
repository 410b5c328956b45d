package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/commonground/zgw2vrijbrp/mappings"
	"github.com/commonground/zgw2vrijbrp/sync"
)

func main() {
	app := cli.NewApp()
	app.Name = "zgw2vrijbrp"
	app.Usage = "push ZGW zaken to VrijBRP"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "Path to a yaml configuration file layered over the embedded defaults",
			EnvVar: "ZGW2VRIJBRP_CONFIG_FILE",
		},
		cli.StringFlag{
			Name:  "mappings",
			Usage: "Directory holding a mappings/ folder with extra mapping definitions",
		},
		cli.StringSliceFlag{
			Name:  "broker",
			Usage: "Kafka seed broker for delivery events. Can be specified multiple times",
		},
		cli.BoolFlag{
			Name:  "record",
			Usage: "Record outbound requests under the recording dir",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Development logging at debug level",
		},
	}

	app.Commands = append(handlerCommands(),
		cleanupCommand(),
		loadCommand(),
		docsCommand(),
		schemaCommand(),
		serveCommand(),
	)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// environment is everything a command needs, built from the global flags.
type environment struct {
	sc       *sync.SyncContext
	gatherer prometheus.Gatherer
	closers  []func()
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.GlobalBool("debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func setup(ctx context.Context, c *cli.Context) (*environment, error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	result := &environment{closers: []func(){func() { _ = logger.Sync() }}}

	cfg, defs, err := sync.LoadConfigFromEnvironment(
		sync.EmbeddedMappings{Root: ".", Files: mappings.Files},
		sync.ConfigWithFile(c.GlobalString("config")),
		sync.ConfigWithMappingsDir(c.GlobalString("mappings")),
	)
	if err != nil {
		return nil, err
	}
	if c.GlobalBool("record") {
		cfg.Recording.Requests = true
	}
	if brokers := c.GlobalStringSlice("broker"); len(brokers) > 0 {
		cfg.Events.Brokers = brokers
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	result.gatherer = registry
	opts := []sync.ContextOption{
		sync.WithLogger(logger),
		sync.WithMetrics(sync.NewMetrics(registry)),
	}

	switch cfg.Store.Driver {
	case "", "memory":
	case "postgres":
		store, err := sync.OpenPostgresStore(ctx, cfg.Store.DSN)
		if err != nil {
			result.Close()
			return nil, err
		}
		result.closers = append(result.closers, func() { _ = store.Close() })
		if err = store.Migrate(ctx); err != nil {
			result.Close()
			return nil, err
		}
		opts = append(opts, sync.WithStore(store))
	default:
		result.Close()
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	cache, err := sync.NewRedisCache(ctx, cfg.Cache)
	if err != nil {
		result.Close()
		return nil, err
	}
	if cache != nil {
		result.closers = append(result.closers, func() { _ = cache.Close() })
		opts = append(opts, sync.WithCache(cache))
	}

	publisher, err := sync.NewKafkaPublisher(cfg.Events)
	if err != nil {
		result.Close()
		return nil, err
	}
	if publisher != nil {
		result.closers = append(result.closers, publisher.Close)
		opts = append(opts, sync.WithEvents(publisher))
	}

	result.sc, err = sync.NewSyncContext(cfg, defs, opts...)
	if err != nil {
		result.Close()
		return nil, err
	}
	logger.Debug("loaded configuration",
		zap.Int("sources", len(cfg.Sources)),
		zap.Int("mappings", len(defs)),
		zap.String("store", cfg.Store.Driver))
	return result, nil
}
