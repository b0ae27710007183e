// Package server wires pkg/config and pkg/session together behind a
// urfave/cli command, grounded on the teacher's historical
// `cli/server.NewCommands`/`startServer` (config load, logger build,
// grace-context shutdown, signal-driven reload loop).
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/config"
	"github.com/nspcc-dev/p2pnet/pkg/hostpool"
	"github.com/nspcc-dev/p2pnet/pkg/protocol"
	"github.com/nspcc-dev/p2pnet/pkg/session"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// defaultMaximumSkew and defaultAddressFetchCount are internal tuning
// knobs the enumerated configuration surface (spec.md §6) does not
// expose; every node uses the same value, matching the teacher's own
// convention of hardcoding a handful of protocol constants (e.g.
// userAgentFormat) rather than making them configurable.
const (
	defaultMaximumSkew       = 2 * time.Hour
	defaultAddressFetchCount = 1000
)

var configPathFlag = cli.StringFlag{
	Name:  "config-path",
	Usage: "path to the node's YAML configuration file",
}

var relativePathFlag = cli.StringFlag{
	Name:  "relative-path",
	Usage: "base directory relative file paths in the configuration are resolved against",
}

var debugFlag = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "force debug logging regardless of the configured log level",
}

// NewCommand returns the 'node' command.
func NewCommand() cli.Command {
	return cli.Command{
		Name:      "node",
		Usage:     "Start a p2p node",
		UsageText: "p2pnet node --config-path path [--relative-path dir] [-d]",
		Action:    startServer,
		Flags:     []cli.Flag{configPathFlag, relativePathFlag, debugFlag},
	}
}

func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

// buildControllerConfig maps a config.P2P block onto the session layer's
// Config, one field at a time; Dial is left nil on every session kind so
// connect.DefaultDial applies.
func buildControllerConfig(cfg config.Config, log *zap.Logger) session.Config {
	selfs := config.Authorities(cfg.P2P.Selfs)
	blacklist := config.Authorities(cfg.P2P.Blacklists)
	whitelist := config.Authorities(cfg.P2P.Whitelists)
	binds := config.Endpoints(cfg.P2P.Binds)

	deps := session.Deps{
		ChannelConfig: channel.Config{
			Magic:             cfg.P2P.Magic,
			MaxPayload:        cfg.P2P.MaxPayload,
			HandshakeTimeout:  cfg.P2P.ChannelHandshake,
			InactivityBase:    cfg.P2P.ChannelInactivity,
			ExpirationTimeout: cfg.P2P.ChannelExpiration,
		},
		Handshake: protocol.HandshakeConfig{
			MinimumProtocol: cfg.P2P.MinimumProtocol,
			MaximumProtocol: cfg.P2P.MaximumProtocol,
			ServicesMinimum: wireaddr.Service(cfg.P2P.ServicesMinimum),
			ServicesMaximum: wireaddr.Service(cfg.P2P.ServicesMaximum),
			MaximumSkew:     defaultMaximumSkew,
			UserAgent:       cfg.P2P.UserAgent,
			StartHeight:     cfg.P2P.StartHeight,
			EnableReject:    cfg.P2P.EnableReject,
		},
		Ping: protocol.PingConfig{Interval: cfg.P2P.ChannelHeartbeat},
		Address: protocol.AddressConfig{
			Selfs:           selfs,
			FetchCount:      defaultAddressFetchCount,
			ServicesMaximum: wireaddr.Service(cfg.P2P.ServicesMaximum),
			Blacklist:       blacklist,
			Logger:          log,
		},
		LogOnly: protocol.LogOnlyConfig{
			EnableAlert:  true,
			EnableReject: cfg.P2P.EnableReject,
			Logger:       log,
		},
	}

	var local wireaddr.Authority
	if len(binds) > 0 {
		local, _ = wireaddr.NewAuthority(binds[0].HostPort())
	}

	return session.Config{
		Deps: deps,
		Pool: hostpool.Config{
			Capacity:  cfg.P2P.HostPoolCapacity,
			FilePath:  cfg.P2P.HostPoolFile,
			Blacklist: blacklist,
			Selfs:     selfs,
			Logger:    log,
		},
		EnableManual: len(cfg.P2P.Peers) > 0,
		Manual: session.ManualConfig{
			Endpoints:   config.Endpoints(cfg.P2P.Peers),
			DialTimeout: cfg.P2P.ConnectTimeout,
		},
		EnableInbound: len(binds) > 0,
		Inbound: session.InboundConfig{
			Local:      local,
			MaxInbound: cfg.P2P.InboundConnections,
			Blacklist:  blacklist,
			Whitelist:  whitelist,
		},
		EnableOutbound: cfg.P2P.OutboundConnections > 0,
		Outbound: session.OutboundConfig{
			Count:            cfg.P2P.OutboundConnections,
			ConnectBatchSize: cfg.P2P.ConnectBatchSize,
			DialTimeout:      cfg.P2P.ConnectTimeout,
			RetryDelay:       cfg.P2P.ConnectTimeout,
		},
		EnableSeed: len(cfg.P2P.Seeds) > 0,
		Seed: session.SeedConfig{
			Seeds:             config.Endpoints(cfg.P2P.Seeds),
			PoolThreshold:     cfg.P2P.OutboundConnections,
			RequiredAddresses: cfg.P2P.HostPoolCapacity,
			DialTimeout:       cfg.P2P.ConnectTimeout,
			AddressTimeout:    cfg.P2P.ChannelHandshake,
		},
		HostPoolFlushInterval: cfg.P2P.HostPoolFlushInterval,
	}
}

func startServer(ctx *cli.Context) error {
	path := ctx.String("config-path")
	if path == "" {
		return cli.NewExitError("config-path is required", 1)
	}
	cfg, err := config.LoadFile(path, ctx.String("relative-path"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	log, logLevel, err := cfg.Logger.Build()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	logDebug := ctx.Bool("debug")
	if logDebug {
		logLevel.SetLevel(zapcore.DebugLevel)
	}

	grace, cancel := context.WithCancel(newGraceContext())
	defer cancel()

	reg := prometheus.DefaultRegisterer
	setNodeVersion(Version)
	controller := session.NewController(buildControllerConfig(cfg, log), log, reg)

	started := make(chan error, 1)
	controller.Run(func(err error) { started <- err })
	if err := <-started; err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start node: %w", err), 1)
	}
	defer func() {
		if err := controller.Stop(); err != nil {
			log.Warn("error while stopping node", zap.Error(err))
		}
	}()

	fmt.Fprintln(ctx.App.Writer, Logo())
	fmt.Fprintf(ctx.App.Writer, "version %s, magic %d\n\n", Version, cfg.P2P.Magic)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sighup)

	for {
		select {
		case sig := <-sigCh:
			log.Info("signal received", zap.Stringer("name", sig))
			cfgNew, err := config.LoadFile(path, ctx.String("relative-path"))
			if err != nil {
				log.Warn("can't reread the config file, signal ignored", zap.Error(err))
				continue
			}
			if !logDebug && cfgNew.Logger.LogLevel != cfg.Logger.LogLevel {
				level := zapcore.InfoLevel
				if cfgNew.Logger.LogLevel != "" {
					level, err = zapcore.ParseLevel(cfgNew.Logger.LogLevel)
					if err != nil {
						log.Warn("wrong LogLevel in configuration, signal ignored", zap.Error(err))
						continue
					}
				}
				logLevel.SetLevel(level)
				log.Warn("using new logging level", zap.Stringer("level", level))
			}
			cfg = cfgNew
		case <-grace.Done():
			signal.Stop(sigCh)
			return nil
		}
	}
}

// Logo returns the node's startup banner.
func Logo() string {
	return `
  ____ ___
 |  _ \__ \_ __  _ __   ___| |_
 | |_) |/ /| '_ \| '_ \ / _ \ __|
 |  __// /_| |_) | | | |  __/ |_
 |_|  |____| .__/|_| |_|\___|\__|
           |_|
`
}
