// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Command udisksd is the storage-device daemon's object registry process
// (§4.10 C12 daemon wiring).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/woodrow-shen/udisks/internal/busexport"
	"github.com/woodrow-shen/udisks/internal/cleanup"
	"github.com/woodrow-shen/udisks/internal/config"
	"github.com/woodrow-shen/udisks/internal/configwatch"
	"github.com/woodrow-shen/udisks/internal/metrics"
	"github.com/woodrow-shen/udisks/internal/registry"
	"github.com/woodrow-shen/udisks/internal/uevent"
)

func main() {
	app := cli.NewApp()
	app.Name = "udisksd"
	app.Usage = "Linux storage-device object registry daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "path to TOML configuration file"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("udisksd exited with error")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	conn, err := connectBus(cfg.BusAddress)
	if err != nil {
		return fmt.Errorf("connect to bus: %w", err)
	}
	defer conn.Close()

	server := busexport.New(conn)
	checker := cleanup.New()
	collectors := metrics.New(prometheus.DefaultRegisterer)
	reg := registry.New(server, checker, collectors)

	watcher, err := configwatch.New(200 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	watcher.OnChange = reg.UpdateAllBlockObjects
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer watcher.Close()

	src, err := uevent.Open()
	if err != nil {
		return fmt.Errorf("open uevent source: %w", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("received termination signal, shutting down")
		cancel()
	}()

	go serveMetrics(cfg.MetricsListenAddr)

	go func() {
		// Start blocks serving coldplug + the event loop; give it a
		// moment before declaring readiness so a hostile first uevent
		// burst doesn't race systemd's startup timeout accounting.
		time.Sleep(100 * time.Millisecond)
		if ok, nerr := daemon.SdNotify(false, daemon.SdNotifyReady); nerr != nil {
			logrus.WithError(nerr).Debug("sd_notify failed")
		} else if !ok {
			logrus.Debug("not running under systemd notify supervision")
		}
	}()

	if err := reg.Start(ctx, src); err != nil && ctx.Err() == nil {
		return fmt.Errorf("registry stopped: %w", err)
	}
	return nil
}

// connectBus opens a D-Bus connection. An empty address connects to the
// system bus, matching where UDisks2 normally publishes its objects; a
// non-empty address (set in tests, or for sandboxed/rootless daemons)
// dials that address directly.
func connectBus(address string) (*dbus.Conn, error) {
	if address == "" {
		return dbus.ConnectSystemBus()
	}
	return dbus.Connect(address)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Warn("metrics server stopped")
	}
}
