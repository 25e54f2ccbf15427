// rssilock locks the session when the trusted Bluetooth device walks away
// and unlocks it when the device comes back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ystepanoff/rssilock"
	"github.com/ystepanoff/rssilock/action"
	"github.com/ystepanoff/rssilock/config"
	"github.com/ystepanoff/rssilock/link"
	"github.com/ystepanoff/rssilock/status"
	"github.com/ystepanoff/rssilock/supervisor"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "configuration file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	simulate := flag.Bool("simulate", false, "run against a simulated controller instead of a real adapter")
	flag.Parse()

	log := logrus.New()
	log.Formatter = new(logrus.TextFormatter)
	log.Out = os.Stdout
	lvl, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rssilock: %v\n", err)
		os.Exit(2)
	}
	log.SetLevel(lvl)

	if err := run(log, *configPath, *simulate); err != nil {
		log.WithError(err).Error("rssilock stopped")
		os.Exit(1)
	}
}

func run(log *logrus.Logger, path string, simulate bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	client, err := config.LoadClient(cfg.ClientsFile)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"name": client.Name, "address": client.Address}).Info("trusted device")

	var adapter *rssilock.Adapter
	if simulate {
		adapter, _ = rssilock.NewSimulatedAdapter(simulatedPeer(client.Address), cfg.ExchangeTimeout(), log)
	} else {
		if os.Geteuid() != 0 {
			log.Warn("not running as root, opening the adapter will probably fail")
		}
		adapter, err = rssilock.OpenAdapter(cfg.Adapter, cfg.ExchangeTimeout(), log)
		if err != nil {
			return err
		}
	}
	defer adapter.Close()

	if cfg.ForceAuthentication {
		if err := adapter.Link.EnableAuthentication(cfg.DisableSimplePairing); err != nil {
			if link.Classify(err) == link.Fatal {
				return err
			}
			log.WithError(err).Warn("could not enforce authentication")
		}
	}

	act, err := action.New(cfg.Actions, log)
	if err != nil {
		return err
	}

	var opts []supervisor.Option
	if cfg.Redis != nil {
		pub := status.NewRedisPublisher(status.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
			TTL:      time.Duration(cfg.Redis.TTLSeconds) * time.Second,
		}, log)
		defer pub.Close()
		opts = append(opts, supervisor.WithReporter(pub))
	}

	sup, err := supervisor.New(supervisor.Config{
		Peer:        client.Address,
		Presence:    cfg.Presence(),
		LockOnStart: cfg.LockOnStart,
	}, adapter.Link, act, log, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sup.Run(ctx)
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case s := <-sigCh:
			log.WithField("signal", s).Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})
	return g.Wait()
}

// simulatedPeer walks away from the host and comes back.
func simulatedPeer(addr rssilock.Address) rssilock.Peer {
	var walk []int8
	for v := int8(0); v > -20; v -= 2 {
		walk = append(walk, v)
	}
	for v := int8(-20); v <= 0; v += 4 {
		walk = append(walk, v)
	}
	return rssilock.Peer{Address: addr, InRange: true, Paired: true, RSSI: walk}
}
