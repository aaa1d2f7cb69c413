package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/marcuoli/go-sntpd/pkg/sntpd"
)

func main() {
	app := &cli.App{
		Name:  "sntpd",
		Usage: "SNTP responder with a configurable clock skew",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   123,
				Usage:   "UDP port to listen on",
			},
			&cli.IntFlag{
				Name:    "delay",
				Aliases: []string{"d"},
				Value:   0,
				Usage:   "seconds added to reply timestamps (may be negative)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   10,
				Usage:   "size of the reply worker pool",
			},
			&cli.StringFlag{
				Name:  "listen",
				Value: "0.0.0.0",
				Usage: "address to bind",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "address for the HTTP monitoring listener (empty = disabled)",
			},
			&cli.Float64Flag{
				Name:  "rate",
				Value: 0,
				Usage: "per-IP request rate limit (requests/sec), 0 = disabled",
			},
			&cli.IntFlag{
				Name:  "burst",
				Value: 5,
				Usage: "per-IP rate limit burst",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := sntpd.Config{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
	}
	metricsAddr := c.String("metrics-addr")

	if path := c.String("config"); path != "" {
		fc, err := sntpd.LoadFile(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		cfg = fc.ServerConfig()
		cfg.Logger = log.New(os.Stdout, "", log.LstdFlags)
		if metricsAddr == "" {
			metricsAddr = fc.Monitor.Addr
		}
	}

	// Flags override anything from the file.
	port := c.Int("port")
	if c.IsSet("port") || cfg.ListenAddr == "" {
		if err := sntpd.ValidatePort(port); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		cfg.ListenAddr = net.JoinHostPort(c.String("listen"), strconv.Itoa(port))
	}
	if c.IsSet("delay") || cfg.Delay == 0 {
		cfg.Delay = time.Duration(c.Int("delay")) * time.Second
	}
	if c.IsSet("workers") || cfg.Workers == 0 {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("rate") {
		cfg.RateLimitPerSecond = c.Float64("rate")
	}
	if c.IsSet("burst") {
		cfg.RateLimitBurst = c.Int("burst")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := sntpd.New(cfg)
	if err := srv.Start(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("failed to start: %v", err), 1)
	}
	defer func() { _ = srv.Stop() }()

	if metricsAddr != "" {
		mon := sntpd.NewMonitor(metricsAddr, srv)
		if err := mon.Start(); err != nil {
			return cli.Exit(fmt.Sprintf("failed to start monitor: %v", err), 1)
		}
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = mon.Stop(shutdownCtx)
		}()
		log.Printf("monitoring on http://%s", mon.Addr())
	}

	log.Printf("%s listening on udp://%s (delay %s)", sntpd.VersionInfo(), srv.Addr(), cfg.Delay)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println("stopping...")
			return nil
		case <-ticker.C:
			m := srv.Metrics()
			log.Printf("requests=%d responses=%d dropped=%d unique_clients=%d last_ip=%s",
				m.TotalRequests, m.TotalResponses, m.TotalDropped, m.UniqueClients, m.LastRequestIP)
		}
	}
}
