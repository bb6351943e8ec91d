// Command coresim runs a microarchitectural simulation from a TOML
// configuration file to completion, then flushes its stats and trace
// output.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexus-arch/coresim/internal/config"
	"github.com/nexus-arch/coresim/internal/logging"
	"github.com/nexus-arch/coresim/internal/sim"
	"github.com/nexus-arch/coresim/internal/statsio"
)

func main() {
	configPath := flag.String("config", "", "path to the simulation's TOML config file")
	statsOut := flag.String("stats", "", "path to write the binary stats dump (optional)")
	production := flag.Bool("json-logs", false, "emit JSON logs instead of console")
	flag.Parse()

	log := logging.New(logging.Config{Level: logging.LevelInfo, Component: "coresim", Production: *production})
	defer log.Sync()

	if *configPath == "" {
		log.Fatal("coresim: -config is required")
	}

	cfg, err := config.Load(*configPath, log)
	if err != nil {
		log.Fatal("coresim: loading config", logging.Err(err))
	}

	system := sim.New(cfg, log, nil, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		system.RequestTermination()
	}()

	if err := system.Run(ctx); err != nil {
		log.Fatal("coresim: simulation failed", logging.Err(err))
	}

	if err := cfg.Freeze(); err != nil {
		log.Fatal("coresim: config audit", logging.Err(err))
	}

	if *statsOut != "" {
		f, err := os.Create(*statsOut)
		if err != nil {
			log.Fatal("coresim: opening stats output", logging.Err(err))
		}
		defer f.Close()
		if err := statsio.WriteBinary(f, system.Stats); err != nil {
			log.Fatal("coresim: writing stats", logging.Err(err))
		}
	}

	log.Info("coresim: simulation complete", logging.Uint64("phases", system.Phase()))
}
