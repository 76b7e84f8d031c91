// Command tradeforge-worker is the single binary hosting every compute-core
// subcommand (C4-C7; the batch coordinator C8 is not run by any
// subcommand), generalizing the teacher's single-purpose main.go +
// app.go pattern into a tiny subcommand dispatcher: each subcommand still
// does exactly "build config, build app, app.Run()", just parameterized by
// which consumer/scheduler it runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"tradeforge-core/cmd/tradeforge-worker/app"
	"tradeforge-core/internal/config"
	"tradeforge-core/pkg/log"
)

func main() {
	log.InitLogger()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	subcommand := os.Args[1]

	fs := flag.NewFlagSet(subcommand, flag.ExitOnError)
	configPath := fs.String("config", "", "optional path to a config file (env vars always take precedence)")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize application: %v", err)
	}
	defer application.Close()

	run, ok := subcommands[subcommand]
	if !ok {
		usage()
		os.Exit(2)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := application.ServeHealth(ctx, cfg.HealthPort); err != nil {
			log.Error("health server exited: %v", err)
		}
	}()

	if err := run(ctx, application); err != nil {
		log.Fatal("%s: %v", subcommand, err)
	}

	cancel()
	wg.Wait()
}

var subcommands = map[string]func(context.Context, *app.Application) error{
	"consume-rt":       runConsumeRT,
	"consume-batch":    runConsumeBatch,
	"consume-backtest": runConsumeBacktest,
	"consume":          runConsume,
	"schedule":         runSchedule,
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tradeforge-worker <consume-rt|consume-batch|consume-backtest|consume|schedule> [-config path]")
}
