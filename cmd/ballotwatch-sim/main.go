package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ballotwatch/ballotwatch/internal/clock"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/sim"
)

var version = "dev"

func main() {
	port := flag.Int("port", 8880, "HTTP server port")
	fixturesPath := flag.String("fixtures", "", "YAML fixtures file (built-in election if not set)")
	logLevel := flag.String("loglevel", "info", "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `ballotwatch-sim - local election backend for ballotwatch

Usage:
  ballotwatch-sim [options]

Options:
  -port int       HTTP server port (default 8880)
  -fixtures str   YAML fixtures file (built-in election if not set)
  -loglevel str   Log level: debug, info, warn, error (default "info")
  -version        Show version and exit

Examples:
  ballotwatch-sim                          # Run with the built-in election
  ballotwatch-sim -fixtures elections.yaml # Seed from a fixture file
  ballotwatch-sim -port 9000               # Run on port 9000

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("ballotwatch-sim %s\n", version)
		os.Exit(0)
	}

	log := logger.NewWithLevel(logger.ParseLevel(*logLevel))

	var fixtures *sim.Fixtures
	if *fixturesPath != "" {
		f, err := sim.LoadFixtures(*fixturesPath)
		if err != nil {
			log.Error("failed to load fixtures", "path", *fixturesPath, "error", err)
			os.Exit(1)
		}
		fixtures = f
	} else {
		fixtures = sim.DefaultFixtures(time.Now())
	}

	simulator := sim.NewServer(log, clock.System{}, fixtures)
	defer simulator.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: simulator.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info("simulator listening", "addr", server.Addr, "elections", len(fixtures.Elections))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("simulator stopped")
}
