// Command simulate runs one discrete-event simulation end to end: it
// loads a database config and a simulation config, drives the
// Orchestrator to completion, and prints the resulting metrics as JSON.
//
// Usage:
//
//	simulate -db database.yaml -sim simulation.yaml [-store eventsim.db] [-metrics]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R3E-Network/eventsim/infrastructure/metrics"
	"github.com/R3E-Network/eventsim/internal/engine/orchestrator"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

func main() {
	dbPath := flag.String("db", "", "path to the database config YAML")
	simPath := flag.String("sim", "", "path to the simulation config YAML")
	storePath := flag.String("store", "", "override the persistence file path (defaults to the environment config)")
	seedOverride := flag.Int64("seed", 0, "override random_seed from the simulation config (0 means no override)")
	enableMetrics := flag.Bool("metrics", false, "serve Prometheus metrics for this run on RuntimeConfig.MetricsListenAddr")
	flag.Parse()

	if *dbPath == "" || *simPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: simulate -db <database.yaml> -sim <simulation.yaml> [-store path] [-seed n] [-metrics]")
		os.Exit(1)
	}

	runCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load run configuration: %v\n", err)
		os.Exit(1)
	}
	if *storePath != "" {
		runCfg.Store.Path = *storePath
	}
	if *seedOverride != 0 {
		runCfg.Runtime.RandomSeedOverride = *seedOverride
	}
	if *enableMetrics {
		runCfg.Runtime.MetricsEnabled = true
	}

	log := logger.New("simulate", logger.Config{
		Level:      runCfg.Logging.Level,
		Format:     runCfg.Logging.Format,
		Output:     runCfg.Logging.Output,
		FilePrefix: runCfg.Logging.FilePrefix,
	})

	db, err := schema.LoadDatabaseConfig(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sim, err := schema.LoadSimulationConfig(*simPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if runCfg.Runtime.RandomSeedOverride != 0 {
		override := runCfg.Runtime.RandomSeedOverride
		sim.RandomSeed = &override
	}

	ctx := logger.WithRunID(context.Background(), logger.NewRunID())

	if runCfg.Runtime.MetricsEnabled {
		m := metrics.New(logger.RunIDFromContext(ctx))
		metrics.Init(m)
		go serveMetrics(runCfg.Runtime.MetricsListenAddr, m, log)
	}

	result, err := orchestrator.Run(ctx, db, sim, runCfg.Store, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: simulation run failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func serveMetrics(addr string, m *metrics.Metrics, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server stopped")
	}
}
