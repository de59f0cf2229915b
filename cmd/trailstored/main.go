// Command trailstored runs the location history store as a daemon:
// it provisions the partition backend, starts the maintenance
// scheduler, and serves operational metrics. Ingest and query are
// library calls (pkg/store); this binary owns lifecycle and wiring.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trailhq/trailstore/pkg/config"
	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/maintenance"
	"github.com/trailhq/trailstore/pkg/partition"
	"github.com/trailhq/trailstore/pkg/partition/badgerdb"
	"github.com/trailhq/trailstore/pkg/partition/memory"
	"github.com/trailhq/trailstore/pkg/shard"
	"github.com/trailhq/trailstore/pkg/store"
	"github.com/trailhq/trailstore/pkg/tier"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logging.WithComponent("trailstored")

	log.Info().
		Str("strategy", string(cfg.Sharding.Strategy)).
		Str("granularity", string(cfg.Sharding.Granularity)).
		Str("backend", cfg.Storage.Backend).
		Msg("starting trailstore")

	deriver, err := shard.NewDeriver(cfg.Sharding)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sharding configuration")
	}

	var backend partition.Backend
	switch cfg.Storage.Backend {
	case "memory":
		backend = memory.New()
	default:
		if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
			log.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("failed to create data directory")
		}
		b, err := badgerdb.New(badgerdb.Config{
			Path:        cfg.Storage.Path,
			MaxMemoryMB: cfg.Storage.MaxMemoryMB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open badger backend")
		}
		backend = b
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error().Err(err).Msg("backend close failed")
		}
	}()

	var directory tier.Directory
	if cfg.Directory.File != "" {
		d, err := tier.LoadStaticDirectory(cfg.Directory.File)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Directory.File).Msg("failed to load subject directory")
		}
		directory = d
		log.Info().Str("file", cfg.Directory.File).Msg("subject directory loaded")
	} else {
		directory = tier.NewStaticDirectory()
		log.Info().Msg("no subject directory configured, all subjects classify as standard")
	}

	classifier := tier.NewClassifier(directory, cfg.Directory.LookupTimeout)
	registry := partition.NewRegistry(backend)
	st := store.New(deriver, classifier, registry, cfg.StoreOptions())

	jobs := maintenance.StandardJobs(st, backend)
	if cfg.Storage.Backend == "badger" {
		monitor := maintenance.NewDiskMonitor(cfg.Storage.Path, config.DefaultMaxStorageGB*1024*1024*1024)
		jobs = append(jobs, maintenance.DiskUsageJob(monitor))
	}
	scheduler := maintenance.NewScheduler(jobs...)
	scheduler.Start()
	log.Info().Int("jobs", len(jobs)).Msg("maintenance scheduler started")

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			for _, j := range jobs {
				if m := scheduler.Monitor(j.Name); m != nil && !m.IsHealthy() {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
			}
			w.WriteHeader(http.StatusOK)
		})

		metricsServer = &http.Server{
			Addr:         cfg.Metrics.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listener started")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics listener shutdown")
		}
	}

	// Stop with a deadline so a wedged job cannot hang the exit.
	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("maintenance jobs stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Warn().Msg("maintenance jobs did not stop in time, forcing exit")
	}

	log.Info().Msg("trailstore exited")
}
