package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CodeByKalvin/Logex/internal/cleanup"
	"github.com/CodeByKalvin/Logex/internal/config"
	"github.com/CodeByKalvin/Logex/internal/db"
	"github.com/CodeByKalvin/Logex/internal/enrich"
	"github.com/CodeByKalvin/Logex/internal/history"
	"github.com/CodeByKalvin/Logex/internal/httpserver"
	"github.com/CodeByKalvin/Logex/internal/metrics"
	"github.com/CodeByKalvin/Logex/internal/monitor"
	"github.com/CodeByKalvin/Logex/internal/obs"
	"github.com/CodeByKalvin/Logex/internal/state"
)

func main() {
	createConfig := flag.Bool("c", false, "write a default configuration file and exit")
	startMonitor := flag.Bool("s", false, "start monitoring")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *createConfig {
		if err := config.WriteDefault(cfg.ConfigFile); err != nil {
			log.Fatalf("create config: %v", err)
		}
		log.Printf("wrote default configuration to %s", cfg.ConfigFile)
		return
	}
	if !*startMonitor {
		flag.Usage()
		os.Exit(2)
	}

	log.Printf("config: %s", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		log.Fatalf("config: %v (run with -c to create a default file)", err)
	}
	defer mgr.Close()

	stats := obs.New()
	loop := monitor.New(cfg, mgr, state.NewStore(cfg.StateFile))
	loop.Stats = stats

	var hist *history.Store
	if cfg.EnableHistory {
		gdb, err := db.Open(cfg.HistoryDB)
		if err != nil {
			log.Fatalf("history db: %v", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			log.Fatalf("history db: %v", err)
		}
		defer sqlDB.Close()

		hist = history.NewStore(gdb)
		loop.Hist = hist

		worker := history.NewWorker(gdb, loop.SendTo)
		go func() { _ = worker.Run(ctx) }()

		go cleanup.NewWorker(gdb, cfg.HistoryRetention).Run(ctx)
	}

	if cfg.EnableMetrics {
		rdb, err := metrics.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping: %v", err)
		}
		cancel()
		defer rdb.Close()
		loop.Recorder = metrics.NewRedisRecorder(rdb)
	}

	geoip, err := enrich.NewGeoIP(cfg.GeoIPCityMMDB, cfg.GeoIPASNMMDB)
	if err != nil {
		log.Fatalf("geoip: %v", err)
	}
	if geoip != nil {
		defer geoip.Close()
		loop.Geo = geoip
	}

	var srv *http.Server
	srvErr := make(chan error, 1)
	if cfg.EnableAPI {
		srv = httpserver.New(cfg, loop, mgr, stats, hist, loop.Recorder)
		go func() { srvErr <- srv.ListenAndServe() }()
		log.Printf("http listening on %s", cfg.HTTPAddr)
	}

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Printf("shutdown requested")
		<-loopErr
	case err := <-loopErr:
		if err != nil {
			log.Fatalf("monitor: %v", err)
		}
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}
}
