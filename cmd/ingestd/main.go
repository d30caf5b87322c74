// ingestd — cardiac biosignal ingestion & inference daemon.
//
// Subscribes to the org/{org}/device/{dev}/session/{sid}/{meta,pcg,ecg,
// heartbeat} MQTT topic grammar, buffers PCG and ECG streams per
// session, and on stream end (or timeout, or duration cap) runs the
// cardiac models and persists the results.
//
// Usage:
//
//	ingestd [-verbose] [-quiet]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardiosense/ingest/internal/broker"
	cfgpkg "github.com/cardiosense/ingest/internal/config"
	"github.com/cardiosense/ingest/internal/gateway"
	"github.com/cardiosense/ingest/internal/inference"
	"github.com/cardiosense/ingest/internal/logger"
	"github.com/cardiosense/ingest/internal/session"
	"github.com/cardiosense/ingest/internal/telemetry"
	"github.com/cardiosense/ingest/internal/topic"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".ingestd-logs/ingestd.log", "file to write logs to (use \"stderr\" to log to console)")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		if dir := filepath.Dir(*logFile); dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	cfg, err := cfgpkg.Loader{Lookup: os.LookupEnv}.Load()
	if err != nil {
		log.Error("config: %v", err)
		os.Exit(1)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	gw, closeGateway, err := buildGateway(cfg, log)
	if err != nil {
		log.Error("gateway: %v", err)
		os.Exit(1)
	}
	if closeGateway != nil {
		defer closeGateway()
	}

	engineCfg := inference.DefaultConfig()
	engineCfg.PCGModelPath = cfg.PCGModelPath
	engineCfg.SeverityModelPath = cfg.SeverityModelPath
	engineCfg.ECGModelPath = cfg.ECGModelPath
	engineCfg.OnnxRuntimeLib = cfg.OnnxRuntimeLib
	engineCfg.EnableDemoMode = cfg.EnableDemoMode
	engineCfg.PCGFeatureConfig.SampleRate = float64(cfg.PCGSampleRate)
	engineCfg.PCGFeatureConfig.TargetDuration = cfg.PCGTargetDuration.Seconds()
	engineCfg.ECGWindowConfig.SampleRate = float64(cfg.ECGSampleRate)
	engineCfg.ECGWindowConfig.WindowSize = cfg.ECGWindowSize

	engine, err := inference.NewEngine(engineCfg, log)
	if err != nil {
		log.Error("inference: %v", err)
		os.Exit(1)
	}
	defer engine.Close()
	engine.SetMetrics(metrics)
	metrics.SetDemoModeActive(engine.DemoModeActive)

	sessCfg := session.Config{
		PCGMaxDuration:  cfg.PCGMaxDuration,
		ECGMaxDuration:  cfg.ECGMaxDuration,
		StreamTimeout:   cfg.StreamTimeout,
		SweepInterval:   5 * time.Second,
		MetricsUpdateHz: cfg.MetricsUpdateHz,
	}
	orch := session.New(sessCfg, gw, engine, log)
	router := topic.NewRouter(orch, log)

	brokerCfg := broker.Config{
		Broker:    cfg.MQTTBroker,
		Port:      cfg.MQTTPort,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		ClientID:  cfg.MQTTClientID,
		Keepalive: cfg.MQTTKeepalive,
	}
	client := broker.New(brokerCfg, router.Handle, log)
	if err := client.Connect(10 * time.Second); err != nil {
		log.Error("broker: connect failed: %v", err)
		os.Exit(1)
	}
	metrics.SetBrokerConnected(true)

	ctx, cancel := context.WithCancel(context.Background())
	supervisor := session.NewSupervisor(orch, sessCfg, gw, log, metrics)
	supervisor.Start(ctx)

	log.Info("ingestd started (broker=%s:%d, demo_mode=%v)", cfg.MQTTBroker, cfg.MQTTPort, engine.DemoModeActive)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("ingestd shutting down")
	cancel()
	supervisor.Stop()
	client.Disconnect(250)
	metrics.SetBrokerConnected(false)

	// Bounded grace period to drain in-flight finalizations, per
	// spec.md §5's shutdown discipline: drain with a deadline, then
	// abandon the rest rather than block forever.
	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("ingestd: shutdown grace period elapsed with finalizations still in flight")
	}
}

// buildGateway selects the persistence backend named by
// GATEWAY_DRIVER. Returns an optional close func for drivers that hold
// a live handle (sqlite).
func buildGateway(cfg cfgpkg.Config, log *logger.Logger) (gateway.Gateway, func(), error) {
	switch cfg.GatewayDriver {
	case "sqlite":
		db, err := gateway.OpenSQLite(cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	default:
		return gateway.NewMemory(log), nil, nil
	}
}
