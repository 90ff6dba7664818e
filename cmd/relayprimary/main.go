// aerolink-relayprimary runs the drone-side relay bridge half of C9:
// it overhears long-range traffic on the drone's own frequency and,
// when the direct link looks weak or relaying is requested, forwards
// the frame across the inter-module serial link (C8) to the
// ground-side relaysecondary unit.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Alexishere01/aerolink/internal/adminapi"
	"github.com/Alexishere01/aerolink/internal/classify"
	"github.com/Alexishere01/aerolink/internal/config"
	"github.com/Alexishere01/aerolink/internal/frame"
	"github.com/Alexishere01/aerolink/internal/hostbridge"
	"github.com/Alexishere01/aerolink/internal/interlink"
	"github.com/Alexishere01/aerolink/internal/metrics"
	"github.com/Alexishere01/aerolink/internal/radio"
	"github.com/Alexishere01/aerolink/internal/relay"
	"github.com/Alexishere01/aerolink/internal/scheduler"
	"github.com/Alexishere01/aerolink/internal/telemetry"
	"github.com/Alexishere01/aerolink/internal/watchdog"
	"github.com/Alexishere01/aerolink/pkg/utils"
)

var (
	version = "0.1.0"

	httpPort    = flag.Int("http-port", 8082, "admin/telemetry HTTP port")
	configFile  = flag.String("config", "configs/config.yaml", "configuration file path")
	serialPort  = flag.String("serial-port", "", "inter-module serial port device (overrides config)")
	adminSecret = flag.String("admin-secret", "", "HS256 secret gating the admin API (required outside -sim)")
	simMode     = flag.Bool("sim", true, "simulation mode (mock radio, no real serial port)")
)

// RelayPrimary overhears the drone's own long-range traffic and
// forwards qualifying frames to the secondary unit over C8.
type RelayPrimary struct {
	cfg config.Config
	log *logrus.Logger

	overhearRadio radio.Radio
	classifier    *classify.Classifier
	overhearRecv  *scheduler.Receiver
	overhearStats *scheduler.Stats

	serialPort *interlink.Port
	upstream   *relay.Upstream

	watchdogs *watchdog.Set

	opLog      *hostbridge.Log
	streamer   *telemetry.Streamer
	metrics    *metrics.Registry
	promReg    *prometheus.Registry
	admin      *adminapi.Server
	httpServer *http.Server
}

func main() {
	flag.Parse()
	printBanner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	r := &RelayPrimary{}
	if err := r.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize relay primary: %v\n", err)
		os.Exit(1)
	}
	r.Start(ctx)

	r.log.Info("relay primary operational")
	<-sigChan
	r.log.Info("shutdown signal received")
	r.Shutdown()
	r.log.Info("relay primary shutdown complete")
}

func (r *RelayPrimary) Initialize() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		cfg = config.Default()
	}
	r.cfg = cfg
	r.cfg.NodeID = frame.NodeRelay

	r.log = utils.NewLogger(cfg.LogLevel, "stdout")
	r.log.Info("initializing relay primary")

	r.classifier = classify.New()
	r.overhearRadio = radio.NewMock()
	r.overhearStats = &scheduler.Stats{}
	r.overhearRecv = scheduler.NewReceiver(r.overhearRadio, r.classifier, r.cfg.NodeID, r.log, r.overhearStats)

	if *serialPort != "" {
		r.cfg.SerialPort = *serialPort
	}
	if !*simMode && r.cfg.SerialPort != "" {
		port, err := interlink.OpenPort(r.cfg.SerialPort, r.cfg.BaudRate)
		if err != nil {
			return fmt.Errorf("relayprimary: failed to open serial port: %w", err)
		}
		r.serialPort = port
	}

	threshold := r.cfg.Relay.RSSIThreshold
	if threshold == 0 {
		threshold = relay.DefaultRSSIThreshold
	}
	r.upstream = relay.NewUpstream(threshold, r.cfg.Relay.AlwaysRelay, r.forwardOverSerial, r.log)
	r.overhearRecv.SetRelayHandoff(r.upstream.HandleOverheard)

	r.watchdogs = watchdog.NewSet(r.log, time.Now())

	r.opLog = hostbridge.NewLog(32 * 1024)
	r.streamer = telemetry.NewStreamer(r.log)
	r.promReg = prometheus.NewRegistry()
	r.metrics = metrics.NewRegistry(r.promReg)

	secret := []byte(*adminSecret)
	if len(secret) == 0 {
		if !*simMode {
			return fmt.Errorf("relayprimary: -admin-secret is required outside -sim")
		}
		secret = []byte("sim-mode-insecure-secret")
	}
	r.admin = adminapi.New(secret, r.log, r.opLog, r.statsSnapshot, func() string { return r.upstream.Mode().String() })

	return nil
}

// forwardOverSerial is the relay.Forwarder passed to the Upstream
// orchestrator: it frames f for the inter-module serial link and
// writes it to the secondary unit.
func (r *RelayPrimary) forwardOverSerial(f frame.Frame) error {
	r.watchdogs.Relay.UpdateActivity(time.Now())
	if r.serialPort == nil {
		return nil // sim mode: nothing physically attached to forward over
	}
	return r.serialPort.WriteFrame(f.Src, f.Dest, f.Payload)
}

func (r *RelayPrimary) Start(ctx context.Context) {
	params := radio.DefaultParams(r.cfg.LongRange.FrequencyHz, r.cfg.LongRange.SyncWord)
	_ = r.overhearRadio.Init(params)
	_ = r.overhearRadio.SetCRC(true)
	_ = r.overhearRadio.StartReceive()

	go r.overhearLoop(ctx)
	go r.telemetryLoop(ctx)
	r.startHTTPServer()
}

func (r *RelayPrimary) overhearLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			r.overhearRecv.Process()
			r.upstream.Watchdog(now)
		}
	}
}

func (r *RelayPrimary) telemetryLoop(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mode := r.upstream.Mode().String()
			if mode == "relay" {
				r.metrics.RelayModeActive.Set(1)
			} else {
				r.metrics.RelayModeActive.Set(0)
			}
			r.streamer.Publish(telemetry.Snapshot{
				Timestamp: time.Now(),
				RelayMode: mode,
			})
		}
	}
}

func (r *RelayPrimary) statsSnapshot() map[string]any {
	return map[string]any{
		"upstream": r.upstream.Stats,
		"overhear": *r.overhearStats,
		"mode":     r.upstream.Mode().String(),
	}
}

func (r *RelayPrimary) startHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/", r.admin.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(r.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws/telemetry", r.streamer.HandleWebSocket)

	r.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", *httpPort), Handler: mux}
	go func() {
		r.log.WithField("port", *httpPort).Info("relay primary HTTP surface listening")
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.log.WithError(err).Error("HTTP server error")
		}
	}()
}

func (r *RelayPrimary) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if r.httpServer != nil {
		_ = r.httpServer.Shutdown(shutdownCtx)
	}
	if r.serialPort != nil {
		_ = r.serialPort.Close()
	}
}

func printBanner() {
	fmt.Println(`
aerolink-relayprimary ` + version + `
drone-side relay bridge: overhear F1, forward over C8`)
}
