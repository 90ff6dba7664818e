// aerolink-drone runs the airborne dual-band node: a close-range
// link to the onboard companion computer plus the long-range CSMA/CA
// radio path, fused behind the dual-band coordinator (C7).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Alexishere01/aerolink/internal/adminapi"
	"github.com/Alexishere01/aerolink/internal/classify"
	"github.com/Alexishere01/aerolink/internal/closerange"
	"github.com/Alexishere01/aerolink/internal/config"
	"github.com/Alexishere01/aerolink/internal/coordinator"
	"github.com/Alexishere01/aerolink/internal/hostbridge"
	"github.com/Alexishere01/aerolink/internal/metrics"
	"github.com/Alexishere01/aerolink/internal/queue"
	"github.com/Alexishere01/aerolink/internal/radio"
	"github.com/Alexishere01/aerolink/internal/scheduler"
	"github.com/Alexishere01/aerolink/internal/telemetry"
	"github.com/Alexishere01/aerolink/internal/watchdog"
	"github.com/Alexishere01/aerolink/pkg/utils"
)

var (
	version = "0.1.0"

	httpPort    = flag.Int("http-port", 8080, "admin/telemetry HTTP port")
	configFile  = flag.String("config", "configs/config.yaml", "configuration file path")
	simMode     = flag.Bool("sim", true, "simulation mode (mock radios, no real hardware)")
	adminSecret = flag.String("admin-secret", "", "HS256 secret gating the admin API (required outside -sim)")
)

// Drone wires the dual-band coordinator and its surrounding ambient
// stack into a single long-running process, in the shape of
// cmd/valkyrie/main.go's Initialize/Start/Shutdown daemon.
type Drone struct {
	cfg config.Config
	log *logrus.Logger

	longRadio   radio.Radio
	closeDriver closerange.Driver

	classifier *classify.Classifier
	longSched  *scheduler.Scheduler
	longRecv   *scheduler.Receiver
	closeXprt  *closerange.Transport
	coord      *coordinator.Coordinator

	watchdogs *watchdog.Set

	opLog       *hostbridge.Log
	streamer    *telemetry.Streamer
	metrics     *metrics.Registry
	metricsPrev metricsDeltas
	promReg     *prometheus.Registry
	admin       *adminapi.Server
	httpServer  *http.Server

	mu  sync.Mutex
	ctx context.Context
}

// metricsDeltas tracks the last-seen value of each cumulative Stats
// counter mirrored into Prometheus, so publishSnapshot can Add the
// increase each tick instead of re-adding the full running total.
type metricsDeltas struct {
	espnowSent, loraSent uint64
	espnowRecv, loraRecv uint64
	droppedStale, droppedFull [3]uint64
	droppedBlacklisted uint64
	duplicates         uint64
	channelBusy        uint64
	backoffEvents      uint64
	radioResets        uint64
}

func main() {
	flag.Parse()
	printBanner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	d := &Drone{ctx: ctx}
	if err := d.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize drone node: %v\n", err)
		os.Exit(1)
	}
	d.Start(ctx)

	d.log.Info("drone node operational")
	<-sigChan
	d.log.Info("shutdown signal received")
	d.Shutdown()
	d.log.Info("drone node shutdown complete")
}

// Initialize loads configuration and constructs every subsystem, but
// starts nothing running yet.
func (d *Drone) Initialize() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		cfg = config.Default()
	}
	d.cfg = cfg
	if cfg.NodeID == 0 {
		d.cfg.NodeID = 1 // NodeDrone
	}

	d.log = utils.NewLogger(cfg.LogLevel, "stdout")
	d.log.WithField("node_id", d.cfg.NodeID).Info("initializing drone node")

	d.classifier = classify.New()
	for _, id := range cfg.Blacklist {
		d.classifier.Blacklist[id] = struct{}{}
	}
	for _, rl := range cfg.RateLimits {
		d.classifier.RateLimit.Set(rl.MessageID, rl.Interval)
	}

	// No real SX1262-class driver is available to this build; the
	// simulated deployment mode and the test suite share radio.Mock.
	d.longRadio = radio.NewMock()
	d.closeDriver = closerange.NewMockDriver()

	tiered := queue.NewTiered()
	d.longSched = scheduler.New(d.longRadio, tiered, d.classifier, d.cfg.NodeID, d.log)
	d.longRecv = scheduler.NewReceiver(d.longRadio, d.classifier, d.cfg.NodeID, d.log, &d.longSched.Stats)

	peerMAC, err := cfg.PeerHardwareAddr()
	if err != nil {
		return err
	}
	closeXprt, err := closerange.New(d.closeDriver, peerMAC)
	if err != nil {
		return fmt.Errorf("drone: failed to init close-range transport: %w", err)
	}
	d.closeXprt = closeXprt

	d.coord = coordinator.New(d.closeXprt, d.longSched, d.longRecv, d.classifier, d.cfg.NodeID, d.log)

	d.watchdogs = watchdog.NewSet(d.log, time.Now())

	d.opLog = hostbridge.NewLog(64 * 1024)
	d.streamer = telemetry.NewStreamer(d.log)

	d.promReg = prometheus.NewRegistry()
	d.metrics = metrics.NewRegistry(d.promReg)

	secret := []byte(*adminSecret)
	if len(secret) == 0 {
		if !*simMode {
			return fmt.Errorf("drone: -admin-secret is required outside -sim")
		}
		secret = []byte("sim-mode-insecure-secret")
	}
	d.admin = adminapi.New(secret, d.log, d.opLog, d.statsSnapshot, func() string { return "direct" })

	return nil
}

// Start brings every subsystem online: radio init, the dispatch
// loops, and the HTTP surface.
func (d *Drone) Start(ctx context.Context) {
	params := radio.DefaultParams(d.cfg.LongRange.FrequencyHz, d.cfg.LongRange.SyncWord)
	_ = d.longRadio.Init(params)
	_ = d.longRadio.SetCRC(true)
	_ = d.longRadio.StartReceive()

	go d.dispatchLoop(ctx)
	go d.telemetryLoop(ctx)
	d.startHTTPServer()
}

func (d *Drone) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			d.longRecv.Process()
			d.longSched.Step()
			d.coord.Process(now)
			if d.watchdogs.Peer.Check(now) {
				d.metrics.PeerUnreachable.Inc()
			}
		}
	}
}

func (d *Drone) telemetryLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.publishSnapshot()
		}
	}
}

func (d *Drone) publishSnapshot() {
	stats := d.coord.Stats
	sched := d.longSched.Stats
	d.metrics.RollingRSSI.Set(d.longSched.AverageRSSI())
	d.metrics.RollingSNR.Set(d.longSched.AverageSNR())

	var depth [3]int
	for t := classify.TierCritical; t <= classify.TierRoutine; t++ {
		depth[t] = d.longSched.QueueDepth(t)
		d.metrics.QueueDepth.WithLabelValues(t.String()).Set(float64(depth[t]))
		metrics.AddDeltaLabel(d.metrics.DroppedStale, t.String(), &d.metricsPrev.droppedStale[t], sched.DroppedStale[t])
		metrics.AddDeltaLabel(d.metrics.DroppedFull, t.String(), &d.metricsPrev.droppedFull[t], sched.DroppedFull[t])
	}

	metrics.AddDeltaLabel(d.metrics.PacketsSent, "espnow", &d.metricsPrev.espnowSent, stats.ESPNowPacketsSent)
	metrics.AddDeltaLabel(d.metrics.PacketsSent, "lora", &d.metricsPrev.loraSent, stats.LoRaPacketsSent)
	metrics.AddDeltaLabel(d.metrics.PacketsReceived, "espnow", &d.metricsPrev.espnowRecv, stats.ESPNowPacketsReceived)
	metrics.AddDeltaLabel(d.metrics.PacketsReceived, "lora", &d.metricsPrev.loraRecv, stats.LoRaPacketsReceived)
	metrics.AddDelta(d.metrics.DroppedBlacklisted, &d.metricsPrev.droppedBlacklisted, sched.DroppedBlacklisted)
	metrics.AddDelta(d.metrics.DuplicatesDropped, &d.metricsPrev.duplicates, stats.DuplicatePacketsDropped)
	metrics.AddDelta(d.metrics.ChannelBusy, &d.metricsPrev.channelBusy, sched.ChannelBusyDetections)
	metrics.AddDelta(d.metrics.BackoffEvents, &d.metricsPrev.backoffEvents, sched.BackoffEvents)
	metrics.AddDelta(d.metrics.RadioResets, &d.metricsPrev.radioResets, d.longSched.RadioResets())

	snap := telemetry.Snapshot{
		Timestamp:             time.Now(),
		QueueDepth:            depth,
		RollingRSSI:           d.longSched.AverageRSSI(),
		RollingSNR:            d.longSched.AverageSNR(),
		RelayMode:             "direct",
		PacketsSent:           stats.ESPNowPacketsSent + stats.LoRaPacketsSent,
		PacketsReceived:       stats.ESPNowPacketsReceived + stats.LoRaPacketsReceived,
		DuplicatesDropped:     stats.DuplicatePacketsDropped,
		ChannelBusyDetections: sched.ChannelBusyDetections,
		BackoffEvents:         sched.BackoffEvents,
		PeerUnreachableEvents: stats.ESPNowPeerUnreachable,
	}
	d.streamer.Publish(snap)
}

func (d *Drone) statsSnapshot() map[string]any {
	return map[string]any{
		"coordinator": d.coord.Stats,
		"scheduler":   d.longSched.Stats,
		"closerange":  d.closeXprt.Stats,
	}
}

func (d *Drone) startHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/", d.admin.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(d.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws/telemetry", d.streamer.HandleWebSocket)

	d.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", *httpPort), Handler: mux}
	go func() {
		d.log.WithField("port", *httpPort).Info("drone HTTP surface listening")
		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.WithError(err).Error("HTTP server error")
		}
	}()
}

// Shutdown stops the HTTP server and lets the dispatch/telemetry
// loops exit via the cancelled context.
func (d *Drone) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if d.httpServer != nil {
		_ = d.httpServer.Shutdown(shutdownCtx)
	}
}

func printBanner() {
	fmt.Println(`
aerolink-drone ` + version + `
dual-band airborne node: close-range + long-range CSMA/CA`)
}
