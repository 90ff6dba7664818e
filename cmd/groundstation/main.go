// aerolink-groundstation runs the ground-side dual-band node: the
// direct long-range radio (F1), the close-range link to a local
// operator console, and the host bridge that forwards decoded
// payloads to a ground-control application over stdio.
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
	"github.com/Alexishere01/aerolink/internal/closerange"
	"github.com/Alexishere01/aerolink/internal/config"
	"github.com/Alexishere01/aerolink/internal/coordinator"
	"github.com/Alexishere01/aerolink/internal/frame"
	"github.com/Alexishere01/aerolink/internal/hostbridge"
	"github.com/Alexishere01/aerolink/internal/metrics"
	"github.com/Alexishere01/aerolink/internal/queue"
	"github.com/Alexishere01/aerolink/internal/radio"
	"github.com/Alexishere01/aerolink/internal/relay"
	"github.com/Alexishere01/aerolink/internal/scheduler"
	"github.com/Alexishere01/aerolink/internal/telemetry"
	"github.com/Alexishere01/aerolink/pkg/utils"
)

var (
	version = "0.1.0"

	httpPort   = flag.Int("http-port", 8081, "admin/telemetry HTTP port")
	configFile = flag.String("config", "configs/config.yaml", "configuration file path")

	adminSecret = flag.String("admin-secret", "", "HS256 secret gating the admin API (required outside -sim)")
	simMode     = flag.Bool("sim", true, "simulation mode (mock radios, no real hardware)")
)

// Ground wires the dual-band coordinator, the direct/relay hysteresis
// controller, and the host bridge into one process.
type Ground struct {
	cfg config.Config
	log *logrus.Logger

	longRadio radio.Radio

	classifier *classify.Classifier
	longSched  *scheduler.Scheduler
	longRecv   *scheduler.Receiver
	closeXprt  *closerange.Transport
	coord      *coordinator.Coordinator
	ground     *relay.GroundController

	bridge *hostbridge.Bridge
	opLog  *hostbridge.Log

	streamer    *telemetry.Streamer
	metrics     *metrics.Registry
	metricsPrev metricsDeltas
	promReg     *prometheus.Registry
	admin       *adminapi.Server
	httpServer  *http.Server
}

// metricsDeltas tracks the last-seen value of each cumulative Stats
// counter mirrored into Prometheus, so publishSnapshot can Add the
// increase each tick instead of re-adding the full running total.
type metricsDeltas struct {
	espnowSent, loraSent      uint64
	espnowRecv, loraRecv      uint64
	droppedStale, droppedFull [3]uint64
	droppedBlacklisted        uint64
	duplicates                uint64
	channelBusy               uint64
	backoffEvents             uint64
	radioResets               uint64
}

func main() {
	flag.Parse()
	printBanner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	g := &Ground{}
	if err := g.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize ground station: %v\n", err)
		os.Exit(1)
	}
	g.Start(ctx)

	g.log.Info("ground station operational")
	<-sigChan
	g.log.Info("shutdown signal received")
	g.Shutdown()
	g.log.Info("ground station shutdown complete")
}

func (g *Ground) Initialize() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		cfg = config.Default()
	}
	g.cfg = cfg
	if cfg.NodeID == 0 {
		g.cfg.NodeID = 0 // NodeGround
	}

	g.log = utils.NewLogger(cfg.LogLevel, "stdout")
	g.log.WithField("node_id", g.cfg.NodeID).Info("initializing ground station")

	g.classifier = classify.New()
	for _, id := range cfg.Blacklist {
		g.classifier.Blacklist[id] = struct{}{}
	}
	for _, rl := range cfg.RateLimits {
		g.classifier.RateLimit.Set(rl.MessageID, rl.Interval)
	}

	g.longRadio = radio.NewMock()
	closeDriver := closerange.NewMockDriver()

	tiered := queue.NewTiered()
	g.longSched = scheduler.New(g.longRadio, tiered, g.classifier, g.cfg.NodeID, g.log)
	g.longRecv = scheduler.NewReceiver(g.longRadio, g.classifier, g.cfg.NodeID, g.log, &g.longSched.Stats)

	peerMAC, err := cfg.PeerHardwareAddr()
	if err != nil {
		return err
	}
	closeXprt, err := closerange.New(closeDriver, peerMAC)
	if err != nil {
		return fmt.Errorf("groundstation: failed to init close-range transport: %w", err)
	}
	g.closeXprt = closeXprt
	g.coord = coordinator.New(g.closeXprt, g.longSched, g.longRecv, g.classifier, g.cfg.NodeID, g.log)
	g.ground = relay.NewGroundController(g.log)

	g.opLog = hostbridge.NewLog(64 * 1024)
	g.bridge = hostbridge.New(os.Stdout, bridgeSender{g.coord}, frame.NodeDrone, g.opLog)

	g.streamer = telemetry.NewStreamer(g.log)
	g.promReg = prometheus.NewRegistry()
	g.metrics = metrics.NewRegistry(g.promReg)

	secret := []byte(*adminSecret)
	if len(secret) == 0 {
		if !*simMode {
			return fmt.Errorf("groundstation: -admin-secret is required outside -sim")
		}
		secret = []byte("sim-mode-insecure-secret")
	}
	g.admin = adminapi.New(secret, g.log, g.opLog, g.statsSnapshot, func() string { return g.ground.Mode().String() })

	return nil
}

// bridgeSender adapts the coordinator's Send method to hostbridge.Sender.
type bridgeSender struct {
	coord *coordinator.Coordinator
}

func (b bridgeSender) Send(payload []byte, dest byte) bool {
	return b.coord.Send(payload, dest)
}

func (g *Ground) Start(ctx context.Context) {
	params := radio.DefaultParams(g.cfg.LongRange.FrequencyHz, g.cfg.LongRange.SyncWord)
	_ = g.longRadio.Init(params)
	_ = g.longRadio.SetCRC(true)
	_ = g.longRadio.StartReceive()

	go g.dispatchLoop(ctx)
	go g.deliveryLoop(ctx)
	go g.telemetryLoop(ctx)
	go g.hostReadLoop()
	g.startHTTPServer()
}

// hostReadLoop reads MAVLink datagrams from the host application on
// stdin and forwards each complete one through the bridge.
func (g *Ground) hostReadLoop() {
	buf := make([]byte, 512)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			g.bridge.Feed(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (g *Ground) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			g.longRecv.Process()
			g.longSched.Step()
			g.coord.Process(now)
			g.ground.Tick(now)
		}
	}
}

// deliveryLoop drains the coordinator's receive path, notes F1 arrivals
// for the ground hysteresis, and forwards decoded payloads to the host.
func (g *Ground) deliveryLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, ok := g.coord.Receive()
			if !ok {
				continue
			}
			g.ground.NoteF1Packet(time.Now())
			if err := g.bridge.DeliverToHost(payload); err != nil {
				g.log.WithError(err).Warn("failed to deliver payload to host")
			}
		}
	}
}

func (g *Ground) telemetryLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.publishSnapshot()
		}
	}
}

func (g *Ground) publishSnapshot() {
	stats := g.coord.Stats
	sched := g.longSched.Stats
	var depth [3]int
	for t := classify.TierCritical; t <= classify.TierRoutine; t++ {
		depth[t] = g.longSched.QueueDepth(t)
		g.metrics.QueueDepth.WithLabelValues(t.String()).Set(float64(depth[t]))
		metrics.AddDeltaLabel(g.metrics.DroppedStale, t.String(), &g.metricsPrev.droppedStale[t], sched.DroppedStale[t])
		metrics.AddDeltaLabel(g.metrics.DroppedFull, t.String(), &g.metricsPrev.droppedFull[t], sched.DroppedFull[t])
	}
	g.metrics.RollingRSSI.Set(g.longSched.AverageRSSI())
	g.metrics.RollingSNR.Set(g.longSched.AverageSNR())
	if g.ground.Mode().String() == "relay" {
		g.metrics.RelayModeActive.Set(1)
	} else {
		g.metrics.RelayModeActive.Set(0)
	}

	metrics.AddDeltaLabel(g.metrics.PacketsSent, "espnow", &g.metricsPrev.espnowSent, stats.ESPNowPacketsSent)
	metrics.AddDeltaLabel(g.metrics.PacketsSent, "lora", &g.metricsPrev.loraSent, stats.LoRaPacketsSent)
	metrics.AddDeltaLabel(g.metrics.PacketsReceived, "espnow", &g.metricsPrev.espnowRecv, stats.ESPNowPacketsReceived)
	metrics.AddDeltaLabel(g.metrics.PacketsReceived, "lora", &g.metricsPrev.loraRecv, stats.LoRaPacketsReceived)
	metrics.AddDelta(g.metrics.DroppedBlacklisted, &g.metricsPrev.droppedBlacklisted, sched.DroppedBlacklisted)
	metrics.AddDelta(g.metrics.DuplicatesDropped, &g.metricsPrev.duplicates, stats.DuplicatePacketsDropped)
	metrics.AddDelta(g.metrics.ChannelBusy, &g.metricsPrev.channelBusy, sched.ChannelBusyDetections)
	metrics.AddDelta(g.metrics.BackoffEvents, &g.metricsPrev.backoffEvents, sched.BackoffEvents)
	metrics.AddDelta(g.metrics.RadioResets, &g.metricsPrev.radioResets, g.longSched.RadioResets())

	g.streamer.Publish(telemetry.Snapshot{
		Timestamp:             time.Now(),
		QueueDepth:            depth,
		RollingRSSI:           g.longSched.AverageRSSI(),
		RollingSNR:            g.longSched.AverageSNR(),
		RelayMode:             g.ground.Mode().String(),
		PacketsSent:           stats.ESPNowPacketsSent + stats.LoRaPacketsSent,
		PacketsReceived:       stats.ESPNowPacketsReceived + stats.LoRaPacketsReceived,
		DuplicatesDropped:     stats.DuplicatePacketsDropped,
		ChannelBusyDetections: sched.ChannelBusyDetections,
		BackoffEvents:         sched.BackoffEvents,
		PeerUnreachableEvents: stats.ESPNowPeerUnreachable,
	})
}

func (g *Ground) statsSnapshot() map[string]any {
	return map[string]any{
		"coordinator": g.coord.Stats,
		"scheduler":   g.longSched.Stats,
		"ground_mode": g.ground.Mode().String(),
	}
}

func (g *Ground) startHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/", g.admin.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(g.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws/telemetry", g.streamer.HandleWebSocket)

	g.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", *httpPort), Handler: mux}
	go func() {
		g.log.WithField("port", *httpPort).Info("ground station HTTP surface listening")
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.log.WithError(err).Error("HTTP server error")
		}
	}()
}

func (g *Ground) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if g.httpServer != nil {
		_ = g.httpServer.Shutdown(shutdownCtx)
	}
}

func printBanner() {
	fmt.Println(`
aerolink-groundstation ` + version + `
ground-side dual-band node with direct/relay hysteresis`)
}
