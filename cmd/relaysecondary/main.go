// aerolink-relaysecondary runs the ground-side relay bridge half of
// C9: it receives frames from the primary unit over the inter-module
// serial link (C8), retransmits them to the ground station on its own
// long-range radio (F2), and forwards anything it hears back on F2
// from the ground station back to the primary over C8.
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
	"github.com/Alexishere01/aerolink/internal/queue"
	"github.com/Alexishere01/aerolink/internal/radio"
	"github.com/Alexishere01/aerolink/internal/relay"
	"github.com/Alexishere01/aerolink/internal/scheduler"
	"github.com/Alexishere01/aerolink/internal/telemetry"
	"github.com/Alexishere01/aerolink/internal/watchdog"
	"github.com/Alexishere01/aerolink/pkg/utils"
)

var (
	version = "0.1.0"

	httpPort    = flag.Int("http-port", 8083, "admin/telemetry HTTP port")
	configFile  = flag.String("config", "configs/config.yaml", "configuration file path")
	serialPort  = flag.String("serial-port", "", "inter-module serial port device (overrides config)")
	adminSecret = flag.String("admin-secret", "", "HS256 secret gating the admin API (required outside -sim)")
	simMode     = flag.Bool("sim", true, "simulation mode (mock radio, no real serial port)")
)

// RelaySecondary bridges the inter-module serial link (C8) and its
// own long-range radio (F2) on the ground side of C9.
type RelaySecondary struct {
	cfg config.Config
	log *logrus.Logger

	farRadio   radio.Radio
	classifier *classify.Classifier
	farSched   *scheduler.Scheduler
	farRecv    *scheduler.Receiver

	serialPort      *interlink.Port
	serialReceiver  *interlink.Receiver
	downstream      *relay.Downstream

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

	s := &RelaySecondary{}
	if err := s.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize relay secondary: %v\n", err)
		os.Exit(1)
	}
	s.Start(ctx)

	s.log.Info("relay secondary operational")
	<-sigChan
	s.log.Info("shutdown signal received")
	s.Shutdown()
	s.log.Info("relay secondary shutdown complete")
}

func (s *RelaySecondary) Initialize() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		cfg = config.Default()
	}
	s.cfg = cfg
	s.cfg.NodeID = frame.NodeRelay

	s.log = utils.NewLogger(cfg.LogLevel, "stdout")
	s.log.Info("initializing relay secondary")

	s.classifier = classify.New()
	s.farRadio = radio.NewMock()
	tiered := queue.NewTiered()
	s.farSched = scheduler.New(s.farRadio, tiered, s.classifier, s.cfg.NodeID, s.log)
	s.farRecv = scheduler.NewReceiver(s.farRadio, s.classifier, s.cfg.NodeID, s.log, &s.farSched.Stats)

	s.serialReceiver = interlink.NewReceiver()
	if *serialPort != "" {
		s.cfg.SerialPort = *serialPort
	}
	if !*simMode && s.cfg.SerialPort != "" {
		port, err := interlink.OpenPort(s.cfg.SerialPort, s.cfg.BaudRate)
		if err != nil {
			return fmt.Errorf("relaysecondary: failed to open serial port: %w", err)
		}
		s.serialPort = port
	}

	s.downstream = relay.NewDownstream(s.enqueueForTransmit, s.forwardToPrimary)
	s.farRecv.SetRelayHandoff(func(f frame.Frame, _ float64) {
		_ = s.downstream.HandleFromFarEndpoint(f)
	})

	s.watchdogs = watchdog.NewSet(s.log, time.Now())

	s.opLog = hostbridge.NewLog(32 * 1024)
	s.streamer = telemetry.NewStreamer(s.log)
	s.promReg = prometheus.NewRegistry()
	s.metrics = metrics.NewRegistry(s.promReg)

	secret := []byte(*adminSecret)
	if len(secret) == 0 {
		if !*simMode {
			return fmt.Errorf("relaysecondary: -admin-secret is required outside -sim")
		}
		secret = []byte("sim-mode-insecure-secret")
	}
	s.admin = adminapi.New(secret, s.log, s.opLog, s.statsSnapshot, func() string { return "relay" })

	return nil
}

// enqueueForTransmit is the relay.Downstream callback for frames
// arriving from the primary over C8: hand them to the F2 scheduler.
func (s *RelaySecondary) enqueueForTransmit(f frame.Frame) error {
	tier := classify.TierRoutine
	if fields, err := frame.ExtractMAVLinkFields(f.Payload); err == nil {
		tier = classify.TierOf(fields.MsgID)
	}
	return s.farSched.Enqueue(queue.Packet{
		Payload:     f.Payload,
		Dest:        f.Dest,
		Priority:    tier,
		EnqueueTime: time.Now(),
	})
}

// forwardToPrimary is the relay.Downstream callback for frames heard
// on F2 from the far endpoint: write them back to the primary over C8.
func (s *RelaySecondary) forwardToPrimary(f frame.Frame) error {
	s.watchdogs.Relay.UpdateActivity(time.Now())
	if s.serialPort == nil {
		return nil // sim mode: nothing physically attached
	}
	return s.serialPort.WriteFrame(f.Src, f.Dest, f.Payload)
}

func (s *RelaySecondary) Start(ctx context.Context) {
	freq := s.cfg.Relay.FrequencyHz
	if freq == 0 {
		freq = s.cfg.LongRange.FrequencyHz
	}
	params := radio.DefaultParams(freq, s.cfg.LongRange.SyncWord)
	_ = s.farRadio.Init(params)
	_ = s.farRadio.SetCRC(true)
	_ = s.farRadio.StartReceive()

	go s.farLoop(ctx)
	go s.serialLoop(ctx)
	go s.telemetryLoop(ctx)
	s.startHTTPServer()
}

func (s *RelaySecondary) farLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.farRecv.Process()
			s.farSched.Step()
		}
	}
}

// serialLoop drives the real port's blocking read loop when attached;
// in simulation mode there is nothing to read from, so it idles.
func (s *RelaySecondary) serialLoop(ctx context.Context) {
	if s.serialPort == nil {
		<-ctx.Done()
		return
	}
	for ctx.Err() == nil {
		err := s.serialPort.ReadLoop(s.serialReceiver, 500*time.Millisecond, func(f interlink.Frame) {
			s.watchdogs.Serial.UpdateActivity(time.Now())
			_ = s.downstream.HandleFromPrimary(f)
		})
		if err != nil {
			s.log.WithError(err).Warn("serial read loop ended, retrying")
			time.Sleep(time.Second)
		}
	}
}

func (s *RelaySecondary) telemetryLoop(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.streamer.Publish(telemetry.Snapshot{
				Timestamp:   time.Now(),
				RollingRSSI: s.farSched.AverageRSSI(),
				RollingSNR:  s.farSched.AverageSNR(),
				RelayMode:   "relay",
			})
		}
	}
}

func (s *RelaySecondary) statsSnapshot() map[string]any {
	return map[string]any{
		"scheduler":  s.farSched.Stats,
		"downstream": s.downstream.Stats,
		"serial":     s.serialReceiver.Stats,
	}
}

func (s *RelaySecondary) startHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/", s.admin.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws/telemetry", s.streamer.HandleWebSocket)

	s.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", *httpPort), Handler: mux}
	go func() {
		s.log.WithField("port", *httpPort).Info("relay secondary HTTP surface listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()
}

func (s *RelaySecondary) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(shutdownCtx)
	}
	if s.serialPort != nil {
		_ = s.serialPort.Close()
	}
}

func printBanner() {
	fmt.Println(`
aerolink-relaysecondary ` + version + `
ground-side relay bridge: C8 in, F2 out, F2 overheard back over C8`)
}
