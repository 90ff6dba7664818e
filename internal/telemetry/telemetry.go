// Package telemetry broadcasts the transport's statistics snapshot to
// connected operator dashboards over WebSocket. Adapted from
// internal/livefeed's LiveFeedStreamer: same client-registry and
// broadcast-channel shape, retargeted from flight telemetry to the
// §3 statistics snapshot this transport core actually owns.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Snapshot is the operator-facing view of transport state: queue
// depths, RSSI/SNR, relay mode, dedup counts, per §3.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	QueueDepth   [3]int `json:"queue_depth"`
	RollingRSSI  float64 `json:"rolling_rssi"`
	RollingSNR   float64 `json:"rolling_snr"`

	RelayMode string `json:"relay_mode"`

	PacketsSent           uint64 `json:"packets_sent"`
	PacketsReceived       uint64 `json:"packets_received"`
	DroppedStale          uint64 `json:"dropped_stale"`
	DroppedFull           uint64 `json:"dropped_full"`
	DuplicatesDropped     uint64 `json:"duplicates_dropped"`
	ChannelBusyDetections uint64 `json:"channel_busy_detections"`
	BackoffEvents         uint64 `json:"backoff_events"`
	RadioResets           uint64 `json:"radio_resets"`
	PeerUnreachableEvents uint64 `json:"peer_unreachable_events"`
}

// Streamer broadcasts Snapshots to connected WebSocket clients.
type Streamer struct {
	mu        sync.RWMutex
	clients   map[*client]bool
	broadcast chan Snapshot

	upgrader websocket.Upgrader
	logger   *logrus.Logger

	messagesSent  uint64
	clientsServed uint64
}

type client struct {
	conn *websocket.Conn
	send chan Snapshot
	id   string
}

// NewStreamer constructs a Streamer ready to accept WebSocket upgrades.
func NewStreamer(logger *logrus.Logger) *Streamer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Streamer{
		clients:   make(map[*client]bool),
		broadcast: make(chan Snapshot, 100),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleWebSocket upgrades an HTTP request to a WebSocket connection
// and registers it as a telemetry client.
func (s *Streamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("failed to upgrade websocket")
		return
	}

	c := &client{conn: conn, send: make(chan Snapshot, 50), id: r.RemoteAddr}
	s.register(c)
	s.logger.WithField("client", c.id).Info("telemetry client connected")

	ctx, cancel := context.WithCancel(context.Background())
	go s.writePump(ctx, c)
	go s.readPump(ctx, cancel, c)
}

func (s *Streamer) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = true
	s.clientsServed++
}

func (s *Streamer) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
		s.logger.WithField("client", c.id).Info("telemetry client disconnected")
	}
}

// Publish enqueues a snapshot for broadcast, dropping the oldest
// queued snapshot if the broadcast channel is full.
func (s *Streamer) Publish(snap Snapshot) {
	select {
	case s.broadcast <- snap:
	default:
		select {
		case <-s.broadcast:
		default:
		}
		s.broadcast <- snap
	}
}

// Run drives the broadcast loop until ctx is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	s.logger.Info("telemetry streamer started")
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return ctx.Err()
		case snap := <-s.broadcast:
			s.sendToClients(snap)
		}
	}
}

func (s *Streamer) sendToClients(snap Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- snap:
			s.messagesSent++
		default:
		}
	}
}

func (s *Streamer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *Streamer) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Streamer) readPump(ctx context.Context, cancel context.CancelFunc, c *client) {
	defer func() {
		cancel()
		s.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Stats returns the current client count and cumulative send counts.
func (s *Streamer) Stats() (clients int, sent uint64, served uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), s.messagesSent, s.clientsServed
}
