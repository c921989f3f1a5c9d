package events

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breeze-rmm/monitor/internal/logging"
)

var log = logging.L("events")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
	queueSize      = 256
)

// Config holds shipper connection settings.
type Config struct {
	ServerURL  string
	EndpointID string
	AuthToken  string
}

// Shipper delivers transition events to the platform. Events queue in a
// bounded buffer; when the buffer is full the oldest event is dropped so the
// evaluation loop never blocks on a dead link. The connection reconnects
// with jittered exponential backoff.
type Shipper struct {
	config *Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	queue    chan []byte
	done     chan struct{}
	stopOnce sync.Once

	isRunning bool
	runningMu sync.RWMutex
}

// NewShipper creates a shipper. Call Start to begin delivery.
func NewShipper(cfg *Config) *Shipper {
	return &Shipper{
		config: cfg,
		queue:  make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

// Publish queues an event for delivery. Never blocks: on overflow the oldest
// queued event is discarded to make room.
func (s *Shipper) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error("failed to marshal event", "error", err)
		return
	}
	s.enqueue(data)
}

func (s *Shipper) enqueue(data []byte) {
	select {
	case s.queue <- data:
		return
	default:
	}
	// Queue full: drop the oldest entry and retry once.
	select {
	case <-s.queue:
		log.Warn("event queue full, dropping oldest event")
	default:
	}
	select {
	case s.queue <- data:
	default:
	}
}

// Start runs the delivery loop until Stop is called. Blocks; run in a
// goroutine.
func (s *Shipper) Start() {
	s.runningMu.Lock()
	if s.isRunning {
		s.runningMu.Unlock()
		return
	}
	s.isRunning = true
	s.runningMu.Unlock()

	s.reconnectLoop()
}

// Stop gracefully closes the connection.
func (s *Shipper) Stop() {
	s.stopOnce.Do(func() {
		s.runningMu.Lock()
		s.isRunning = false
		s.runningMu.Unlock()

		close(s.done)

		s.connMu.Lock()
		if s.conn != nil {
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			s.conn.Close()
			s.conn = nil
		}
		s.connMu.Unlock()

		log.Info("shipper stopped")
	})
}

func (s *Shipper) connect() error {
	wsURL, err := s.buildWSURL()
	if err != nil {
		return fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	conn.SetReadLimit(maxMessageSize)
	log.Info("connected", "server", s.config.ServerURL)
	return nil
}

func (s *Shipper) buildWSURL() (string, error) {
	serverURL, err := url.Parse(s.config.ServerURL)
	if err != nil {
		return "", err
	}

	switch serverURL.Scheme {
	case "https":
		serverURL.Scheme = "wss"
	case "http":
		serverURL.Scheme = "ws"
	}

	serverURL.Path = fmt.Sprintf("/api/v1/monitor-ws/%s/events", s.config.EndpointID)
	q := serverURL.Query()
	q.Set("token", s.config.AuthToken)
	serverURL.RawQuery = q.Encode()

	return serverURL.String(), nil
}

func (s *Shipper) reconnectLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.connect(); err != nil {
			log.Warn("connection failed", "error", err)

			jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
			sleep := backoff + jitter
			if sleep < 0 {
				sleep = backoff
			}

			log.Info("retrying", "delay", sleep)
			select {
			case <-s.done:
				return
			case <-time.After(sleep):
			}

			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff

		done := make(chan struct{})
		go s.writePump(done)
		s.readPump()
		close(done)

		s.runningMu.RLock()
		running := s.isRunning
		s.runningMu.RUnlock()
		if !running {
			return
		}
	}
}

// readPump drains server acknowledgments and detects a closed link.
func (s *Shipper) readPump() {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", "error", err)
			}
			return
		}
	}
}

func (s *Shipper) writePump(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-s.done:
			return

		case data := <-s.queue:
			s.connMu.RLock()
			conn := s.conn
			s.connMu.RUnlock()

			if conn == nil {
				// Link is down; requeue so the event survives the reconnect.
				s.enqueue(data)
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn("write error", "error", err)
				s.enqueue(data)
				return
			}

		case <-ticker.C:
			s.connMu.RLock()
			conn := s.conn
			s.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
