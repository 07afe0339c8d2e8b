// Package luno is the boundary to the Luno exchange: the market stream that
// feeds the sequencer and the REST API used for trading.
package luno

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"xbt_book/internal/domain"
	"xbt_book/internal/feed"
	"xbt_book/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	streamMaxRetries  = 10
	streamReadTimeout = 60 * time.Second
	handshakeTimeout  = 10 * time.Second
)

// Credentials is the first frame sent on the stream.
type Credentials struct {
	APIKeyID     string `json:"api_key_id"`
	APIKeySecret string `json:"api_key_secret"`
}

// Stream keeps a websocket open to the market stream and pushes every decoded
// message to out in arrival order.
type Stream struct {
	url   string
	creds Credentials
	out   chan<- feed.Message

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewStream creates a stream for url (including the pair code).
func NewStream(url string, creds Credentials, out chan<- feed.Message) *Stream {
	return &Stream{
		url:     url,
		creds:   creds,
		out:     out,
		metrics: infra.GlobalMetrics,
		logger:  slog.Default().With("module", "luno_stream"),
	}
}

// Connect starts the connection loop with automatic reconnection.
func (s *Stream) Connect(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.connectionLoop(ctx)

	return nil
}

// connectionLoop handles connection and reconnection with exponential backoff
func (s *Stream) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Luno stream panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Luno connection loop stopped")
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			s.metrics.RecordError()
			s.logger.Warn("Luno connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)
			if !domain.IsRetriable(err) {
				s.logger.Error("Luno connection failed permanently, giving up", slog.Any("error", err))
				return
			}

			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > streamMaxRetries {
				s.logger.Error("Luno max retries exceeded, resetting counter")
				retryCount = 0
			}
			if !infra.Sleep(ctx, delay) {
				return
			}
			continue
		}

		retryCount = 0
		s.readLoop(ctx)
	}
}

// connect dials the stream and authenticates.
func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, s.url, make(http.Header))
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return domain.NewFatalNetworkError("luno dial", fmt.Errorf("%w: status %d", domain.ErrConnectionFailed, resp.StatusCode))
		}
		return domain.NewNetworkError("luno dial", fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err))
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.metrics.IncrementConnections()

	creds, err := json.Marshal(s.creds)
	if err != nil {
		s.closeConnection()
		return err
	}
	if err := s.threadSafeWrite(websocket.TextMessage, creds); err != nil {
		s.closeConnection()
		return fmt.Errorf("send credentials failed: %w", err)
	}

	s.logger.Info("Luno stream connected", slog.String("url", s.url))
	return nil
}

// threadSafeWrite sends a message to the connection in a thread-safe manner
func (s *Stream) threadSafeWrite(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return errors.New("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

// readLoop reads frames until the connection fails or is closed by Resync.
func (s *Stream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.closeConnection()
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Luno stream read error", slog.Any("error", err))
			}
			s.closeConnection()
			return
		}

		if !s.handleMessage(ctx, message) {
			return
		}
	}
}

// handleMessage decodes one frame and hands it to the sequencer. Delivery
// blocks: dropping a message would open a sequence gap. It reports false if
// ctx ended while waiting.
func (s *Stream) handleMessage(ctx context.Context, data []byte) bool {
	msg, err := feed.Decode(data)
	if err != nil {
		if !errors.Is(err, feed.ErrKeepAlive) {
			s.metrics.RecordError()
			s.logger.Warn("Luno message decode error", slog.Any("error", err))
		}
		return true
	}

	select {
	case s.out <- msg:
		return true
	case <-ctx.Done():
		s.closeConnection()
		return false
	}
}

// Resync drops the current connection. The connection loop dials again and
// the server starts the new session with a snapshot.
func (s *Stream) Resync() {
	s.logger.Info("Luno stream resync requested")
	s.closeConnection()
}

// closeConnection safely closes the WebSocket connection
func (s *Stream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.metrics.DecrementConnections()
	}
	s.connected = false
}

// Disconnect stops the connection loop and closes the connection.
func (s *Stream) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConnection()
	s.wg.Wait()
	s.logger.Info("Luno stream disconnected")
}

// IsConnected returns connection status
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}
