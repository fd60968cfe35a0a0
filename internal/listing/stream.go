package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// StreamOptions configures the WebSocket push source.
type StreamOptions struct {
	Endpoint          string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
	Verbose           bool
}

// DefaultStreamOptions returns sensible stream defaults.
func DefaultStreamOptions(endpoint string) StreamOptions {
	return StreamOptions{
		Endpoint:          endpoint,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// StreamSource receives pushed listings over a WebSocket and buffers them
// until the next Harvest call drains the buffer. The read loop reconnects
// with exponential backoff on connection errors.
type StreamSource struct {
	opts StreamOptions

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	buf   []Listing
	bufMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// Compile-time interface check.
var _ Source = (*StreamSource)(nil)

// NewStreamSource connects to the push endpoint and starts the read loop.
func NewStreamSource(ctx context.Context, opts StreamOptions) (*StreamSource, error) {
	s := &StreamSource{
		opts: opts,
		done: make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

func (s *StreamSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.opts.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Harvest drains the buffered listings received since the previous call.
func (s *StreamSource) Harvest(_ context.Context) ([]Listing, error) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()

	out := s.buf
	s.buf = nil
	return out, nil
}

// Close shuts down the connection and read loop.
func (s *StreamSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *StreamSource) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.opts.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect(reconnectDelay) {
				return
			}
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.opts.MaxReconnectDelay {
				reconnectDelay = s.opts.MaxReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()
			continue
		}

		reconnectDelay = s.opts.ReconnectDelay
		s.handleMessage(message)
	}
}

// reconnect waits for the backoff delay then redials. Returns false when the
// source is shutting down.
func (s *StreamSource) reconnect(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		if s.opts.Verbose {
			log.Printf("[listing] reconnect failed: %v", err)
		}
	}
	return true
}

func (s *StreamSource) handleMessage(message []byte) {
	var l Listing
	if err := json.Unmarshal(message, &l); err != nil {
		if s.opts.Verbose {
			log.Printf("[listing] skip malformed message: %v", err)
		}
		return
	}
	if l.Address == "" || l.Blockchain == "" {
		return
	}

	s.bufMu.Lock()
	s.buf = append(s.buf, l)
	s.bufMu.Unlock()
}
