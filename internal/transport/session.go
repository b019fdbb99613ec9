package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultRetryDelay is the pause before each reconnection attempt.
const DefaultRetryDelay = 1500 * time.Millisecond

var (
	// ErrSessionClosed is returned once a session has been closed for good.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionStopped is returned by a dial that completed after the last
	// activity was stopped. The new connection is discarded.
	ErrSessionStopped = errors.New("session stopped")
)

// Status is the connection state reported to the status handler.
type Status uint8

const (
	StatusClosed Status = iota
	StatusConnecting
	StatusOpen
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	default:
		return "closed"
	}
}

// Activity is a consumer of the stream. The session stays logically active,
// and keeps reconnecting, while at least one activity is started.
type Activity uint8

const (
	ActivityAudio Activity = 1 << iota
	ActivityDigital
)

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// MessageHandler receives every inbound message. It is called from the
// connection's read goroutine and must not block for long.
type MessageHandler func(messageType int, payload []byte)

// StatusHandler is notified of connection state changes.
type StatusHandler func(Status)

// WithLogger sets the logger for the session
func WithLogger(logger *slog.Logger) func(s *Session) {
	return func(s *Session) {
		s.logger = logger.With(slog.String("component", "transport"))
	}
}

// WithDialer replaces the default websocket dialer
func WithDialer(d Dialer) func(s *Session) {
	return func(s *Session) {
		s.dialer = d
	}
}

// WithRetryDelay sets the pause before reconnecting
func WithRetryDelay(d time.Duration) func(s *Session) {
	return func(s *Session) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// WithMessageHandler sets the inbound message callback
func WithMessageHandler(h MessageHandler) func(s *Session) {
	return func(s *Session) {
		s.onMessage = h
	}
}

// WithStatusHandler sets the connection status callback
func WithStatusHandler(h StatusHandler) func(s *Session) {
	return func(s *Session) {
		s.onStatus = h
	}
}

// Session is a single websocket connection to the stream server with a
// fixed-delay reconnection policy: while active, every unexpected closure or
// failed dial schedules exactly one new attempt after the retry delay.
type Session struct {
	url        string
	dialer     Dialer
	retryDelay time.Duration
	onMessage  MessageHandler
	onStatus   StatusHandler
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conn   *websocket.Conn
	active Activity
	retry  *time.Timer
	status Status
	closed bool
	gen    uint64 // bumped whenever the connection is dropped on purpose
}

// NewSession creates a session for the given ws:// or wss:// URL. Nothing is
// dialed until Open or Start.
func NewSession(url string, options ...func(s *Session)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := Session{
		url:        url,
		dialer:     websocket.DefaultDialer,
		retryDelay: DefaultRetryDelay,
		onMessage:  func(int, []byte) {},
		onStatus:   func(Status) {},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:        ctx,
		cancel:     cancel,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Status returns the current connection state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Active reports the started activities.
func (s *Session) Active() Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Open dials the server unless a connection is already up. A failed dial of
// an active session schedules a retry.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	s.mu.Unlock()

	if err := s.dial(ctx, gen); err != nil {
		s.mu.Lock()
		if s.active != 0 && s.gen == gen {
			s.scheduleRetry()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Start marks an activity as running and makes sure the connection is open.
func (s *Session) Start(ctx context.Context, a Activity) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.active |= a
	pending := s.retry != nil
	s.mu.Unlock()

	if pending {
		return nil
	}
	return s.Open(ctx)
}

// Stop ends an activity. When none remain the pending retry, if any, is
// cancelled and the connection is closed.
func (s *Session) Stop(a Activity) {
	s.mu.Lock()
	s.active &^= a
	if s.active != 0 {
		s.mu.Unlock()
		return
	}

	s.gen++
	s.cancelRetry()
	conn := s.conn
	s.conn = nil
	changed := s.setStatus(StatusClosed)
	s.mu.Unlock()

	if conn != nil {
		s.closeConn(conn)
	}
	if changed {
		s.onStatus(StatusClosed)
	}
}

// Close stops all activities, closes the connection and waits for the read
// loop to exit. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.active = 0
	s.gen++
	s.cancelRetry()
	conn := s.conn
	s.conn = nil
	changed := s.setStatus(StatusClosed)
	s.mu.Unlock()

	s.cancel()

	var err error
	if conn != nil {
		err = s.closeConn(conn)
	}
	s.wg.Wait()

	if changed {
		s.onStatus(StatusClosed)
	}
	return err
}

// dial connects and installs the connection unless the session was stopped or
// closed since gen was read.
func (s *Session) dial(ctx context.Context, gen uint64) error {
	s.notify(StatusConnecting)

	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.logger.Warn("connection failed", slog.String("url", s.url), slog.String("error", err.Error()))
		s.notify(StatusClosed)
		return fmt.Errorf("dialing %s: %w", s.url, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrSessionClosed
	}
	if s.gen != gen {
		changed := s.conn == nil && s.setStatus(StatusClosed)
		s.mu.Unlock()
		s.closeConn(conn)

		s.logger.Debug("discarding connection of a stopped session", slog.String("url", s.url))
		if changed {
			s.onStatus(StatusClosed)
		}
		return ErrSessionStopped
	}
	prev := s.conn
	s.conn = conn
	s.wg.Add(1)
	s.mu.Unlock()

	if prev != nil {
		s.closeConn(prev)
	}

	s.logger.Info("connected", slog.String("url", s.url))
	s.notify(StatusOpen)

	go s.readLoop(conn)
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			s.handleClosure(conn, err)
			return
		}
		s.onMessage(messageType, payload)
	}
}

// handleClosure reacts to the end of a read loop. Closures of connections the
// session already dropped are ignored.
func (s *Session) handleClosure(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	_ = conn.Close()

	changed := s.setStatus(StatusClosed)
	reconnect := s.active != 0 && !s.closed
	if reconnect {
		s.scheduleRetry()
	}
	s.mu.Unlock()

	s.logger.Warn("connection lost", slog.String("error", err.Error()), slog.Bool("reconnect", reconnect))
	if changed {
		s.onStatus(StatusClosed)
	}
}

func (s *Session) reconnect() {
	s.mu.Lock()
	s.retry = nil
	if s.active == 0 || s.closed || s.conn != nil {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.mu.Unlock()

	if err := s.dial(s.ctx, gen); err != nil {
		s.mu.Lock()
		if s.active != 0 && !s.closed && s.gen == gen {
			s.scheduleRetry()
		}
		s.mu.Unlock()
	}
}

// scheduleRetry arms the retry timer unless one is pending. Callers hold mu.
func (s *Session) scheduleRetry() {
	if s.retry != nil {
		return
	}
	s.logger.Debug("scheduling reconnect", slog.Duration("delay", s.retryDelay))
	s.retry = time.AfterFunc(s.retryDelay, s.reconnect)
}

// cancelRetry disarms the retry timer. Callers hold mu.
func (s *Session) cancelRetry() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

// setStatus records a state and reports whether it changed. Callers hold mu.
func (s *Session) setStatus(status Status) bool {
	if s.status == status {
		return false
	}
	s.status = status
	return true
}

func (s *Session) notify(status Status) {
	s.mu.Lock()
	changed := s.setStatus(status)
	s.mu.Unlock()

	if changed {
		s.onStatus(status)
	}
}

func (s *Session) closeConn(conn *websocket.Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}
