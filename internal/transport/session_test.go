package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testRetryDelay = 20 * time.Millisecond

// streamServer accepts websocket connections and hands each one to serve.
type streamServer struct {
	*httptest.Server
	connects atomic.Int32
}

func newStreamServer(t *testing.T, serve func(n int32, conn *websocket.Conn)) *streamServer {
	t.Helper()

	s := &streamServer{}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(s.connects.Add(1), conn)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *streamServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// holdOpen keeps a connection up until the client goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func TestSession_Messages(t *testing.T) {
	srv := newStreamServer(t, func(_ int32, conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"spectrum"}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 0, 2, 0})
		holdOpen(conn)
	})

	var mu sync.Mutex
	var got []int
	s := NewSession(srv.wsURL(), WithMessageHandler(func(messageType int, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, messageType)
	}))
	defer s.Close()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	waitFor(t, "two messages", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0] != websocket.TextMessage || got[1] != websocket.BinaryMessage {
		t.Errorf("expected text then binary, got %v", got)
	}
}

func TestSession_ReconnectWhileActive(t *testing.T) {
	// the first connection is dropped by the server, later ones stay up
	srv := newStreamServer(t, func(n int32, conn *websocket.Conn) {
		if n == 1 {
			return
		}
		holdOpen(conn)
	})

	rec := &statusRecorder{}
	s := NewSession(srv.wsURL(), WithRetryDelay(testRetryDelay), WithStatusHandler(rec.record))
	defer s.Close()

	if err := s.Start(context.Background(), ActivityAudio); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, "reconnection", func() bool { return srv.connects.Load() == 2 })
	waitFor(t, "open status", func() bool { return s.Status() == StatusOpen })

	time.Sleep(5 * testRetryDelay)
	if n := srv.connects.Load(); n != 2 {
		t.Errorf("expected exactly one reconnection, got %d connections", n)
	}

	want := []Status{StatusConnecting, StatusOpen, StatusClosed, StatusConnecting, StatusOpen}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("status %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSession_NoReconnectWhenIdle(t *testing.T) {
	srv := newStreamServer(t, func(int32, *websocket.Conn) {})

	s := NewSession(srv.wsURL(), WithRetryDelay(testRetryDelay))
	defer s.Close()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	waitFor(t, "closure", func() bool { return s.Status() == StatusClosed })
	time.Sleep(5 * testRetryDelay)
	if n := srv.connects.Load(); n != 1 {
		t.Errorf("expected no reconnection without activity, got %d connections", n)
	}
}

type failingDialer struct {
	calls atomic.Int32
}

func (d *failingDialer) DialContext(context.Context, string, http.Header) (*websocket.Conn, *http.Response, error) {
	d.calls.Add(1)
	return nil, nil, errors.New("connection refused")
}

func TestSession_RetryUntilStopped(t *testing.T) {
	d := &failingDialer{}
	s := NewSession("ws://127.0.0.1:1/ws", WithDialer(d), WithRetryDelay(testRetryDelay))
	defer s.Close()

	if err := s.Start(context.Background(), ActivityDigital); err == nil {
		t.Fatal("expected the first dial to fail")
	}

	waitFor(t, "repeated retries", func() bool { return d.calls.Load() >= 3 })

	s.Stop(ActivityDigital)
	stopped := d.calls.Load()

	time.Sleep(5 * testRetryDelay)
	if n := d.calls.Load(); n > stopped+1 {
		t.Errorf("expected retries to stop, got %d dials after stop at %d", n, stopped)
	}
	if s.Active() != 0 {
		t.Errorf("expected no active activity, got %b", s.Active())
	}
}

// gatedDialer fails the first dial and holds later ones until the gate opens.
type gatedDialer struct {
	calls   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
}

func (d *gatedDialer) DialContext(ctx context.Context, url string, h http.Header) (*websocket.Conn, *http.Response, error) {
	if d.calls.Add(1) == 1 {
		return nil, nil, errors.New("connection refused")
	}
	d.entered <- struct{}{}
	<-d.gate
	return websocket.DefaultDialer.DialContext(ctx, url, h)
}

func TestSession_StopDuringReconnect(t *testing.T) {
	var released atomic.Int32
	srv := newStreamServer(t, func(_ int32, conn *websocket.Conn) {
		holdOpen(conn)
		released.Add(1)
	})

	d := &gatedDialer{entered: make(chan struct{}, 1), gate: make(chan struct{})}
	s := NewSession(srv.wsURL(), WithDialer(d), WithRetryDelay(testRetryDelay))
	defer s.Close()

	if err := s.Start(context.Background(), ActivityAudio); err == nil {
		t.Fatal("expected the first dial to fail")
	}

	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the reconnect dial")
	}

	s.Stop(ActivityAudio)
	close(d.gate)

	waitFor(t, "server connection", func() bool { return srv.connects.Load() == 1 })
	waitFor(t, "discarded connection", func() bool { return released.Load() == 1 })

	time.Sleep(5 * testRetryDelay)
	if s.Status() != StatusClosed {
		t.Errorf("expected closed status after stop, got %s", s.Status())
	}
	if n := d.calls.Load(); n != 2 {
		t.Errorf("expected no dials after stop, got %d in total", n)
	}
	if n := srv.connects.Load(); n != 1 {
		t.Errorf("expected a single server connection, got %d", n)
	}
}

func TestSession_StopKeepsOtherActivity(t *testing.T) {
	srv := newStreamServer(t, func(_ int32, conn *websocket.Conn) { holdOpen(conn) })

	s := NewSession(srv.wsURL(), WithRetryDelay(testRetryDelay))
	defer s.Close()

	ctx := context.Background()
	if err := s.Start(ctx, ActivityAudio); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx, ActivityDigital); err != nil {
		t.Fatal(err)
	}
	if n := srv.connects.Load(); n != 1 {
		t.Errorf("expected a single shared connection, got %d", n)
	}

	s.Stop(ActivityAudio)
	if s.Status() != StatusOpen {
		t.Errorf("expected connection to stay open for digital, got %s", s.Status())
	}

	s.Stop(ActivityDigital)
	if s.Status() != StatusClosed {
		t.Errorf("expected connection closed after the last stop, got %s", s.Status())
	}
}

func TestSession_Close(t *testing.T) {
	srv := newStreamServer(t, func(_ int32, conn *websocket.Conn) { holdOpen(conn) })

	s := NewSession(srv.wsURL())
	if err := s.Start(context.Background(), ActivityAudio); err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := s.Start(context.Background(), ActivityAudio); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if s.Status() != StatusClosed {
		t.Errorf("expected closed status, got %s", s.Status())
	}
}

func TestStatus_String(t *testing.T) {
	for status, want := range map[Status]string{
		StatusConnecting: "connecting",
		StatusOpen:       "open",
		StatusClosed:     "closed",
	} {
		if status.String() != want {
			t.Errorf("expected %s, got %s", want, status)
		}
	}
}
