package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chordmesh/internal/logger"
	"chordmesh/internal/relay"
)

// WebSocketTransport is a gorilla/websocket-based adapter standing in
// for the real WebRTC/ICE data channel the spec treats as an external
// collaborator (spec.md §1 non-goals; see SPEC_FULL.md). It dials peers
// by their SessionDescriptor (a ws:// URL) and accepts inbound
// connections on a bound listen address, decoding every frame as a
// relay.Envelope.
type WebSocketTransport struct {
	lgr    logger.Logger
	signer Signer
	dialer websocket.Dialer
	server *http.Server

	mu    sync.Mutex
	conns map[string]*websocket.Conn // keyed by SessionDescriptor

	inbound chan *relay.Envelope
	closed  chan struct{}
}

// NewWebSocketTransport starts accepting inbound connections on
// listenAddr and returns a Transport ready to dial and send.
func NewWebSocketTransport(listenAddr string, signer Signer, lgr logger.Logger) (*WebSocketTransport, error) {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	t := &WebSocketTransport{
		lgr:     lgr,
		signer:  signer,
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		conns:   make(map[string]*websocket.Conn),
		inbound: make(chan *relay.Envelope, 256),
		closed:  make(chan struct{}),
	}

	upgrader := websocket.Upgrader{ReadBufferSize: 1 << 16, WriteBufferSize: 1 << 16}
	mux := http.NewServeMux()
	mux.HandleFunc("/relay", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.lgr.Warn("websocket upgrade failed", logger.F("err", err))
			return
		}
		go t.readLoop(conn)
	})
	t.server = &http.Server{Addr: listenAddr, Handler: mux}
	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.lgr.Error("websocket listener stopped", logger.F("err", err))
		}
	}()
	return t, nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := Decode(data)
		if err != nil {
			t.lgr.Warn("dropping undecodable frame", logger.F("err", err))
			continue
		}
		select {
		case t.inbound <- env:
		case <-t.closed:
			return
		}
	}
}

func (t *WebSocketTransport) dial(peer Peer) (*websocket.Conn, error) {
	t.mu.Lock()
	if conn, ok := t.conns[peer.SessionDescriptor]; ok {
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()

	conn, _, err := t.dialer.Dial(peer.SessionDescriptor, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrSend, peer.SessionDescriptor, err)
	}
	t.mu.Lock()
	t.conns[peer.SessionDescriptor] = conn
	t.mu.Unlock()
	go t.readLoop(conn)
	return conn, nil
}

// Send implements Transport.
func (t *WebSocketTransport) Send(ctx context.Context, peer Peer, env *relay.Envelope) error {
	conn, err := t.dial(peer)
	if err != nil {
		return err
	}
	data, err := Encode(env)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrSend, err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.mu.Lock()
		delete(t.conns, peer.SessionDescriptor)
		t.mu.Unlock()
		return fmt.Errorf("%w: write %s: %v", ErrSend, peer.SessionDescriptor, err)
	}
	return nil
}

// Messages implements Transport.
func (t *WebSocketTransport) Messages() <-chan *relay.Envelope { return t.inbound }

// SelfKey implements Transport.
func (t *WebSocketTransport) SelfKey() Signer { return t.signer }

// Close implements Transport.
func (t *WebSocketTransport) Close() error {
	close(t.closed)
	t.mu.Lock()
	for _, c := range t.conns {
		c.Close()
	}
	t.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}
