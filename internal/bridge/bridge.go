// Package bridge implements the websocket JSON-RPC DocumentView adapter
// (spec.md §4's "live browser" transport): a small server the playback
// core listens on, which a thin extension/content-script client dials
// in to, handshakes, and then answers DOM queries and dispatch calls
// issued as JSON-RPC 2.0 requests.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selfheal/playback-core/internal/logging"
)

const protocolVersion = 1

var errNotConnected = errors.New("bridge: no client connected")

// Config configures a Bridge server.
type Config struct {
	ListenAddr string
	Token      string
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{ListenAddr: "127.0.0.1:0", Timeout: 10 * time.Second}
}

type helloMessage struct {
	Type    string `json:"type"`
	Token   string `json:"token"`
	Client  string `json:"client"`
	Version int    `json:"version"`
}

type welcomeMessage struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("bridge: rpc error %d: %s", e.Code, e.Message) }

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type pendingCall struct {
	result chan json.RawMessage
	err    chan error
}

// Bridge is a single-client websocket JSON-RPC server: the playback
// core is the RPC client logically (it calls methods the browser-side
// client implements), even though the browser dials in as the
// websocket client.
type Bridge struct {
	cfg Config
	log *logging.Logger

	httpSrv  *http.Server
	listener net.Listener
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]pendingCall
	nextID  int
	connWG  sync.WaitGroup
}

func New(cfg Config) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Bridge{
		cfg:      cfg,
		log:      logging.New(logging.Config{ComponentName: "BRIDGE"}),
		pending:  map[string]pendingCall{},
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}
}

// Start listens on cfg.ListenAddr and begins accepting the single
// websocket client connection.
func (b *Bridge) Start() error {
	ln, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("bridge: listen: %w", err)
	}
	b.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWS)
	b.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := b.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error("serve error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listener's actual address (useful when ListenAddr
// requests an ephemeral port).
func (b *Bridge) Addr() string {
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("upgrade failed: %v", err)
		return
	}

	var hello helloMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" {
		conn.Close()
		return
	}
	if b.cfg.Token != "" && hello.Token != b.cfg.Token {
		conn.Close()
		return
	}
	if err := conn.WriteJSON(welcomeMessage{Type: "welcome", Version: protocolVersion}); err != nil {
		conn.Close()
		return
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	b.connWG.Add(1)
	defer b.connWG.Done()
	b.readLoop(conn)
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		b.mu.Unlock()
	}()

	for {
		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			b.failAllPending(errNotConnected)
			return
		}
		b.deliver(resp)
	}
}

func (b *Bridge) deliver(resp rpcResponse) {
	b.mu.Lock()
	call, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	if resp.Error != nil {
		call.err <- resp.Error
		return
	}
	call.result <- resp.Result
}

func (b *Bridge) failAllPending(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = map[string]pendingCall{}
	b.mu.Unlock()
	for _, call := range pending {
		call.err <- err
	}
}

// Call issues a JSON-RPC request to the connected client and blocks
// until a matching response arrives, the bridge's configured timeout
// elapses, or ctx is cancelled.
func (b *Bridge) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return nil, errNotConnected
	}
	b.nextID++
	id := fmt.Sprintf("%d", b.nextID)
	call := pendingCall{result: make(chan json.RawMessage, 1), err: make(chan error, 1)}
	b.pending[id] = call
	b.mu.Unlock()

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			b.dropPending(id)
			return nil, fmt.Errorf("bridge: marshal params: %w", err)
		}
		raw = encoded
	}

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	if err := conn.WriteJSON(req); err != nil {
		b.dropPending(id)
		return nil, fmt.Errorf("bridge: write request: %w", err)
	}

	timeout := time.NewTimer(b.cfg.Timeout)
	defer timeout.Stop()
	select {
	case result := <-call.result:
		return result, nil
	case err := <-call.err:
		return nil, err
	case <-timeout.C:
		b.dropPending(id)
		return nil, fmt.Errorf("bridge: call %s timed out after %s", method, b.cfg.Timeout)
	case <-ctx.Done():
		b.dropPending(id)
		return nil, ctx.Err()
	}
}

func (b *Bridge) dropPending(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// Connected reports whether a client is currently attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Close shuts down the listener and any connected client.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.mu.Unlock()

	if b.httpSrv != nil {
		if err := b.httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("bridge: shutdown: %w", err)
		}
	}
	b.connWG.Wait()
	return nil
}
