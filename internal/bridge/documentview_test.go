package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selfheal/playback-core/internal/document"
)

// fakeClient dials a running Bridge, completes the handshake, and
// answers a fixed table of methods with canned JSON results.
type fakeClient struct {
	conn     *websocket.Conn
	handlers map[string]json.RawMessage
	done     chan struct{}
}

func dialFakeClient(t *testing.T, b *Bridge, handlers map[string]json.RawMessage) *fakeClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+b.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial returned error: %v", err)
	}
	if err := conn.WriteJSON(helloMessage{Type: "hello", Token: b.cfg.Token, Client: "fake", Version: protocolVersion}); err != nil {
		t.Fatalf("write hello returned error: %v", err)
	}
	var welcome welcomeMessage
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome returned error: %v", err)
	}

	fc := &fakeClient{conn: conn, handlers: handlers, done: make(chan struct{})}
	go fc.serve()
	t.Cleanup(func() { conn.Close() })
	return fc
}

func (fc *fakeClient) serve() {
	defer close(fc.done)
	for {
		var req rpcRequest
		if err := fc.conn.ReadJSON(&req); err != nil {
			return
		}
		result, ok := fc.handlers[req.Method]
		if !ok {
			_ = fc.conn.WriteJSON(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "no handler for " + req.Method}})
			continue
		}
		_ = fc.conn.WriteJSON(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	b := New(Config{ListenAddr: "127.0.0.1:0", Timeout: 2 * time.Second})
	if err := b.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestViewQueryReturnsHandle(t *testing.T) {
	b := newTestBridge(t)
	dialFakeClient(t, b, map[string]json.RawMessage{
		"document.query": json.RawMessage(`{"id":"node-1"}`),
	})

	view := NewView(b)
	el, err := view.Query("#submit")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if el.Ref() != "node-1" {
		t.Fatalf("expected node-1, got %q", el.Ref())
	}
}

func TestViewQueryNotFoundReturnsErrNotFound(t *testing.T) {
	b := newTestBridge(t)
	dialFakeClient(t, b, map[string]json.RawMessage{
		"document.query": json.RawMessage(`{"id":""}`),
	})

	view := NewView(b)
	if _, err := view.Query("#missing"); !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("expected document.ErrNotFound for empty id, got %v", err)
	}
}

func TestViewBoundingRectAndVisibility(t *testing.T) {
	b := newTestBridge(t)
	dialFakeClient(t, b, map[string]json.RawMessage{
		"element.boundingRect": json.RawMessage(`{"x":10,"y":20,"width":30,"height":40}`),
		"element.isVisible":    json.RawMessage(`{"visible":true}`),
	})

	view := NewView(b)
	box, err := view.BoundingRect(elementHandle("node-1"))
	if err != nil {
		t.Fatalf("BoundingRect returned error: %v", err)
	}
	if box.Width != 30 || box.Height != 40 {
		t.Fatalf("unexpected bounding box: %+v", box)
	}
	visible, err := view.IsVisible(elementHandle("node-1"))
	if err != nil {
		t.Fatalf("IsVisible returned error: %v", err)
	}
	if !visible {
		t.Fatal("expected element to report visible")
	}
}

func TestViewCaptureViewportDecodesPixels(t *testing.T) {
	b := newTestBridge(t)
	dialFakeClient(t, b, map[string]json.RawMessage{
		"viewport.capture": json.RawMessage(`{"pixelsBase64":"AAECAw==","width":2,"height":1}`),
	})

	view := NewView(b)
	frame, err := view.CaptureViewport(context.Background())
	if err != nil {
		t.Fatalf("CaptureViewport returned error: %v", err)
	}
	if frame.Width != 2 || frame.Height != 1 || len(frame.Pixels) != 4 {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestViewDispatchSendsEventName(t *testing.T) {
	b := newTestBridge(t)
	dialFakeClient(t, b, map[string]json.RawMessage{
		"element.dispatch": json.RawMessage(`null`),
	})

	view := NewView(b)
	if err := view.Dispatch(context.Background(), elementHandle("node-1"), "click", document.EventInit{Bubbles: true}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
}

func TestViewReadyStateWithNoClientErrors(t *testing.T) {
	b := New(Config{ListenAddr: "127.0.0.1:0"})
	view := NewView(b)
	if _, err := view.ReadyState(context.Background()); err == nil {
		t.Fatal("expected error when no client is connected")
	}
}
