//go:build tyler_ws

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// websocketTransport speaks JSON-RPC over a long-lived websocket
// connection; built only with the tyler_ws tag since it's the one transport
// none of the reference servers exercise by default (see DESIGN.md).
type websocketTransport struct {
	cfg  ServerConfig
	log  *slog.Logger
	conn *websocket.Conn

	nextID    atomic.Int64
	connected atomic.Bool

	mu      sync.Mutex
	pending map[int64]chan *jsonrpcResponse
}

func newWebsocketTransport(cfg ServerConfig) (Transport, error) {
	return &websocketTransport{
		cfg:     cfg,
		log:     slog.Default().With("component", "mcp.websocket", "server", cfg.Name),
		pending: make(map[int64]chan *jsonrpcResponse),
	}, nil
}

func (t *websocketTransport) Start(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, t.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("mcp: server %q: dial: %w", t.cfg.Name, err)
	}
	t.conn = conn
	t.connected.Store(true)
	go t.readLoop()
	return nil
}

func (t *websocketTransport) readLoop() {
	ctx := context.Background()
	for {
		var resp jsonrpcResponse
		if err := wsjson.Read(ctx, t.conn, &resp); err != nil {
			t.connected.Store(false)
			t.drainPending(fmt.Errorf("mcp: server %q: connection closed: %w", t.cfg.Name, err))
			return
		}
		if len(resp.ID) == 0 {
			continue
		}
		var id int64
		if err := json.Unmarshal(resp.ID, &id); err != nil {
			continue
		}
		t.mu.Lock()
		ch, ok := t.pending[id]
		if ok {
			delete(t.pending, id)
		}
		t.mu.Unlock()
		if ok {
			respCopy := resp
			ch <- &respCopy
		}
	}
}

func (t *websocketTransport) drainPending(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.pending {
		ch <- &jsonrpcResponse{Error: &jsonrpcError{Code: -1, Message: err.Error()}}
		delete(t.pending, id)
	}
}

func (t *websocketTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("mcp: server %q: not connected", t.cfg.Name)
	}
	id := t.nextID.Add(1)
	ch := make(chan *jsonrpcResponse, 1)
	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := wsjson.Write(ctx, t.conn, req); err != nil {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if err := decodeRPCError(resp); err != nil {
			return nil, err
		}
		return resp.Result, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, ctx.Err()
	case <-time.After(t.cfg.startupTimeout()):
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("mcp: server %q: call %q timed out", t.cfg.Name, method)
	}
}

func (t *websocketTransport) Notify(ctx context.Context, method string, params any) error {
	req := jsonrpcRequest{JSONRPC: "2.0", Method: method, Params: params}
	return wsjson.Write(ctx, t.conn, req)
}

func (t *websocketTransport) Close(ctx context.Context) error {
	t.connected.Store(false)
	return t.conn.Close(websocket.StatusNormalClosure, "bridge shutdown")
}
