package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// sseTransport speaks JSON-RPC over a plain HTTP POST-per-call exchange,
// grounded on the teacher's HTTP transport: every call is an independent
// POST to cfg.URL carrying the JSON-RPC envelope in the body, with the
// response read back as a single JSON document (SSE servers that stream
// multiple events still terminate the call-relevant one first).
type sseTransport struct {
	cfg    ServerConfig
	log    *slog.Logger
	client *http.Client

	nextID    atomic.Int64
	connected atomic.Bool
	mu        sync.Mutex
}

func newSSETransport(cfg ServerConfig) *sseTransport {
	return &sseTransport{
		cfg:    cfg,
		log:    slog.Default().With("component", "mcp.sse", "server", cfg.Name),
		client: &http.Client{Timeout: cfg.startupTimeout()},
	}
}

func (t *sseTransport) Start(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("mcp: server %q: build probe request: %w", t.cfg.Name, err)
	}
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("mcp: server %q: unreachable: %w", t.cfg.Name, err)
	}
	resp.Body.Close()
	t.connected.Store(true)
	return nil
}

func (t *sseTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("mcp: server %q: not connected", t.cfg.Name)
	}
	id := t.nextID.Add(1)
	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("mcp: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mcp: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mcp: server %q: call %q: %w", t.cfg.Name, method, err)
	}
	defer resp.Body.Close()

	data, err := t.readBody(resp)
	if err != nil {
		return nil, err
	}
	var rpcResp jsonrpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, fmt.Errorf("mcp: server %q: decode response: %w", t.cfg.Name, err)
	}
	if err := decodeRPCError(&rpcResp); err != nil {
		return nil, err
	}
	return rpcResp.Result, nil
}

// readBody accepts either a plain JSON body or a single `data:` SSE frame,
// since some servers wrap every response as an event even for request/reply
// exchanges.
func (t *sseTransport) readBody(resp *http.Response) ([]byte, error) {
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/event-stream") {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") {
				return []byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), nil
			}
		}
		return nil, fmt.Errorf("mcp: server %q: no data frame in event stream", t.cfg.Name)
	}
	return io.ReadAll(resp.Body)
}

func (t *sseTransport) Notify(ctx context.Context, method string, params any) error {
	req := jsonrpcRequest{JSONRPC: "2.0", Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("mcp: encode notification: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (t *sseTransport) Close(_ context.Context) error {
	t.connected.Store(false)
	return nil
}
