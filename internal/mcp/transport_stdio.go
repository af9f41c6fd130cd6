package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// stdioTransport speaks newline-delimited JSON-RPC over the stdin/stdout
// pipes of a subprocess, grounded directly on the teacher's StdioTransport:
// a pending-request correlation table keyed by request id, an atomic id
// counter, and a background read loop dispatching responses versus
// notifications.
type stdioTransport struct {
	cfg    ServerConfig
	log    *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	nextID    atomic.Int64
	connected atomic.Bool

	mu      sync.Mutex
	pending map[int64]chan *jsonrpcResponse

	writeMu sync.Mutex
}

func newStdioTransport(cfg ServerConfig) *stdioTransport {
	return &stdioTransport{
		cfg:     cfg,
		log:     slog.Default().With("component", "mcp.stdio", "server", cfg.Name),
		pending: make(map[int64]chan *jsonrpcResponse),
	}
}

func (t *stdioTransport) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.cfg.Command, t.cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range t.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mcp: stdio pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("mcp: stdio pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("mcp: stdio pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mcp: start server %q: %w", t.cfg.Name, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.connected.Store(true)

	go t.readLoop(stdout)
	go t.logStderr(stderr)

	return nil
}

func (t *stdioTransport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
	for scanner.Scan() {
		t.processLine(scanner.Bytes())
	}
	t.connected.Store(false)
	t.drainPending(fmt.Errorf("mcp: server %q: transport closed", t.cfg.Name))
}

func (t *stdioTransport) processLine(line []byte) {
	if len(line) == 0 {
		return
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		t.log.Warn("discarding unparseable line", "error", err)
		return
	}
	if len(resp.ID) == 0 {
		// Notification from the server; Tyler doesn't act on any today.
		return
	}
	var id int64
	if err := json.Unmarshal(resp.ID, &id); err != nil {
		return
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

func (t *stdioTransport) drainPending(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.pending {
		ch <- &jsonrpcResponse{Error: &jsonrpcError{Code: -1, Message: err.Error()}}
		delete(t.pending, id)
	}
}

func (t *stdioTransport) logStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		t.log.Debug("server stderr", "line", scanner.Text())
	}
}

func (t *stdioTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("mcp: server %q: not connected", t.cfg.Name)
	}

	id := t.nextID.Add(1)
	ch := make(chan *jsonrpcResponse, 1)
	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := t.writeLine(req); err != nil {
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

func (t *stdioTransport) Notify(_ context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("mcp: server %q: not connected", t.cfg.Name)
	}
	req := jsonrpcRequest{JSONRPC: "2.0", Method: method, Params: params}
	return t.writeLine(req)
}

func (t *stdioTransport) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mcp: encode request: %w", err)
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.stdin.Write(data)
	return err
}

func (t *stdioTransport) Close(ctx context.Context) error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}
	t.connected.Store(false)
	_ = t.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	grace := t.cfg.shutdownGrace()
	_ = t.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		_ = t.cmd.Process.Kill()
		<-done
		return nil
	case <-ctx.Done():
		_ = t.cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}
