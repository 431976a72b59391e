package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/logger"
)

// Timeouts for the engine websocket, matching the conventions of a
// well-behaved gorilla/websocket client (ping/pong keepalive, bounded write
// deadlines) — see https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	engineWriteWait  = 10 * time.Second
	enginePongWait   = 60 * time.Second
	enginePingPeriod = (enginePongWait * 9) / 10
)

// EngineSession is a single-use JSON-RPC-over-websocket connection to the
// Qlik engine. The core (C3-C8) never opens one directly: it is consumed
// through a pluggable interface so this package stays a thin transport and
// never reimplements the engine's document/object API (spec.md §1,
// Non-goals).
type EngineSession struct {
	conn     *websocket.Conn
	cfg      *Config
	log      *zap.SugaredLogger
	nextID   int64
	mu       sync.Mutex
	closed   chan struct{}
	closeOne sync.Once
}

// OpenEngineSession dials the configured engine endpoint. The configured
// SchemaVersion is not sent to the engine or otherwise used by the
// session. Callers must not share a session
// across goroutines (spec.md §4.1).
func OpenEngineSession(ctx context.Context, cfg *Config, log *zap.SugaredLogger) (*EngineSession, error) {
	if log == nil {
		log = logger.ComponentLogger("engine")
	}

	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, errors.Wrap(err, "building TLS config for engine session")
	}

	u := url.URL{
		Scheme: "wss",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.EnginePort),
		Path:   enginePath(cfg),
	}

	header := http.Header{}
	if cfg.Bearer != nil {
		header.Set("Authorization", "Bearer "+cfg.Bearer.Token)
	}

	dialer := &websocket.Dialer{
		TLSClientConfig:  tlsCfg,
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, errors.Wrapf(err, "opening engine websocket to %s", u.Host)
	}

	conn.SetReadDeadline(time.Now().Add(enginePongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(enginePongWait))
		return nil
	})

	s := &EngineSession{conn: conn, cfg: cfg, log: log, closed: make(chan struct{})}
	go s.keepAlive()
	return s, nil
}

func enginePath(cfg *Config) string {
	if cfg.VirtualProxyPrefix == "" {
		return "/app/"
	}
	return "/" + trimSlashes(cfg.VirtualProxyPrefix) + "/app/"
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

func (s *EngineSession) keepAlive() {
	ticker := time.NewTicker(enginePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(engineWriteWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				s.log.Debugw("engine keepalive ping failed", logger.FieldError, err.Error())
				return
			}
		}
	}
}

// rpcRequest / rpcResponse are the minimal JSON-RPC envelope the engine
// speaks; method-specific params/results are left as raw JSON so callers
// outside this package decode the shapes they actually need.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Handle  int             `json:"handle"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call issues one JSON-RPC round-trip and blocks until the matching
// response arrives or ctx is canceled. Every round-trip is a suspension
// point (spec.md §4.1).
func (s *EngineSession) Call(ctx context.Context, handle int, method string, params interface{}) (json.RawMessage, error) {
	id := atomic.AddInt64(&s.nextID, 1)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling engine RPC params")
	}

	req := rpcRequest{JSONRPC: "2.0", ID: id, Handle: handle, Method: method, Params: paramsJSON}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling engine RPC request")
	}

	s.mu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(engineWriteWait))
	writeErr := s.conn.WriteMessage(websocket.TextMessage, payload)
	s.mu.Unlock()
	if writeErr != nil {
		return nil, errors.Wrapf(writeErr, "writing engine RPC request %q", method)
	}

	type result struct {
		resp rpcResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			done <- result{err: errors.Wrapf(err, "reading engine RPC response for %q", method)}
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			done <- result{err: errors.Wrapf(err, "decoding engine RPC response for %q", method)}
			return
		}
		done <- result{resp: resp}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, errors.Newf("engine RPC %q failed: %s (code %d)", method, r.resp.Error.Message, r.resp.Error.Code)
		}
		return r.resp.Result, nil
	}
}

// Close reports success/failure of the final handshake with the engine, as
// required by the engine session contract (§4.1).
func (s *EngineSession) Close() error {
	var err error
	s.closeOne.Do(func() {
		close(s.closed)
		s.mu.Lock()
		defer s.mu.Unlock()
		deadline := time.Now().Add(engineWriteWait)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = s.conn.Close()
	})
	return err
}
