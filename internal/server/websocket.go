package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/foremanai/foreman-ai/internal/assistant"
	"github.com/foremanai/foreman-ai/internal/audit"
	"github.com/foremanai/foreman-ai/internal/metrics"
	"github.com/foremanai/foreman-ai/internal/respond"
)

// WebSocket message types
const (
	MessageTypeAnswer    = "answer"
	MessageTypeError     = "error"
	MessageTypeHeartbeat = "heartbeat"
)

// WSMessage is one server-to-client frame.
type WSMessage struct {
	Type       string            `json:"type"`
	Answer     *respond.Envelope `json:"answer,omitempty"`
	Error      string            `json:"error,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// WSRequest is one client-to-server assist request.
type WSRequest struct {
	Query   string                 `json:"query"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// defaultDevOrigins are accepted when no allow list is configured.
var defaultDevOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// newUpgrader builds a websocket upgrader enforcing the configured
// origin allow list. An empty list falls back to the development
// origins, "*" allows everything, and requests without an Origin
// header (non-browser clients) are always accepted.
func newUpgrader(origins []string) websocket.Upgrader {
	allowed := origins
	if len(allowed) == 0 {
		allowed = defaultDevOrigins
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSConnection represents an active WebSocket session.
type WSConnection struct {
	conn      *websocket.Conn
	server    *Server
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	sessionID string
}

// handleWebSocket upgrades the connection and serves assist requests
// over it until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	up := newUpgrader(s.config.Server.AllowedOrigins)
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.appLog().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)

	wsConn := &WSConnection{
		conn:      conn,
		server:    s,
		ctx:       ctx,
		cancel:    cancel,
		sessionID: "ws-" + uuid.New().String(),
	}

	metrics.WebSocketConnections.Inc()
	s.appLog().Info("websocket session opened", zap.String("session_id", wsConn.sessionID))

	wsConn.handle()
}

// handle manages the session lifecycle: a heartbeat goroutine plus a
// read loop that runs each request through the pipeline.
func (wsc *WSConnection) handle() {
	defer func() {
		wsc.cancel()
		wsc.conn.Close()
		metrics.WebSocketConnections.Dec()
		wsc.server.appLog().Info("websocket session closed",
			zap.String("session_id", wsc.sessionID))
	}()

	go wsc.heartbeat()

	for {
		select {
		case <-wsc.ctx.Done():
			return
		default:
			var req WSRequest
			err := wsc.conn.ReadJSON(&req)
			if err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					wsc.server.appLog().Warn("websocket read error",
						zap.String("session_id", wsc.sessionID), zap.Error(err))
				}
				return
			}
			metrics.WebSocketMessagesTotal.WithLabelValues("inbound").Inc()
			wsc.handleAssistRequest(&req)
		}
	}
}

// handleAssistRequest runs one request through the pipeline and writes
// the envelope back as an answer frame.
func (wsc *WSConnection) handleAssistRequest(req *WSRequest) {
	s := wsc.server
	if s.assistant == nil {
		wsc.sendError("assistant not initialised", "", "")
		return
	}

	requestID := audit.GenerateCorrelationID()
	ctx := audit.WithCorrelationID(wsc.ctx, requestID)

	query := strings.TrimSpace(req.Query)
	if limit := s.maxQueryLength(); len(query) > limit {
		wsc.sendError("query exceeds the character limit",
			"shorten the request to the essentials", requestID)
		return
	}

	envelope, err := s.assistant.Assist(ctx, assistant.Request{Query: req.Query, Context: req.Context})
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyQuery) {
			wsc.sendError("query is required",
				`describe the job, e.g. "who should work on machine 3?"`, requestID)
			return
		}
		s.appLog().Error("websocket assist failed",
			zap.String("session_id", wsc.sessionID),
			zap.String("request_id", requestID), zap.Error(err))
		wsc.sendError("assist pipeline failed", "try again in a moment", requestID)
		return
	}

	intentType := string(envelope.UnderstoodIntent.Primary.Type)
	metrics.AssistRequestsTotal.WithLabelValues(intentType, assistOutcome(envelope)).Inc()

	s.archiveInteraction(requestID, query, envelope)

	wsc.send(&WSMessage{
		Type:      MessageTypeAnswer,
		Answer:    envelope,
		RequestID: requestID,
		Timestamp: time.Now(),
	})
}

// send writes a frame to the client under the connection write lock.
func (wsc *WSConnection) send(msg *WSMessage) error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()

	metrics.WebSocketMessagesTotal.WithLabelValues("outbound").Inc()
	wsc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return wsc.conn.WriteJSON(msg)
}

// sendError writes an error frame to the client.
func (wsc *WSConnection) sendError(errMsg, suggestion, requestID string) {
	wsc.send(&WSMessage{
		Type:       MessageTypeError,
		Error:      errMsg,
		Suggestion: suggestion,
		RequestID:  requestID,
		Timestamp:  time.Now(),
	})
}

// heartbeat keeps the connection alive through idle proxies.
func (wsc *WSConnection) heartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-wsc.ctx.Done():
			return
		case <-ticker.C:
			wsc.send(&WSMessage{
				Type:      MessageTypeHeartbeat,
				Timestamp: time.Now(),
			})
		}
	}
}
