package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketUploadRequest is the text-message form of an upload. Binary
// messages carry the raw document bytes instead.
type WebSocketUploadRequest struct {
	Filename string `json:"filename,omitempty"`
	Image    []byte `json:"image"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// Non-browser clients send no Origin.
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
}

// uploadWebSocketHandler extracts every document received on the connection
// and replies with the pipeline result.
func (s *Server) uploadWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r, conn)
}

func (s *Server) handleWebSocketConnection(r *http.Request, conn *websocket.Conn) {
	limit := s.maxUploadMB * 1024 * 1024
	// JSON requests carry base64 image bytes.
	conn.SetReadLimit(limit*4/3 + 4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		res := s.handleWebSocketMessage(r, messageType, data)
		s.sendWebSocketResult(conn, res)
	}
}

// handleWebSocketMessage turns one message into a pipeline result.
func (s *Server) handleWebSocketMessage(r *http.Request, messageType int, data []byte) pipeline.Result {
	filename := ""
	if messageType == websocket.TextMessage {
		var req WebSocketUploadRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return pipeline.Result{Error: fmt.Sprintf("invalid request: %v", err)}
		}
		data, filename = req.Image, req.Filename
	}
	if len(data) == 0 {
		return pipeline.Result{Error: "No file provided"}
	}
	if int64(len(data)) > s.maxUploadMB*1024*1024 {
		return pipeline.Result{Error: "File too large"}
	}
	uploadSizeBytes.Observe(float64(len(data)))

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	start := time.Now()
	res := s.extractor.ExtractBytes(ctx, data, filename)
	recordExtraction("websocket", res, time.Since(start))
	return res
}

// sendWebSocketResult sends a result as a JSON text message.
func (s *Server) sendWebSocketResult(conn WebSocketConnWriter, res pipeline.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
