package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/MeKo-Tech/idextract/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialUpload(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/upload"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readResult(t *testing.T, conn *websocket.Conn) pipeline.Result {
	t.Helper()
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

func TestWebSocketUpload(t *testing.T) {
	s := newPipelineServer(t, &testutil.FakeEngine{Text: labeledText}, Config{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := dialUpload(t, srv, DefaultAllowedOrigin)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, documentPNG(t)))
	res := readResult(t, conn)
	assert.True(t, res.Success, res.Error)
	assert.NotNil(t, res.Data)

	req, err := json.Marshal(WebSocketUploadRequest{Filename: "card.png", Image: documentPNG(t)})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, req))
	res = readResult(t, conn)
	assert.True(t, res.Success, res.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	res = readResult(t, conn)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid request")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("garbage")))
	res = readResult(t, conn)
	assert.False(t, res.Success)
	assert.Equal(t, pipeline.CodeInvalidImage, res.Code)
}

func TestWebSocketRejectsUnknownOrigin(t *testing.T) {
	s := New(Config{}, &recordingExtractor{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, resp, err := dialUpload(t, srv, "https://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleWebSocketMessageLimits(t *testing.T) {
	ex := &recordingExtractor{result: pipeline.Result{Success: true}}
	s := New(Config{MaxUploadMB: 1}, ex)
	r := httptest.NewRequest(http.MethodGet, "/ws/upload", nil)

	res := s.handleWebSocketMessage(r, websocket.BinaryMessage, nil)
	assert.Equal(t, "No file provided", res.Error)

	res = s.handleWebSocketMessage(r, websocket.BinaryMessage, make([]byte, 1024*1024+1))
	assert.Equal(t, "File too large", res.Error)

	res = s.handleWebSocketMessage(r, websocket.TextMessage, []byte(`{"filename":"a.png"}`))
	assert.Equal(t, "No file provided", res.Error)

	res = s.handleWebSocketMessage(r, websocket.BinaryMessage, []byte("img"))
	assert.True(t, res.Success)
	assert.Equal(t, [][]byte{[]byte("img")}, ex.contents)
}

type fakeConnWriter struct {
	messages [][]byte
	err      error
}

func (f *fakeConnWriter) WriteMessage(_ int, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, data)
	return nil
}

func TestSendWebSocketResult(t *testing.T) {
	s := &Server{}
	w := &fakeConnWriter{}
	s.sendWebSocketResult(w, pipeline.Failure(pipeline.ErrRecognitionUnavailable))
	require.Len(t, w.messages, 1)
	assert.JSONEq(t, `{"success":false,"error":"recognition engine unavailable","code":"recognition_unavailable"}`, string(w.messages[0]))

	failing := &fakeConnWriter{err: errors.New("closed")}
	s.sendWebSocketResult(failing, pipeline.Result{Success: true})
	assert.Empty(t, failing.messages)
}
