package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testweaver-ai/testweaver/internal/config"
	"github.com/testweaver-ai/testweaver/internal/generator"
	"github.com/testweaver-ai/testweaver/internal/llm"
)

type scriptedClient struct {
	text string
}

func (s *scriptedClient) Stream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (string, error) {
	var accumulated string
	for _, delta := range []string{"first half; ", "second half"} {
		accumulated += delta
		if cb != nil {
			if err := cb(delta, accumulated); err != nil {
				return "", err
			}
		}
	}
	return accumulated, nil
}

func (s *scriptedClient) CompleteWithRequest(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	text, err := s.Stream(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: text}, nil
}

func (s *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.Stream(ctx, &llm.CompletionRequest{}, nil)
}

func (s *scriptedClient) GetModelName() string { return "bridge-test-model" }

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.DefaultConfig()
	gen := generator.New(&scriptedClient{}, llm.NewHeuristicEstimator("bridge-test-model"), generator.Config{})
	t.Cleanup(gen.Close)

	srv, err := NewServer(cfg, gen, false)
	require.NoError(t, err)
	t.Cleanup(srv.hub.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWebSocket)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) (WebMessage, []WebMessage) {
	t.Helper()

	var seen []WebMessage
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg WebMessage
		require.NoError(t, conn.ReadJSON(&msg))
		seen = append(seen, msg)
		if msg.Type == msgType || msg.Type == MessageTypeError {
			return msg, seen
		}
	}
	t.Fatalf("did not receive %q message in time, saw %d messages", msgType, len(seen))
	return WebMessage{}, nil
}

func TestRejectsInvalidToken(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGenerateOverWebSocket(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, srv.authToken)

	require.NoError(t, conn.WriteJSON(&WebMessage{
		Type:      MessageTypeGenerate,
		RequestID: "ws-req-1",
		Code:      "func Add(a, b int) int { return a + b }",
		Options:   &GenerateOptions{TestType: "unit"},
		Context:   &CodeContext{Language: "go", FilePath: "math/add.go"},
	}))

	done, seen := readUntil(t, conn, MessageTypeDone)

	require.Equal(t, MessageTypeDone, done.Type)
	assert.Equal(t, "ws-req-1", done.RequestID)
	assert.Equal(t, "first half; second half", done.Content)
	assert.True(t, done.IsLast)

	deltas := 0
	for _, msg := range seen {
		if msg.Type == MessageTypeDelta {
			deltas++
			assert.Equal(t, "ws-req-1", msg.RequestID)
		}
	}
	assert.Equal(t, 2, deltas, "each streamed delta must be forwarded")
}

func TestEmptyCodeReturnsErrorMessage(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, srv.authToken)

	require.NoError(t, conn.WriteJSON(&WebMessage{
		Type:      MessageTypeGenerate,
		RequestID: "ws-req-2",
		Code:      "   ",
	}))

	msg, _ := readUntil(t, conn, MessageTypeError)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "invalid_input", msg.ErrorKind)
}

func TestGetConfig(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, srv.authToken)

	require.NoError(t, conn.WriteJSON(&WebMessage{Type: MessageTypeGetConfig}))

	msg, _ := readUntil(t, conn, MessageTypeConfig)
	require.Equal(t, MessageTypeConfig, msg.Type)
	assert.Equal(t, "openai", msg.Data["provider"])
}

func waitForClients(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connected clients, have %d", n, srv.hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	srv, ts := newTestServer(t)
	first := dial(t, ts, srv.authToken)
	second := dial(t, ts, srv.authToken)
	waitForClients(t, srv, 2)

	srv.hub.Broadcast(&WebMessage{Type: MessageTypeSystem, Content: "model changed"})

	for _, conn := range []*websocket.Conn{first, second} {
		msg, _ := readUntil(t, conn, MessageTypeSystem)
		assert.Equal(t, "model changed", msg.Content)
	}
}

func TestStopNotifiesConnectedClients(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, srv.authToken)
	waitForClients(t, srv, 1)

	require.NoError(t, srv.Stop())

	msg, _ := readUntil(t, conn, MessageTypeSystem)
	assert.Equal(t, "host shutting down", msg.Content)

	assert.Equal(t, 0, srv.hub.ClientCount(), "Stop must disconnect every client")
}

func TestClearSession(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, srv.authToken)

	require.NoError(t, conn.WriteJSON(&WebMessage{Type: MessageTypeClear}))

	msg, _ := readUntil(t, conn, MessageTypeSystem)
	assert.Equal(t, "Session cleared", msg.Content)
}
