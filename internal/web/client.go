package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/testweaver-ai/testweaver/internal/chunker"
	"github.com/testweaver-ai/testweaver/internal/config"
	"github.com/testweaver-ai/testweaver/internal/consts"
	"github.com/testweaver-ai/testweaver/internal/generator"
	"github.com/testweaver-ai/testweaver/internal/llm"
	"github.com/testweaver-ai/testweaver/internal/logger"
	"github.com/testweaver-ai/testweaver/internal/progress"
	"github.com/testweaver-ai/testweaver/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = consts.Timeout10Seconds

	// Time allowed to read the next pong message from the peer.
	pongWait = consts.Timeout60Seconds

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Scraped code pages can be
	// large, so this is generous.
	maxMessageSize = 4 * 1024 * 1024
)

// Client represents one connected extension instance
type Client struct {
	ID      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan *WebMessage
	gen     *generator.Generator
	cfg     *config.Config
	session *session.Session
	debug   bool
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, gen *generator.Generator, cfg *config.Config, debug bool) *Client {
	id, _ := generateClientID()

	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan *WebMessage, 256),
		gen:     gen,
		cfg:     cfg,
		session: session.New(),
		debug:   debug,
	}
}

// ReadPump pumps messages from the WebSocket connection to the generator
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			break
		}

		var msg WebMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Error("Failed to unmarshal message: %v", err)
			continue
		}

		if c.debug {
			logger.Debug("WebSocket received: %s", string(message))
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				logger.Error("Failed to marshal message: %v", err)
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("Failed to write message: %v", err)
				return
			}

			if c.debug {
				logger.Debug("WebSocket sent: %s", string(data))
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client. Generation runs
// in its own goroutine so the read loop stays free to receive cancel
// messages.
func (c *Client) handleMessage(msg *WebMessage) {
	switch msg.Type {
	case MessageTypeGenerate:
		go c.runGeneration(msg)

	case MessageTypeCancel:
		c.gen.Cancel(msg.RequestID)
		c.sendResponse(&WebMessage{
			Type:      MessageTypeSystem,
			RequestID: msg.RequestID,
			Content:   "cancellation requested",
		})

	case MessageTypeClear:
		c.session.Clear()
		c.sendResponse(&WebMessage{
			Type:    MessageTypeSystem,
			Content: "Session cleared",
		})

	case MessageTypeGetConfig:
		c.sendResponse(&WebMessage{
			Type: MessageTypeConfig,
			Data: map[string]interface{}{
				"model":          c.cfg.Model,
				"provider":       c.cfg.Provider,
				"max_concurrent": c.cfg.MaxConcurrent,
			},
		})

	default:
		logger.Warn("Unknown message type: %s", msg.Type)
	}
}

func (c *Client) runGeneration(msg *WebMessage) {
	req := &generator.Request{
		ID:       msg.RequestID,
		Code:     msg.Code,
		Snippets: msg.Snippets,
		History:  session.ToLLMMessages(c.session.History()),
		OnDelta: func(delta, accumulated string) error {
			c.sendResponse(&WebMessage{
				Type:        MessageTypeDelta,
				RequestID:   msg.RequestID,
				Content:     delta,
				FullContent: accumulated,
			})
			return nil
		},
		OnProgress: func(u progress.Update) {
			c.sendResponse(&WebMessage{
				Type:       MessageTypeProgress,
				RequestID:  msg.RequestID,
				Processed:  u.Processed,
				Total:      u.Total,
				Percentage: u.Percentage,
				IsLast:     u.IsLast,
			})
		},
	}
	if msg.Options != nil {
		req.Options = generator.Options{
			TestType:     msg.Options.TestType,
			TestMode:     msg.Options.TestMode,
			ContextLevel: msg.Options.ContextLevel,
			Model:        msg.Options.Model,
		}
	}
	if msg.Context != nil {
		req.Context = &chunker.ContextSnapshot{
			Language:        msg.Context.Language,
			FilePath:        msg.Context.FilePath,
			Dependencies:    msg.Context.Dependencies,
			ProjectPatterns: msg.Context.ProjectPatterns,
		}
	}

	result, err := c.gen.Generate(context.Background(), req)
	if err != nil {
		c.sendResponse(&WebMessage{
			Type:      MessageTypeError,
			RequestID: msg.RequestID,
			Error:     err.Error(),
			ErrorKind: llm.KindOf(err).String(),
		})
		return
	}

	c.session.AddMessage("user", msg.Code)
	c.session.AddMessage("assistant", result.Text)

	c.sendResponse(&WebMessage{
		Type:       MessageTypeDone,
		RequestID:  msg.RequestID,
		Content:    result.Text,
		Chunked:    result.Chunked,
		Total:      result.ChunkCount,
		TokensUsed: result.TokensUsed,
		IsLast:     true,
		Timestamp:  time.Now(),
	})
}

// sendResponse sends a response message to the client
func (c *Client) sendResponse(msg *WebMessage) {
	select {
	case c.send <- msg:
	default:
		logger.Warn("Client send channel full, dropping message")
	}
}

// generateClientID generates a random client ID
func generateClientID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
