package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Digital-Creators-Team/prize-wheel-module/pkg/feed"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	EventTypeConnected = "connected"
	EventTypeUpdated   = "updated"
	EventTypeHeartbeat = "heartbeat"
)

// FeedHandler bridges feed.Service to HTTP routes (SSE + WebSocket).
// Clients use the stream to render live budget pacing for the wheel UI.
type FeedHandler struct {
	svc             *feed.Service
	app             *App
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
	upgrader        websocket.Upgrader
}

// NewFeedHandler creates a budget feed handler.
func NewFeedHandler(app *App, svc *feed.Service) *FeedHandler {
	return &FeedHandler{
		svc:             svc,
		app:             app,
		logger:          app.logger.With().Str("handler", "feed").Logger(),
		heartbeatPeriod: 30 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type Response struct {
	Type      string                  `json:"type"`
	Timestamp int64                   `json:"timestamp"`
	Budgets   map[string]BudgetUpdate `json:"budgets,omitempty"`
}

type BudgetUpdate struct {
	BudgetRemaining float64 `json:"budget_remaining"`
	BudgetSpent     float64 `json:"budget_spent"`
	TotalSpins      int64   `json:"total_spins"`
	PaceRatio       float64 `json:"pace_ratio"`
	Timestamp       int64   `json:"timestamp"`
}

func toBudgetUpdate(u feed.Update) BudgetUpdate {
	return BudgetUpdate{
		BudgetRemaining: u.BudgetRemaining.InexactFloat64(),
		BudgetSpent:     u.BudgetSpent.InexactFloat64(),
		TotalSpins:      u.TotalSpins,
		PaceRatio:       u.PaceRatio,
		Timestamp:       u.Timestamp.Unix(),
	}
}

type streamConfig struct {
	campaignID string
	ctx        context.Context
}

// StreamUpdates opens SSE connection and streams budget updates.
// Route: GET /api/wheel/feed?campaign_id=abc
func (h *FeedHandler) StreamUpdates(c *gin.Context) {
	config := h.prepareStreamConfig(c)

	// Setup SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.WriteHeader(http.StatusOK)

	sender := &sseSender{writer: c.Writer}
	h.streamUpdates(config, sender)
}

// StreamUpdatesWebSocket opens WebSocket connection and streams budget updates.
// Route: GET /api/wheel/feed/ws?campaign_id=abc
func (h *FeedHandler) StreamUpdatesWebSocket(c *gin.Context) {
	config := h.prepareStreamConfig(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close() //nolint:errcheck

	writeDeadline := 10 * time.Second
	conn.SetWriteDeadline(time.Now().Add(writeDeadline)) //nolint:errcheck

	done := make(chan struct{})

	// Detect connection close
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(10 * time.Minute)) //nolint:errcheck
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					h.logger.Warn().Err(err).Msg("WebSocket connection closed unexpectedly (EOF)")
				} else {
					h.logger.Warn().Err(err).Msg("WebSocket connection closed unexpectedly")
				}
			} else {
				h.logger.Debug().Err(err).Msg("WebSocket closed normally")
			}
		}
	}()

	// Send ping to keep connection alive
	pingTicker := time.NewTicker(30 * time.Second)
	go func() {
		defer pingTicker.Stop()
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					h.logger.Debug().Err(err).Msg("Failed to send ping")
					return
				}
			}
		}
	}()

	sender := &wsSender{
		conn:          conn,
		done:          done,
		logger:        h.logger,
		writeDeadline: writeDeadline,
	}
	h.streamUpdates(config, sender)
}

// prepareStreamConfig extracts the optional campaign filter.
func (h *FeedHandler) prepareStreamConfig(c *gin.Context) *streamConfig {
	return &streamConfig{
		campaignID: c.Query("campaign_id"),
		ctx:        c.Request.Context(),
	}
}

func (cfg *streamConfig) wants(campaignID string) bool {
	return cfg.campaignID == "" || cfg.campaignID == campaignID
}

// streamUpdates handles the common streaming logic for both SSE and WebSocket.
func (h *FeedHandler) streamUpdates(config *streamConfig, sender messageSender) {
	updates, cancel := h.svc.Listen(config.ctx)
	defer cancel()

	// Send connected event
	if err := sender.Send(&Response{
		Type:      EventTypeConnected,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send connected event, stopping stream")
		return
	}

	// Setup heartbeat and update loop
	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	// Batch updates that arrive close together (from the same feed flush)
	batchWindow := 5 * time.Millisecond
	batchTimer := time.NewTimer(batchWindow)
	batchTimer.Stop()
	pending := make(map[string]BudgetUpdate)

	flushBatch := func() bool {
		if len(pending) == 0 {
			return true
		}
		if err := sender.Send(&Response{
			Type:      EventTypeUpdated,
			Timestamp: time.Now().Unix(),
			Budgets:   pending,
		}); err != nil {
			h.logger.Warn().
				Err(err).
				Int("campaign_count", len(pending)).
				Msg("Failed to send batch update, stopping stream")
			return false
		}
		pending = make(map[string]BudgetUpdate)
		return true
	}

	// Check if sender has a done channel (for WebSocket)
	var doneChan <-chan struct{}
	if wsSender, ok := sender.(*wsSender); ok {
		doneChan = wsSender.done
	}

	for {
		select {
		case <-config.ctx.Done():
			flushBatch()
			return
		case <-doneChan:
			// WebSocket connection closed
			h.logger.Debug().Msg("WebSocket connection closed, stopping stream")
			flushBatch()
			return
		case <-heartbeat.C:
			if !flushBatch() {
				return
			}
			if err := sender.Send(&Response{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now().Unix(),
			}); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send heartbeat, stopping stream")
				return
			}
		case <-batchTimer.C:
			if !flushBatch() {
				return
			}
			batchTimer.Stop()
		case update, ok := <-updates:
			if !ok {
				flushBatch()
				return
			}
			if !config.wants(update.CampaignID) {
				continue
			}
			pending[update.CampaignID] = toBudgetUpdate(update)

			// Drain updates from the same flush without blocking
			collected := false
			for {
				select {
				case nextUpdate, nextOk := <-updates:
					if !nextOk {
						flushBatch()
						return
					}
					if config.wants(nextUpdate.CampaignID) {
						pending[nextUpdate.CampaignID] = toBudgetUpdate(nextUpdate)
						collected = true
					}
				default:
					goto doneCollecting
				}
			}
		doneCollecting:
			// Multiple collected updates go out immediately; a single one
			// waits the batch window for siblings from the same flush
			if collected {
				if !flushBatch() {
					return
				}
			} else {
				if !batchTimer.Stop() {
					select {
					case <-batchTimer.C:
					default:
					}
				}
				batchTimer.Reset(batchWindow)
			}
		}
	}
}

// messageSender interface for sending messages (SSE or WebSocket).
type messageSender interface {
	Send(*Response) error
}

// sseSender sends messages via SSE.
type sseSender struct {
	writer http.ResponseWriter
}

func (s *sseSender) Send(resp *Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = s.writer.Write([]byte("data: " + string(payload) + "\n\n"))
	if err != nil {
		return err
	}
	s.writer.(http.Flusher).Flush()
	return nil
}

// wsSender sends messages via WebSocket.
type wsSender struct {
	conn          *websocket.Conn
	done          <-chan struct{}
	logger        zerolog.Logger
	writeDeadline time.Duration
}

func (s *wsSender) Send(resp *Response) error {
	// Check if connection is already closed
	select {
	case <-s.done:
		s.logger.Debug().Str("event_type", resp.Type).Msg("Connection already closed, skipping send")
		return io.EOF
	default:
	}

	// Set write deadline before each write
	deadline := time.Now().Add(s.writeDeadline)
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to set write deadline")
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", resp.Type).Msg("Failed to marshal response")
		return err
	}

	err = s.conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Warn().
				Err(err).
				Str("event_type", resp.Type).
				Int("payload_size", len(payload)).
				Msg("WebSocket WriteMessage failed: connection closed (EOF)")
		} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			s.logger.Warn().
				Err(err).
				Str("event_type", resp.Type).
				Int("payload_size", len(payload)).
				Msg("WebSocket WriteMessage failed: unexpected close error")
		} else {
			s.logger.Warn().
				Err(err).
				Str("event_type", resp.Type).
				Int("payload_size", len(payload)).
				Msg("WebSocket WriteMessage failed")
		}
		return err
	}

	s.logger.Debug().
		Str("event_type", resp.Type).
		Int("payload_size", len(payload)).
		Msg("WebSocket message sent successfully")

	return nil
}
