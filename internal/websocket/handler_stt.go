package websocket

import (
	"encoding/base64"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/domain/repositories"
	"github.com/sorivoice/server/internal/stt"
)

// STTHandler drives the recognition-only endpoint: inbound audio chunks
// come back as stt_result frames, nothing else happens.
type STTHandler struct {
	hub       *Hub
	engine    repositories.SpeechToText
	sttConfig stt.Config
	logger    *zap.Logger

	mu        sync.Mutex
	pipelines map[string]*stt.Pipeline
}

// NewSTTHandler wires the recognition endpoint.
func NewSTTHandler(hub *Hub, engine repositories.SpeechToText, sttConfig stt.Config, logger *zap.Logger) *STTHandler {
	return &STTHandler{
		hub:       hub,
		engine:    engine,
		sttConfig: sttConfig,
		logger:    logger,
		pipelines: make(map[string]*stt.Pipeline),
	}
}

func (h *STTHandler) OnOpen(c *Client) {
	pipe := stt.New(h.engine, h.sttConfig, h.hub.metrics, h.logger)
	pipe.Start(c.Context())

	h.mu.Lock()
	h.pipelines[c.ID()] = pipe
	h.mu.Unlock()

	go h.consumeResults(c, pipe)

	h.logger.Info("stt connection opened", zap.String("connID", c.ID()))
}

func (h *STTHandler) OnText(c *Client, data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		h.reply(c, NewErrorMessage(err.Error()))
		return
	}

	switch m := msg.(type) {
	case *PingMessage:
		h.reply(c, NewPongMessage(m.Timestamp))

	case *AudioMessage:
		payload, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			h.reply(c, NewErrorMessage("invalid base64 audio data"))
			return
		}

		h.mu.Lock()
		pipe, ok := h.pipelines[c.ID()]
		h.mu.Unlock()
		if !ok {
			return
		}

		pipe.Ingest(entities.AudioChunk{
			Payload:    payload,
			SampleRate: m.SampleRate,
			ReceivedAt: time.Now(),
			IsFinal:    m.IsFinal,
		})

	default:
		h.reply(c, NewErrorMessage("unsupported message on recognition endpoint"))
	}
}

func (h *STTHandler) OnClose(c *Client) {
	h.mu.Lock()
	pipe, ok := h.pipelines[c.ID()]
	delete(h.pipelines, c.ID())
	h.mu.Unlock()

	if ok {
		pipe.Close()
	}
	h.logger.Info("stt connection closed", zap.String("connID", c.ID()))
}

func (h *STTHandler) consumeResults(c *Client, pipe *stt.Pipeline) {
	for result := range pipe.Results() {
		h.reply(c, NewSTTResultMessage(
			result.Text,
			result.Confidence,
			result.IsFinal,
			time.Now().Format(time.RFC3339),
		))
	}

	if err := pipe.Err(); err != nil {
		h.reply(c, NewErrorMessage("speech recognition service unavailable"))
	}
}

func (h *STTHandler) reply(c *Client, v interface{}) {
	if err := h.hub.SendJSON(c.ID(), v); err != nil {
		h.logger.Debug("reply not delivered",
			zap.String("connID", c.ID()),
			zap.Error(err))
	}
}
