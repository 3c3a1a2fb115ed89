package websocket

import (
	"encoding/base64"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/domain/repositories"
	"github.com/sorivoice/server/internal/autochat"
	"github.com/sorivoice/server/internal/stt"
)

// ChatHandler drives the full-conversation endpoint: inbound audio runs
// through a per-connection recognition pipeline, recognized utterances
// get a reply, and the reply is pushed back as text plus framed audio.
// Auto-chat control messages are forwarded to the scheduler.
type ChatHandler struct {
	hub       *Hub
	engine    repositories.SpeechToText
	responder repositories.Responder
	streamer  *AudioStreamer
	manager   *autochat.Manager
	sttConfig stt.Config
	logger    *zap.Logger

	mu        sync.Mutex
	pipelines map[string]*stt.Pipeline
}

// NewChatHandler wires the conversation endpoint.
func NewChatHandler(
	hub *Hub,
	engine repositories.SpeechToText,
	responder repositories.Responder,
	streamer *AudioStreamer,
	manager *autochat.Manager,
	sttConfig stt.Config,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{
		hub:       hub,
		engine:    engine,
		responder: responder,
		streamer:  streamer,
		manager:   manager,
		sttConfig: sttConfig,
		logger:    logger,
		pipelines: make(map[string]*stt.Pipeline),
	}
}

// OnOpen creates the connection's recognition pipeline and starts
// consuming its results.
func (h *ChatHandler) OnOpen(c *Client) {
	pipe := stt.New(h.engine, h.sttConfig, h.hub.metrics, h.logger)
	pipe.Start(c.Context())

	h.mu.Lock()
	h.pipelines[c.ID()] = pipe
	h.mu.Unlock()

	go h.consumeResults(c, pipe)

	h.logger.Info("chat connection opened", zap.String("connID", c.ID()))
}

// OnText dispatches one inbound JSON frame. A malformed or unknown
// frame gets an error reply; the connection stays open.
func (h *ChatHandler) OnText(c *Client, data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		h.logger.Warn("rejected client frame",
			zap.String("connID", c.ID()),
			zap.Error(err))
		h.reply(c, NewErrorMessage(err.Error()))
		return
	}

	switch m := msg.(type) {
	case *PingMessage:
		h.reply(c, NewPongMessage(m.Timestamp))

	case *AudioMessage:
		h.handleAudio(c, m)

	case *AutoChatStartMessage:
		sessionID := h.manager.StartSession(c.ID(), m.Theme, m.Interval)
		info, _ := h.manager.GetSession(sessionID)
		h.reply(c, NewAutoChatStartedMessage(sessionID, info.Theme, info.Interval))

	case *AutoChatStopMessage:
		if !h.manager.StopForConnection(c.ID()) {
			h.reply(c, NewErrorMessage("no active auto-chat session"))
		}

	case *AutoChatUpdateMessage:
		sessionID, ok := h.manager.SessionForConnection(c.ID())
		if !ok {
			h.reply(c, NewErrorMessage("no active auto-chat session"))
			return
		}
		h.manager.UpdateSettings(sessionID, m.Theme, m.Interval)
	}
}

// OnClose tears down the pipeline and any scheduler state bound to the
// connection.
func (h *ChatHandler) OnClose(c *Client) {
	h.mu.Lock()
	pipe, ok := h.pipelines[c.ID()]
	delete(h.pipelines, c.ID())
	h.mu.Unlock()

	if ok {
		pipe.Close()
	}
	h.manager.StopForConnection(c.ID())
	h.streamer.Release(c.ID())

	h.logger.Info("chat connection closed", zap.String("connID", c.ID()))
}

// handleAudio decodes one chunk and hands it to the pipeline. Ingest
// never blocks, so the read pump keeps draining the socket even when
// recognition lags.
func (h *ChatHandler) handleAudio(c *Client, m *AudioMessage) {
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
}

// consumeResults turns recognition results into the reply flow: echo
// the utterance, feed the scheduler, answer, and stream the answer's
// audio.
func (h *ChatHandler) consumeResults(c *Client, pipe *stt.Pipeline) {
	for result := range pipe.Results() {
		ts := time.Now().Format(time.RFC3339)
		h.reply(c, NewUserMessage(result.Text, result.Confidence, ts))

		h.manager.HandleUserUtterance(c.ID(), result.Text)

		answer, err := h.responder.Reply(c.Context(), result.Text)
		if err != nil {
			h.logger.Error("responder failed",
				zap.String("connID", c.ID()),
				zap.Error(err))
			h.reply(c, NewErrorMessage("failed to generate response"))
			continue
		}

		h.reply(c, NewSystemResponse(answer, time.Now().Format(time.RFC3339)))

		if err := h.streamer.Stream(c.ID(), answer); err != nil {
			h.logger.Warn("response audio stream failed",
				zap.String("connID", c.ID()),
				zap.Error(err))
		}
	}

	if err := pipe.Err(); err != nil {
		h.reply(c, NewErrorMessage("speech recognition service unavailable"))
	}
}

func (h *ChatHandler) reply(c *Client, v interface{}) {
	if err := h.hub.SendJSON(c.ID(), v); err != nil {
		h.logger.Debug("reply not delivered",
			zap.String("connID", c.ID()),
			zap.Error(err))
	}
}
