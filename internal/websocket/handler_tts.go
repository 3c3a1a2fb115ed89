package websocket

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
)

// Control prefixes of the raw-text synthesis protocol.
const (
	ctrlChangeLanguage = "CHANGE_LANGUAGE:"
	ctrlChangeSpeaker  = "CHANGE_SPEAKER:"
)

// TTSHandler drives the synthesis-only endpoint. The protocol is raw
// text, not JSON: control strings switch the voice, anything else is
// synthesized and streamed back as framed audio.
type TTSHandler struct {
	hub      *Hub
	streamer *AudioStreamer
	logger   *zap.Logger
}

// NewTTSHandler wires the synthesis endpoint.
func NewTTSHandler(hub *Hub, streamer *AudioStreamer, logger *zap.Logger) *TTSHandler {
	return &TTSHandler{hub: hub, streamer: streamer, logger: logger}
}

func (h *TTSHandler) OnOpen(c *Client) {
	h.sendText(c, "READY")
	h.logger.Info("tts connection opened", zap.String("connID", c.ID()))
}

func (h *TTSHandler) OnText(c *Client, data []byte) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return
	}

	switch {
	case strings.HasPrefix(text, ctrlChangeLanguage):
		code := strings.TrimSpace(strings.TrimPrefix(text, ctrlChangeLanguage))
		if code == "" {
			h.sendText(c, "ERROR: empty language code")
			return
		}
		voice := h.streamer.Voice(c.ID())
		voice.Language = code
		if err := h.streamer.SetVoice(c.ID(), voice); err != nil {
			h.sendText(c, fmt.Sprintf("ERROR: %v", err))
			return
		}
		h.sendText(c, "LANGUAGE_CHANGED:"+code)

	case strings.HasPrefix(text, ctrlChangeSpeaker):
		raw := strings.TrimSpace(strings.TrimPrefix(text, ctrlChangeSpeaker))
		id, err := strconv.Atoi(raw)
		if err != nil {
			h.sendText(c, "ERROR: invalid speaker id")
			return
		}
		voice := h.streamer.Voice(c.ID())
		voice.SpeakerID = id
		if err := h.streamer.SetVoice(c.ID(), voice); err != nil {
			h.sendText(c, fmt.Sprintf("ERROR: %v", err))
			return
		}
		h.sendText(c, "SPEAKER_CHANGED:"+raw)

	default:
		if err := h.streamer.Stream(c.ID(), text); err != nil {
			h.logger.Warn("synthesis stream failed",
				zap.String("connID", c.ID()),
				zap.Error(err))
		}
	}
}

func (h *TTSHandler) OnClose(c *Client) {
	h.streamer.Release(c.ID())
	h.logger.Info("tts connection closed", zap.String("connID", c.ID()))
}

func (h *TTSHandler) sendText(c *Client, text string) {
	if err := h.hub.SendTo(c.ID(), WriteData{Type: websocket.TextMessage, Payload: []byte(text)}); err != nil {
		h.logger.Debug("control reply not delivered",
			zap.String("connID", c.ID()),
			zap.Error(err))
	}
}
