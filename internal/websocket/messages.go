package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType tags every JSON frame exchanged with a client.
type MessageType string

// Client-to-server message types.
const (
	MessageTypePing           MessageType = "ping"
	MessageTypeAudio          MessageType = "audio"
	MessageTypeAutoChatStart  MessageType = "auto_chat_start"
	MessageTypeAutoChatStop   MessageType = "auto_chat_stop"
	MessageTypeAutoChatUpdate MessageType = "auto_chat_update"
)

// Server-to-client message types.
const (
	MessageTypePong                    MessageType = "pong"
	MessageTypeUserMessage             MessageType = "user_message"
	MessageTypeSystemResponse          MessageType = "system_response"
	MessageTypeSTTResult               MessageType = "stt_result"
	MessageTypeAutoChatStarted         MessageType = "auto_chat_started"
	MessageTypeAutoChatStopped         MessageType = "auto_chat_stopped"
	MessageTypeAutoChatMessage         MessageType = "auto_chat_message"
	MessageTypeAutoChatSettingsUpdated MessageType = "auto_chat_settings_updated"
	MessageTypeError                   MessageType = "error"
)

// Control frames bracketing a run of binary audio frames.
const (
	FrameAudioStart = "|AUDIO_START|"
	FrameAudioEnd   = "|AUDIO_END|"
)

// ErrUnknownMessageType is returned for any type outside the closed set
// of client messages.
var ErrUnknownMessageType = errors.New("unknown message type")

// Envelope is the common part of every JSON frame.
type Envelope struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// PingMessage is a client liveness probe.
type PingMessage struct {
	Envelope
}

// AudioMessage carries one base64-encoded audio chunk.
type AudioMessage struct {
	Envelope
	Data       string `json:"data"`
	SampleRate int    `json:"sample_rate,omitempty"`
	IsFinal    bool   `json:"is_final,omitempty"`
}

// AutoChatStartMessage requests a scheduler session.
type AutoChatStartMessage struct {
	Envelope
	Theme    string `json:"theme"`
	Interval int    `json:"interval"`
}

// AutoChatStopMessage stops the connection's scheduler session.
type AutoChatStopMessage struct {
	Envelope
}

// AutoChatUpdateMessage changes theme and/or interval of the
// connection's session. Nil fields are left untouched.
type AutoChatUpdateMessage struct {
	Envelope
	Theme    *string `json:"theme,omitempty"`
	Interval *int    `json:"interval,omitempty"`
}

// ParseClientMessage decodes an inbound JSON frame into its typed form.
// Unknown types yield ErrUnknownMessageType; the connection stays open.
func ParseClientMessage(data []byte) (interface{}, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}

	switch envelope.Type {
	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypeAudio:
		var msg AudioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio message: %w", err)
		}
		if msg.Data == "" {
			return nil, fmt.Errorf("audio message has no data")
		}
		return &msg, nil

	case MessageTypeAutoChatStart:
		var msg AutoChatStartMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid auto_chat_start message: %w", err)
		}
		return &msg, nil

	case MessageTypeAutoChatStop:
		var msg AutoChatStopMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid auto_chat_stop message: %w", err)
		}
		return &msg, nil

	case MessageTypeAutoChatUpdate:
		var msg AutoChatUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid auto_chat_update message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
	}
}

// PongMessage answers a ping, echoing the client's timestamp.
type PongMessage struct {
	Envelope
}

// NewPongMessage builds the pong reply for a ping.
func NewPongMessage(timestamp string) *PongMessage {
	return &PongMessage{Envelope: Envelope{Type: MessageTypePong, Timestamp: timestamp}}
}

// UserMessage echoes a recognized utterance back to the client.
type UserMessage struct {
	Envelope
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// NewUserMessage builds a user_message frame.
func NewUserMessage(text string, confidence float64, timestamp string) *UserMessage {
	return &UserMessage{
		Envelope:   Envelope{Type: MessageTypeUserMessage, Timestamp: timestamp},
		Text:       text,
		Confidence: confidence,
	}
}

// SystemResponse delivers reply text; the audio itself follows as a
// framed run of binary chunks.
type SystemResponse struct {
	Envelope
	Text string `json:"text"`
}

// NewSystemResponse builds a system_response frame.
func NewSystemResponse(text, timestamp string) *SystemResponse {
	return &SystemResponse{
		Envelope: Envelope{Type: MessageTypeSystemResponse, Timestamp: timestamp},
		Text:     text,
	}
}

// AutoChatStartedMessage acknowledges a scheduler session start,
// echoing the effective theme and clamped interval.
type AutoChatStartedMessage struct {
	Envelope
	SessionID string `json:"session_id"`
	Theme     string `json:"theme"`
	Interval  int    `json:"interval"`
}

// NewAutoChatStartedMessage builds an auto_chat_started frame.
func NewAutoChatStartedMessage(sessionID, theme string, intervalSeconds int) *AutoChatStartedMessage {
	return &AutoChatStartedMessage{
		Envelope:  Envelope{Type: MessageTypeAutoChatStarted, Timestamp: time.Now().Format(time.RFC3339)},
		SessionID: sessionID,
		Theme:     theme,
		Interval:  intervalSeconds,
	}
}

// STTResultMessage is the recognition-only result frame used on the STT
// endpoint.
type STTResultMessage struct {
	Envelope
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
}

// NewSTTResultMessage builds an stt_result frame.
func NewSTTResultMessage(text string, confidence float64, isFinal bool, timestamp string) *STTResultMessage {
	return &STTResultMessage{
		Envelope:   Envelope{Type: MessageTypeSTTResult, Timestamp: timestamp},
		Text:       text,
		Confidence: confidence,
		IsFinal:    isFinal,
	}
}

// ErrorMessage reports a per-connection failure. Errors never cross
// connection boundaries.
type ErrorMessage struct {
	Envelope
	Error string `json:"error"`
}

// NewErrorMessage builds an error frame.
func NewErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{
		Envelope: Envelope{Type: MessageTypeError, Timestamp: time.Now().Format(time.RFC3339)},
		Error:    message,
	}
}
