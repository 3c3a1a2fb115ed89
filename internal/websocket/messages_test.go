package websocket

import (
	"errors"
	"testing"
)

func TestParseClientMessagePing(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"ping","timestamp":"2026-01-02T03:04:05Z"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ping, ok := msg.(*PingMessage)
	if !ok {
		t.Fatalf("got %T, want *PingMessage", msg)
	}
	if ping.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp = %q", ping.Timestamp)
	}
}

func TestParseClientMessageAudio(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"audio","data":"aGVsbG8=","sample_rate":16000,"is_final":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audio, ok := msg.(*AudioMessage)
	if !ok {
		t.Fatalf("got %T, want *AudioMessage", msg)
	}
	if audio.Data != "aGVsbG8=" {
		t.Errorf("data = %q", audio.Data)
	}
	if audio.SampleRate != 16000 {
		t.Errorf("sample rate = %d", audio.SampleRate)
	}
	if !audio.IsFinal {
		t.Error("is_final should be set")
	}
}

func TestParseClientMessageAudioWithoutData(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"audio"}`)); err == nil {
		t.Error("audio without data should be rejected")
	}
}

func TestParseClientMessageAutoChatStart(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"auto_chat_start","theme":"weather","interval":60}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start, ok := msg.(*AutoChatStartMessage)
	if !ok {
		t.Fatalf("got %T, want *AutoChatStartMessage", msg)
	}
	if start.Theme != "weather" || start.Interval != 60 {
		t.Errorf("theme = %q, interval = %d", start.Theme, start.Interval)
	}
}

func TestParseClientMessageAutoChatUpdatePartial(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"auto_chat_update","interval":45}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	update, ok := msg.(*AutoChatUpdateMessage)
	if !ok {
		t.Fatalf("got %T, want *AutoChatUpdateMessage", msg)
	}
	if update.Theme != nil {
		t.Error("omitted theme should stay nil")
	}
	if update.Interval == nil || *update.Interval != 45 {
		t.Error("interval should be 45")
	}
}

func TestParseClientMessageUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"subscribe"}`))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("err = %v, want ErrUnknownMessageType", err)
	}
}

func TestParseClientMessageInvalidJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Error("invalid JSON should be rejected")
	}
}
