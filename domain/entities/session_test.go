package entities

import (
	"fmt"
	"testing"
	"time"
)

func TestClampInterval(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{0, 10 * time.Second},
		{-5, 10 * time.Second},
		{9, 10 * time.Second},
		{10, 10 * time.Second},
		{30, 30 * time.Second},
		{300, 300 * time.Second},
		{301, 300 * time.Second},
		{100000, 300 * time.Second},
	}

	for _, tt := range tests {
		if got := ClampInterval(tt.seconds); got != tt.want {
			t.Errorf("ClampInterval(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestNewAutoChatSessionClampsInterval(t *testing.T) {
	s := NewAutoChatSession("conn-1", "casual", 5)
	if s.Interval != 10*time.Second {
		t.Errorf("interval = %v, want 10s", s.Interval)
	}
	if !s.Active {
		t.Error("new session should be active")
	}
	if s.ID == "" {
		t.Error("new session should have an id")
	}
}

func TestSessionDue(t *testing.T) {
	s := NewAutoChatSession("conn-1", "casual", 30)
	now := time.Now()
	s.LastMessageAt = now

	if s.Due(now.Add(29 * time.Second)) {
		t.Error("session should not be due before the interval elapses")
	}
	if !s.Due(now.Add(30 * time.Second)) {
		t.Error("session should be due once the interval elapses")
	}

	s.Active = false
	if s.Due(now.Add(time.Hour)) {
		t.Error("inactive session should never be due")
	}
}

func TestSessionPauseDelaysDue(t *testing.T) {
	s := NewAutoChatSession("conn-1", "casual", 30)
	now := time.Now()
	s.LastMessageAt = now.Add(-time.Hour)

	if !s.Due(now) {
		t.Fatal("session should be due before pausing")
	}

	s.Pause(now, 90*time.Second)
	if s.Due(now.Add(90 * time.Second)) {
		t.Error("session should stay quiet for pause window plus interval")
	}
	if !s.Due(now.Add(90*time.Second + 30*time.Second)) {
		t.Error("session should become due after pause window plus interval")
	}
}

func TestMarkSentKeepsTimestampMonotonic(t *testing.T) {
	s := NewAutoChatSession("conn-1", "casual", 30)
	now := time.Now()

	s.Pause(now, 90*time.Second)
	s.MarkSent(now)

	if s.MessageCount != 1 {
		t.Errorf("message count = %d, want 1", s.MessageCount)
	}
	if s.Due(now.Add(90 * time.Second)) {
		t.Error("delivery during a pause window must not shorten it")
	}

	// Outside a pause window the timestamp advances normally.
	later := now.Add(5 * time.Minute)
	s.MarkSent(later)
	if !s.LastMessageAt.Equal(later) {
		t.Errorf("last message at = %v, want %v", s.LastMessageAt, later)
	}
}

func TestAddUtteranceEvictsOldest(t *testing.T) {
	s := NewAutoChatSession("conn-1", "casual", 30)
	now := time.Now()

	for i := 0; i < MaxRecentUtterances+3; i++ {
		s.AddUtterance(fmt.Sprintf("utterance %d", i), now)
	}

	got := s.RecentUtterances()
	if len(got) != MaxRecentUtterances {
		t.Fatalf("history length = %d, want %d", len(got), MaxRecentUtterances)
	}
	if got[0].Text != "utterance 3" {
		t.Errorf("oldest retained = %q, want %q", got[0].Text, "utterance 3")
	}
	if got[len(got)-1].Text != fmt.Sprintf("utterance %d", MaxRecentUtterances+2) {
		t.Errorf("newest retained = %q", got[len(got)-1].Text)
	}
}

func TestRecentUtterancesReturnsCopy(t *testing.T) {
	s := NewAutoChatSession("conn-1", "casual", 30)
	s.AddUtterance("original", time.Now())

	got := s.RecentUtterances()
	got[0].Text = "mutated"

	if s.RecentUtterances()[0].Text != "original" {
		t.Error("RecentUtterances should return a copy")
	}
}

func TestSessionInfo(t *testing.T) {
	s := NewAutoChatSession("conn-1", "weather", 45)
	now := time.Now()
	s.MarkSent(now)
	s.MarkSent(now)
	s.AddUtterance("hello", now)

	info := s.Info()
	if info.SessionID != s.ID {
		t.Errorf("session id = %q, want %q", info.SessionID, s.ID)
	}
	if info.Theme != "weather" {
		t.Errorf("theme = %q, want weather", info.Theme)
	}
	if info.Interval != 45 {
		t.Errorf("interval = %d, want 45", info.Interval)
	}
	if info.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", info.MessageCount)
	}
	if info.UserResponsesCount != 1 {
		t.Errorf("user responses = %d, want 1", info.UserResponsesCount)
	}
}
