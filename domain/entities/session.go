package entities

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MinIntervalSeconds and MaxIntervalSeconds bound the auto-chat
	// message interval. Values outside the range are clamped, never rejected.
	MinIntervalSeconds = 10
	MaxIntervalSeconds = 300

	// MaxRecentUtterances caps the per-session utterance history.
	MaxRecentUtterances = 10
)

// ClampInterval normalizes a requested interval (in seconds) into the
// allowed range.
func ClampInterval(seconds int) time.Duration {
	if seconds < MinIntervalSeconds {
		seconds = MinIntervalSeconds
	}
	if seconds > MaxIntervalSeconds {
		seconds = MaxIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Utterance is one recognized user phrase recorded against a session.
type Utterance struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// AutoChatSession is one timer-driven conversation bound to a single
// connection. The auto-chat manager is the sole mutator; other components
// only see read-only snapshots.
type AutoChatSession struct {
	ID            string
	ConnectionID  string
	Theme         string
	Interval      time.Duration
	Active        bool
	LastMessageAt time.Time
	MessageCount  int
	CreatedAt     time.Time

	recentUtterances []Utterance
}

// NewAutoChatSession creates an active session for a connection. The
// interval is clamped into [MinIntervalSeconds, MaxIntervalSeconds].
func NewAutoChatSession(connectionID, theme string, intervalSeconds int) *AutoChatSession {
	now := time.Now()
	return &AutoChatSession{
		ID:            uuid.NewString(),
		ConnectionID:  connectionID,
		Theme:         theme,
		Interval:      ClampInterval(intervalSeconds),
		Active:        true,
		LastMessageAt: now,
		CreatedAt:     now,
	}
}

// Due reports whether the session is ready for its next scheduled message.
func (s *AutoChatSession) Due(now time.Time) bool {
	return s.Active && now.Sub(s.LastMessageAt) >= s.Interval
}

// MarkSent records a delivered message. LastMessageAt only moves
// forward: a delivery during a pause window must not pull the next
// scheduled message back to one interval from now.
func (s *AutoChatSession) MarkSent(now time.Time) {
	if now.After(s.LastMessageAt) {
		s.LastMessageAt = now
	}
	s.MessageCount++
}

// Pause delays the next scheduled message by at least d from now by
// pushing LastMessageAt into the future. Paused is not a distinct state,
// just "not yet due".
func (s *AutoChatSession) Pause(now time.Time, d time.Duration) {
	s.LastMessageAt = now.Add(d)
}

// AddUtterance appends a recognized user phrase, evicting the oldest
// entry once the history holds MaxRecentUtterances items.
func (s *AutoChatSession) AddUtterance(text string, now time.Time) {
	s.recentUtterances = append(s.recentUtterances, Utterance{Text: text, Timestamp: now})
	if len(s.recentUtterances) > MaxRecentUtterances {
		s.recentUtterances = s.recentUtterances[len(s.recentUtterances)-MaxRecentUtterances:]
	}
}

// RecentUtterances returns a copy of the utterance history, oldest first.
func (s *AutoChatSession) RecentUtterances() []Utterance {
	out := make([]Utterance, len(s.recentUtterances))
	copy(out, s.recentUtterances)
	return out
}

// SessionInfo is the read-only snapshot served by the introspection API.
type SessionInfo struct {
	SessionID          string    `json:"session_id"`
	Theme              string    `json:"theme"`
	Interval           int       `json:"interval"`
	Active             bool      `json:"active"`
	MessageCount       int       `json:"message_count"`
	CreatedAt          time.Time `json:"created_at"`
	LastMessageTime    time.Time `json:"last_message_time"`
	UserResponsesCount int       `json:"user_responses_count"`
}

// Info builds the introspection snapshot for this session.
func (s *AutoChatSession) Info() SessionInfo {
	return SessionInfo{
		SessionID:          s.ID,
		Theme:              s.Theme,
		Interval:           int(s.Interval / time.Second),
		Active:             s.Active,
		MessageCount:       s.MessageCount,
		CreatedAt:          s.CreatedAt,
		LastMessageTime:    s.LastMessageAt,
		UserResponsesCount: len(s.recentUtterances),
	}
}
