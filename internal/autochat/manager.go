// Package autochat schedules autonomous conversation messages. One
// manager serves the whole process: a single polling loop fires every
// due session, regardless of how many sessions exist.
package autochat

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/internal/conversation"
	"github.com/sorivoice/server/internal/metrics"
)

// Sender delivers a JSON frame to one connection. Implemented by the
// websocket hub.
type Sender interface {
	SendJSON(connID string, v interface{}) error
}

// SpeechStreamer delivers synthesized audio for a text to one
// connection. Implemented by the websocket audio streamer.
type SpeechStreamer interface {
	Stream(connID, text string) error
}

// Config carries the scheduler tunables.
type Config struct {
	// Tick is the polling period of the shared loop. It bounds the
	// scheduling error: a due session fires within one tick.
	Tick time.Duration
	// PauseWindow is how long a session stays quiet after the user
	// speaks.
	PauseWindow time.Duration
	// DefaultTheme and DefaultInterval apply when a start request
	// omits them.
	DefaultTheme    string
	DefaultInterval int
}

// autoChatMessage is the scheduled-message frame pushed to clients.
type autoChatMessage struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	Text         string `json:"text"`
	Theme        string `json:"theme"`
	MessageCount int    `json:"message_count"`
	Timestamp    string `json:"timestamp"`
}

// settingsUpdatedMessage notifies the owning connection of a settings
// change.
type settingsUpdatedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Theme     string `json:"theme"`
	Interval  int    `json:"interval"`
}

// stoppedNotice is the best-effort stop notification.
type stoppedNotice struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Manager owns every auto-chat session and is their sole mutator. Other
// components read snapshots through GetSession/ListSessions.
type Manager struct {
	sender   Sender
	streamer SpeechStreamer
	patterns *conversation.Patterns
	config   Config
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*entities.AutoChatSession
	byConn   map[string]string

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewManager creates a manager. The polling loop starts lazily with the
// first session.
func NewManager(
	sender Sender,
	streamer SpeechStreamer,
	patterns *conversation.Patterns,
	config Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Manager {
	if config.Tick <= 0 {
		config.Tick = 5 * time.Second
	}
	if config.PauseWindow <= 0 {
		config.PauseWindow = 90 * time.Second
	}
	if config.DefaultTheme == "" {
		config.DefaultTheme = conversation.DefaultTheme
	}
	if config.DefaultInterval <= 0 {
		config.DefaultInterval = 30
	}
	return &Manager{
		sender:   sender,
		streamer: streamer,
		patterns: patterns,
		config:   config,
		logger:   logger,
		metrics:  m,
		sessions: make(map[string]*entities.AutoChatSession),
		byConn:   make(map[string]string),
	}
}

// StartSession creates a session for the connection, stopping any
// existing one first so a connection never has two active sessions. The
// opening greeting is delivered immediately, bypassing the timer.
func (m *Manager) StartSession(connID, theme string, intervalSeconds int) string {
	m.StopForConnection(connID)

	if theme == "" || !m.patterns.HasTheme(theme) {
		theme = m.config.DefaultTheme
	}
	if intervalSeconds == 0 {
		intervalSeconds = m.config.DefaultInterval
	}

	session := entities.NewAutoChatSession(connID, theme, intervalSeconds)

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.byConn[connID] = session.ID
	m.ensureLoopLocked()
	m.mu.Unlock()

	m.metrics.ActiveAutoChatSessions.Inc()
	m.logger.Info("auto-chat session started",
		zap.String("sessionID", session.ID),
		zap.String("connID", connID),
		zap.String("theme", session.Theme),
		zap.Duration("interval", session.Interval))

	m.deliver(session.ID, m.patterns.Greeting())

	return session.ID
}

// StopSession deactivates and removes a session, sending a best-effort
// stop notification. Returns whether a session was actually removed.
func (m *Manager) StopSession(sessionID string) bool {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	session.Active = false
	delete(m.sessions, sessionID)
	delete(m.byConn, session.ConnectionID)
	m.mu.Unlock()

	m.metrics.ActiveAutoChatSessions.Dec()

	notice := stoppedNotice{
		Type:      "auto_chat_stopped",
		SessionID: sessionID,
		Message:   "자동 대화가 중지되었습니다.",
	}
	if err := m.sender.SendJSON(session.ConnectionID, notice); err != nil {
		m.logger.Debug("stop notice not delivered",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}

	m.logger.Info("auto-chat session stopped", zap.String("sessionID", sessionID))
	return true
}

// StopForConnection stops the session bound to a connection, if any.
// Called on explicit stop requests and unconditionally on disconnect.
func (m *Manager) StopForConnection(connID string) bool {
	m.mu.RLock()
	sessionID, ok := m.byConn[connID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return m.StopSession(sessionID)
}

// PauseSession delays the session's next scheduled message by at least d.
func (m *Manager) PauseSession(sessionID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok {
		session.Pause(time.Now(), d)
	}
}

// HandleUserUtterance records a recognized utterance against the
// connection's session, quiets the timer for the pause window, and
// pushes an immediate contextual reaction.
func (m *Manager) HandleUserUtterance(connID, text string) {
	m.mu.Lock()
	sessionID, ok := m.byConn[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	session := m.sessions[sessionID]
	now := time.Now()
	session.AddUtterance(text, now)
	session.Pause(now, m.config.PauseWindow)
	followUp := session.MessageCount > 0
	theme := session.Theme
	m.mu.Unlock()

	reply := m.patterns.Reaction(text)
	if followUp {
		reply += " " + m.patterns.Themed(theme)
	}
	m.deliver(sessionID, reply)
}

// UpdateSettings changes theme and/or interval, re-clamping the
// interval, and notifies the owning connection. Returns whether the
// session exists.
func (m *Manager) UpdateSettings(sessionID string, theme *string, intervalSeconds *int) bool {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if theme != nil && m.patterns.HasTheme(*theme) {
		session.Theme = *theme
	}
	if intervalSeconds != nil {
		session.Interval = entities.ClampInterval(*intervalSeconds)
	}
	connID := session.ConnectionID
	notice := settingsUpdatedMessage{
		Type:      "auto_chat_settings_updated",
		SessionID: sessionID,
		Theme:     session.Theme,
		Interval:  int(session.Interval / time.Second),
	}
	m.mu.Unlock()

	if err := m.sender.SendJSON(connID, notice); err != nil {
		m.logger.Debug("settings notice not delivered",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}
	return true
}

// SessionForConnection returns the id of the connection's active
// session, if any.
func (m *Manager) SessionForConnection(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byConn[connID]
	return id, ok
}

// GetSession returns a read-only snapshot of one session.
func (m *Manager) GetSession(sessionID string) (entities.SessionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return entities.SessionInfo{}, false
	}
	return session.Info(), true
}

// ListSessions returns snapshots of every session.
func (m *Manager) ListSessions() []entities.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session.Info())
	}
	return out
}

// Themes lists the selectable conversation themes.
func (m *Manager) Themes() []string {
	return m.patterns.ThemeNames()
}

// Shutdown stops the polling loop cooperatively. Sessions are left in
// place; the process is going away anyway.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop := m.stop
	done := m.done
	m.mu.Unlock()

	close(stop)
	<-done
}

// ensureLoopLocked starts the shared polling loop if it is not running.
// Caller holds m.mu.
func (m *Manager) ensureLoopLocked() {
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
}

// loop is the single scheduler tick loop for the process. The tick is
// smaller than the minimum session interval, so a due session fires
// within one tick of its due time.
func (m *Manager) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			m.logger.Info("auto-chat loop stopped")
			return
		case <-ticker.C:
			m.fireDue()
		}
	}
}

// fireDue sends the next scheduled message of every due session. One
// failing session is removed and skipped; the loop continues for the
// others.
func (m *Manager) fireDue() {
	now := time.Now()

	type dueSession struct {
		id    string
		theme string
		first bool
	}

	m.mu.RLock()
	due := make([]dueSession, 0)
	for _, session := range m.sessions {
		if session.Due(now) {
			due = append(due, dueSession{
				id:    session.ID,
				theme: session.Theme,
				first: session.MessageCount == 0,
			})
		}
	}
	m.mu.RUnlock()

	for _, s := range due {
		var text string
		if s.first {
			text = m.patterns.Greeting()
		} else {
			text = m.patterns.Contextual(s.theme, now)
		}
		m.deliver(s.id, text)
	}
}

// deliver pushes one message through the session's connection and
// synthesizes its audio. A dead connection removes the session.
func (m *Manager) deliver(sessionID, text string) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	session.MarkSent(time.Now())
	msg := autoChatMessage{
		Type:         "auto_chat_message",
		SessionID:    session.ID,
		Text:         text,
		Theme:        session.Theme,
		MessageCount: session.MessageCount,
		Timestamp:    time.Now().Format(time.RFC3339),
	}
	connID := session.ConnectionID
	m.mu.Unlock()

	if err := m.sender.SendJSON(connID, msg); err != nil {
		// The connection is gone; drop the session rather than retry.
		m.logger.Warn("auto-chat delivery failed, removing session",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		m.removeSilently(sessionID)
		return
	}
	m.metrics.ScheduledMessagesSent.Inc()

	if err := m.streamer.Stream(connID, text); err != nil {
		m.logger.Warn("auto-chat audio stream failed",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}
}

// removeSilently drops a session without the stop notification; used
// when the connection is already dead.
func (m *Manager) removeSilently(sessionID string) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if ok {
		session.Active = false
		delete(m.sessions, sessionID)
		delete(m.byConn, session.ConnectionID)
	}
	m.mu.Unlock()
	if ok {
		m.metrics.ActiveAutoChatSessions.Dec()
	}
}
