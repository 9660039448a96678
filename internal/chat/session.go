// Package chat holds the streaming generation state machine, the per-tab
// histories and the global interaction log.
package chat

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrInFlight is returned by Begin while another generation is running.
	ErrInFlight = errors.New("a generation is already in flight")
	// ErrNotInFlight is returned by stream transitions with no running generation.
	ErrNotInFlight = errors.New("no generation in flight")
	// ErrWrongTab is returned when a chunk targets a tab other than the active one.
	ErrWrongTab = errors.New("chunk targets a tab that is not generating")
	// ErrUnknownTab is returned for tabs outside AllTabs.
	ErrUnknownTab = errors.New("unknown tab")
)

// Meta describes the exchange a generation belongs to
type Meta struct {
	UserQuery     string
	Kind          Kind
	Prompt        bool
	SelectedTitle string
}

// Session is the process-wide chat state. Every mutation goes through a
// named transition; readers take a Snapshot.
type Session struct {
	mu sync.RWMutex

	phase     Phase
	loading   bool
	err       string
	success   bool
	isTyping  bool
	chatID    string
	activeTab Tab
	tabs      map[Tab]*TabState
	history   []HistoryEntry

	now    func() time.Time
	lastID int64
}

// NewSession creates an idle session with every tab empty.
func NewSession() *Session {
	s := &Session{now: time.Now}
	s.tabs = newTabs()
	return s
}

func newTabs() map[Tab]*TabState {
	tabs := make(map[Tab]*TabState, len(AllTabs))
	for _, tab := range AllTabs {
		tabs[tab] = &TabState{}
	}
	return tabs
}

// Begin moves the session to Pending for a generation targeting tab.
func (s *Session) Begin(tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading {
		return ErrInFlight
	}
	s.phase = PhasePending
	s.loading = true
	s.isTyping = true
	s.err = ""
	s.success = false
	s.chatID = ""
	s.activeTab = tab
	s.tabs[tab].CurrentText = ""
	return nil
}

// SetChatID records the server correlation id of the running generation.
func (s *Session) SetChatID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatID = id
}

// ApplyChunk appends chunk to the active tab's buffer. The first chunk ends
// the typing indicator.
func (s *Session) ApplyChunk(tab Tab, chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inFlight() {
		return ErrNotInFlight
	}
	if tab != s.activeTab {
		return ErrWrongTab
	}
	if chunk == "" {
		return nil
	}
	state := s.tabs[tab]
	state.CurrentText += chunk
	if s.phase == PhasePending {
		s.phase = PhaseStreaming
		s.isTyping = false
	}
	return nil
}

// Succeed commits the active tab's buffer as a new history entry.
func (s *Session) Succeed(meta Meta) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inFlight() {
		return Entry{}, ErrNotInFlight
	}
	state := s.tabs[s.activeTab]
	entry := Entry{
		UserQuery:     meta.UserQuery,
		Response:      state.CurrentText,
		Kind:          meta.Kind,
		Prompt:        meta.Prompt,
		SelectedTitle: meta.SelectedTitle,
	}
	if entry.Kind == "" {
		entry.Kind = KindTitleData
	}
	s.appendLocked(s.activeTab, entry)
	state.CurrentText = ""

	s.phase = PhaseSucceeded
	s.loading = false
	s.success = true
	s.isTyping = false
	return entry, nil
}

// Fail settles the running generation as failed. Nothing partial is kept.
func (s *Session) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight() {
		s.tabs[s.activeTab].CurrentText = ""
		s.phase = PhaseFailed
	}
	s.err = msg
	s.success = false
	s.isTyping = false
	s.loading = false
}

// StopAcknowledged records that the backend accepted a stop request. The
// stream still governs how the request settles.
func (s *Session) StopAcknowledged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isTyping = false
}

// StopRejected records a failed stop request without settling the stream.
func (s *Session) StopRejected(msg string) {
	s.RecordError(msg)
}

// RecordError stores msg on the session without changing the phase.
func (s *Session) RecordError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

// AppendLocal pushes entry onto tab's history and onto the global log with a
// fresh timestamp-derived id.
func (s *Session) AppendLocal(tab Tab, entry Entry) (HistoryEntry, error) {
	if !tab.Valid() {
		return HistoryEntry{}, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(tab, entry), nil
}

func (s *Session) appendLocked(tab Tab, entry Entry) HistoryEntry {
	if entry.Kind == "" {
		entry.Kind = KindTitleData
	}
	s.tabs[tab].History = append(s.tabs[tab].History, entry)
	global := HistoryEntry{
		ID:            s.nextID(),
		UserQuery:     entry.UserQuery,
		ModelResponse: entry.Response,
		ActionType:    string(entry.Kind),
		Selected:      entry.SelectedTitle,
	}
	s.history = append(s.history, global)
	return global
}

// nextID returns the current unix millisecond, bumped past the last id
// handed out so ids stay strictly increasing.
func (s *Session) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// MergeFetched folds server-recorded entries into the global log and
// returns how many were added.
func (s *Session) MergeFetched(entries []HistoryEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := MergeHistory(s.history, entries)
	added := len(merged) - len(s.history)
	s.history = merged
	return added
}

// ClearTab empties tab's history and buffer, and the global log.
func (s *Session) ClearTab(tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tab] = &TabState{}
	s.history = nil
	return nil
}

// ClearAll resets the status flags and every tab. The global log is kept.
func (s *Session) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseIdle
	s.loading = false
	s.err = ""
	s.success = false
	s.isTyping = false
	s.tabs = newTabs()
}

// ResetHistory empties only the global log.
func (s *Session) ResetHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// RemoveLast drops the newest entry of tab's history.
func (s *Session) RemoveLast(tab Tab) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.tabs[tab]
	if !ok || len(state.History) == 0 {
		return Entry{}, false
	}
	last := state.History[len(state.History)-1]
	state.History = state.History[:len(state.History)-1]
	return last, true
}

// Reset returns the session to its initial state, as on logout.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseIdle
	s.loading = false
	s.err = ""
	s.success = false
	s.isTyping = false
	s.chatID = ""
	s.activeTab = ""
	s.tabs = newTabs()
	s.history = nil
}

// ChatID returns the correlation id of the running (or last) generation.
func (s *Session) ChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID
}

// InFlight reports whether a generation is pending or streaming.
func (s *Session) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight()
}

func (s *Session) inFlight() bool {
	return s.phase == PhasePending || s.phase == PhaseStreaming
}

// Snapshot returns a deep copy of the session.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tabs := make(map[Tab]TabState, len(s.tabs))
	for tab, state := range s.tabs {
		tabs[tab] = TabState{
			CurrentText: state.CurrentText,
			History:     append([]Entry(nil), state.History...),
		}
	}
	return State{
		Phase:     s.phase,
		Loading:   s.loading,
		Error:     s.err,
		Success:   s.success,
		IsTyping:  s.isTyping,
		ChatID:    s.chatID,
		ActiveTab: s.activeTab,
		Tabs:      tabs,
		History:   append([]HistoryEntry(nil), s.history...),
	}
}
