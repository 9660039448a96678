package chat

import (
	"fmt"
	"strings"
)

// Tab is one of the fixed content categories tracked by a session
type Tab string

// Tabs
const (
	TabProgram Tab = "Program"
	TabCourse  Tab = "Course"
	TabChapter Tab = "Chapter"
	TabSlides  Tab = "Slides"
	TabQuiz    Tab = "Quiz"
)

// AllTabs lists every tab in display order.
var AllTabs = []Tab{TabProgram, TabCourse, TabChapter, TabSlides, TabQuiz}

// ParseTab resolves a tab name case-insensitively. "ppt" is accepted for
// Slides.
func ParseTab(name string) (Tab, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "ppt" {
		return TabSlides, nil
	}
	for _, tab := range AllTabs {
		if strings.ToLower(string(tab)) == key {
			return tab, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q", name)
}

// Valid reports whether t is one of AllTabs.
func (t Tab) Valid() bool {
	for _, tab := range AllTabs {
		if tab == t {
			return true
		}
	}
	return false
}

// OutlineType is the backend name of the authoring stage t belongs to.
func (t Tab) OutlineType() string {
	if t == TabSlides {
		return "ppt"
	}
	return strings.ToLower(string(t))
}

// Kind discriminates what a generation produced
type Kind string

// Kinds
const (
	KindTitleData    Kind = "titledata"
	KindDescriptions Kind = "descriptions"
)

// Entry is one completed exchange in a tab's history
type Entry struct {
	UserQuery     string `json:"user_query"`
	Response      string `json:"response"`
	Kind          Kind   `json:"type"`
	Prompt        bool   `json:"prompt"`
	SelectedTitle string `json:"selectedtitle"`
}

// HistoryEntry is the cross-tab projection of an Entry. Server logs decode
// into the same shape.
type HistoryEntry struct {
	ID            int64  `json:"id"`
	UserQuery     string `json:"userquery"`
	ModelResponse string `json:"modelresponse"`
	ActionType    string `json:"actiontype"`
	Selected      string `json:"selected"`
}

// TabState is the per-tab buffer and history
type TabState struct {
	CurrentText string  `json:"currentText"`
	History     []Entry `json:"history"`
}

// Phase is the lifecycle position of the current generation
type Phase int

// Phases
const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseStreaming
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseStreaming:
		return "streaming"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Settled reports whether p is a terminal phase.
func (p Phase) Settled() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// State is a read-only copy of a session
type State struct {
	Phase     Phase
	Loading   bool
	Error     string
	Success   bool
	IsTyping  bool
	ChatID    string
	ActiveTab Tab
	Tabs      map[Tab]TabState
	History   []HistoryEntry
}
