package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyChunkConcatenatesInOrder(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Begin(TabCourse))

	chunks := []string{"# Intro", "\n", "1. ", "**Basics**", ""}
	for _, c := range chunks {
		require.NoError(t, s.ApplyChunk(TabCourse, c))
	}
	snap := s.Snapshot()
	require.Equal(t, strings.Join(chunks, ""), snap.Tabs[TabCourse].CurrentText)
	require.Equal(t, PhaseStreaming, snap.Phase)
	require.Empty(t, snap.Tabs[TabProgram].CurrentText)
}

func TestTypingClearsOnFirstChunk(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Begin(TabQuiz))
	snap := s.Snapshot()
	require.True(t, snap.IsTyping)
	require.True(t, snap.Loading)
	require.Equal(t, PhasePending, snap.Phase)

	require.NoError(t, s.ApplyChunk(TabQuiz, "Q1"))
	require.False(t, s.Snapshot().IsTyping)
}

func TestBeginRejectsSecondGeneration(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Begin(TabProgram))
	require.ErrorIs(t, s.Begin(TabCourse), ErrInFlight)
	require.Equal(t, TabProgram, s.Snapshot().ActiveTab)
}

func TestBeginUnknownTab(t *testing.T) {
	s := NewSession()
	require.ErrorIs(t, s.Begin(Tab("Video")), ErrUnknownTab)
	require.Equal(t, PhaseIdle, s.Snapshot().Phase)
}

func TestApplyChunkGuards(t *testing.T) {
	s := NewSession()
	require.ErrorIs(t, s.ApplyChunk(TabCourse, "x"), ErrNotInFlight)

	require.NoError(t, s.Begin(TabCourse))
	require.ErrorIs(t, s.ApplyChunk(TabChapter, "x"), ErrWrongTab)
	require.Empty(t, s.Snapshot().Tabs[TabChapter].CurrentText)
}

func TestSucceedCommitsToTabAndGlobalHistory(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Begin(TabChapter))
	require.NoError(t, s.ApplyChunk(TabChapter, "<ul><li>One</li></ul>"))

	entry, err := s.Succeed(Meta{UserQuery: "chapters", SelectedTitle: "Algebra"})
	require.NoError(t, err)
	require.Equal(t, KindTitleData, entry.Kind)

	snap := s.Snapshot()
	require.Equal(t, PhaseSucceeded, snap.Phase)
	require.True(t, snap.Success)
	require.False(t, snap.Loading)
	require.Empty(t, snap.Tabs[TabChapter].CurrentText)
	require.Equal(t, []Entry{entry}, snap.Tabs[TabChapter].History)
	require.Len(t, snap.History, 1)
	require.Equal(t, "chapters", snap.History[0].UserQuery)
	require.Equal(t, "<ul><li>One</li></ul>", snap.History[0].ModelResponse)
	require.Equal(t, "Algebra", snap.History[0].Selected)
}

func TestFailDiscardsPartialText(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Begin(TabSlides))
	require.NoError(t, s.ApplyChunk(TabSlides, "partial"))
	s.Fail("boom")

	snap := s.Snapshot()
	require.Equal(t, PhaseFailed, snap.Phase)
	require.Equal(t, "boom", snap.Error)
	require.False(t, snap.Loading)
	require.False(t, snap.IsTyping)
	require.Empty(t, snap.Tabs[TabSlides].CurrentText)
	require.Empty(t, snap.Tabs[TabSlides].History)
	require.Empty(t, snap.History)

	require.NoError(t, s.Begin(TabSlides))
	require.Empty(t, s.Snapshot().Error)
}

func TestAppendLocalIDsStrictlyIncrease(t *testing.T) {
	s := NewSession()
	frozen := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return frozen }

	var ids []int64
	for i := 0; i < 5; i++ {
		h, err := s.AppendLocal(TabProgram, Entry{UserQuery: "same", Response: "same"})
		require.NoError(t, err)
		ids = append(ids, h.ID)
	}
	for i := 1; i < len(ids); i++ {
		require.Greater(t, ids[i], ids[i-1])
	}
	require.Equal(t, int64(1_700_000_000_000), ids[0])
	require.Len(t, s.Snapshot().Tabs[TabProgram].History, 5)
	require.Len(t, s.Snapshot().History, 5)
}

func TestAppendLocalUnknownTab(t *testing.T) {
	s := NewSession()
	_, err := s.AppendLocal(Tab("nope"), Entry{})
	require.ErrorIs(t, err, ErrUnknownTab)
}

func TestClearTabAndClearAll(t *testing.T) {
	s := NewSession()
	_, err := s.AppendLocal(TabCourse, Entry{UserQuery: "a", Response: "b"})
	require.NoError(t, err)
	_, err = s.AppendLocal(TabQuiz, Entry{UserQuery: "c", Response: "d"})
	require.NoError(t, err)

	require.NoError(t, s.ClearTab(TabCourse))
	snap := s.Snapshot()
	require.Empty(t, snap.Tabs[TabCourse].History)
	require.Len(t, snap.Tabs[TabQuiz].History, 1)
	require.Empty(t, snap.History)

	_, err = s.AppendLocal(TabQuiz, Entry{UserQuery: "e", Response: "f"})
	require.NoError(t, err)
	s.RecordError("stale")
	s.ClearAll()
	snap = s.Snapshot()
	require.Empty(t, snap.Error)
	require.Empty(t, snap.Tabs[TabQuiz].History)
	require.Len(t, snap.History, 1)
}

func TestRemoveLastAndReset(t *testing.T) {
	s := NewSession()
	_, ok := s.RemoveLast(TabProgram)
	require.False(t, ok)

	_, err := s.AppendLocal(TabProgram, Entry{UserQuery: "one"})
	require.NoError(t, err)
	_, err = s.AppendLocal(TabProgram, Entry{UserQuery: "two"})
	require.NoError(t, err)

	last, ok := s.RemoveLast(TabProgram)
	require.True(t, ok)
	require.Equal(t, "two", last.UserQuery)
	require.Len(t, s.Snapshot().Tabs[TabProgram].History, 1)

	s.Reset()
	snap := s.Snapshot()
	require.Empty(t, snap.Tabs[TabProgram].History)
	require.Empty(t, snap.History)
	require.Equal(t, PhaseIdle, snap.Phase)
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewSession()
	_, err := s.AppendLocal(TabCourse, Entry{UserQuery: "a"})
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Tabs[TabCourse].History[0].UserQuery = "mutated"
	snap.History[0].UserQuery = "mutated"

	fresh := s.Snapshot()
	require.Equal(t, "a", fresh.Tabs[TabCourse].History[0].UserQuery)
	require.Equal(t, "a", fresh.History[0].UserQuery)
}

func TestParseTab(t *testing.T) {
	cases := map[string]Tab{
		"program":  TabProgram,
		" Course ": TabCourse,
		"CHAPTER":  TabChapter,
		"ppt":      TabSlides,
		"slides":   TabSlides,
		"quiz":     TabQuiz,
	}
	for in, want := range cases {
		got, err := ParseTab(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	_, err := ParseTab("video")
	require.Error(t, err)
}

func TestTabOutlineType(t *testing.T) {
	require.Equal(t, "program", TabProgram.OutlineType())
	require.Equal(t, "chapter", TabChapter.OutlineType())
	require.Equal(t, "ppt", TabSlides.OutlineType())
	require.Equal(t, "quiz", TabQuiz.OutlineType())
}

func TestResetHistoryKeepsTabs(t *testing.T) {
	s := NewSession()
	_, err := s.AppendLocal(TabQuiz, Entry{UserQuery: "q", Response: "r"})
	require.NoError(t, err)

	s.ResetHistory()
	snap := s.Snapshot()
	require.Empty(t, snap.History)
	require.Len(t, snap.Tabs[TabQuiz].History, 1)
}
