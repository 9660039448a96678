package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeHistoryKeepsLocalAndDedupsFetched(t *testing.T) {
	local := []HistoryEntry{
		{ID: 1700000000000, UserQuery: "q1", ModelResponse: "r1"},
		{ID: 1700000000001, UserQuery: "q1", ModelResponse: "r1"},
	}
	fetched := []HistoryEntry{
		{ID: 10, UserQuery: "q1", ModelResponse: "r1"},
		{ID: 11, UserQuery: "q2", ModelResponse: "r2"},
		{ID: 12, UserQuery: "q2", ModelResponse: "r2"},
	}

	merged := MergeHistory(local, fetched)
	require.Len(t, merged, 3)
	require.Equal(t, local, merged[:2])
	require.Equal(t, int64(11), merged[2].ID)
}

func TestMergeHistoryIdempotent(t *testing.T) {
	local := []HistoryEntry{{ID: 1, UserQuery: "a", ModelResponse: "b"}}
	fetched := []HistoryEntry{
		{ID: 2, UserQuery: "c", ModelResponse: "d"},
		{ID: 3, UserQuery: "e", ModelResponse: "f"},
	}

	once := MergeHistory(local, fetched)
	twice := MergeHistory(once, fetched)
	require.Equal(t, once, twice)
}

func TestMergeHistoryEmptyInputs(t *testing.T) {
	require.Empty(t, MergeHistory(nil, nil))
	fetched := []HistoryEntry{{ID: 1, UserQuery: "a"}}
	require.Equal(t, fetched, MergeHistory(nil, fetched))
}

func TestSessionMergeFetchedCountsAdditions(t *testing.T) {
	s := NewSession()
	_, err := s.AppendLocal(TabCourse, Entry{UserQuery: "q", Response: "r"})
	require.NoError(t, err)

	fetched := []HistoryEntry{
		{ID: 5, UserQuery: "q", ModelResponse: "r"},
		{ID: 6, UserQuery: "other", ModelResponse: "x"},
	}
	require.Equal(t, 1, s.MergeFetched(fetched))
	require.Equal(t, 0, s.MergeFetched(fetched))
	require.Len(t, s.Snapshot().History, 2)
}
