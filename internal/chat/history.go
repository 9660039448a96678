package chat

// historyKey identifies an exchange by content. Ids are not comparable
// between local entries (timestamps) and server rows (database keys).
type historyKey struct {
	query    string
	response string
}

func keyOf(e HistoryEntry) historyKey {
	return historyKey{query: e.UserQuery, response: e.ModelResponse}
}

// MergeHistory returns local followed by every fetched entry whose
// (UserQuery, ModelResponse) pair is not already present. Local entries are
// never collapsed against each other, and merging the same fetched entries
// again adds nothing.
func MergeHistory(local, fetched []HistoryEntry) []HistoryEntry {
	seen := make(map[historyKey]struct{}, len(local)+len(fetched))
	merged := make([]HistoryEntry, 0, len(local)+len(fetched))
	for _, e := range local {
		seen[keyOf(e)] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range fetched {
		k := keyOf(e)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, e)
	}
	return merged
}
