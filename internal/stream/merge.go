package stream

import "slices"

// MergeCommitIDs reconciles a branch's newest-first commit list with the
// commits of a push.
//
// The splice point is the first parent of the push found in existing. If
// no parent is known, latest itself is looked up, which covers resets to an
// older commit. With a splice point the result is newIDs followed by
// existing from that point on; commits above it were rewritten by a force
// push and are dropped. Without one the history is unknown and the result
// is newIDs alone, or just latest when the push carried no commits.
func MergeCommitIDs(existing, newIDs, parents []string, latest string) []string {
	idx := -1
	for _, p := range parents {
		if i := slices.Index(existing, p); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 && latest != "" {
		idx = slices.Index(existing, latest)
	}

	if idx < 0 {
		switch {
		case len(newIDs) > 0:
			return slices.Clone(newIDs)
		case latest != "":
			return []string{latest}
		default:
			return []string{}
		}
	}

	merged := make([]string, 0, len(newIDs)+len(existing)-idx)
	for _, id := range slices.Concat(newIDs, existing[idx:]) {
		if !slices.Contains(merged, id) {
			merged = append(merged, id)
		}
	}
	return merged
}
