package smoke

import "fmt"

// verify checks a match list for the invariants every response must hold.
func verify(username string, limit int, list MatchList) []string {
	var out []string
	if len(list.Matches) > limit {
		out = append(out, fmt.Sprintf("returned %d matches for limit %d", len(list.Matches), limit))
	}
	if list.Count != len(list.Matches) {
		out = append(out, fmt.Sprintf("count %d disagrees with %d matches", list.Count, len(list.Matches)))
	}
	if list.Degenerate && len(list.Matches) > 0 {
		out = append(out, "degenerate embedding returned matches")
	}
	seen := make(map[string]struct{}, len(list.Matches))
	for i, c := range list.Matches {
		if c.Username == username {
			out = append(out, "requester matched itself")
		}
		if _, dup := seen[c.ID]; dup {
			out = append(out, fmt.Sprintf("candidate %s listed twice", c.ID))
		}
		seen[c.ID] = struct{}{}
		if c.CompatibilityScore < 0 || c.CompatibilityScore > maxScore {
			out = append(out, fmt.Sprintf("score %d out of range", c.CompatibilityScore))
		}
		if c.SharedArtistCount != len(c.SharedArtists) {
			out = append(out, fmt.Sprintf("candidate %s shared artist count mismatch", c.ID))
		}
		if i > 0 && c.CompatibilityScore > list.Matches[i-1].CompatibilityScore {
			out = append(out, fmt.Sprintf("scores not descending at position %d", i))
		}
	}
	return out
}
