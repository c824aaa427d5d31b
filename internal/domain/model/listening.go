package model

// Listening is one user's listening history as a profile provider reports it.
type Listening struct {
	Username   string
	Country    string
	Groups     []WindowGroup
	TopArtists []string
	TopTracks  []string
	Genres     []string
	// Missing lists windows the provider could not fetch.
	Missing []WindowLabel
}

// Items returns the number of stats across all groups.
func (l Listening) Items() int {
	n := 0
	for _, g := range l.Groups {
		n += g.Len()
	}
	return n
}
