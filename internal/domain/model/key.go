// Package model contains domain models passed between layers.
package model

import "strings"

// keySeparator joins artist and track in the rendered form of a track key.
const keySeparator = "||"

// ItemKey is the normalized identity of a track or of an artist alone.
// Track is empty for artist keys.
type ItemKey struct {
	Artist string
	Track  string
}

// NewItemKey builds a normalized key for a track. An empty track yields an artist key.
func NewItemKey(artist, track string) ItemKey {
	return ItemKey{Artist: Normalize(artist), Track: Normalize(track)}
}

// ArtistKey builds a normalized artist-only key.
func ArtistKey(artist string) ItemKey {
	return ItemKey{Artist: Normalize(artist)}
}

// IsArtist reports whether the key identifies an artist rather than a track.
func (k ItemKey) IsArtist() bool { return k.Track == "" }

// IsZero reports whether the key carries no identity at all.
func (k ItemKey) IsZero() bool { return k.Artist == "" && k.Track == "" }

// String renders track keys as "artist||track" and artist keys as the artist name.
func (k ItemKey) String() string {
	if k.IsArtist() {
		return k.Artist
	}
	return k.Artist + keySeparator + k.Track
}

// Name is the human-readable string used for fuzzy name matching.
func (k ItemKey) Name() string {
	if k.IsArtist() {
		return k.Artist
	}
	return k.Artist + " " + k.Track
}

// ParseItemKey is the inverse of String.
func ParseItemKey(s string) ItemKey {
	if artist, track, ok := strings.Cut(s, keySeparator); ok {
		return NewItemKey(artist, track)
	}
	return ArtistKey(s)
}

// Normalize case-folds, trims and collapses internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
