// Package smoke drives a running tastebud instance end to end and checks
// the invariants of its match lists.
package smoke

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL    string        // Base URL of the service
	AdminKey   string        // Sent as X-Admin-Key on admin routes
	Usernames  []string      // Users whose embeddings are generated
	SeedCount  int           // Ghosts to seed before matching; 0 skips seeding
	ForceSeed  bool          // Replace existing ghosts
	Limit      int           // Matches requested per user
	Workers    int           // Concurrent requests
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Report destination; empty skips writing
	Verbose    bool          // Log every user
}

// Candidate mirrors one entry of a match list.
type Candidate struct {
	ID                 string   `json:"id"`
	Username           string   `json:"username"`
	CompatibilityScore int      `json:"compatibility_score"`
	Similarity         float64  `json:"similarity"`
	IsSynthetic        bool     `json:"is_synthetic"`
	SharedArtists      []string `json:"shared_artists"`
	SharedArtistCount  int      `json:"shared_artist_count"`
}

// MatchList mirrors the match route response.
type MatchList struct {
	Username   string      `json:"username"`
	Degenerate bool        `json:"degenerate"`
	Count      int         `json:"count"`
	Matches    []Candidate `json:"matches"`
}

// SeedResult mirrors the seed route response.
type SeedResult struct {
	Requested int `json:"requested"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Deleted   int `json:"deleted"`
}

// UserResult records what happened for one user.
type UserResult struct {
	Username   string   `json:"username"`
	Embedded   bool     `json:"embedded"`
	Degenerate bool     `json:"degenerate"`
	Matches    int      `json:"matches"`
	Synthetic  int      `json:"synthetic"`
	TopScore   int      `json:"top_score"`
	Error      string   `json:"error,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// Report summarises a smoke run.
type Report struct {
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
	Seed       *SeedResult   `json:"seed,omitempty"`
	Users      []UserResult  `json:"users"`
	Embedded   int           `json:"embedded"`
	Failed     int           `json:"failed"`
	Violations int           `json:"violations"`
}
