package lastfm

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"
)

// list decodes a Last.fm collection, which is an array normally but a
// bare object when it holds exactly one element.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = list[T]{one}
	return nil
}

// count decodes a number Last.fm may send as a string or a number.
type count int64

func (c *count) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*c = count(n)
	return nil
}

type userInfoResponse struct {
	User struct {
		Name      string `json:"name"`
		Country   string `json:"country"`
		Playcount count  `json:"playcount"`
	} `json:"user"`
}

type topArtistsResponse struct {
	TopArtists struct {
		Artist list[artistEntry] `json:"artist"`
	} `json:"topartists"`
}

type artistEntry struct {
	Name      string `json:"name"`
	Playcount count  `json:"playcount"`
}

type topTracksResponse struct {
	TopTracks struct {
		Track list[trackEntry] `json:"track"`
	} `json:"toptracks"`
}

type trackEntry struct {
	Name      string `json:"name"`
	Playcount count  `json:"playcount"`
	Artist    struct {
		Name string `json:"name"`
	} `json:"artist"`
}

type recentTracksResponse struct {
	RecentTracks struct {
		Track list[recentEntry] `json:"track"`
	} `json:"recenttracks"`
}

type recentEntry struct {
	Name   string `json:"name"`
	Artist struct {
		Text string `json:"#text"`
	} `json:"artist"`
	Date *struct {
		UTS count `json:"uts"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

type topTagsResponse struct {
	TopTags struct {
		Tag list[tagEntry] `json:"tag"`
	} `json:"toptags"`
}

type tagEntry struct {
	Name  string `json:"name"`
	Count count  `json:"count"`
}
