package seeding

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/tastebud/internal/domain/model"
)

//go:embed pools.yaml
var defaultPools []byte

// TrackRef names one track in a segment pool.
type TrackRef struct {
	Artist string `yaml:"artist"`
	Track  string `yaml:"track"`
}

// Pool is the listening material one segment's ghosts are drawn from.
type Pool struct {
	Name              model.Segment `yaml:"name"`
	Countries         []string      `yaml:"countries"`
	Genres            []string      `yaml:"genres"`
	Artists           []string      `yaml:"artists"`
	Tracks            []TrackRef    `yaml:"tracks"`
	ArtistsPerProfile [2]int        `yaml:"artists_per_profile"`
	TracksPerProfile  [2]int        `yaml:"tracks_per_profile"`
	Plays             [2]int        `yaml:"plays"`
	RecentShare       float64       `yaml:"recent_share"`
	RecentDays        int           `yaml:"recent_days"`
}

// Pools holds one Pool per segment.
type Pools map[model.Segment]Pool

type poolsFile struct {
	Segments []Pool `yaml:"segments"`
}

// DefaultPools returns the built-in segment pools.
func DefaultPools() Pools {
	p, err := ReadPools(bytes.NewReader(defaultPools))
	if err != nil {
		panic(fmt.Sprintf("seeding: built-in pools: %v", err))
	}
	return p
}

// LoadPools reads pools from a YAML file.
func LoadPools(path string) (Pools, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pools: %w", err)
	}
	defer f.Close()
	return ReadPools(f)
}

// ReadPools decodes and validates YAML pools.
func ReadPools(r io.Reader) (Pools, error) {
	var doc poolsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPools, err)
	}

	out := make(Pools, len(doc.Segments))
	for _, p := range doc.Segments {
		if _, dup := out[p.Name]; dup {
			return nil, fmt.Errorf("%w: segment %q listed twice", ErrInvalidPools, p.Name)
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		out[p.Name] = p
	}
	return out, nil
}

func (p Pool) validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: segment %q: %s", ErrInvalidPools, p.Name, fmt.Sprintf(format, args...))
	}
	known := false
	for _, s := range model.Segments() {
		known = known || s == p.Name
	}
	switch {
	case !known:
		return fail("unknown segment")
	case len(p.Artists) == 0:
		return fail("no artists")
	case !validRange(p.ArtistsPerProfile, 1):
		return fail("artists_per_profile %v", p.ArtistsPerProfile)
	case !validRange(p.TracksPerProfile, 0):
		return fail("tracks_per_profile %v", p.TracksPerProfile)
	case !validRange(p.Plays, 1):
		return fail("plays %v", p.Plays)
	case p.RecentShare < 0 || p.RecentShare > 1:
		return fail("recent_share %v", p.RecentShare)
	case p.RecentDays < 0:
		return fail("recent_days %d", p.RecentDays)
	}
	for _, t := range p.Tracks {
		if model.Normalize(t.Artist) == "" || model.Normalize(t.Track) == "" {
			return fail("track entry needs artist and track")
		}
	}
	return nil
}

func validRange(r [2]int, lo int) bool {
	return r[0] >= lo && r[1] >= r[0]
}

// Covers reports whether every segment with a positive share in mix has a pool.
func (p Pools) Covers(mix Mix) error {
	for seg, share := range mix {
		if share <= 0 {
			continue
		}
		if _, ok := p[seg]; !ok {
			return fmt.Errorf("%w: no pool for segment %q", ErrInvalidPools, seg)
		}
	}
	return nil
}
