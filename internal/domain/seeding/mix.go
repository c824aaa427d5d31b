package seeding

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/tastebud/internal/domain/model"
)

// Mix is the target share of ghosts per segment. Shares need not sum to
// one; they are normalized before allocation.
type Mix map[model.Segment]float64

// DefaultMix returns the 40/30/20/10 mainstream/niche/veteran/international split.
func DefaultMix() Mix {
	return Mix{
		model.SegmentMainstream:    0.4,
		model.SegmentNiche:         0.3,
		model.SegmentVeteran:       0.2,
		model.SegmentInternational: 0.1,
	}
}

// Validate rejects unknown segments, negative shares and an all-zero mix.
func (m Mix) Validate() error {
	known := make(map[model.Segment]bool)
	for _, s := range model.Segments() {
		known[s] = true
	}
	total := 0.0
	for seg, share := range m {
		if !known[seg] {
			return fmt.Errorf("%w: unknown segment %q", ErrInvalidMix, seg)
		}
		if share < 0 || math.IsNaN(share) || math.IsInf(share, 0) {
			return fmt.Errorf("%w: share for %s is %v", ErrInvalidMix, seg, share)
		}
		total += share
	}
	if total <= 0 {
		return fmt.Errorf("%w: shares sum to zero", ErrInvalidMix)
	}
	return nil
}

// Allocate splits count across segments by largest remainder, so the
// parts always sum to count. Equal remainders go to the segment listed
// first in model.Segments.
func (m Mix) Allocate(count int) (map[model.Segment]int, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, ErrInvalidCount
	}

	total := 0.0
	for _, seg := range model.Segments() {
		total += m[seg]
	}

	type part struct {
		seg   model.Segment
		order int
		rem   float64
	}
	out := make(map[model.Segment]int, len(m))
	parts := make([]part, 0, len(m))
	assigned := 0
	for i, seg := range model.Segments() {
		share, ok := m[seg]
		if !ok {
			continue
		}
		exact := float64(count) * share / total
		whole := int(math.Floor(exact))
		out[seg] = whole
		assigned += whole
		parts = append(parts, part{seg: seg, order: i, rem: exact - float64(whole)})
	}

	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].rem != parts[j].rem {
			return parts[i].rem > parts[j].rem
		}
		return parts[i].order < parts[j].order
	})
	for i := 0; assigned < count; i++ {
		out[parts[i%len(parts)].seg]++
		assigned++
	}
	return out, nil
}
