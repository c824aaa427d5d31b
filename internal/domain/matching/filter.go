package matching

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/okian/tastebud/internal/domain/model"
)

var (
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func env() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(cel.Variable("candidate", cel.DynType))
	})
	return celEnv, celEnvErr
}

// Filter is a compiled boolean expression over a candidate, for example
// `candidate.country == "JP" && candidate.score >= 70`.
// A compiled Filter is safe for concurrent use.
type Filter struct {
	expr string
	prg  cel.Program
}

// CompileFilter compiles expr. An empty expression yields a nil filter that
// accepts everything.
func CompileFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	e, err := env()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	ast, issues := e.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, issues.Err())
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter against c.
func (f *Filter) Match(c model.MatchCandidate) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, _, err := f.prg.Eval(map[string]any{"candidate": candidateVars(c)})
	if err != nil {
		return false, fmt.Errorf("%w: eval: %w", ErrInvalidFilter, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("%w: expression must return bool, got %T", ErrInvalidFilter, out.Value())
	}
	return ok, nil
}

func candidateVars(c model.MatchCandidate) map[string]any {
	return map[string]any{
		"id":                  c.CandidateID,
		"username":            c.Username,
		"is_synthetic":        c.IsSynthetic,
		"segment":             string(c.Segment),
		"country":             c.Country,
		"similarity":          c.RawSimilarity,
		"score":               c.CompatibilityScore,
		"shared_artist_count": c.SharedArtistCount,
		"shared_genre_count":  c.SharedGenreCount,
		"shared_track_count":  c.SharedTrackCount,
		"shared_artists":      c.SharedArtists,
		"shared_genres":       c.SharedGenres,
	}
}
