package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
)

// periods maps the windows backed by top charts to Last.fm periods.
var periods = []struct {
	label  model.WindowLabel
	period string
}{
	{model.WindowOverall, "overall"},
	{model.WindowSixMonths, "6month"},
	{model.WindowThreeMonths, "3month"},
}

const displayTop = 10

// Listening fetches username's history: top artists and top tracks for
// three periods plus recent scrobbles, seven calls in parallel. More than
// three failed calls fail the fetch; fewer leave the affected windows
// missing when partial results are allowed.
func (c *Client) Listening(ctx context.Context, username string) (model.Listening, error) {
	info, err := c.userInfo(ctx, username)
	if err != nil {
		return model.Listening{}, err
	}

	var (
		artists [3][]artistEntry
		tracks  [3][]trackEntry
		recent  []recentEntry
		errs    [7]error
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range periods {
		g.Go(func() error {
			artists[i], errs[i] = c.topArtists(gctx, username, p.period)
			return nil
		})
		g.Go(func() error {
			tracks[i], errs[3+i] = c.topTracks(gctx, username, p.period)
			return nil
		})
	}
	g.Go(func() error {
		recent, errs[6] = c.recentTracks(gctx, username)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return model.Listening{}, classifyCtx(err)
	}

	failed := 0
	var first error
	for _, e := range errs {
		if e != nil {
			failed++
			if first == nil || errors.Is(e, model.ErrDependencyTimeout) {
				first = e
			}
		}
	}
	if failed > DefaultMaxFailures {
		return model.Listening{}, fmt.Errorf("%w: %w: %d of 7 calls: %v", model.ErrDependencyUnavailable, ErrTooManyFailed, failed, first)
	}
	if failed > 0 && !c.allowPartial {
		return model.Listening{}, first
	}

	out := model.Listening{Username: info.User.Name, Country: info.User.Country}
	if out.Username == "" {
		out.Username = username
	}

	for i, p := range periods {
		if errs[i] != nil && errs[3+i] != nil {
			out.Missing = append(out.Missing, p.label)
			continue
		}
		stats := make([]model.WindowStat, 0, len(artists[i])+len(tracks[i]))
		for _, a := range artists[i] {
			if key := model.ArtistKey(a.Name); !key.IsZero() {
				stats = append(stats, model.WindowStat{Key: key, PlayCount: int(a.Playcount), Window: p.label})
			}
		}
		for _, t := range tracks[i] {
			if key := model.NewItemKey(t.Artist.Name, t.Name); key.Artist != "" && key.Track != "" {
				stats = append(stats, model.WindowStat{Key: key, PlayCount: int(t.Playcount), Window: p.label})
			}
		}
		out.Groups = append(out.Groups, model.WindowGroup{Label: p.label, Stats: stats})
	}
	if errs[6] != nil {
		out.Missing = append(out.Missing, model.WindowRecent)
	} else {
		out.Groups = append(out.Groups, model.WindowGroup{Label: model.WindowRecent, Stats: c.foldRecent(recent)})
	}

	for i, a := range artists[0] {
		if i == displayTop {
			break
		}
		out.TopArtists = append(out.TopArtists, a.Name)
	}
	for i, t := range tracks[0] {
		if i == displayTop {
			break
		}
		out.TopTracks = append(out.TopTracks, t.Artist.Name+" - "+t.Name)
	}
	out.Genres = c.genres(ctx, artists[0])

	if failed > 0 {
		c.logger.Warn(ctx, "partial listening history",
			logger.String("username", username),
			logger.Int("failed_calls", failed),
			logger.Any("missing", out.Missing))
	}
	return out, nil
}

// foldRecent merges repeated scrobbles of one track into a single stat
// whose count is the number of plays and whose time is the latest play.
func (c *Client) foldRecent(entries []recentEntry) []model.WindowStat {
	now := c.now()
	index := make(map[model.ItemKey]int)
	var out []model.WindowStat
	for _, e := range entries {
		key := model.NewItemKey(e.Artist.Text, e.Name)
		if key.Artist == "" || key.Track == "" {
			continue
		}
		at := now
		if e.Attr.NowPlaying != "true" && e.Date != nil && e.Date.UTS > 0 {
			at = time.Unix(int64(e.Date.UTS), 0).UTC()
		}
		if i, ok := index[key]; ok {
			out[i].PlayCount++
			if at.After(out[i].PlayedAt) {
				out[i].PlayedAt = at
			}
			continue
		}
		index[key] = len(out)
		out = append(out, model.WindowStat{Key: key, PlayCount: 1, Window: model.WindowRecent, PlayedAt: at})
	}
	return out
}

// genres ranks the top tags of the user's leading artists. Tag lookups
// that fail are ignored.
func (c *Client) genres(ctx context.Context, artists []artistEntry) []string {
	n := min(c.genreArtists, len(artists))
	if n == 0 {
		return nil
	}

	var mu sync.Mutex
	score := make(map[string]int)
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range artists[:n] {
		g.Go(func() error {
			tags, err := c.artistTags(gctx, a.Name)
			if err != nil {
				c.logger.Debug(ctx, "artist tags unavailable", logger.String("artist", a.Name), logger.Error(err))
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for i, t := range tags {
				if i == DefaultTagsPerArtist {
					break
				}
				if name := model.Normalize(t.Name); name != "" {
					score[name] += DefaultTagsPerArtist - i
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(score))
	for name := range score {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		if score[out[i]] != score[out[j]] {
			return score[out[i]] > score[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > DefaultGenres {
		out = out[:DefaultGenres]
	}
	return out
}

func (c *Client) userInfo(ctx context.Context, username string) (userInfoResponse, error) {
	var resp userInfoResponse
	err := c.call(ctx, "user.getInfo", url.Values{"user": {username}}, &resp)
	return resp, err
}

func (c *Client) topArtists(ctx context.Context, username, period string) ([]artistEntry, error) {
	var resp topArtistsResponse
	err := c.call(ctx, "user.getTopArtists", url.Values{
		"user":   {username},
		"period": {period},
		"limit":  {strconv.Itoa(c.topLimit)},
	}, &resp)
	return resp.TopArtists.Artist, err
}

func (c *Client) topTracks(ctx context.Context, username, period string) ([]trackEntry, error) {
	var resp topTracksResponse
	err := c.call(ctx, "user.getTopTracks", url.Values{
		"user":   {username},
		"period": {period},
		"limit":  {strconv.Itoa(c.topLimit)},
	}, &resp)
	return resp.TopTracks.Track, err
}

func (c *Client) recentTracks(ctx context.Context, username string) ([]recentEntry, error) {
	var resp recentTracksResponse
	err := c.call(ctx, "user.getRecentTracks", url.Values{
		"user":  {username},
		"limit": {strconv.Itoa(c.recentLimit)},
	}, &resp)
	return resp.RecentTracks.Track, err
}

func (c *Client) artistTags(ctx context.Context, artist string) ([]tagEntry, error) {
	var resp topTagsResponse
	err := c.call(ctx, "artist.getTopTags", url.Values{"artist": {artist}}, &resp)
	return resp.TopTags.Tag, err
}

func classifyCtx(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: lastfm: %v", model.ErrDependencyTimeout, err)
	}
	return err
}
