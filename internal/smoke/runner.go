package smoke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tastebud/pkg/logger"
)

// Sentinel errors for this package.
var (
	ErrNoUsers    = errors.New("no usernames given")
	ErrViolations = errors.New("match invariants violated")
)

// Run executes the complete smoke run and returns its report. It returns
// ErrViolations when any match list breaks an invariant; per-user request
// failures are recorded in the report.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	if len(cfg.Usernames) == 0 {
		return nil, ErrNoUsers
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	log := logger.Get().Named("smoke")
	rep := &Report{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.AdminKey, cfg.Timeout)

	log.Info(ctx, "starting tastebud smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", len(cfg.Usernames)),
		logger.Int("seed", cfg.SeedCount),
		logger.Int("workers", cfg.Workers))

	if err := c.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	if cfg.SeedCount > 0 {
		seed, err := c.seed(ctx, cfg.SeedCount, cfg.ForceSeed)
		if err != nil {
			return nil, fmt.Errorf("seed ghosts: %w", err)
		}
		rep.Seed = &seed
		log.Info(ctx, "ghosts seeded",
			logger.Int("created", seed.Created),
			logger.Int("skipped", seed.Skipped),
			logger.Int("deleted", seed.Deleted))
	}

	// Every embedding must exist before any match list is judged.
	rep.Users = make([]UserResult, len(cfg.Usernames))
	forEach(ctx, cfg.Workers, cfg.Usernames, func(ctx context.Context, i int, name string) {
		res := &rep.Users[i]
		res.Username = name
		if err := c.embed(ctx, name); err != nil {
			res.Error = err.Error()
			return
		}
		res.Embedded = true
	})

	forEach(ctx, cfg.Workers, cfg.Usernames, func(ctx context.Context, i int, name string) {
		res := &rep.Users[i]
		if !res.Embedded {
			return
		}
		list, err := c.matches(ctx, name, cfg.Limit)
		if err != nil {
			res.Error = err.Error()
			return
		}
		res.Degenerate = list.Degenerate
		res.Matches = len(list.Matches)
		for _, m := range list.Matches {
			if m.IsSynthetic {
				res.Synthetic++
			}
		}
		if len(list.Matches) > 0 {
			res.TopScore = list.Matches[0].CompatibilityScore
		}
		res.Violations = verify(name, cfg.Limit, list)
		if cfg.Verbose {
			log.Info(ctx, "user checked",
				logger.String("username", name),
				logger.Int("matches", res.Matches),
				logger.Int("synthetic", res.Synthetic),
				logger.Int("topScore", res.TopScore))
		}
	})

	for _, u := range rep.Users {
		if u.Embedded {
			rep.Embedded++
		}
		if u.Error != "" {
			rep.Failed++
		}
		rep.Violations += len(u.Violations)
	}
	rep.Duration = time.Since(rep.StartTime)

	if cfg.OutputFile != "" {
		if err := saveReport(cfg.OutputFile, rep); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	displayFinalStats(ctx, log, rep)

	if rep.Violations > 0 {
		return rep, fmt.Errorf("%w: %d", ErrViolations, rep.Violations)
	}
	return rep, nil
}

// forEach runs fn over names with at most workers in flight.
func forEach(ctx context.Context, workers int, names []string, fn func(ctx context.Context, i int, name string)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			fn(gctx, i, name)
			return nil
		})
	}
	_ = g.Wait()
}

func saveReport(filename string, rep *Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

func displayFinalStats(ctx context.Context, log logger.Logger, rep *Report) {
	var successRate float64
	if n := len(rep.Users); n > 0 {
		successRate = float64(rep.Embedded) / float64(n) * percentageMultiplier
	}
	log.Info(ctx, "final statistics",
		logger.Int("users", len(rep.Users)),
		logger.Int("embedded", rep.Embedded),
		logger.Int("failed", rep.Failed),
		logger.Int("violations", rep.Violations),
		logger.Duration("duration", rep.Duration),
		logger.Float64("successRate", successRate))
}
