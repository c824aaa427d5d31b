package config_test

import (
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tastebud/internal/config"
)

func TestValidate(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New()

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"unknown log level", func(c *config.Config) { c.LogLevel = "loud" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown catalog driver", func(c *config.Config) { c.Catalog.Driver = "csv" }},
			{"zero dimension", func(c *config.Config) { c.Catalog.Dimension = 0 }},
			{"fuzzy threshold above 1", func(c *config.Config) { c.Resolver.FuzzyThreshold = 1.5 }},
			{"unknown window weight", func(c *config.Config) { c.Aggregation.Weights["last-week"] = 0.1 }},
			{"negative window weight", func(c *config.Config) { c.Aggregation.Weights["overall"] = -1 }},
			{"boost below one", func(c *config.Config) { c.Aggregation.ConsistencyBoost = 0.5 }},
			{"zero workers", func(c *config.Config) { c.Regeneration.Workers = 0 }},
			{"redis without addr", func(c *config.Config) {
				c.Repository.Driver = "redis"
				c.Repository.Redis.Addr = ""
			}},
			{"zero breaker failures", func(c *config.Config) { c.Breaker.Failures = 0 }},
			{"zero lastfm rate", func(c *config.Config) { c.LastFM.RequestsPerSecond = 0 }},
			{"zero default seed count", func(c *config.Config) { c.Seeding.DefaultCount = 0 }},
		}
		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
