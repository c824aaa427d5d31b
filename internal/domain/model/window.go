package model

import "time"

// WindowLabel names one of the listening-history windows.
type WindowLabel string

// Supported windows.
const (
	WindowOverall     WindowLabel = "overall"
	WindowSixMonths   WindowLabel = "last-6-months"
	WindowThreeMonths WindowLabel = "last-3-months"
	WindowRecent      WindowLabel = "recent-200"
)

// Windows lists the supported windows in their canonical order.
func Windows() []WindowLabel {
	return []WindowLabel{WindowOverall, WindowSixMonths, WindowThreeMonths, WindowRecent}
}

// Valid reports whether w is a supported window.
func (w WindowLabel) Valid() bool {
	switch w {
	case WindowOverall, WindowSixMonths, WindowThreeMonths, WindowRecent:
		return true
	}
	return false
}

// WindowStat is a single listening statistic inside one window.
// PlayedAt is zero when the window carries no per-event timestamp.
type WindowStat struct {
	Key       ItemKey
	PlayCount int
	Window    WindowLabel
	PlayedAt  time.Time
}

// WindowGroup holds every statistic reported for one window.
type WindowGroup struct {
	Label WindowLabel
	Stats []WindowStat
}

// Len returns the number of items in the group.
func (g WindowGroup) Len() int { return len(g.Stats) }
