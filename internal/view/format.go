package view

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hpungsan/memo/internal/config"
	"github.com/hpungsan/memo/internal/note"
)

// DefaultLayout is the list timestamp layout ("2024/03/09 10:11").
const DefaultLayout = "2006/01/02 15:04"

// Formatter renders a Unix millisecond timestamp for display.
type Formatter func(ms int64) string

// LayoutFormatter formats with a Go time layout in loc (time.Local if nil).
func LayoutFormatter(layout string, loc *time.Location) Formatter {
	if layout == "" {
		layout = DefaultLayout
	}
	if loc == nil {
		loc = time.Local
	}
	return func(ms int64) string {
		return note.Time(ms).In(loc).Format(layout)
	}
}

// RelativeFormatter renders "3 minutes ago" relative to now().
func RelativeFormatter(now func() time.Time) Formatter {
	if now == nil {
		now = time.Now
	}
	return func(ms int64) string {
		return humanize.RelTime(note.Time(ms), now(), "ago", "from now")
	}
}

// NewFormatter picks the formatter for a config time_format value.
func NewFormatter(timeFormat string) Formatter {
	if timeFormat == config.TimeFormatRelative {
		return RelativeFormatter(time.Now)
	}
	return LayoutFormatter(timeFormat, nil)
}
