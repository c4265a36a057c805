// Package duration renders time.Duration values in a compact
// human-readable form for configuration dumps, extending the standard
// units with days and weeks.
package duration

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Day represents 24 hours.
	Day = 24 * time.Hour
	// Week represents 7 days.
	Week = 7 * Day
)

// Format converts a duration to a compact string such as "30m", "12h"
// or "1w2d12h". Zero components are omitted, so 1h0m10s renders as
// "1h10s". Sub-second remainders keep their standard units.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var b strings.Builder

	weeks := d / Week
	d -= weeks * Week
	days := d / Day
	d -= days * Day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second

	if weeks > 0 {
		fmt.Fprintf(&b, "%dw", weeks)
	}
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&b, "%ds", seconds)
	}
	if d > 0 {
		if ms := d / time.Millisecond; ms > 0 {
			fmt.Fprintf(&b, "%dms", ms)
			d -= ms * time.Millisecond
		}
		if us := d / time.Microsecond; us > 0 {
			fmt.Fprintf(&b, "%dµs", us)
			d -= us * time.Microsecond
		}
		if d > 0 {
			fmt.Fprintf(&b, "%dns", d)
		}
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}
