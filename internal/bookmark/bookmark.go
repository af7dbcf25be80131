// Package bookmark computes the search window of a sync run from replication
// state and tracks the highest replication value emitted during the run.
package bookmark

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format accepted by the search endpoint.
const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

// ParseTimestamp parses an ISO-8601 timestamp or calendar date. Values
// without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ToDate truncates a timestamp to its calendar date. For timestamps with a
// non-UTC offset the earlier of the local and UTC dates is used, so the
// window never starts after the bookmark.
func ToDate(s string) (string, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return "", err
	}

	local := t.Format(DateLayout)
	utc := t.UTC().Format(DateLayout)
	if utc < local {
		return utc, nil
	}
	return local, nil
}

// StartDate picks the first calendar date to search. The persisted bookmark
// wins over the configured start date; with neither, the window starts
// yesterday (UTC). The date granularity means a resumed run re-scans the
// whole bookmark day.
func StartDate(persisted, configured string, now time.Time) (string, error) {
	switch {
	case persisted != "":
		d, err := ToDate(persisted)
		if err != nil {
			return "", fmt.Errorf("parsing bookmark: %w", err)
		}
		return d, nil
	case configured != "":
		d, err := ToDate(configured)
		if err != nil {
			return "", fmt.Errorf("parsing start_date: %w", err)
		}
		return d, nil
	default:
		return now.UTC().AddDate(0, 0, -1).Format(DateLayout), nil
	}
}

// EndDate returns the configured end date as a calendar date, or today (UTC).
func EndDate(configured string, now time.Time) (string, error) {
	if configured == "" {
		return now.UTC().Format(DateLayout), nil
	}
	d, err := ToDate(configured)
	if err != nil {
		return "", fmt.Errorf("parsing end_date: %w", err)
	}
	return d, nil
}

// Tracker records the maximum replication value seen. It is not safe for
// concurrent use.
type Tracker struct {
	value string
	at    time.Time
}

// NewTracker returns a tracker seeded with the persisted bookmark so a run
// that emits nothing keeps it. An unparsable seed is ignored.
func NewTracker(persisted string) *Tracker {
	t := &Tracker{}
	t.Observe(persisted)
	return t
}

// Observe offers a replication value. It reports whether the value became the
// new maximum. Unparsable values are ignored.
func (t *Tracker) Observe(value string) bool {
	if value == "" {
		return false
	}
	at, err := ParseTimestamp(value)
	if err != nil {
		return false
	}
	if t.value != "" && !at.After(t.at) {
		return false
	}
	t.value = value
	t.at = at
	return true
}

// Value returns the maximum replication value observed, as it was written.
func (t *Tracker) Value() string {
	return t.value
}

// Time returns the maximum replication value as a time.
func (t *Tracker) Time() time.Time {
	return t.at
}
