package service

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type DueState string

const (
	DueUpcoming DueState = "upcoming"
	DueDue      DueState = "due"
	DueOverdue  DueState = "overdue"
)

// ComputeScheduledTimestamp resolves a calendar date and local time of
// day in the given IANA timezone to epoch milliseconds. This value is
// authoritative for due detection; it must be recomputed whenever date,
// time or timezone change.
func ComputeScheduledTimestamp(date, localTime, timezone string) (int64, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return 0, &ValidationError{Reason: fmt.Sprintf("unknown timezone %q", timezone)}
	}

	t, err := time.ParseInLocation(dateLayout+"T"+timeLayout, date+"T"+localTime, loc)
	if err != nil {
		return 0, &ValidationError{Reason: fmt.Sprintf("invalid scheduled date/time %q %q", date, localTime)}
	}

	return t.UnixMilli(), nil
}

// ClassifyDue is a pure function of the scheduled timestamp, the
// current time and the due window.
func ClassifyDue(scheduledMs int64, now time.Time, dueWindow time.Duration) DueState {
	until := time.Duration(scheduledMs-now.UnixMilli()) * time.Millisecond
	switch {
	case until < 0:
		return DueOverdue
	case until <= dueWindow:
		return DueDue
	default:
		return DueUpcoming
	}
}

// PublishImmediately reports whether a post's scheduled timestamp is
// close enough to now that it should skip the waiting state and go to
// the orchestrator right away.
func PublishImmediately(scheduledMs int64, now time.Time, epsilon time.Duration) bool {
	return scheduledMs <= now.Add(epsilon).UnixMilli()
}

// NormalizeHashtags trims each tag and guarantees a leading '#'. Empty
// entries are dropped, order is preserved.
func NormalizeHashtags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || tag == "#" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		out = append(out, tag)
	}
	return out
}
