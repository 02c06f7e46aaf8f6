// Package util provides small stateless helpers shared across the engine:
// time arithmetic, glob-to-regex translation, hashing and clocks.
package util

import (
	"strconv"
	"strings"
	"time"

	"github.com/agentgov/governor/internal/models"
)

// InvalidMinutes is the sentinel returned by ParseTimeMinutes on parse failure.
const InvalidMinutes = -1

// ParseTimeMinutes parses "HH:MM" (00<=HH<=23, 00<=MM<=59) into minutes since
// local midnight, or InvalidMinutes on parse failure.
func ParseTimeMinutes(s string) int {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return InvalidMinutes
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return InvalidMinutes
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return InvalidMinutes
	}
	return h*60 + m
}

// InTimeRange returns whether now falls in [after, before), honoring midnight
// wrap when after>before and exact-minute match when after==before.
func InTimeRange(now, after, before int) bool {
	switch {
	case after == before:
		return now == after
	case after < before:
		return now >= after && now < before
	default: // after > before: midnight wrap
		return now >= after || now < before
	}
}

// CurrentTime builds a TimeContext for the named IANA zone at wall-clock t.
func CurrentTime(zone string, t time.Time) models.TimeContext {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
		zone = "UTC"
	}
	lt := t.In(loc)
	return models.TimeContext{
		Hour:        lt.Hour(),
		Minute:      lt.Minute(),
		DayOfWeek:   lt.Weekday(),
		Date:        lt.Format("2006-01-02"),
		Zone:        zone,
		MinuteOfDay: lt.Hour()*60 + lt.Minute(),
	}
}

// ExtractAgentID returns the substring between "agent:" and the next ":" in
// sessionKey (matching agent:<id>[:subagent:...]), or fallback when the key
// does not match that pattern.
func ExtractAgentID(sessionKey, fallback string) string {
	const prefix = "agent:"
	idx := strings.Index(sessionKey, prefix)
	if idx < 0 {
		return fallback
	}
	rest := sessionKey[idx+len(prefix):]
	if end := strings.Index(rest, ":"); end >= 0 {
		if rest[:end] == "" {
			return fallback
		}
		return rest[:end]
	}
	if rest == "" {
		return fallback
	}
	return rest
}
