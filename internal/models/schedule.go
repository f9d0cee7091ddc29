package models

import "time"

// Date field names used by the date source.
const (
	DateFieldStart = "start"
	DateFieldDue   = "due"
	DateFieldEnd   = "end"
)

// DateKey addresses one date value of one block, e.g. (sequence key, "due").
type DateKey struct {
	UsageKey UsageKey
	Field    string
}

// ScheduleItem holds the release schedule of one section or sequence.
type ScheduleItem struct {
	UsageKey UsageKey `json:"usageKey"`

	// Start is the date before which the item is treated as not yet
	// released. Nil means no date of its own.
	Start *time.Time `json:"start,omitempty"`

	// EffectiveStart is the binding release date after inheriting
	// constraints from ancestors: the latest of the defined start values on
	// the course -> section -> sequence chain, since a child cannot become
	// available before its parent. Nil when nothing on the chain has one.
	EffectiveStart *time.Time `json:"effectiveStart,omitempty"`

	Due *time.Time `json:"due,omitempty"`
}

// Schedule holds the release dates for the items of one user course outline.
type Schedule struct {
	CourseStart *time.Time                `json:"courseStart,omitempty"`
	CourseEnd   *time.Time                `json:"courseEnd,omitempty"`
	Sections    map[UsageKey]ScheduleItem `json:"sections"`
	Sequences   map[UsageKey]ScheduleItem `json:"sequences"`
}
