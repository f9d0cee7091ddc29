package models

import "time"

// LearningContext is the stored row identifying one course run's outline.
type LearningContext struct {
	ID               int64
	CourseKey        CourseKey
	Title            string
	PublishedAt      time.Time
	PublishedVersion string
}

// SectionRow is a stored course section, ordered by its position.
type SectionRow struct {
	ID                 int64
	UsageKey           UsageKey
	Title              string
	HideFromTOC        bool
	VisibleToStaffOnly bool
}

// SectionSequenceRow is a stored section-sequence join row with the sequence
// details attached, ordered by its position.
type SectionSequenceRow struct {
	SectionID          int64
	UsageKey           UsageKey
	Title              string
	HideFromTOC        bool
	VisibleToStaffOnly bool
}
