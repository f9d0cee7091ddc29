package models

import "time"

// User is the identity an outline is computed for. The zero ID represents an
// anonymous, unauthenticated user.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	IsStaff  bool   `json:"isStaff"`
}

// IsAnonymous reports whether the user is unauthenticated.
func (u User) IsAnonymous() bool {
	return u.ID == 0
}

// UserCourseOutline is a course outline customized for one user at one point
// in time. The embedded CourseOutline is the trimmed view: anything the user
// is not allowed to know exists has been removed from it.
type UserCourseOutline struct {
	CourseOutline

	// BaseOutline is the full outline this view was derived from, kept so
	// staff-only items trimmed out of the student-facing view stay reachable
	// by deriving code.
	BaseOutline *CourseOutline `json:"-"`

	User User `json:"user"`

	// AtTime is the timestamp all accessibility decisions were computed
	// against. Future times are valid ("what will this user see next week?").
	AtTime time.Time `json:"atTime"`

	// AccessibleSequences is the subset of Sequences the user can actually
	// enter. A sequence can be visible (the user knows it exists) while not
	// yet released, in which case it is absent from this set.
	AccessibleSequences UsageKeySet `json:"accessibleSequences"`
}

// UserCourseOutlineDetails pairs a user course outline with its schedule.
// Response-assembly aggregate only, never persisted.
type UserCourseOutlineDetails struct {
	Outline  UserCourseOutline `json:"outline"`
	Schedule Schedule          `json:"schedule"`
}
