package models

import (
	"fmt"
	"strings"
)

// CourseKey identifies one course run. The modern serialized form is
// "course-v1:Org+Course+Run". The older slash-separated form ("Org/Course/Run")
// still parses so callers can recognize it, but it is flagged as deprecated
// and rejected by every outline entry point.
type CourseKey struct {
	Org        string `json:"org"`
	Course     string `json:"course"`
	Run        string `json:"run"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

const courseKeyPrefix = "course-v1:"

// ParseCourseKey parses a serialized course key in either the modern or the
// deprecated slash-separated format.
func ParseCourseKey(serialized string) (CourseKey, error) {
	if rest, ok := strings.CutPrefix(serialized, courseKeyPrefix); ok {
		parts := strings.Split(rest, "+")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return CourseKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, serialized)
		}
		return CourseKey{Org: parts[0], Course: parts[1], Run: parts[2]}, nil
	}

	parts := strings.Split(serialized, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return CourseKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, serialized)
	}
	return CourseKey{Org: parts[0], Course: parts[1], Run: parts[2], Deprecated: true}, nil
}

// String returns the serialized form of the key.
func (k CourseKey) String() string {
	if k.Deprecated {
		return fmt.Sprintf("%s/%s/%s", k.Org, k.Course, k.Run)
	}
	return fmt.Sprintf("%s%s+%s+%s", courseKeyPrefix, k.Org, k.Course, k.Run)
}

// IsZero reports whether the key is the zero value.
func (k CourseKey) IsZero() bool {
	return k.Org == "" && k.Course == "" && k.Run == ""
}

// MakeUsageKey builds a usage key for a block inside this course run.
func (k CourseKey) MakeUsageKey(blockType, blockID string) UsageKey {
	return UsageKey(fmt.Sprintf("block-v1:%s+%s+%s+type@%s+block@%s",
		k.Org, k.Course, k.Run, blockType, blockID))
}

// Block types used by the outline.
const (
	BlockTypeCourse   = "course"
	BlockTypeSection  = "chapter"
	BlockTypeSequence = "sequential"
)

// UsageKey is the globally unique identifier of one block within a course
// run, serialized as "block-v1:Org+Course+Run+type@<type>+block@<id>".
type UsageKey string

const usageKeyPrefix = "block-v1:"

// ParseUsageKey validates a serialized usage key.
func ParseUsageKey(serialized string) (UsageKey, error) {
	rest, ok := strings.CutPrefix(serialized, usageKeyPrefix)
	if !ok {
		return "", fmt.Errorf("%w: usage key %q", ErrInvalidKey, serialized)
	}
	parts := strings.Split(rest, "+")
	if len(parts) != 5 ||
		!strings.HasPrefix(parts[3], "type@") ||
		!strings.HasPrefix(parts[4], "block@") {
		return "", fmt.Errorf("%w: usage key %q", ErrInvalidKey, serialized)
	}
	return UsageKey(serialized), nil
}

// BlockType extracts the block type ("chapter", "sequential", ...) from the
// key, or "" if the key is malformed.
func (u UsageKey) BlockType() string {
	for _, part := range strings.Split(string(u), "+") {
		if t, ok := strings.CutPrefix(part, "type@"); ok {
			return t
		}
	}
	return ""
}

// IsSection reports whether the key identifies a section.
func (u UsageKey) IsSection() bool {
	return u.BlockType() == BlockTypeSection
}

// IsSequence reports whether the key identifies a sequence.
func (u UsageKey) IsSequence() bool {
	return u.BlockType() == BlockTypeSequence
}

func (u UsageKey) String() string {
	return string(u)
}

// UsageKeySet is a set of usage keys.
type UsageKeySet map[UsageKey]struct{}

// NewUsageKeySet builds a set from the given keys.
func NewUsageKeySet(keys ...UsageKey) UsageKeySet {
	set := make(UsageKeySet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// Contains reports whether key is in the set.
func (s UsageKeySet) Contains(key UsageKey) bool {
	_, ok := s[key]
	return ok
}

// Add inserts key into the set.
func (s UsageKeySet) Add(key UsageKey) {
	s[key] = struct{}{}
}

// Union returns a new set with the members of s and other.
func (s UsageKeySet) Union(other UsageKeySet) UsageKeySet {
	result := make(UsageKeySet, len(s)+len(other))
	for key := range s {
		result[key] = struct{}{}
	}
	for key := range other {
		result[key] = struct{}{}
	}
	return result
}

// Difference returns a new set with the members of s not in other.
func (s UsageKeySet) Difference(other UsageKeySet) UsageKeySet {
	result := make(UsageKeySet, len(s))
	for key := range s {
		if !other.Contains(key) {
			result[key] = struct{}{}
		}
	}
	return result
}
