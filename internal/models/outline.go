package models

import (
	"fmt"
	"time"
)

// LearningSequence is a leaf learning unit a user directly interacts with.
type LearningSequence struct {
	UsageKey UsageKey `json:"usageKey"`
	Title    string   `json:"title"`
}

// CourseSection is a top-level grouping of sequences. Sequence order is
// caller-defined and significant: insertion order is display order.
type CourseSection struct {
	UsageKey  UsageKey           `json:"usageKey"`
	Title     string             `json:"title"`
	Sequences []LearningSequence `json:"sequences"`
}

// CourseItemVisibility holds the visibility flags for section and sequence
// usage keys. A key may appear in both sets.
type CourseItemVisibility struct {
	// HideFromTOC keys are excluded from navigation but stay reachable by
	// direct link.
	HideFromTOC UsageKeySet `json:"hideFromToc"`
	// VisibleToStaffOnly keys are hidden from non-staff users entirely.
	VisibleToStaffOnly UsageKeySet `json:"visibleToStaffOnly"`
}

// CourseOutline is the canonical, full outline of one course run at one
// published version. Values are read-only after construction; republishing
// produces a new value with the same CourseKey and a different
// PublishedVersion.
type CourseOutline struct {
	CourseKey CourseKey `json:"courseKey"`
	Title     string    `json:"title"`

	// PublishedAt is the publish time of the underlying course content, not
	// of outline generation, which happens asynchronously and may lag.
	PublishedAt time.Time `json:"publishedAt"`

	// PublishedVersion is an opaque token that changes whenever the
	// underlying course content changes. Only inequality is meaningful; no
	// ordering is guaranteed.
	PublishedVersion string `json:"publishedVersion"`

	// Sections in display order.
	Sections []CourseSection `json:"sections"`

	// Sequences is a flat index of ALL sequences in the course, including
	// ones not reachable through Sections (e.g. hidden-from-TOC sequences
	// reachable by direct link). Every sequence referenced by a section must
	// appear here; the reverse is not required.
	Sequences map[UsageKey]LearningSequence `json:"sequences"`

	Visibility CourseItemVisibility `json:"visibility"`
}

// NewCourseOutline validates and builds a CourseOutline. It fails if the
// course key is deprecated or if any section references a sequence missing
// from the flat index.
func NewCourseOutline(
	courseKey CourseKey,
	title string,
	publishedAt time.Time,
	publishedVersion string,
	sections []CourseSection,
	sequences map[UsageKey]LearningSequence,
	visibility CourseItemVisibility,
) (*CourseOutline, error) {
	if courseKey.IsZero() || courseKey.Deprecated {
		return nil, fmt.Errorf("%w: deprecated or empty course key %q", ErrInvalidKey, courseKey)
	}
	for _, section := range sections {
		for _, seq := range section.Sequences {
			if _, ok := sequences[seq.UsageKey]; !ok {
				return nil, fmt.Errorf(
					"%w: section %s references sequence %s missing from the sequence index",
					ErrInvalidOutline, section.UsageKey, seq.UsageKey,
				)
			}
		}
	}
	return &CourseOutline{
		CourseKey:        courseKey,
		Title:            title,
		PublishedAt:      publishedAt,
		PublishedVersion: publishedVersion,
		Sections:         sections,
		Sequences:        sequences,
		Visibility:       visibility,
	}, nil
}

// SequenceKeys returns the set of keys in the flat sequence index.
func (o *CourseOutline) SequenceKeys() UsageKeySet {
	keys := make(UsageKeySet, len(o.Sequences))
	for key := range o.Sequences {
		keys[key] = struct{}{}
	}
	return keys
}

// Remove returns a copy of the outline with the given section and sequence
// usage keys excised. Removing a section removes every sequence it contains
// as well. Removing all sequences from a section keeps the (now empty)
// section visible. Visibility sets are filtered down to surviving keys.
func (o *CourseOutline) Remove(keys UsageKeySet) *CourseOutline {
	removedSequences := make(UsageKeySet)
	for key := range keys {
		if key.IsSequence() {
			removedSequences.Add(key)
		}
	}

	sections := make([]CourseSection, 0, len(o.Sections))
	for _, section := range o.Sections {
		if keys.Contains(section.UsageKey) {
			for _, seq := range section.Sequences {
				removedSequences.Add(seq.UsageKey)
			}
			continue
		}
		kept := make([]LearningSequence, 0, len(section.Sequences))
		for _, seq := range section.Sequences {
			if !keys.Contains(seq.UsageKey) {
				kept = append(kept, seq)
			}
		}
		sections = append(sections, CourseSection{
			UsageKey:  section.UsageKey,
			Title:     section.Title,
			Sequences: kept,
		})
	}

	sequences := make(map[UsageKey]LearningSequence, len(o.Sequences))
	for key, seq := range o.Sequences {
		if !removedSequences.Contains(key) {
			sequences[key] = seq
		}
	}

	survivors := make(UsageKeySet, len(sequences)+len(sections))
	for key := range sequences {
		survivors.Add(key)
	}
	for _, section := range sections {
		survivors.Add(section.UsageKey)
	}

	return &CourseOutline{
		CourseKey:        o.CourseKey,
		Title:            o.Title,
		PublishedAt:      o.PublishedAt,
		PublishedVersion: o.PublishedVersion,
		Sections:         sections,
		Sequences:        sequences,
		Visibility: CourseItemVisibility{
			HideFromTOC:        intersectSet(o.Visibility.HideFromTOC, survivors),
			VisibleToStaffOnly: intersectSet(o.Visibility.VisibleToStaffOnly, survivors),
		},
	}
}

func intersectSet(set, keep UsageKeySet) UsageKeySet {
	result := make(UsageKeySet, len(set))
	for key := range set {
		if keep.Contains(key) {
			result[key] = struct{}{}
		}
	}
	return result
}
