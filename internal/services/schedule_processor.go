package services

import (
	"context"
	"fmt"
	"time"

	"github.com/openlearn/outline-service/internal/models"
)

// CourseDatesRepository defines methods for release date data access
type CourseDatesRepository interface {
	// GetDatesForCourse retrieves the (usage key, field) -> date mapping for
	// a course and user
	//
	// "ctx" is the context for the request.
	// "courseKey" is the course run to fetch dates for.
	// "userID" is the ID of the user whose overrides apply.
	//
	// Returns the date mapping and an error if any.
	GetDatesForCourse(ctx context.Context, courseKey models.CourseKey, userID int) (map[models.DateKey]time.Time, error)
}

// scheduleProcessor decides which sequences a user cannot enter yet based on
// the course, section, and sequence release dates.
//
// Things not handled yet:
// * Beta test users
// * Self-paced courses
// * Content made inaccessible after its due date
type scheduleProcessor struct {
	courseKey models.CourseKey
	user      models.User
	atTime    time.Time
	datesRepo CourseDatesRepository

	keysToFields map[models.UsageKey]map[string]time.Time
	courseStart  *time.Time
	courseEnd    *time.Time
}

// NewScheduleProcessor creates a schedule processor for one (course, user,
// time) request. No I/O happens until LoadData.
func NewScheduleProcessor(courseKey models.CourseKey, user models.User, atTime time.Time, datesRepo CourseDatesRepository) *scheduleProcessor {
	return &scheduleProcessor{
		courseKey: courseKey,
		user:      user,
		atTime:    atTime,
		datesRepo: datesRepo,
	}
}

// LoadData fetches the release dates for the course and user and extracts
// the course-level pseudo-item's start and end.
func (p *scheduleProcessor) LoadData(ctx context.Context) error {
	dates, err := p.datesRepo.GetDatesForCourse(ctx, p.courseKey, p.user.ID)
	if err != nil {
		return fmt.Errorf("failed to load course dates: %w", err)
	}

	p.keysToFields = make(map[models.UsageKey]map[string]time.Time)
	for dateKey, date := range dates {
		fields, ok := p.keysToFields[dateKey.UsageKey]
		if !ok {
			fields = make(map[string]time.Time)
			p.keysToFields[dateKey.UsageKey] = fields
		}
		fields[dateKey.Field] = date
	}

	courseUsageKey := p.courseKey.MakeUsageKey(models.BlockTypeCourse, models.BlockTypeCourse)
	p.courseStart = p.fieldDate(courseUsageKey, models.DateFieldStart)
	p.courseEnd = p.fieldDate(courseUsageKey, models.DateFieldEnd)

	return nil
}

// UsageKeysToRemove always returns the empty set. Content may be
// inaccessible because it has not been released yet, but students are never
// prevented from knowing it exists based on dates.
func (p *scheduleProcessor) UsageKeysToRemove(fullOutline *models.CourseOutline) models.UsageKeySet {
	return models.UsageKeySet{}
}

// InaccessibleSequences returns the sequences that are visible but cannot be
// entered yet because their effective release date is in the future.
func (p *scheduleProcessor) InaccessibleSequences(fullOutline *models.CourseOutline) models.UsageKeySet {
	// If the course hasn't started at all, everything is inaccessible.
	if p.courseStart == nil || p.atTime.Before(*p.courseStart) {
		return fullOutline.SequenceKeys()
	}

	inaccessible := models.UsageKeySet{}
	for _, section := range fullOutline.Sections {
		sectionStart := p.fieldDate(section.UsageKey, models.DateFieldStart)
		if sectionStart != nil && p.atTime.Before(*sectionStart) {
			// An unreleased section blocks all of its sequences, regardless
			// of their own start values.
			for _, seq := range section.Sequences {
				inaccessible.Add(seq.UsageKey)
			}
			continue
		}
		for _, seq := range section.Sequences {
			seqStart := p.fieldDate(seq.UsageKey, models.DateFieldStart)
			if seqStart != nil && p.atTime.Before(*seqStart) {
				inaccessible.Add(seq.UsageKey)
			}
		}
	}

	return inaccessible
}

// ScheduleData returns the schedule for the items of a pruned outline. The
// outline passed here has already been trimmed of everything the user is not
// allowed to see, possibly by other processors, so the schedule never leaks
// data about removed items.
func (p *scheduleProcessor) ScheduleData(prunedOutline *models.CourseOutline) models.Schedule {
	sections := make(map[models.UsageKey]models.ScheduleItem, len(prunedOutline.Sections))
	sequences := make(map[models.UsageKey]models.ScheduleItem, len(prunedOutline.Sequences))

	for _, section := range prunedOutline.Sections {
		sectionStart := p.fieldDate(section.UsageKey, models.DateFieldStart)
		sectionEffectiveStart := effectiveStart(p.courseStart, sectionStart)

		sections[section.UsageKey] = models.ScheduleItem{
			UsageKey:       section.UsageKey,
			Start:          sectionStart,
			EffectiveStart: sectionEffectiveStart,
			Due:            p.fieldDate(section.UsageKey, models.DateFieldDue),
		}

		for _, seq := range section.Sequences {
			seqStart := p.fieldDate(seq.UsageKey, models.DateFieldStart)
			sequences[seq.UsageKey] = models.ScheduleItem{
				UsageKey:       seq.UsageKey,
				Start:          seqStart,
				EffectiveStart: effectiveStart(sectionEffectiveStart, seqStart),
				Due:            p.fieldDate(seq.UsageKey, models.DateFieldDue),
			}
		}
	}

	return models.Schedule{
		CourseStart: p.courseStart,
		CourseEnd:   p.courseEnd,
		Sections:    sections,
		Sequences:   sequences,
	}
}

// fieldDate returns one date field of one block, or nil if unset
func (p *scheduleProcessor) fieldDate(usageKey models.UsageKey, field string) *time.Time {
	fields, ok := p.keysToFields[usageKey]
	if !ok {
		return nil
	}
	date, ok := fields[field]
	if !ok {
		return nil
	}
	return &date
}

// effectiveStart folds an ancestor's effective start into an item's own
// start. A child cannot become available before its parent, so the binding
// date is the latest of the defined ones; nil ancestors contribute nothing.
func effectiveStart(dates ...*time.Time) *time.Time {
	var latest *time.Time
	for _, date := range dates {
		if date == nil {
			continue
		}
		if latest == nil || date.After(*latest) {
			latest = date
		}
	}
	return latest
}
