package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/outline-service/internal/models"
)

// loadedScheduleProcessor builds a schedule processor over the given dates
// and runs LoadData
func loadedScheduleProcessor(t *testing.T, atTime time.Time, dates map[models.DateKey]time.Time) *scheduleProcessor {
	t.Helper()

	processor := NewScheduleProcessor(testCourseKey, models.User{ID: 7}, atTime, &mockCourseDatesRepository{dates: dates})
	require.NoError(t, processor.LoadData(context.Background()))

	return processor
}

func TestScheduleProcessor_LoadDataError(t *testing.T) {
	processor := NewScheduleProcessor(testCourseKey, models.User{ID: 7}, time.Now(), &mockCourseDatesRepository{err: errors.New("database error")})

	err := processor.LoadData(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load course dates")
}

func TestScheduleProcessor_UsageKeysToRemoveAlwaysEmpty(t *testing.T) {
	outline := buildTestOutline(t)
	processor := loadedScheduleProcessor(t, date(2024, 6, 1), nil)

	assert.Empty(t, processor.UsageKeysToRemove(outline))
}

func TestScheduleProcessor_InaccessibleSequences(t *testing.T) {
	courseStart := date(2024, 1, 1)
	s1Start := date(2024, 2, 1)
	chBStart := date(2024, 5, 1)

	tests := []struct {
		name     string
		atTime   time.Time
		dates    map[models.DateKey]time.Time
		expected models.UsageKeySet
	}{
		{
			name:   "no course start makes everything inaccessible",
			atTime: date(2024, 6, 1),
			dates: map[models.DateKey]time.Time{
				{UsageKey: sequenceKey("s1"), Field: models.DateFieldStart}: s1Start,
			},
			expected: models.NewUsageKeySet(sequenceKey("s1"), sequenceKey("s2"), sequenceKey("s3")),
		},
		{
			name:   "before course start everything is inaccessible",
			atTime: date(2023, 12, 1),
			dates: map[models.DateKey]time.Time{
				{UsageKey: courseUsageKey(), Field: models.DateFieldStart}: courseStart,
			},
			expected: models.NewUsageKeySet(sequenceKey("s1"), sequenceKey("s2"), sequenceKey("s3")),
		},
		{
			name:   "sequence with future start is inaccessible",
			atTime: date(2024, 1, 15),
			dates: map[models.DateKey]time.Time{
				{UsageKey: courseUsageKey(), Field: models.DateFieldStart}: courseStart,
				{UsageKey: sequenceKey("s1"), Field: models.DateFieldStart}: s1Start,
			},
			expected: models.NewUsageKeySet(sequenceKey("s1")),
		},
		{
			name:   "sequence becomes accessible after its start",
			atTime: date(2024, 2, 2),
			dates: map[models.DateKey]time.Time{
				{UsageKey: courseUsageKey(), Field: models.DateFieldStart}: courseStart,
				{UsageKey: sequenceKey("s1"), Field: models.DateFieldStart}: s1Start,
			},
			expected: models.UsageKeySet{},
		},
		{
			name:   "unstarted section blocks all of its sequences",
			atTime: date(2024, 2, 2),
			dates: map[models.DateKey]time.Time{
				{UsageKey: courseUsageKey(), Field: models.DateFieldStart}: courseStart,
				{UsageKey: sectionKey("chB"), Field: models.DateFieldStart}: chBStart,
			},
			// s3 has no start of its own, but its section has not started.
			expected: models.NewUsageKeySet(sequenceKey("s3")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outline := buildTestOutline(t)
			processor := loadedScheduleProcessor(t, tt.atTime, tt.dates)

			inaccessible := processor.InaccessibleSequences(outline)

			assert.Equal(t, tt.expected, inaccessible)
		})
	}
}

func TestScheduleProcessor_ScheduleData(t *testing.T) {
	courseStart := date(2024, 1, 1)
	courseEnd := date(2024, 12, 31)
	s1Start := date(2024, 2, 1)
	s1Due := date(2024, 3, 1)

	outline := buildTestOutline(t)
	processor := loadedScheduleProcessor(t, date(2024, 2, 2), map[models.DateKey]time.Time{
		{UsageKey: courseUsageKey(), Field: models.DateFieldStart}: courseStart,
		{UsageKey: courseUsageKey(), Field: models.DateFieldEnd}:   courseEnd,
		{UsageKey: sequenceKey("s1"), Field: models.DateFieldStart}: s1Start,
		{UsageKey: sequenceKey("s1"), Field: models.DateFieldDue}:   s1Due,
	})

	schedule := processor.ScheduleData(outline)

	require.NotNil(t, schedule.CourseStart)
	assert.True(t, courseStart.Equal(*schedule.CourseStart))
	require.NotNil(t, schedule.CourseEnd)
	assert.True(t, courseEnd.Equal(*schedule.CourseEnd))

	// s1 has its own start, later than the course's, so it binds.
	s1Item := schedule.Sequences[sequenceKey("s1")]
	require.NotNil(t, s1Item.Start)
	assert.True(t, s1Start.Equal(*s1Item.Start))
	require.NotNil(t, s1Item.EffectiveStart)
	assert.True(t, s1Start.Equal(*s1Item.EffectiveStart))
	require.NotNil(t, s1Item.Due)
	assert.True(t, s1Due.Equal(*s1Item.Due))

	// s2 has no start of its own and inherits the course start through its
	// section.
	s2Item := schedule.Sequences[sequenceKey("s2")]
	assert.Nil(t, s2Item.Start)
	require.NotNil(t, s2Item.EffectiveStart)
	assert.True(t, courseStart.Equal(*s2Item.EffectiveStart))

	// Sections inherit the course start too.
	chAItem := schedule.Sections[sectionKey("chA")]
	assert.Nil(t, chAItem.Start)
	require.NotNil(t, chAItem.EffectiveStart)
	assert.True(t, courseStart.Equal(*chAItem.EffectiveStart))
}

func TestScheduleProcessor_ScheduleData_SectionStartBinds(t *testing.T) {
	courseStart := date(2024, 1, 1)
	chAStart := date(2024, 3, 1)
	s1Start := date(2024, 2, 1)

	outline := buildTestOutline(t)
	processor := loadedScheduleProcessor(t, date(2024, 6, 1), map[models.DateKey]time.Time{
		{UsageKey: courseUsageKey(), Field: models.DateFieldStart}: courseStart,
		{UsageKey: sectionKey("chA"), Field: models.DateFieldStart}: chAStart,
		{UsageKey: sequenceKey("s1"), Field: models.DateFieldStart}: s1Start,
	})

	schedule := processor.ScheduleData(outline)

	// s1's own start is earlier than its section's, so the section start is
	// the binding effective date.
	s1Item := schedule.Sequences[sequenceKey("s1")]
	require.NotNil(t, s1Item.EffectiveStart)
	assert.True(t, chAStart.Equal(*s1Item.EffectiveStart))
}

func TestScheduleProcessor_ScheduleData_NoDatesAnywhere(t *testing.T) {
	outline := buildTestOutline(t)
	processor := loadedScheduleProcessor(t, date(2024, 6, 1), nil)

	schedule := processor.ScheduleData(outline)

	assert.Nil(t, schedule.CourseStart)
	assert.Nil(t, schedule.CourseEnd)
	assert.Nil(t, schedule.Sequences[sequenceKey("s1")].EffectiveStart)
}

func TestScheduleProcessor_ScheduleData_OnlyCoversPrunedItems(t *testing.T) {
	outline := buildTestOutline(t)
	processor := loadedScheduleProcessor(t, date(2024, 6, 1), map[models.DateKey]time.Time{
		{UsageKey: courseUsageKey(), Field: models.DateFieldStart}: date(2024, 1, 1),
		{UsageKey: sequenceKey("s3"), Field: models.DateFieldStart}: date(2024, 2, 1),
	})

	pruned := outline.Remove(models.NewUsageKeySet(sectionKey("chB")))

	schedule := processor.ScheduleData(pruned)

	// s3 was trimmed away with chB; the schedule must not leak it.
	assert.NotContains(t, schedule.Sequences, sequenceKey("s3"))
	assert.NotContains(t, schedule.Sections, sectionKey("chB"))
	assert.Contains(t, schedule.Sequences, sequenceKey("s1"))
}
