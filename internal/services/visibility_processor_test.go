package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/outline-service/internal/models"
)

func TestVisibilityProcessor_UsageKeysToRemove(t *testing.T) {
	outline := buildTestOutline(t)
	processor := NewVisibilityProcessor(testCourseKey, models.User{ID: 7}, time.Now())

	require.NoError(t, processor.LoadData(context.Background()))

	removed := processor.UsageKeysToRemove(outline)

	// chB is hidden from the TOC, s2 is staff only.
	assert.Equal(t, models.NewUsageKeySet(sectionKey("chB"), sequenceKey("s2")), removed)
}

func TestVisibilityProcessor_RemovedSectionTakesItsSequences(t *testing.T) {
	outline := buildTestOutline(t)
	processor := NewVisibilityProcessor(testCourseKey, models.User{ID: 7}, time.Now())

	trimmed := outline.Remove(processor.UsageKeysToRemove(outline))

	// Removing chB removes s3 with it, even though s3 itself carries no flag.
	assert.False(t, trimmed.SequenceKeys().Contains(sequenceKey("s3")))
	assert.False(t, trimmed.SequenceKeys().Contains(sequenceKey("s2")))
	assert.True(t, trimmed.SequenceKeys().Contains(sequenceKey("s1")))

	sectionKeys := make([]models.UsageKey, 0, len(trimmed.Sections))
	for _, section := range trimmed.Sections {
		sectionKeys = append(sectionKeys, section.UsageKey)
	}
	assert.Equal(t, []models.UsageKey{sectionKey("chA"), sectionKey("chC")}, sectionKeys)
}

func TestVisibilityProcessor_InaccessibleSequencesAlwaysEmpty(t *testing.T) {
	outline := buildTestOutline(t)
	processor := NewVisibilityProcessor(testCourseKey, models.User{ID: 7}, time.Now())

	assert.Empty(t, processor.InaccessibleSequences(outline))
}

func TestVisibilityProcessor_NoFlagsNoRemovals(t *testing.T) {
	s1 := models.LearningSequence{UsageKey: sequenceKey("s1"), Title: "Week 1"}
	outline, err := models.NewCourseOutline(
		testCourseKey, "Intro to CS", date(2024, 1, 1), "v1",
		[]models.CourseSection{
			{UsageKey: sectionKey("chA"), Title: "Chapter A", Sequences: []models.LearningSequence{s1}},
		},
		map[models.UsageKey]models.LearningSequence{s1.UsageKey: s1},
		models.CourseItemVisibility{
			HideFromTOC:        models.NewUsageKeySet(),
			VisibleToStaffOnly: models.NewUsageKeySet(),
		},
	)
	require.NoError(t, err)

	processor := NewVisibilityProcessor(testCourseKey, models.User{ID: 7}, time.Now())

	assert.Empty(t, processor.UsageKeysToRemove(outline))
}
