package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openlearn/outline-service/internal/models"
)

var testCourseKey = models.CourseKey{Org: "TestOrg", Course: "CS101", Run: "2024"}

func sectionKey(id string) models.UsageKey {
	return testCourseKey.MakeUsageKey(models.BlockTypeSection, id)
}

func sequenceKey(id string) models.UsageKey {
	return testCourseKey.MakeUsageKey(models.BlockTypeSequence, id)
}

func courseUsageKey() models.UsageKey {
	return testCourseKey.MakeUsageKey(models.BlockTypeCourse, models.BlockTypeCourse)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// buildTestOutline creates the fixture outline used across the service
// tests:
//   - section "chA" with sequences "s1" and "s2"
//   - section "chB" flagged hide_from_toc, holding sequence "s3"
//   - section "chC" with no sequences
//   - sequence "s2" flagged visible_to_staff_only
func buildTestOutline(t *testing.T) *models.CourseOutline {
	t.Helper()

	s1 := models.LearningSequence{UsageKey: sequenceKey("s1"), Title: "Week 1"}
	s2 := models.LearningSequence{UsageKey: sequenceKey("s2"), Title: "Week 2"}
	s3 := models.LearningSequence{UsageKey: sequenceKey("s3"), Title: "Week 3"}

	outline, err := models.NewCourseOutline(
		testCourseKey,
		"Intro to CS",
		date(2024, 1, 1),
		"v1",
		[]models.CourseSection{
			{UsageKey: sectionKey("chA"), Title: "Chapter A", Sequences: []models.LearningSequence{s1, s2}},
			{UsageKey: sectionKey("chB"), Title: "Chapter B", Sequences: []models.LearningSequence{s3}},
			{UsageKey: sectionKey("chC"), Title: "Chapter C"},
		},
		map[models.UsageKey]models.LearningSequence{
			s1.UsageKey: s1,
			s2.UsageKey: s2,
			s3.UsageKey: s3,
		},
		models.CourseItemVisibility{
			HideFromTOC:        models.NewUsageKeySet(sectionKey("chB")),
			VisibleToStaffOnly: models.NewUsageKeySet(sequenceKey("s2")),
		},
	)
	require.NoError(t, err)

	return outline
}

// mockOutlineRepository is an in-memory implementation of OutlineRepository.
// It serves rows derived from the last outline stored with ReplaceOutline,
// so it behaves like the real store across a replace-then-read cycle.
type mockOutlineRepository struct {
	outline *models.CourseOutline

	getContextErr       error
	listSectionsErr     error
	listSequencesErr    error
	replaceErr          error
	getLearningCtxCalls int
	listSectionsCalls   int
	listSequencesCalls  int
	replaceOutlineCalls int
}

func (m *mockOutlineRepository) GetLearningContext(ctx context.Context, courseKey models.CourseKey) (*models.LearningContext, error) {
	m.getLearningCtxCalls++
	if m.getContextErr != nil {
		return nil, m.getContextErr
	}
	if m.outline == nil || m.outline.CourseKey != courseKey {
		return nil, fmt.Errorf("%w: %s", models.ErrOutlineNotFound, courseKey)
	}
	return &models.LearningContext{
		ID:               1,
		CourseKey:        m.outline.CourseKey,
		Title:            m.outline.Title,
		PublishedAt:      m.outline.PublishedAt,
		PublishedVersion: m.outline.PublishedVersion,
	}, nil
}

func (m *mockOutlineRepository) ListSections(ctx context.Context, learningContextID int64) ([]models.SectionRow, error) {
	m.listSectionsCalls++
	if m.listSectionsErr != nil {
		return nil, m.listSectionsErr
	}
	rows := make([]models.SectionRow, 0, len(m.outline.Sections))
	for i, section := range m.outline.Sections {
		rows = append(rows, models.SectionRow{
			ID:                 int64(i + 1),
			UsageKey:           section.UsageKey,
			Title:              section.Title,
			HideFromTOC:        m.outline.Visibility.HideFromTOC.Contains(section.UsageKey),
			VisibleToStaffOnly: m.outline.Visibility.VisibleToStaffOnly.Contains(section.UsageKey),
		})
	}
	return rows, nil
}

func (m *mockOutlineRepository) ListSectionSequences(ctx context.Context, learningContextID int64) ([]models.SectionSequenceRow, error) {
	m.listSequencesCalls++
	if m.listSequencesErr != nil {
		return nil, m.listSequencesErr
	}
	var rows []models.SectionSequenceRow
	for i, section := range m.outline.Sections {
		for _, seq := range section.Sequences {
			rows = append(rows, models.SectionSequenceRow{
				SectionID:          int64(i + 1),
				UsageKey:           seq.UsageKey,
				Title:              seq.Title,
				HideFromTOC:        m.outline.Visibility.HideFromTOC.Contains(seq.UsageKey),
				VisibleToStaffOnly: m.outline.Visibility.VisibleToStaffOnly.Contains(seq.UsageKey),
			})
		}
	}
	return rows, nil
}

func (m *mockOutlineRepository) ReplaceOutline(ctx context.Context, outline *models.CourseOutline) error {
	m.replaceOutlineCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.outline = outline
	return nil
}

// mockCourseDatesRepository is a mock implementation of CourseDatesRepository
type mockCourseDatesRepository struct {
	dates map[models.DateKey]time.Time
	err   error
	calls int
}

func (m *mockCourseDatesRepository) GetDatesForCourse(ctx context.Context, courseKey models.CourseKey, userID int) (map[models.DateKey]time.Time, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.dates == nil {
		return map[models.DateKey]time.Time{}, nil
	}
	return m.dates, nil
}

// mockOutlineCache is a map-backed implementation of OutlineCache
type mockOutlineCache struct {
	entries  map[string]*models.CourseOutline
	setCalls int
}

func newMockOutlineCache() *mockOutlineCache {
	return &mockOutlineCache{entries: make(map[string]*models.CourseOutline)}
}

func (m *mockOutlineCache) Get(ctx context.Context, key string) (*models.CourseOutline, bool) {
	outline, found := m.entries[key]
	return outline, found
}

func (m *mockOutlineCache) Set(ctx context.Context, key string, outline *models.CourseOutline, ttl time.Duration) {
	m.setCalls++
	m.entries[key] = outline
}
