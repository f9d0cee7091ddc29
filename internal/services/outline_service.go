package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openlearn/outline-service/internal/models"
)

// outlineCacheTTL bounds how long a materialized outline may be served from
// cache. Version-scoped cache keys already guarantee a miss after every
// republish, so the TTL only caps memory held for dead versions.
const outlineCacheTTL = 300 * time.Second

// OutlineRepository defines methods for canonical outline data access
type OutlineRepository interface {
	// GetLearningContext retrieves the learning context row for a course run
	//
	// "ctx" is the context for the request.
	// "courseKey" is the course run to look up.
	//
	// Returns the learning context and an error if any.
	GetLearningContext(ctx context.Context, courseKey models.CourseKey) (*models.LearningContext, error)
	// ListSections retrieves all sections of a learning context in stored order
	//
	// "ctx" is the context for the request.
	// "learningContextID" is the ID of the learning context.
	//
	// Returns the section rows and an error if any.
	ListSections(ctx context.Context, learningContextID int64) ([]models.SectionRow, error)
	// ListSectionSequences retrieves all section-sequence join rows of a
	// learning context in stored order, with sequence details attached
	//
	// "ctx" is the context for the request.
	// "learningContextID" is the ID of the learning context.
	//
	// Returns the join rows and an error if any.
	ListSectionSequences(ctx context.Context, learningContextID int64) ([]models.SectionSequenceRow, error)
	// ReplaceOutline replaces all stored rows of a course outline in one
	// atomic transaction
	//
	// "ctx" is the context for the request.
	// "outline" is the full outline to store.
	//
	// Returns an error if any.
	ReplaceOutline(ctx context.Context, outline *models.CourseOutline) error
}

// OutlineCache defines the cache port in front of the outline read path.
// The cache is an optimization only: correctness must hold with a cache that
// never finds anything.
type OutlineCache interface {
	// Get retrieves a cached outline, reporting whether it was found
	Get(ctx context.Context, key string) (*models.CourseOutline, bool)
	// Set stores an outline with a TTL, best effort
	Set(ctx context.Context, key string, outline *models.CourseOutline, ttl time.Duration)
}

type outlineService struct {
	outlineRepo OutlineRepository
	datesRepo   CourseDatesRepository
	cache       OutlineCache
	logger      *zap.Logger
}

// NewOutlineService creates a new outline service. The cache may be nil, in
// which case every read goes to the repository.
func NewOutlineService(outlineRepo OutlineRepository, datesRepo CourseDatesRepository, cache OutlineCache, logger *zap.Logger) *outlineService {
	return &outlineService{
		outlineRepo: outlineRepo,
		datesRepo:   datesRepo,
		cache:       cache,
		logger:      logger,
	}
}

// GetCourseOutline retrieves the outline of a course run. No user-specific
// data or permissions are applied here.
func (s *outlineService) GetCourseOutline(ctx context.Context, courseKey models.CourseKey) (*models.CourseOutline, error) {
	if courseKey.Deprecated {
		return nil, fmt.Errorf("%w: deprecated course key %s", models.ErrInvalidKey, courseKey)
	}

	learningContext, err := s.outlineRepo.GetLearningContext(ctx, courseKey)
	if err != nil {
		return nil, err
	}

	// The key carries the published version so a stale entry from a prior
	// publish can never be served: a version bump is a guaranteed miss.
	cacheKey := fmt.Sprintf("course_outline:v1:%s:%s", learningContext.CourseKey, learningContext.PublishedVersion)
	if s.cache != nil {
		if outline, found := s.cache.Get(ctx, cacheKey); found {
			return outline, nil
		}
	}

	outline, err := s.buildOutline(ctx, learningContext)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, outline, outlineCacheTTL)
	}

	return outline, nil
}

// buildOutline reconstructs the outline value from the stored rows
func (s *outlineService) buildOutline(ctx context.Context, learningContext *models.LearningContext) (*models.CourseOutline, error) {
	sectionRows, err := s.outlineRepo.ListSections(ctx, learningContext.ID)
	if err != nil {
		return nil, err
	}
	sectionSequenceRows, err := s.outlineRepo.ListSectionSequences(ctx, learningContext.ID)
	if err != nil {
		return nil, err
	}

	// Sections are fetched separately from the join rows so that empty
	// sections are represented accurately.
	sectionIDToSequences := make(map[int64][]models.LearningSequence)
	sequences := make(map[models.UsageKey]models.LearningSequence)
	hideFromTOC := models.UsageKeySet{}
	visibleToStaffOnly := models.UsageKeySet{}

	for _, row := range sectionSequenceRows {
		sequence := models.LearningSequence{
			UsageKey: row.UsageKey,
			Title:    row.Title,
		}
		sequences[row.UsageKey] = sequence
		sectionIDToSequences[row.SectionID] = append(sectionIDToSequences[row.SectionID], sequence)
		if row.HideFromTOC {
			hideFromTOC.Add(row.UsageKey)
		}
		if row.VisibleToStaffOnly {
			visibleToStaffOnly.Add(row.UsageKey)
		}
	}

	sections := make([]models.CourseSection, 0, len(sectionRows))
	for _, row := range sectionRows {
		sections = append(sections, models.CourseSection{
			UsageKey:  row.UsageKey,
			Title:     row.Title,
			Sequences: sectionIDToSequences[row.ID],
		})
		if row.HideFromTOC {
			hideFromTOC.Add(row.UsageKey)
		}
		if row.VisibleToStaffOnly {
			visibleToStaffOnly.Add(row.UsageKey)
		}
	}

	return models.NewCourseOutline(
		learningContext.CourseKey,
		learningContext.Title,
		learningContext.PublishedAt,
		learningContext.PublishedVersion,
		sections,
		sequences,
		models.CourseItemVisibility{
			HideFromTOC:        hideFromTOC,
			VisibleToStaffOnly: visibleToStaffOnly,
		},
	)
}

// ReplaceCourseOutline replaces the stored outline of a course run with the
// given one. The replacement is atomic; readers either see the previous
// outline or the new one, never a mix.
func (s *outlineService) ReplaceCourseOutline(ctx context.Context, outline *models.CourseOutline) error {
	if outline.CourseKey.Deprecated {
		return fmt.Errorf("%w: outline replacement not supported for deprecated course key %s",
			models.ErrInvalidKey, outline.CourseKey)
	}

	s.logger.Info("Replacing course outline",
		zap.String("courseKey", outline.CourseKey.String()),
		zap.String("publishedVersion", outline.PublishedVersion),
		zap.Int("sections", len(outline.Sections)),
		zap.Int("sequences", len(outline.Sequences)),
	)

	if err := s.outlineRepo.ReplaceOutline(ctx, outline); err != nil {
		return fmt.Errorf("failed to replace course outline: %w", err)
	}

	return nil
}

// GetUserCourseOutline retrieves an outline customized for a user at a given
// time.
func (s *outlineService) GetUserCourseOutline(ctx context.Context, courseKey models.CourseKey, user models.User, atTime time.Time) (*models.UserCourseOutline, error) {
	userOutline, _, err := s.deriveUserOutline(ctx, courseKey, user, atTime)
	if err != nil {
		return nil, err
	}
	return userOutline, nil
}

// GetUserCourseOutlineDetails retrieves a user course outline together with
// its schedule.
func (s *outlineService) GetUserCourseOutlineDetails(ctx context.Context, courseKey models.CourseKey, user models.User, atTime time.Time) (*models.UserCourseOutlineDetails, error) {
	userOutline, schedProcessor, err := s.deriveUserOutline(ctx, courseKey, user, atTime)
	if err != nil {
		return nil, err
	}

	return &models.UserCourseOutlineDetails{
		Outline:  *userOutline,
		Schedule: schedProcessor.ScheduleData(&userOutline.CourseOutline),
	}, nil
}

// deriveUserOutline runs the processor chain over the full outline and trims
// it down to what the user may see.
func (s *outlineService) deriveUserOutline(ctx context.Context, courseKey models.CourseKey, user models.User, atTime time.Time) (*models.UserCourseOutline, *scheduleProcessor, error) {
	fullOutline, err := s.GetCourseOutline(ctx, courseKey)
	if err != nil {
		return nil, nil, err
	}

	// The schedule processor is tracked separately because the details
	// variant needs its schedule data after trimming.
	schedProcessor := NewScheduleProcessor(courseKey, user, atTime, s.datesRepo)
	processors := []OutlineProcessor{
		schedProcessor,
		NewVisibilityProcessor(courseKey, user, atTime),
	}

	// Each processor contributes its sets independently; the union is the
	// same whatever order they run in.
	usageKeysToRemove := models.UsageKeySet{}
	inaccessibleSequences := models.UsageKeySet{}
	for _, processor := range processors {
		if err := processor.LoadData(ctx); err != nil {
			return nil, nil, fmt.Errorf("outline processor failed to load data: %w", err)
		}
		if !user.IsStaff {
			usageKeysToRemove = usageKeysToRemove.Union(processor.UsageKeysToRemove(fullOutline))
			inaccessibleSequences = inaccessibleSequences.Union(processor.InaccessibleSequences(fullOutline))
		}
	}

	trimmedOutline := fullOutline.Remove(usageKeysToRemove)
	accessibleSequences := trimmedOutline.SequenceKeys().Difference(inaccessibleSequences)

	return &models.UserCourseOutline{
		CourseOutline:       *trimmedOutline,
		BaseOutline:         fullOutline,
		User:                user,
		AtTime:              atTime,
		AccessibleSequences: accessibleSequences,
	}, schedProcessor, nil
}
