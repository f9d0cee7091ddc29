package services

import (
	"context"
	"time"

	"github.com/openlearn/outline-service/internal/models"
)

// visibilityProcessor removes the items flagged as hidden from navigation or
// visible to staff only. Visibility is a remove-or-keep decision: it never
// leaves an item visible but blocked.
type visibilityProcessor struct {
	courseKey models.CourseKey
	user      models.User
	atTime    time.Time
}

// NewVisibilityProcessor creates a visibility processor for one (course,
// user, time) request
func NewVisibilityProcessor(courseKey models.CourseKey, user models.User, atTime time.Time) *visibilityProcessor {
	return &visibilityProcessor{
		courseKey: courseKey,
		user:      user,
		atTime:    atTime,
	}
}

// LoadData is a no-op: everything this processor needs already lives in the
// outline's visibility sets.
func (p *visibilityProcessor) LoadData(ctx context.Context) error {
	return nil
}

// UsageKeysToRemove returns every section or sequence usage key flagged
// hide_from_toc or visible_to_staff_only.
func (p *visibilityProcessor) UsageKeysToRemove(fullOutline *models.CourseOutline) models.UsageKeySet {
	return fullOutline.Visibility.HideFromTOC.Union(fullOutline.Visibility.VisibleToStaffOnly)
}

// InaccessibleSequences always returns the empty set.
func (p *visibilityProcessor) InaccessibleSequences(fullOutline *models.CourseOutline) models.UsageKeySet {
	return models.UsageKeySet{}
}
