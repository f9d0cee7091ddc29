package services

import (
	"context"

	"github.com/openlearn/outline-service/internal/models"
)

// OutlineProcessor is one independent decision unit contributing
// removal and inaccessibility facts about a course outline.
//
// Processors are constructed per (course, user, time) request and must not
// perform I/O until LoadData, which fetches everything the processor needs in
// one go. Decision methods are pure with respect to the outline they are
// given, are never called for staff users, and must not depend on any other
// processor having run: the engine unions all processor outputs, so the
// result has to be identical under any execution order.
type OutlineProcessor interface {
	// LoadData fetches whatever data the processor needs about the course
	// and user.
	LoadData(ctx context.Context) error

	// UsageKeysToRemove returns the section and sequence usage keys whose
	// existence must be hidden from the user entirely.
	UsageKeysToRemove(fullOutline *models.CourseOutline) models.UsageKeySet

	// InaccessibleSequences returns the sequence usage keys that stay
	// visible but cannot be entered.
	InaccessibleSequences(fullOutline *models.CourseOutline) models.UsageKeySet
}
