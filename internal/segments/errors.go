package segments

import "errors"

// Sentinel errors for the segment registry.
var (
	ErrNotFound        = errors.New("segment not found")
	ErrAlreadySeeded   = errors.New("system segments already seeded for profile")
	ErrSystemSegment   = errors.New("system segments allow only is_active and auto_actions changes")
	ErrInvalidCriteria = errors.New("invalid segment criteria")
)
