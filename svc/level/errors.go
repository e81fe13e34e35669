package level

import "errors"

// Request errors. Their messages are shown to users.
var (
	ErrNotFullAccount     = errors.New("a full account is required")
	ErrNotPro             = errors.New("scheduled publishing requires a Pro account")
	ErrPublishAtInPast    = errors.New("publish date must be in the future")
	ErrPublishAtTooFar    = errors.New("cannot schedule more than 1 month in advance")
	ErrLevelNotFound      = errors.New("level not found")
	ErrStatNotFound       = errors.New("stat not found")
	ErrNotDraft           = errors.New("level is already published")
	ErrAlreadyScheduled   = errors.New("level is already scheduled for publishing")
	ErrNotScheduled       = errors.New("level is not scheduled for publishing")
	ErrLevelScheduled     = errors.New("level is scheduled for publishing; cancel the schedule to edit it")
	ErrPublishInProgress  = errors.New("scheduled publish is already in progress")
	ErrValidation         = errors.New("level is not ready to publish")
	ErrScheduleMismatch   = errors.New("level schedule points at a different message")
	ErrStoreFailed        = errors.New("level store failure")
	ErrInvalidPublishDate = errors.New("publishAt must be an ISO 8601 timestamp")
)
