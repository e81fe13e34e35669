package file

import "errors"

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrFailedToWriteFile       = errors.New("failed to write file")
	ErrFailedToCreateDirectory = errors.New("failed to create directory")
	ErrFailedToLoadConfig      = errors.New("failed to load AWS config")

	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	ErrOperationTimeout   = errors.New("operation timed out")
	ErrOperationCanceled  = errors.New("operation canceled")
)
