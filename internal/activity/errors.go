package activity

import "errors"

var (
	ErrNoTrackpoints = errors.New("no trackpoints")
	ErrMissingData   = errors.New("missing trackpoint data")
	ErrInvalidTarget = errors.New("invalid target")
	ErrNotFound      = errors.New("calibration not found")

	ErrUsage           = errors.New("invalid arguments")
	ErrHistoryDisabled = errors.New("calibration history is disabled")
)
