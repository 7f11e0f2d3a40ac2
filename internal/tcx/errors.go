package tcx

import "errors"

var (
	ErrFileNotFound   = errors.New("file not found")
	ErrParse          = errors.New("error parsing tcx document")
	ErrNoTrackpoints  = errors.New("no trackpoints found")
	ErrWrite          = errors.New("error writing tcx document")
	ErrSampleMismatch = errors.New("sample count does not match trackpoints")
	ErrNoPositions    = errors.New("no trackpoints with a position")
)
