package timelapse

import "errors"

var (
	// ErrTransientLookup wraps geocoding, sun-times and stream handle failures.
	ErrTransientLookup = errors.New("transient lookup failure")
	// ErrFrameAcquisition wraps a failed single-frame grab.
	ErrFrameAcquisition = errors.New("frame acquisition failed")
	// ErrAssembly wraps a failed video encode.
	ErrAssembly = errors.New("assembly failed")
	// ErrNoFrames is returned when assembly is asked to encode nothing.
	ErrNoFrames = errors.New("no frames captured")
)
