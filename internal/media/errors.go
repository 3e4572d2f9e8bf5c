package media

import "fmt"

// ExtractionFailedError reports a transcoding failure. Index is the frame
// sample index, or -1 when the audio extraction failed.
type ExtractionFailedError struct {
	Stream    string
	Index     int
	Timestamp float64
	Cause     error
}

func (e *ExtractionFailedError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s extraction failed: %v", e.Stream, e.Cause)
	}
	return fmt.Sprintf("%s extraction failed at index %d (%.2fs): %v", e.Stream, e.Index, e.Timestamp, e.Cause)
}

func (e *ExtractionFailedError) Unwrap() error {
	return e.Cause
}
