package catalog

import "fmt"

// UnavailableError represents failures reaching the catalog source or fully
// malformed responses from it. Searches hitting this error are retryable;
// nothing about the query itself is wrong.
type UnavailableError struct {
	Source    string // Backend that failed (e.g. "ytdlp")
	Operation string // The operation that failed (e.g. "search", "enumerate")
	Err       error  // Underlying error, if any
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("catalog source %s unavailable during %s: %v", e.Source, e.Operation, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// ExtractError represents a failed fetch of a specific track: the id does not
// resolve, the source refused it, or transcoding broke. The work directory
// holds no usable output when this is returned.
type ExtractError struct {
	ExternalID string // Track id the fetch was for
	Stage      string // Pipeline stage that failed (e.g. "fetch", "probe")
	Err        error  // Underlying error, if any
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extraction failed for %s during %s: %v", e.ExternalID, e.Stage, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
