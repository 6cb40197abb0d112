package webhook

import "fmt"

// TransportError reports a failed send or poll: either a network error (Err)
// or a non-2xx status (StatusCode, Body).
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spacebot %s failed: %v", e.Op, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("spacebot %s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("spacebot %s failed: status %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }
