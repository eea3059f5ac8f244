package indicator

import "fmt"

// InsufficientDataError reports that an indicator was requested with fewer
// samples than its minimum. It is a hard failure: indicators never silently
// return zero or clamp when history is too short.
type InsufficientDataError struct {
	Indicator string
	Need      int
	Got       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need >= %d points, got %d", e.Indicator, e.Need, e.Got)
}

func insufficient(name string, need, got int) error {
	return &InsufficientDataError{Indicator: name, Need: need, Got: got}
}
