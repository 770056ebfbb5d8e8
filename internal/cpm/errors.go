package cpm

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDuration      = errors.New("missing duration")
	ErrNegativeDuration     = errors.New("negative duration")
	ErrInconsistentSchedule = errors.New("inconsistent schedule")
)

// ScheduleError describes a failed schedule computation.
type ScheduleError struct {
	Kind error
	Msg  string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ScheduleError) Unwrap() error { return e.Kind }

func scheduleErr(kind error, format string, args ...any) error {
	return &ScheduleError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
