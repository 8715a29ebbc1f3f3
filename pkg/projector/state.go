package projector

import "time"

// Status is the phase of a projector.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusPopulated Status = "populated"
	StatusFailed    Status = "failed"
)

// State is an immutable snapshot of a projector.
//
// Data holds the last successfully loaded value. It is kept while a reload
// is Loading and when a reload Failed.
type State[T any] struct {
	Status     Status    `json:"status"`
	Data       T         `json:"data"`
	Err        error     `json:"-"`
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Error returns the failure message, empty unless Failed.
func (s State[T]) Error() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Settled reports whether no load is pending.
func (s State[T]) Settled() bool {
	return s.Status != StatusLoading
}
