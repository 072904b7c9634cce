package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestState tracks a conversion request through its lifecycle. States
// only move forward: Admitted, Queued, Running, Terminal.
type RequestState string

const (
	StateAdmitted RequestState = "admitted"
	StateQueued   RequestState = "queued"
	StateRunning  RequestState = "running"
	StateTerminal RequestState = "terminal"
)

var stateOrder = map[RequestState]int{
	StateAdmitted: 0,
	StateQueued:   1,
	StateRunning:  2,
	StateTerminal: 3,
}

// ConversionRequest describes one in-flight conversion. It is owned
// exclusively by the request's handling goroutine and never shared.
type ConversionRequest struct {
	ID         string
	Filename   string
	Extension  string
	TempPath   string
	Size       int64
	ReceivedAt time.Time
	State      RequestState
}

// NewConversionRequest creates a request in the Admitted state.
func NewConversionRequest() *ConversionRequest {
	return &ConversionRequest{
		ID:         uuid.New().String(),
		ReceivedAt: time.Now(),
		State:      StateAdmitted,
	}
}

// Transition moves the request forward. Backward transitions are ignored
// so a late Terminal mark cannot be undone by a racing state update.
func (r *ConversionRequest) Transition(next RequestState) {
	if stateOrder[next] >= stateOrder[r.State] {
		r.State = next
	}
}
