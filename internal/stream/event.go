package stream

import (
	"time"

	"github.com/awsm-dev/awsm/internal/model"
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one entry of a connection's message log. Sequence starts at 1 and
// increases by one per published message within a session.
type Event struct {
	Sequence uint64
	Message  model.WebSocketMessage
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
