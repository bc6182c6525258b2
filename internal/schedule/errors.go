package schedule

import (
	"fmt"

	"github.com/pkg/errors"

	"mote-scheduler/internal/node"
)

var (
	// ErrAlreadyAllocated is returned when a tree that already carries a
	// schedule is handed to Allocate again without a Reset.
	ErrAlreadyAllocated = errors.New("schedule: tree already allocated")

	// ErrInvariantViolation marks a schedule whose slot ordering is
	// inconsistent. It signals malformed input or an allocator regression and
	// must abort generation.
	ErrInvariantViolation = errors.New("schedule: invariant violation")

	// ErrInvalidOffset is returned for a starting offset other than 0 or 1.
	ErrInvalidOffset = errors.New("schedule: starting offset must be 0 or 1")

	// ErrUnknownPolicy is returned when a sizing policy name cannot be parsed.
	ErrUnknownPolicy = errors.New("schedule: unknown sizing policy")
)

// InvariantError describes the node and slot markers that broke an ordering rule.
type InvariantError struct {
	NodeID  uint32
	Rule    string
	Listen  node.Slot
	Ack     node.Slot
	Send    node.Slot
	Done    node.Slot
	SendAck node.Slot
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: node %d violates %s (listen=%v listen_ack=%v send=%v send_done=%v send_ack=%v)",
		ErrInvariantViolation, e.NodeID, e.Rule, e.Listen, e.Ack, e.Send, e.Done, e.SendAck)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

func newInvariantError(n *node.Node, rule string) *InvariantError {
	return &InvariantError{
		NodeID:  n.ID,
		Rule:    rule,
		Listen:  n.ListenStart,
		Ack:     n.ListenAckAt,
		Send:    n.SendStart,
		Done:    n.SendDoneAt,
		SendAck: n.SendAckAt,
	}
}
