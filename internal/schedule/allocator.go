package schedule

import (
	"github.com/pkg/errors"

	"mote-scheduler/internal/node"
)

// Plan is the outcome of one allocation pass.
type Plan struct {
	Root           *node.Node `json:"root"`
	Length         int        `json:"length"`
	StartingOffset int        `json:"starting_offset"`
	Policy         Policy     `json:"policy"`
}

// Allocator assigns listen/send/ack slots over a mote tree, bottom-up.
type Allocator struct {
	policy         Policy
	startingOffset int
}

// New creates an allocator; the default is the fixed policy from offset 0.
func New(options ...Option) (*Allocator, error) {
	a := &Allocator{}
	for _, option := range options {
		option(a)
	}
	if a.startingOffset != 0 && a.startingOffset != 1 {
		return nil, ErrInvalidOffset
	}
	if a.policy != Fixed && a.policy != Proportional {
		return nil, ErrUnknownPolicy
	}
	return a, nil
}

// Policy returns the configured sizing policy.
func (a *Allocator) Policy() Policy {
	return a.policy
}

// StartingOffset returns the configured first slot.
func (a *Allocator) StartingOffset() int {
	return a.startingOffset
}

// Allocate writes the schedule of every node under root and returns the plan.
// The schedule length is one past the last used slot; a root without
// children yields the starting offset. A tree can be allocated once; call
// Reset on the root before allocating it again.
func (a *Allocator) Allocate(root *node.Node) (*Plan, error) {
	if id, ok := allocatedNode(root); ok {
		return nil, errors.Wrapf(ErrAlreadyAllocated, "node %d", id)
	}
	length := a.allocate(root, a.startingOffset)
	if err := Validate(root, length); err != nil {
		return nil, err
	}
	return &Plan{
		Root:           root,
		Length:         length,
		StartingOffset: a.startingOffset,
		Policy:         a.policy,
	}, nil
}

// allocatedNode returns the first node in pre-order that already carries a
// schedule, including subtrees grafted from an earlier allocation.
func allocatedNode(root *node.Node) (uint32, bool) {
	var (
		id    uint32
		found bool
	)
	root.PreOrder(func(n *node.Node) {
		if !found && n.Allocated() {
			id, found = n.ID, true
		}
	})
	return id, found
}

// allocate resolves the subtrees of n first, then places the send windows of
// n's children at the returned cursor, followed by one shared ack slot.
func (a *Allocator) allocate(n *node.Node, offset int) int {
	n.MarkAllocated()
	for _, child := range n.Children {
		offset = a.allocate(child, offset)
	}
	if n.IsLeaf() {
		return offset
	}

	n.ListenStart = node.SlotAt(offset)
	cursor := offset
	for _, child := range n.Children {
		width := a.policy.Width(child)
		child.SendStart = node.SlotAt(cursor)
		child.SendDoneAt = node.SlotAt(cursor + width)
		cursor += width
	}
	n.ListenAckAt = node.SlotAt(cursor)
	for _, child := range n.Children {
		child.SendAckAt = n.ListenAckAt
	}
	return cursor + 1
}
