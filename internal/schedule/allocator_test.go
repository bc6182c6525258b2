package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mote-scheduler/internal/node"
)

// deployment mirrors the lab topology: sink 1 with relays 33 and 28.
func deployment() *node.Node {
	relay := node.NewNode(28, node.NewNode(6), node.NewNode(16), node.NewNode(22), node.NewNode(18))
	branch := node.NewNode(33, relay, node.NewNode(3), node.NewNode(32), node.NewNode(31))
	return node.NewNode(1, branch, node.NewNode(2), node.NewNode(4), node.NewNode(8), node.NewNode(15)).FinalizeParentLinks()
}

type markers struct {
	listen, listenAck, send, sendDone, sendAck int
}

const unset = -1

func slotOf(s node.Slot) int {
	if v, ok := s.Get(); ok {
		return v
	}
	return unset
}

func markersOf(n *node.Node) markers {
	return markers{
		listen:    slotOf(n.ListenStart),
		listenAck: slotOf(n.ListenAckAt),
		send:      slotOf(n.SendStart),
		sendDone:  slotOf(n.SendDoneAt),
		sendAck:   slotOf(n.SendAckAt),
	}
}

func mustAllocate(t *testing.T, root *node.Node, options ...Option) *Plan {
	t.Helper()
	allocator, err := New(options...)
	require.NoError(t, err)
	plan, err := allocator.Allocate(root)
	require.NoError(t, err)
	return plan
}

func TestAllocator_Allocate(t *testing.T) {
	testCases := []struct {
		description string
		root        func() *node.Node
		options     []Option
		length      int
		expected    map[uint32]markers
	}{
		{
			description: "fixed policy, two leaves",
			root:        func() *node.Node { return node.NewNode(1, node.NewNode(2), node.NewNode(3)) },
			length:      3,
			expected: map[uint32]markers{
				1: {listen: 0, listenAck: 2, send: unset, sendDone: unset, sendAck: unset},
				2: {listen: unset, listenAck: unset, send: 0, sendDone: 1, sendAck: 2},
				3: {listen: unset, listenAck: unset, send: 1, sendDone: 2, sendAck: 2},
			},
		},
		{
			description: "fixed policy, starting offset 1",
			root:        func() *node.Node { return node.NewNode(1, node.NewNode(2), node.NewNode(3)) },
			options:     []Option{WithStartingOffset(1)},
			length:      4,
			expected: map[uint32]markers{
				1: {listen: 1, listenAck: 3, send: unset, sendDone: unset, sendAck: unset},
				2: {listen: unset, listenAck: unset, send: 1, sendDone: 2, sendAck: 3},
				3: {listen: unset, listenAck: unset, send: 2, sendDone: 3, sendAck: 3},
			},
		},
		{
			description: "proportional policy, relay with two leaves and a leaf sibling",
			root: func() *node.Node {
				return node.NewNode(1, node.NewNode(10, node.NewNode(11), node.NewNode(12)), node.NewNode(20))
			},
			options: []Option{WithPolicy(Proportional)},
			length:  8,
			expected: map[uint32]markers{
				11: {listen: unset, listenAck: unset, send: 0, sendDone: 1, sendAck: 2},
				12: {listen: unset, listenAck: unset, send: 1, sendDone: 2, sendAck: 2},
				10: {listen: 0, listenAck: 2, send: 3, sendDone: 6, sendAck: 7},
				20: {listen: unset, listenAck: unset, send: 6, sendDone: 7, sendAck: 7},
				1:  {listen: 3, listenAck: 7, send: unset, sendDone: unset, sendAck: unset},
			},
		},
		{
			description: "fixed policy, deployment tree",
			root:        deployment,
			length:      16,
			expected: map[uint32]markers{
				6:  {listen: unset, listenAck: unset, send: 0, sendDone: 1, sendAck: 4},
				18: {listen: unset, listenAck: unset, send: 3, sendDone: 4, sendAck: 4},
				28: {listen: 0, listenAck: 4, send: 5, sendDone: 6, sendAck: 9},
				31: {listen: unset, listenAck: unset, send: 8, sendDone: 9, sendAck: 9},
				33: {listen: 5, listenAck: 9, send: 10, sendDone: 11, sendAck: 15},
				15: {listen: unset, listenAck: unset, send: 14, sendDone: 15, sendAck: 15},
				1:  {listen: 10, listenAck: 15, send: unset, sendDone: unset, sendAck: unset},
			},
		},
		{
			description: "proportional policy, deployment tree",
			root:        deployment,
			options:     []Option{WithPolicy(Proportional)},
			length:      28,
			expected: map[uint32]markers{
				28: {listen: 0, listenAck: 4, send: 5, sendDone: 10, sendAck: 13},
				3:  {listen: unset, listenAck: unset, send: 10, sendDone: 11, sendAck: 13},
				33: {listen: 5, listenAck: 13, send: 14, sendDone: 23, sendAck: 27},
				2:  {listen: unset, listenAck: unset, send: 23, sendDone: 24, sendAck: 27},
				1:  {listen: 14, listenAck: 27, send: unset, sendDone: unset, sendAck: unset},
			},
		},
	}

	for _, testCase := range testCases {
		root := testCase.root()
		plan := mustAllocate(t, root, testCase.options...)
		assert.EqualValues(t, testCase.length, plan.Length, testCase.description)
		assert.Same(t, root, plan.Root, testCase.description)
		for id, expected := range testCase.expected {
			n := root.Find(id)
			require.NotNil(t, n, "%s: node %d", testCase.description, id)
			assert.EqualValues(t, expected, markersOf(n), "%s: node %d", testCase.description, id)
		}
	}
}

// ListenStart is the cursor after the children's own subtrees were resolved,
// not the offset the node was entered with.
func TestAllocator_ListenStartFollowsChildSubtrees(t *testing.T) {
	root := node.NewNode(1, node.NewNode(2, node.NewNode(3)), node.NewNode(4))
	mustAllocate(t, root)

	relay := root.Find(2)
	assert.True(t, relay.ListenStart.Is(0))
	assert.True(t, relay.ListenAckAt.Is(1))
	assert.True(t, root.ListenStart.Is(2), "root listens after its children's subtrees, got %v", root.ListenStart)
	assert.True(t, relay.SendStart.Is(2))
	assert.True(t, root.Find(4).SendStart.Is(3))
	assert.True(t, root.ListenAckAt.Is(4))
}

func TestAllocator_EmptyTree(t *testing.T) {
	for _, offset := range []int{0, 1} {
		root := node.NewNode(1).FinalizeParentLinks()
		plan := mustAllocate(t, root, WithStartingOffset(offset))
		assert.Equal(t, offset, plan.Length)
		assert.Equal(t, markers{unset, unset, unset, unset, unset}, markersOf(root))
	}
}

func TestAllocator_Reallocation(t *testing.T) {
	root := deployment()
	allocator, err := New(WithPolicy(Proportional))
	require.NoError(t, err)

	first, err := allocator.Allocate(root)
	require.NoError(t, err)
	before := markersOf(root.Find(33))

	_, err = allocator.Allocate(root)
	assert.True(t, errors.Is(err, ErrAlreadyAllocated))

	root.Reset()
	second, err := allocator.Allocate(root)
	require.NoError(t, err)
	assert.Equal(t, first.Length, second.Length)
	assert.Equal(t, before, markersOf(root.Find(33)))
}

func TestAllocator_RejectsAllocatedSubtree(t *testing.T) {
	allocator, err := New()
	require.NoError(t, err)

	sub := node.NewNode(2, node.NewNode(3))
	_, err = allocator.Allocate(sub)
	require.NoError(t, err)
	before := markersOf(sub.Find(3))

	root := node.NewNode(1, sub, node.NewNode(4))
	plan, err := allocator.Allocate(root)
	assert.Nil(t, plan)
	assert.True(t, errors.Is(err, ErrAlreadyAllocated))
	assert.Contains(t, err.Error(), "node 2")
	assert.Equal(t, before, markersOf(sub.Find(3)), "existing schedule must not be rewritten")
	assert.False(t, root.Allocated())

	sub.Reset()
	_, err = allocator.Allocate(root)
	assert.NoError(t, err)
}

func TestNew_Options(t *testing.T) {
	_, err := New(WithStartingOffset(2))
	assert.True(t, errors.Is(err, ErrInvalidOffset))

	_, err = New(WithPolicy(Policy(7)))
	assert.True(t, errors.Is(err, ErrUnknownPolicy))

	allocator, err := New(WithStartingOffset(1), WithPolicy(Proportional))
	require.NoError(t, err)
	assert.Equal(t, 1, allocator.StartingOffset())
	assert.Equal(t, Proportional, allocator.Policy())
}

func TestAllocator_Properties(t *testing.T) {
	trees := []func() *node.Node{
		deployment,
		func() *node.Node {
			return node.NewNode(9,
				node.NewNode(7, node.NewNode(5, node.NewNode(4), node.NewNode(3, node.NewNode(2)))),
				node.NewNode(8),
				node.NewNode(6, node.NewNode(11), node.NewNode(12), node.NewNode(13)))
		},
	}
	for _, policy := range []Policy{Fixed, Proportional} {
		for _, offset := range []int{0, 1} {
			for _, build := range trees {
				root := build()
				plan := mustAllocate(t, root, WithPolicy(policy), WithStartingOffset(offset))

				maxAck := -1
				root.PostOrder(func(n *node.Node) {
					for _, slot := range []node.Slot{n.ListenAckAt, n.SendAckAt} {
						if v, ok := slot.Get(); ok && v > maxAck {
							maxAck = v
						}
					}
					if n.IsLeaf() {
						assert.False(t, n.ListenStart.IsSet(), "leaf %d listens", n.ID)
						assert.False(t, n.ListenAckAt.IsSet(), "leaf %d acks", n.ID)
						return
					}

					listen, _ := n.ListenStart.Get()
					ack, _ := n.ListenAckAt.Get()
					assert.LessOrEqual(t, listen, ack)
					if send, ok := n.SendStart.Get(); ok {
						assert.LessOrEqual(t, ack, send, "node %d sends before it stops listening", n.ID)
					}
					widths, expected := 0, 0
					for _, child := range n.Children {
						send, _ := child.SendStart.Get()
						done, _ := child.SendDoneAt.Get()
						assert.LessOrEqual(t, listen, send)
						assert.LessOrEqual(t, done, ack)
						assert.Equal(t, n.ListenAckAt, child.SendAckAt)
						widths += done - send
						expected += policy.Width(child)
					}
					if policy == Proportional {
						assert.Equal(t, len(n.Children)+sumChildDescendants(n), widths)
					}
					assert.Equal(t, expected, widths)
				})
				assert.Equal(t, maxAck+1, plan.Length, "policy %v offset %d", policy, offset)
			}
		}
	}
}

func sumChildDescendants(n *node.Node) int {
	sum := 0
	for _, child := range n.Children {
		sum += child.CountDescendants()
	}
	return sum
}
