package node

// Node is one mote in the schedule tree. Children are owned exclusively by
// their parent and their order decides the relative slot offsets among
// siblings.
type Node struct {
	ID       uint32  `json:"id" yaml:"id"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`

	// ListenStart opens the window in which the node receives from its children.
	ListenStart Slot `json:"listen" yaml:"listen"`
	// ListenAckAt closes the listen window; the node broadcasts one aggregate ack here.
	ListenAckAt Slot `json:"listen_ack" yaml:"listen_ack"`
	// SendStart opens the window in which the node transmits to its parent.
	SendStart Slot `json:"send" yaml:"send"`
	// SendDoneAt is the exclusive end of the send window.
	SendDoneAt Slot `json:"send_done" yaml:"send_done"`
	// SendAckAt is the slot at which the parent acknowledges this node.
	SendAckAt Slot `json:"send_ack" yaml:"send_ack"`

	parent    *Node
	allocated bool
}

// LinkObserver is notified for every child/parent pair assigned by
// FinalizeParentLinks. The root is reported as its own parent.
type LinkObserver func(child, parent *Node)

// NewNode creates a node with the given id and ordered children.
func NewNode(id uint32, children ...*Node) *Node {
	n := &Node{ID: id}
	for _, child := range children {
		n.AddChild(child)
	}
	return n
}

// AddChild appends child to the ordered child list.
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return n
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// CountDescendants returns the number of nodes below n, excluding n.
func (n *Node) CountDescendants() int {
	count := 0
	for _, child := range n.Children {
		count += 1 + child.CountDescendants()
	}
	return count
}

// Len returns the number of nodes in the subtree including n.
func (n *Node) Len() int {
	return 1 + n.CountDescendants()
}

// Depth returns the number of hops from n to its deepest descendant.
func (n *Node) Depth() int {
	depth := 0
	for _, child := range n.Children {
		if d := 1 + child.Depth(); d > depth {
			depth = d
		}
	}
	return depth
}

// FinalizeParentLinks assigns parent back-references top-down, visiting each
// child after its parent link is set. The receiver becomes the root and points
// to itself.
func (n *Node) FinalizeParentLinks(observers ...LinkObserver) *Node {
	n.parent = n
	notify(observers, n, n)
	n.linkChildren(observers)
	return n
}

func (n *Node) linkChildren(observers []LinkObserver) {
	for _, child := range n.Children {
		child.parent = n
		notify(observers, child, n)
		child.linkChildren(observers)
	}
}

func notify(observers []LinkObserver, child, parent *Node) {
	for _, observer := range observers {
		if observer != nil {
			observer(child, parent)
		}
	}
}

// Parent returns the parent set by FinalizeParentLinks, or nil before that.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsRoot reports whether the node is the root of a finalized tree.
func (n *Node) IsRoot() bool {
	return n.parent == n
}

// SendTo returns the id of the node this one forwards to; 0 for the root or
// an unlinked node.
func (n *Node) SendTo() uint32 {
	if n.parent == nil || n.parent == n {
		return 0
	}
	return n.parent.ID
}

// PostOrder calls fn for every node, children before their parent.
func (n *Node) PostOrder(fn func(*Node)) {
	for _, child := range n.Children {
		child.PostOrder(fn)
	}
	fn(n)
}

// PreOrder calls fn for every node, parent before its children.
func (n *Node) PreOrder(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children {
		child.PreOrder(fn)
	}
}

// Find returns the node with the given id in the subtree, or nil.
func (n *Node) Find(id uint32) *Node {
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Allocated reports whether an allocator already wrote this node's schedule.
func (n *Node) Allocated() bool {
	return n.allocated
}

// MarkAllocated records that the schedule fields were written.
func (n *Node) MarkAllocated() {
	n.allocated = true
}

// Reset clears the schedule of every node in the subtree so the tree can be
// allocated again. Parent links are kept.
func (n *Node) Reset() {
	n.PostOrder(func(m *Node) {
		m.ListenStart = Slot{}
		m.ListenAckAt = Slot{}
		m.SendStart = Slot{}
		m.SendDoneAt = Slot{}
		m.SendAckAt = Slot{}
		m.allocated = false
	})
}
