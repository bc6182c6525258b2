package schedule

import (
	"mote-scheduler/internal/node"
)

// Validate checks the slot ordering of every node in the tree and that no
// marker reaches past length. The first offending node is reported as an
// *InvariantError.
func Validate(root *node.Node, length int) error {
	var err error
	root.PostOrder(func(n *node.Node) {
		if err != nil {
			return
		}
		err = validateNode(n, length)
	})
	return err
}

func validateNode(n *node.Node, length int) error {
	listen, hasListen := n.ListenStart.Get()
	ack, hasAck := n.ListenAckAt.Get()
	send, hasSend := n.SendStart.Get()
	done, hasDone := n.SendDoneAt.Get()
	sendAck, hasSendAck := n.SendAckAt.Get()

	if hasListen != hasAck {
		return newInvariantError(n, "listen window must have both bounds")
	}
	if hasListen && listen > ack {
		return newInvariantError(n, "listen <= listen_ack")
	}
	if hasAck && hasSend && ack > send {
		return newInvariantError(n, "listen_ack <= send")
	}
	if hasSend && hasDone && send > done {
		return newInvariantError(n, "send <= send_done")
	}
	if hasDone && hasSendAck && done > sendAck {
		return newInvariantError(n, "send_done <= send_ack")
	}
	if hasSend && hasSendAck && send > sendAck {
		return newInvariantError(n, "send <= send_ack")
	}
	for _, slot := range []node.Slot{n.ListenStart, n.ListenAckAt, n.SendStart, n.SendAckAt} {
		if v, ok := slot.Get(); ok && (v < 0 || v >= length) {
			return newInvariantError(n, "slot within schedule length")
		}
	}
	if v, ok := n.SendDoneAt.Get(); ok && v > length {
		return newInvariantError(n, "send_done within schedule length")
	}
	for _, child := range n.Children {
		if child.SendAckAt != n.ListenAckAt {
			return newInvariantError(child, "send_ack equals parent listen_ack")
		}
	}
	return nil
}
