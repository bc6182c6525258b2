package render

import (
	"fmt"
	"strings"

	"mote-scheduler/internal/node"
)

// Timeline markers.
const (
	MarkListen    = 'L'
	MarkListenAck = 'l'
	MarkSend      = 'S'
	MarkSendAck   = 's'
	MarkIdle      = ' '
)

// Timeline renders one line per mote, children before their parent, each a
// zero-padded id followed by length slot markers.
func Timeline(root *node.Node, length int) []string {
	var lines []string
	root.PostOrder(func(n *node.Node) {
		lines = append(lines, TimelineLine(n, length))
	})
	return lines
}

// TimelineLine renders the slot markers of a single mote.
func TimelineLine(n *node.Node, length int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03d: ", n.ID)
	for i := 0; i < length; i++ {
		b.WriteRune(marker(n, i))
	}
	return b.String()
}

func marker(n *node.Node, i int) rune {
	switch {
	case n.ListenStart.Contains(i, n.ListenAckAt):
		return MarkListen
	case n.ListenAckAt.Is(i):
		return MarkListenAck
	case n.SendStart.Contains(i, n.SendDoneAt):
		return MarkSend
	case n.SendAckAt.Is(i):
		return MarkSendAck
	}
	return MarkIdle
}
