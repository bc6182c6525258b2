package topology

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedTopology is the sentinel behind every rejected topology.
var ErrMalformedTopology = errors.New("topology: malformed")

// TopologyError names the mote that made a topology unusable.
type TopologyError struct {
	NodeID uint32
	Reason string
}

func (e *TopologyError) Error() string {
	if e.NodeID == 0 {
		return fmt.Sprintf("%v: %s", ErrMalformedTopology, e.Reason)
	}
	return fmt.Sprintf("%v: mote %d: %s", ErrMalformedTopology, e.NodeID, e.Reason)
}

func (e *TopologyError) Unwrap() error {
	return ErrMalformedTopology
}

func malformed(id uint32, format string, args ...interface{}) error {
	return &TopologyError{NodeID: id, Reason: fmt.Sprintf(format, args...)}
}
