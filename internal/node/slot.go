package node

import (
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Slot is an optional TDMA slot offset. The zero value is unset, which keeps
// "never scheduled" apart from a legitimately computed slot 0.
type Slot struct {
	value int
	set   bool
}

// SlotAt returns a set slot holding v.
func SlotAt(v int) Slot {
	return Slot{value: v, set: true}
}

// IsSet reports whether the slot carries a value.
func (s Slot) IsSet() bool {
	return s.set
}

// Get returns the slot value and whether it is set.
func (s Slot) Get() (int, bool) {
	return s.value, s.set
}

// OrZero returns the value, or 0 when unset.
func (s Slot) OrZero() int {
	if !s.set {
		return 0
	}
	return s.value
}

// Contains reports whether i falls in the half-open window [s, end).
// Both ends must be set.
func (s Slot) Contains(i int, end Slot) bool {
	return s.set && end.set && i >= s.value && i < end.value
}

// Is reports whether the slot is set and equals i.
func (s Slot) Is(i int) bool {
	return s.set && s.value == i
}

func (s Slot) String() string {
	if !s.set {
		return "-"
	}
	return strconv.Itoa(s.value)
}

func (s Slot) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Slot{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SlotAt(v)
	return nil
}

func (s Slot) MarshalYAML() (interface{}, error) {
	if !s.set {
		return nil, nil
	}
	return s.value, nil
}

func (s *Slot) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		*s = Slot{}
		return nil
	}
	var v int
	if err := value.Decode(&v); err != nil {
		return err
	}
	*s = SlotAt(v)
	return nil
}
