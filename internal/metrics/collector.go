package metrics

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"

	eb "mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/node"
	"mote-scheduler/internal/schedule"
)

// MoteStats is the slot usage of a single mote.
type MoteStats struct {
	ActiveSlots int     `json:"active_slots"`
	DutyCycle   float64 `json:"duty_cycle"`
}

type Counters struct {
	Motes          int                  `json:"motes"`
	Relays         int                  `json:"relays"`
	Leaves         int                  `json:"leaves"`
	Depth          int                  `json:"depth"`
	Length         int                  `json:"schedule_length"`
	StartingOffset int                  `json:"starting_offset"`
	Policy         string               `json:"policy"`
	UsedSlots      int                  `json:"used_slots"`
	PerMote        map[uint32]MoteStats `json:"per_mote"`
	Events         map[string]uint64    `json:"events"`
	Rejected       uint64               `json:"rejected"`
}

type Collector struct {
	mu sync.Mutex
	Counters
	gauges *gauges
}

func NewCollector() *Collector {
	return &Collector{Counters: Counters{
		PerMote: make(map[uint32]MoteStats),
		Events:  make(map[string]uint64),
	}}
}

// Observe records the shape and slot usage of an allocated plan.
func (c *Collector) Observe(plan *schedule.Plan) {
	if c == nil || plan == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	root := plan.Root
	c.Motes = root.Len()
	c.Depth = root.Depth()
	c.Length = plan.Length
	c.StartingOffset = plan.StartingOffset
	c.Policy = plan.Policy.String()
	c.Relays, c.Leaves = 0, 0
	c.PerMote = make(map[uint32]MoteStats)

	used := make(map[int]bool)
	root.PostOrder(func(n *node.Node) {
		if n.IsLeaf() {
			c.Leaves++
		} else {
			c.Relays++
		}
		active := activeSlots(n, plan.Length, used)
		stats := MoteStats{ActiveSlots: active}
		if plan.Length > 0 {
			stats.DutyCycle = float64(active) / float64(plan.Length)
		}
		c.PerMote[n.ID] = stats
	})
	c.UsedSlots = len(used)
	c.gauges.set(c.Counters)
}

// activeSlots counts the slots in which n has its radio on.
func activeSlots(n *node.Node, length int, used map[int]bool) int {
	active := 0
	for i := 0; i < length; i++ {
		if n.ListenStart.Contains(i, n.ListenAckAt) || n.ListenAckAt.Is(i) ||
			n.SendStart.Contains(i, n.SendDoneAt) || n.SendAckAt.Is(i) {
			active++
			used[i] = true
		}
	}
	return active
}

// AddEvent counts a bus event by type.
func (c *Collector) AddEvent(ev eb.Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events[string(ev.Type)]++
	if ev.Type == eb.EventScheduleRejected {
		c.Rejected++
		if c.gauges != nil {
			c.gauges.rejected.Inc()
		}
	}
}

// Consume counts events from ch until it is closed.
func (c *Collector) Consume(ch <-chan eb.Event) {
	for ev := range ch {
		c.AddEvent(ev)
	}
}

// Snapshot returns a copy of the counters.
func (c *Collector) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := c.Counters
	snapshot.PerMote = make(map[uint32]MoteStats, len(c.PerMote))
	for id, stats := range c.PerMote {
		snapshot.PerMote[id] = stats
	}
	snapshot.Events = make(map[string]uint64, len(c.Events))
	for k, v := range c.Events {
		snapshot.Events[k] = v
	}
	return snapshot
}

func (c *Collector) Flush(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Counters)
}

func moteLabel(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
