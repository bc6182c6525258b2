package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eb "mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/node"
	"mote-scheduler/internal/schedule"
)

func deploymentPlan(t *testing.T) *schedule.Plan {
	t.Helper()
	relay := node.NewNode(28, node.NewNode(6), node.NewNode(16), node.NewNode(22), node.NewNode(18))
	branch := node.NewNode(33, relay, node.NewNode(3), node.NewNode(32), node.NewNode(31))
	root := node.NewNode(1, branch, node.NewNode(2), node.NewNode(4), node.NewNode(8), node.NewNode(15)).FinalizeParentLinks()
	allocator, err := schedule.New()
	require.NoError(t, err)
	plan, err := allocator.Allocate(root)
	require.NoError(t, err)
	return plan
}

func TestCollector_Observe(t *testing.T) {
	c := NewCollector()
	c.Observe(deploymentPlan(t))

	snapshot := c.Snapshot()
	assert.Equal(t, 14, snapshot.Motes)
	assert.Equal(t, 3, snapshot.Relays)
	assert.Equal(t, 11, snapshot.Leaves)
	assert.Equal(t, 3, snapshot.Depth)
	assert.Equal(t, 16, snapshot.Length)
	assert.Equal(t, 16, snapshot.UsedSlots)
	assert.Equal(t, "fixed", snapshot.Policy)
	assert.Equal(t, MoteStats{ActiveSlots: 2, DutyCycle: 2.0 / 16}, snapshot.PerMote[6])
	assert.Equal(t, MoteStats{ActiveSlots: 6, DutyCycle: 6.0 / 16}, snapshot.PerMote[1])
	assert.Equal(t, MoteStats{ActiveSlots: 7, DutyCycle: 7.0 / 16}, snapshot.PerMote[28])
}

func TestCollector_Events(t *testing.T) {
	c := NewCollector()
	ch := make(chan eb.Event, 3)
	ch <- eb.Event{Type: eb.EventMoteLinked}
	ch <- eb.Event{Type: eb.EventMoteLinked}
	ch <- eb.Event{Type: eb.EventScheduleRejected}
	close(ch)
	c.Consume(ch)

	snapshot := c.Snapshot()
	assert.EqualValues(t, 2, snapshot.Events[string(eb.EventMoteLinked)])
	assert.EqualValues(t, 1, snapshot.Rejected)
}

func TestCollector_Flush(t *testing.T) {
	c := NewCollector()
	c.Observe(deploymentPlan(t))
	file := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, c.Flush(file))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var counters Counters
	require.NoError(t, json.Unmarshal(data, &counters))
	assert.Equal(t, 16, counters.Length)
	assert.Len(t, counters.PerMote, 14)
}

func TestCollector_Register(t *testing.T) {
	c := NewCollector()
	c.AddEvent(eb.Event{Type: eb.EventScheduleRejected})
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))
	c.Observe(deploymentPlan(t))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	dutySeries := 0
	for _, family := range families {
		switch family.GetName() {
		case "mote_scheduler_duty_cycle":
			dutySeries = len(family.GetMetric())
		case "mote_scheduler_rejected_total":
			values[family.GetName()] = family.GetMetric()[0].GetCounter().GetValue()
		default:
			values[family.GetName()] = family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 16.0, values["mote_scheduler_schedule_length"])
	assert.Equal(t, 14.0, values["mote_scheduler_motes"])
	assert.Equal(t, 3.0, values["mote_scheduler_relays"])
	assert.Equal(t, 1.0, values["mote_scheduler_rejected_total"])
	assert.Equal(t, 14, dutySeries)

	assert.Error(t, c.Register(reg), "duplicate registration")
}
