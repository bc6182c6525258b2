package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mote_scheduler"

type gauges struct {
	length    prometheus.Gauge
	motes     prometheus.Gauge
	relays    prometheus.Gauge
	usedSlots prometheus.Gauge
	dutyCycle *prometheus.GaugeVec
	rejected  prometheus.Counter
}

func newGauges() *gauges {
	return &gauges{
		length: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_length",
			Help:      "Number of slots in the current schedule",
		}),
		motes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "motes",
			Help:      "Number of motes in the scheduled tree",
		}),
		relays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relays",
			Help:      "Number of motes with children",
		}),
		usedSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "used_slots",
			Help:      "Slots in which at least one mote is active",
		}),
		dutyCycle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duty_cycle",
			Help:      "Fraction of the schedule a mote keeps its radio on",
		}, []string{"mote"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Schedules rejected for malformed topology or broken invariants",
		}),
	}
}

func (g *gauges) collectors() []prometheus.Collector {
	return []prometheus.Collector{g.length, g.motes, g.relays, g.usedSlots, g.dutyCycle, g.rejected}
}

func (g *gauges) set(c Counters) {
	if g == nil {
		return
	}
	g.length.Set(float64(c.Length))
	g.motes.Set(float64(c.Motes))
	g.relays.Set(float64(c.Relays))
	g.usedSlots.Set(float64(c.UsedSlots))
	g.dutyCycle.Reset()
	for id, stats := range c.PerMote {
		g.dutyCycle.WithLabelValues(moteLabel(id)).Set(stats.DutyCycle)
	}
}

// Register exposes the collector as Prometheus gauges on reg. Values observed
// before registration are published immediately.
func (c *Collector) Register(reg prometheus.Registerer) error {
	g := newGauges()
	for _, collector := range g.collectors() {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges = g
	g.set(c.Counters)
	g.rejected.Add(float64(c.Rejected))
	return nil
}
