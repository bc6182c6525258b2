package sim

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"mote-scheduler/internal/schedule"
	"mote-scheduler/internal/topology"
)

type ScheduleCfg struct {
	StartingOffset int    `yaml:"starting_offset" json:"starting_offset"`
	Policy         string `yaml:"policy" json:"policy"` // fixed | proportional
}

// FirmwareCfg values are copied into the generated table unchanged.
type FirmwareCfg struct {
	Period   int `yaml:"period" json:"period"`
	SlotSize int `yaml:"slotsize" json:"slotsize"`
}

type LogCfg struct {
	Level       string `yaml:"level" json:"level"`
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
}

type MQTTCfg struct {
	Broker      string `yaml:"broker" json:"broker"`
	ClientID    string `yaml:"client_id" json:"client_id"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix"`
	QoS         byte   `yaml:"qos" json:"qos"`
}

type ServerCfg struct {
	Addr string `yaml:"addr" json:"addr"`
}

type TracingCfg struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	OutputFile string `yaml:"output_file" json:"output_file"`
}

type Scenario struct {
	Name     string          `yaml:"name" json:"name"`
	Topology topology.Config `yaml:"topology" json:"topology"`
	Schedule ScheduleCfg     `yaml:"schedule" json:"schedule"`
	Firmware FirmwareCfg     `yaml:"firmware" json:"firmware"`
	Logging  LogCfg          `yaml:"logging" json:"logging"`
	MQTT     MQTTCfg         `yaml:"mqtt" json:"mqtt"`
	Server   ServerCfg       `yaml:"server" json:"server"`
	Tracing  TracingCfg      `yaml:"tracing" json:"tracing"`
}

// DefaultScenario returns the settings used for anything a scenario file
// leaves out. The topology is always empty.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name:     "default",
		Schedule: ScheduleCfg{StartingOffset: 0, Policy: schedule.Fixed.String()},
		Firmware: FirmwareCfg{Period: 1000, SlotSize: 10},
		Logging:  LogCfg{Level: "info"},
		MQTT:     MQTTCfg{ClientID: "mote-scheduler", TopicPrefix: "motes", QoS: 1},
		Server:   ServerCfg{Addr: ":8080"},
	}
}

func LoadScenario(path string) (*Scenario, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario")
	}
	sc := DefaultScenario()
	yamlErr := yaml.Unmarshal(f, sc)
	if yamlErr == nil {
		return sc, nil
	}
	if !looksLikeJSON(f) {
		return nil, errors.Wrapf(yamlErr, "parse scenario %s", path)
	}
	// fallback JSON
	sc = DefaultScenario()
	if err := json.Unmarshal(f, sc); err != nil {
		return nil, errors.Wrapf(err, "parse scenario %s", path)
	}
	return sc, nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Policy returns the parsed sizing policy.
func (sc *Scenario) Policy() (schedule.Policy, error) {
	return schedule.ParsePolicy(sc.Schedule.Policy)
}

// Validate reports the first invalid setting. Topology problems are left to
// topology.Build.
func (sc *Scenario) Validate() error {
	if sc.Schedule.StartingOffset != 0 && sc.Schedule.StartingOffset != 1 {
		return errors.Wrapf(schedule.ErrInvalidOffset, "got %d", sc.Schedule.StartingOffset)
	}
	if _, err := sc.Policy(); err != nil {
		return err
	}
	if sc.Firmware.Period <= 0 {
		return errors.New("firmware.period must be > 0")
	}
	if sc.Firmware.SlotSize <= 0 {
		return errors.New("firmware.slotsize must be > 0")
	}
	if sc.MQTT.QoS > 2 {
		return errors.Errorf("mqtt.qos must be 0, 1 or 2, got %d", sc.MQTT.QoS)
	}
	return nil
}
