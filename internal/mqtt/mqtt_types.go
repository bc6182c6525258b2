package mqtt

// SummaryPayload is published once per run next to the per-mote records.
type SummaryPayload struct {
	RunID  string   `json:"run_id"`
	Length int      `json:"length"`
	Policy string   `json:"policy"`
	Motes  []uint32 `json:"motes"`
}

// AckPayload is sent by a mote once it stored its schedule.
type AckPayload struct {
	MoteID uint32 `json:"mote_id"`
	RunID  string `json:"run_id"`
}
