package commands

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mote-scheduler/internal/render"
	"mote-scheduler/internal/sim"
)

var log = logrus.WithField("prefix", "commands")

// Scheduler holds the latest result and can produce a new one.
type Scheduler interface {
	Current() *sim.Result
	Recompute(ctx context.Context, policy string, offset *int) (*sim.Result, error)
}

// RecomputePayload defines the optional JSON payload for a new run.
type RecomputePayload struct {
	Policy         string `json:"policy"`
	StartingOffset *int   `json:"starting_offset"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Write error")
	}
}

func writeText(w http.ResponseWriter, lines []string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range lines {
		w.Write([]byte(line + "\n"))
	}
}

func current(s Scheduler, w http.ResponseWriter) *sim.Result {
	result := s.Current()
	if result == nil {
		http.Error(w, "no schedule computed", http.StatusServiceUnavailable)
	}
	return result
}

// ScheduleHandler returns the latest result as JSON.
func ScheduleHandler(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if result := current(s, w); result != nil {
			writeJSON(w, http.StatusOK, result)
		}
	}
}

// TimelineHandler returns the slot timeline as plain text.
func TimelineHandler(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if result := current(s, w); result != nil {
			writeText(w, result.Timeline)
		}
	}
}

// FirmwareHandler returns the firmware table; ?switch=true wraps it in the
// lookup function.
func FirmwareHandler(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := current(s, w)
		if result == nil {
			return
		}
		if wrap, _ := strconv.ParseBool(r.URL.Query().Get("switch")); wrap {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(render.FirmwareSwitch(result.Plan.Root, result.Options)))
			return
		}
		writeText(w, result.Firmware)
	}
}

// MoteHandler returns the record of the mote named by the {id} path value.
func MoteHandler(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := current(s, w)
		if result == nil {
			return
		}
		id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
		if err != nil {
			http.Error(w, "Invalid mote id", http.StatusBadRequest)
			return
		}
		for _, record := range result.Records {
			if record.DeviceID == uint32(id) {
				writeJSON(w, http.StatusOK, record)
				return
			}
		}
		http.Error(w, "Unknown mote", http.StatusNotFound)
	}
}

// RecomputeHandler runs the scenario again, optionally overriding the policy
// and starting offset.
func RecomputeHandler(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload RecomputePayload
		// An empty body, chunked or not, carries no overrides.
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := s.Recompute(r.Context(), strings.TrimSpace(payload.Policy), payload.StartingOffset)
		if err != nil {
			log.WithError(err).Warn("Recompute failed")
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
