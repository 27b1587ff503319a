package events

import (
	"encoding/json"
	"time"

	"github.com/amishk599/leadsync/internal/model"
)

// Event types published by leadsync.
const (
	TypeRunFinished = "sync.finished"
	TypePing        = "ping"
)

// Event is the envelope sent to every subscriber.
type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RunFinishedData is the payload of a sync.finished event.
type RunFinishedData struct {
	NewJobs            int       `json:"new_jobs"`
	Fetched            int       `json:"fetched"`
	Duplicates         int       `json:"duplicates"`
	Ineligible         int       `json:"ineligible"`
	ClassifierFailures int       `json:"classifier_failures"`
	InsertFailures     int       `json:"insert_failures"`
	Unapplied          int       `json:"unapplied"`
	Notified           bool      `json:"notified"`
	NotifyFailed       bool      `json:"notify_failed"`
	StartedAt          time.Time `json:"started_at"`
	DurationMS         int64     `json:"duration_ms"`
}

// MakeEvent encodes typ and data into an event envelope.
func MakeEvent(typ string, data any) []byte {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	b, _ := json.Marshal(Event{
		Type:    typ,
		Version: 1,
		At:      time.Now().UTC(),
		Data:    raw,
	})
	return b
}

func runFinishedData(s model.RunSummary) RunFinishedData {
	return RunFinishedData{
		NewJobs:            s.NewJobsAdded,
		Fetched:            s.Fetched,
		Duplicates:         s.Duplicates,
		Ineligible:         s.Ineligible,
		ClassifierFailures: s.ClassifierFailures,
		InsertFailures:     s.InsertFailures,
		Unapplied:          s.Unapplied,
		Notified:           s.Notified,
		NotifyFailed:       s.NotifyFailed,
		StartedAt:          s.StartedAt.UTC(),
		DurationMS:         s.Duration.Milliseconds(),
	}
}
