package workflow

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"streamer-live-bot/internal/domain/model"
)

type summaryDTO struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	State         string   `json:"state"`
	DateCreated   flexTime `json:"dateCreated"`
	LastExecution flexTime `json:"lastExecution"`
}

// decodeSummaries accepts a bare array or an object with a "data" array.
func decodeSummaries(raw json.RawMessage) ([]model.WorkflowSummary, error) {
	raw = bytes.TrimSpace(raw)
	var dtos []summaryDTO
	if len(raw) > 0 && raw[0] == '{' {
		var env struct {
			Data []summaryDTO `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		dtos = env.Data
	} else if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, err
	}

	out := make([]model.WorkflowSummary, 0, len(dtos))
	for _, d := range dtos {
		if d.ID == "" {
			continue
		}
		s := model.WorkflowSummary{ID: d.ID, Name: d.Name, State: d.State, DateCreated: d.DateCreated.t}
		if !d.LastExecution.t.IsZero() {
			t := d.LastExecution.t
			s.LastExecution = &t
		}
		out = append(out, s)
	}
	return out, nil
}

// flexTime decodes RFC 3339 strings, unix milliseconds, null, or an object
// carrying one of those under "dateCreated". Anything else decodes as zero.
type flexTime struct{ t time.Time }

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				f.t = t
				return nil
			}
		}
	case '{':
		var obj struct {
			DateCreated flexTime `json:"dateCreated"`
		}
		if err := json.Unmarshal(b, &obj); err == nil {
			f.t = obj.DateCreated.t
		}
	default:
		if ms, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			f.t = time.UnixMilli(ms).UTC()
		}
	}
	return nil
}
