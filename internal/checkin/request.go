package checkin

import (
	"bytes"
	"encoding/json"
	"fmt"

	"checkin-desk/internal/domain"
)

// Entry one team/action pair of a batch
type Entry struct {
	TeamID string        `json:"team_id"`
	Action domain.Action `json:"action"`
}

// Request batch of per-team actions in submission order
type Request []Entry

// UnmarshalJSON decodes {"teamId": "action", ...} keeping key order.
// A repeated key keeps its first position and takes the last value.
func (r *Request) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("check-in request must be an object of team id to action")
	}

	out := Request{}
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var action string
		if err := dec.Decode(&action); err != nil {
			return fmt.Errorf("team %s: action must be a string: %w", key, err)
		}
		if i, seen := index[key]; seen {
			out[i].Action = domain.Action(action)
			continue
		}
		index[key] = len(out)
		out = append(out, Entry{TeamID: key, Action: domain.Action(action)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// MarshalJSON encodes the request back into an ordered object
func (r Request) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.TeamID)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(string(e.Action))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TeamIDs returns the ids in request order
func (r Request) TeamIDs() []string {
	ids := make([]string, len(r))
	for i, e := range r {
		ids[i] = e.TeamID
	}
	return ids
}

// Select returns the entries processed this batch: teams not yet checked in, undo requests,
// and non-skip actions on checked-in teams (which the processor rejects). A skip on a
// checked-in team is ignored.
func Select(req Request, checkedIn map[string]bool) Request {
	out := make(Request, 0, len(req))
	for _, e := range req {
		if checkedIn[e.TeamID] && e.Action == domain.ActionSkip {
			continue
		}
		out = append(out, e)
	}
	return out
}
