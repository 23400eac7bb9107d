package hook

import (
	"encoding/json"
	"io"
	"strings"
)

// Payload is the JSON document the host tool pipes to hook commands on
// stdin. Unknown fields are ignored; hooks must tolerate payload shape
// drift across host versions.
type Payload struct {
	SessionID string    `json:"session_id"`
	CWD       string    `json:"cwd"`
	ToolName  string    `json:"tool_name"`
	ToolInput ToolInput `json:"tool_input"`
	Summary   string    `json:"summary"`
}

// ToolInput carries the subset of tool parameters hooks care about.
type ToolInput struct {
	FilePath string `json:"file_path"`
}

// DecodePayload reads one payload from r. A payload that cannot be
// parsed comes back as the zero value with the error; callers treat
// that as "allow".
func DecodePayload(r io.Reader) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Payload{}, err
	}
	p.SessionID = strings.TrimSpace(p.SessionID)
	return p, nil
}
