package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// Command represents a command sent to the control socket
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a reply from the control socket
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Status represents the current daemon status
type Status struct {
	Callsign  string    `json:"callsign"`
	Model     string    `json:"model"`
	Power     string    `json:"power"`
	Frequency int64     `json:"frequency"`
	Mode      string    `json:"mode"`
	Band      string    `json:"band"`
	PTT       bool      `json:"ptt"`
	Split     bool      `json:"split"`
	Connected bool      `json:"connected"`
	Pending   []string  `json:"pending,omitempty"`
	Stale     []string  `json:"stale,omitempty"`
	Uptime    string    `json:"uptime"`
	StartTime time.Time `json:"start_time"`
	Version   string    `json:"version"`
}

// ParseCommand parses a text command into a Command struct
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(strings.TrimSpace(parts[0])),
		Args: make(map[string]interface{}),
	}

	if len(parts) > 1 {
		args := strings.TrimSpace(parts[1])

		switch cmd.Type {
		case CmdSet:
			// SET:freq_main 14074000
			setParts := strings.SplitN(args, " ", 2)
			cmd.Args["field"] = strings.ToLower(setParts[0])
			if len(setParts) == 2 {
				cmd.Args["value"] = strings.TrimSpace(setParts[1])
			} else {
				cmd.Args["value"] = ""
			}

		case CmdBand:
			// BAND:20m
			cmd.Args["band"] = args

		case CmdRaw:
			// RAW:FA;  the vendor command is passed through unchanged
			cmd.Args["command"] = parts[1]

		case CmdEvents:
			// EVENTS:50
			cmd.Args["limit"] = args
		}
	}

	return cmd, nil
}

// String converts a Response to its JSON line form
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Protocol commands
const (
	CmdStatus     = "STATUS"
	CmdState      = "STATE"
	CmdCaps       = "CAPS"
	CmdSet        = "SET"
	CmdConnect    = "CONNECT"
	CmdDisconnect = "DISCONNECT"
	CmdBand       = "BAND"
	CmdQuickSplit = "QSPLIT"
	CmdRaw        = "RAW"
	CmdEvents     = "EVENTS"
	CmdQuit       = "QUIT"
	CmdPing       = "PING"
)
