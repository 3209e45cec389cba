package entity

import "time"

// SessionState is what the UI reads back after every action.
type SessionState struct {
	ID       string       `json:"id"`
	HasImage bool         `json:"has_image"`
	Width    int          `json:"width,omitempty"`
	Height   int          `json:"height,omitempty"`
	Edits    EditSequence `json:"edits"`
	Index    int          `json:"index"`
	Length   int          `json:"length"`
	CanUndo  bool         `json:"can_undo"`
	CanRedo  bool         `json:"can_redo"`
}

// ExportRequest leaves Format empty and Quality nil to use the values implied
// by the edit sequence and the configured defaults.
type ExportRequest struct {
	Format  string
	Quality *float64
	Name    string
}

// ExportFile is an encoded image or archive ready to be written or served.
type ExportFile struct {
	Name    string
	MIME    string
	Format  Format
	Quality float64
	Data    []byte
}

// ExportEvent is published after a successful export. It carries metadata only.
type ExportEvent struct {
	SessionID string    `json:"session_id"`
	File      string    `json:"file"`
	Formats   []Format  `json:"formats"`
	Bytes     int       `json:"bytes"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	At        time.Time `json:"at"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"upstream_status,omitempty"`
}
