package session

import (
	"encoding/json"

	"acpcore/internal/toolcall"
)

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Only unmarshalable Go values (channels, funcs) reach here; every
		// update payload type in this package is plain data.
		panic("session: update payload not marshalable: " + err.Error())
	}
	return data
}

// hunkWire/contentWire/toolCallWireData mirror the JSON shape of spec §3's
// tool-call content union, independent of toolcall's in-memory
// representation.

type hunkWire struct {
	OldStart int    `json:"oldStart"`
	OldLines int    `json:"oldLines"`
	NewStart int    `json:"newStart"`
	NewLines int    `json:"newLines"`
	Content  string `json:"content"`
}

type contentWire struct {
	Type       string     `json:"type"`
	Text       string     `json:"text,omitempty"`
	Path       string     `json:"path,omitempty"`
	Hunks      []hunkWire `json:"hunks,omitempty"`
	TerminalID string     `json:"terminalId,omitempty"`
	Command    string     `json:"command,omitempty"`
	ExitCode   *int       `json:"exitCode,omitempty"`
	Stdout     string     `json:"stdout,omitempty"`
	Stderr     string     `json:"stderr,omitempty"`
}

func contentToWire(c *toolcall.Content) *contentWire {
	if c == nil {
		return nil
	}
	w := &contentWire{
		Type:       string(c.Type),
		Text:       c.Text,
		Path:       c.Path,
		TerminalID: c.TerminalID,
		Command:    c.Command,
		ExitCode:   c.ExitCode,
		Stdout:     c.Stdout,
		Stderr:     c.Stderr,
	}
	for _, h := range c.Hunks {
		w.Hunks = append(w.Hunks, hunkWire{OldStart: h.OldStart, OldLines: h.OldLines, NewStart: h.NewStart, NewLines: h.NewLines, Content: h.Content})
	}
	return w
}

type locationWire struct {
	Path      string `json:"path"`
	Line      *int   `json:"line,omitempty"`
	Column    *int   `json:"column,omitempty"`
	EndLine   *int   `json:"endLine,omitempty"`
	EndColumn *int   `json:"endColumn,omitempty"`
}

func locationToWire(l *toolcall.Location) *locationWire {
	if l == nil {
		return nil
	}
	return &locationWire{Path: l.Path, Line: l.Line, Column: l.Column, EndLine: l.EndLine, EndColumn: l.EndColumn}
}

type toolCallFullWire struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Input              map[string]any `json:"input,omitempty"`
	Status             string         `json:"status"`
	Kind               string         `json:"kind,omitempty"`
	Location           *locationWire  `json:"location,omitempty"`
	Reason             string         `json:"reason,omitempty"`
	Output             *contentWire   `json:"output,omitempty"`
	RequiresPermission bool           `json:"requiresPermission,omitempty"`
}

func toolCallWire(tc toolcall.ToolCall) toolCallFullWire {
	return toolCallFullWire{
		ID:                 tc.ID,
		Name:                tc.Name,
		Input:               tc.Input,
		Status:              string(tc.Status),
		Kind:                string(tc.Kind),
		Location:            locationToWire(tc.Location),
		Reason:              tc.Reason,
		Output:              contentToWire(tc.Output),
		RequiresPermission:  tc.RequiresPermission,
	}
}

type toolCallUpdateWireData struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Output     *contentWire `json:"output,omitempty"`
	Err        string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration,omitempty"`
}

func toolCallUpdateWire(u toolcall.Update) toolCallUpdateWireData {
	return toolCallUpdateWireData{
		ID:         u.ID,
		Status:     string(u.Status),
		Output:     contentToWire(u.Output),
		Err:        u.Err,
		DurationMS: u.DurationMS,
	}
}
