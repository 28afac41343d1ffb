// Package capability gates operations on the client/agent capability sets
// negotiated during initialize (spec §4.9).
package capability

import "acpcore/internal/acperrors"

// Set tracks which optional capabilities are available after a completed
// initialize handshake.
type Set struct {
	FSRead          bool
	FSWrite         bool
	TerminalCreate  bool
	UIPrompt        bool
	LoadSession     bool
	MCPHTTP         bool
	MCPSSE          bool
	PromptImage     bool
	PromptAudio     bool
	PromptResource  bool
	SetMode         bool
	SetConfigOption bool
}

// Name identifies a single gate-able capability for error reporting.
type Name string

const (
	FSRead          Name = "fs.read"
	FSWrite         Name = "fs.write"
	TerminalCreate  Name = "terminal.create"
	UIPrompt        Name = "ui.prompt"
	LoadSession     Name = "loadSession"
	MCPHTTP         Name = "mcpCapabilities.http"
	MCPSSE          Name = "mcpCapabilities.sse"
	PromptImage     Name = "promptCapabilities.image"
	PromptAudio     Name = "promptCapabilities.audio"
	PromptResource  Name = "promptCapabilities.resource"
	SetMode         Name = "sessionCapabilities.setMode"
	SetConfigOption Name = "sessionCapabilities.setConfigOption"
)

func (s Set) has(name Name) bool {
	switch name {
	case FSRead:
		return s.FSRead
	case FSWrite:
		return s.FSWrite
	case TerminalCreate:
		return s.TerminalCreate
	case UIPrompt:
		return s.UIPrompt
	case LoadSession:
		return s.LoadSession
	case MCPHTTP:
		return s.MCPHTTP
	case MCPSSE:
		return s.MCPSSE
	case PromptImage:
		return s.PromptImage
	case PromptAudio:
		return s.PromptAudio
	case PromptResource:
		return s.PromptResource
	case SetMode:
		return s.SetMode
	case SetConfigOption:
		return s.SetConfigOption
	default:
		return false
	}
}

// Require returns a capability_not_supported error unless name is present
// in s.
func (s Set) Require(name Name) error {
	if s.has(name) {
		return nil
	}
	return acperrors.CapabilityNotSupported(string(name))
}
