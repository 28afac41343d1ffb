package acp

import (
	"encoding/json"

	"acpcore/internal/content"
)

// Method name constants, per spec §6's catalog.
const (
	MethodInitialize           = "initialize"
	MethodAuthenticate         = "authenticate"
	MethodSessionNew           = "session/new"
	MethodSessionLoad          = "session/load"
	MethodSessionPrompt        = "session/prompt"
	MethodSessionCancel        = "session/cancel"
	MethodSessionSetMode       = "session/set_mode"
	MethodSessionSetConfigOpt  = "session/set_config_option"
	MethodSessionUpdate        = "session/update"
	MethodSessionRequestPerm   = "session/request_permission"
	MethodFSReadTextFile       = "fs/read_text_file"
	MethodFSWriteTextFile      = "fs/write_text_file"
	MethodTerminalCreate       = "terminal/create"
	MethodTerminalOutput       = "terminal/output"
	MethodTerminalWaitForExit  = "terminal/wait_for_exit"
	MethodTerminalKill         = "terminal/kill"
	MethodTerminalRelease      = "terminal/release"
)

// ClientCapabilities is sent by the Client on initialize.
type ClientCapabilities struct {
	FS       *FSCapabilities       `json:"fs,omitempty"`
	Terminal *TerminalCapabilities `json:"terminal,omitempty"`
	UI       *UICapabilities       `json:"ui,omitempty"`
}

type FSCapabilities struct {
	Read  bool `json:"read,omitempty"`
	Write bool `json:"write,omitempty"`
}

type TerminalCapabilities struct {
	Create bool `json:"create,omitempty"`
}

type UICapabilities struct {
	Prompt bool `json:"prompt,omitempty"`
}

// clientCapabilitiesWire additionally accepts a legacy "fileSystem" alias
// for "fs" on decode, per SPEC_FULL.md's Open Question resolution: the
// alias is read leniently but this type never emits it.
type clientCapabilitiesWire struct {
	FS         *FSCapabilities       `json:"fs,omitempty"`
	FileSystem *FSCapabilities       `json:"fileSystem,omitempty"`
	Terminal   *TerminalCapabilities `json:"terminal,omitempty"`
	UI         *UICapabilities       `json:"ui,omitempty"`
}

func (c *ClientCapabilities) UnmarshalJSON(data []byte) error {
	var w clientCapabilitiesWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.FS = w.FS
	if c.FS == nil {
		c.FS = w.FileSystem
	}
	c.Terminal = w.Terminal
	c.UI = w.UI
	return nil
}

func (c ClientCapabilities) MarshalJSON() ([]byte, error) {
	return json.Marshal(clientCapabilitiesWire{FS: c.FS, Terminal: c.Terminal, UI: c.UI})
}

// AgentCapabilities is returned by the Agent on initialize.
type AgentCapabilities struct {
	LoadSession      bool                 `json:"loadSession,omitempty"`
	MCPCapabilities  *MCPCapabilities     `json:"mcpCapabilities,omitempty"`
	PromptCapabilities *PromptCapabilities `json:"promptCapabilities,omitempty"`
	SessionCapabilities *SessionCapabilities `json:"sessionCapabilities,omitempty"`
}

type MCPCapabilities struct {
	HTTP bool `json:"http,omitempty"`
	SSE  bool `json:"sse,omitempty"`
}

type PromptCapabilities struct {
	Image    bool `json:"image,omitempty"`
	Audio    bool `json:"audio,omitempty"`
	Resource bool `json:"resource,omitempty"`
}

type SessionCapabilities struct {
	SetMode         bool `json:"setMode,omitempty"`
	SetConfigOption bool `json:"setConfigOption,omitempty"`
}

type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// AuthMethod describes an available authentication method, used to back
// the auth_required error path.
type AuthMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type InitializeParams struct {
	ProtocolVersion int                `json:"protocolVersion"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
	Capabilities    ClientCapabilities `json:"capabilities"`
}

type InitializeResult struct {
	ProtocolVersion int                `json:"protocolVersion"`
	AgentInfo       ImplementationInfo `json:"agentInfo"`
	Capabilities    AgentCapabilities  `json:"capabilities"`
	AuthMethods     []AuthMethod       `json:"authMethods,omitempty"`
}

type AuthenticateParams struct {
	MethodID string `json:"methodId"`
}

type MCPServer struct {
	Name    string        `json:"name"`
	Command string        `json:"command,omitempty"`
	Args    []string      `json:"args,omitempty"`
	Env     []EnvVariable `json:"env,omitempty"`
	URL     string        `json:"url,omitempty"`
	Headers []HTTPHeader  `json:"headers,omitempty"`
}

type EnvVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type HTTPHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SessionNewParams struct {
	WorkingDirectory string      `json:"workingDirectory"`
	MCPServers       []MCPServer `json:"mcpServers,omitempty"`
	SystemPrompt     string      `json:"systemPrompt,omitempty"`
}

type SessionNewResult struct {
	SessionID string `json:"sessionId"`
	CreatedAt string `json:"createdAt"`
}

type SessionLoadParams struct {
	SessionID string `json:"sessionId"`
}

type SessionPromptParams struct {
	SessionID string          `json:"sessionId"`
	Content   []content.Block `json:"content"`
}

type SessionPromptResult struct {
	StopReason string `json:"stopReason"`
	Usage      *Usage `json:"usage,omitempty"`
}

type Usage struct {
	InputTokens       int `json:"inputTokens"`
	OutputTokens      int `json:"outputTokens"`
	CachedInputTokens int `json:"cachedInputTokens,omitempty"`
}

type SessionCancelParams struct {
	SessionID string `json:"sessionId"`
}

type SessionSetModeParams struct {
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode"`
}

type SessionSetConfigOptionParams struct {
	SessionID string `json:"sessionId"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

// Source of a mode/config change, per the supplemented config_option_update
// feature in SPEC_FULL.md.
type ChangeSource string

const (
	SourceUser   ChangeSource = "user"
	SourceAgent  ChangeSource = "agent"
	SourceSystem ChangeSource = "system"
)

// SessionUpdateParams wraps a single discriminated session/update
// notification payload.
type SessionUpdateParams struct {
	SessionID string `json:"sessionId"`
	Update    SessionUpdate
}

func (p SessionUpdateParams) MarshalJSON() ([]byte, error) {
	type wire struct {
		SessionID string          `json:"sessionId"`
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp,omitempty"`
	}
	data, err := json.Marshal(p.Update.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire{SessionID: p.SessionID, Type: p.Update.Type, Data: data, Timestamp: p.Update.Timestamp})
}

func (p *SessionUpdateParams) UnmarshalJSON(data []byte) error {
	var wire struct {
		SessionID string          `json:"sessionId"`
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.SessionID = wire.SessionID
	p.Update = SessionUpdate{Type: wire.Type, Timestamp: wire.Timestamp, Data: wire.Data}
	return nil
}

// SessionUpdate is the discriminated session/update payload. Data holds
// the raw, not-yet-decoded type-specific payload; callers decode it into
// the concrete struct matching Type (PlanUpdate, AgentMessageChunk, ...).
type SessionUpdate struct {
	Type      string
	Timestamp string
	Data      json.RawMessage
}

// Session update type discriminators, per spec §3.
const (
	UpdateTypePlan               = "plan"
	UpdateTypeAgentMessageChunk  = "agent_message_chunk"
	UpdateTypeUserMessageChunk   = "user_message_chunk"
	UpdateTypeThoughtChunk       = "thought_message_chunk"
	UpdateTypeToolCall           = "tool_call"
	UpdateTypeToolCallUpdate     = "tool_call_update"
	UpdateTypeAvailableCommands  = "available_commands"
	UpdateTypeCurrentModeUpdate  = "current_mode_update"
	UpdateTypeConfigOptionUpdate = "config_option_update"
)

type MessageChunkData struct {
	Content string `json:"content"`
	Index   int    `json:"index"`
	Final   *bool  `json:"final,omitempty"`
}

type ThoughtChunkData struct {
	Content string `json:"content"`
	Index   int    `json:"index"`
	Visible *bool  `json:"visible,omitempty"`
}

type PlanData struct {
	PlanID string `json:"planId"`
	Title  string `json:"title,omitempty"`
	Steps  []Step `json:"steps"`
}

type Step struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Details     string `json:"details,omitempty"`
	Children    []Step `json:"children,omitempty"`
}

type AvailableCommandsData struct {
	Commands []AvailableCommand `json:"commands"`
}

type AvailableCommand struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Input       *AvailableCommandInput  `json:"input,omitempty"`
}

type AvailableCommandInput struct {
	Hint string `json:"hint,omitempty"`
}

type CurrentModeUpdateData struct {
	Mode   string       `json:"mode"`
	Source ChangeSource `json:"source,omitempty"`
}

type ConfigOptionUpdateData struct {
	Key    string       `json:"key"`
	Value  any          `json:"value"`
	Source ChangeSource `json:"source,omitempty"`
}

// RequestPermissionParams is the agent → client reverse RPC request.
type RequestPermissionParams struct {
	SessionID  string             `json:"sessionId"`
	Operation  string             `json:"operation"`
	Resource   string             `json:"resource,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	ToolCallID string             `json:"toolCallId,omitempty"`
	Options    []PermissionOption `json:"options,omitempty"`
}

type PermissionOption struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

type RequestPermissionResult struct {
	Granted          bool   `json:"granted"`
	Remember         bool   `json:"remember,omitempty"`
	Scope            string `json:"scope,omitempty"`
	SelectedOptionID string `json:"selectedOptionId,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

type FSReadTextFileParams struct {
	Path      string `json:"path"`
	StartLine *int   `json:"startLine,omitempty"`
	EndLine   *int   `json:"endLine,omitempty"`
}

type FSReadTextFileResult struct {
	Content    string `json:"content"`
	Encoding   string `json:"encoding"`
	TotalLines *int   `json:"totalLines,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

type FSWriteTextFileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type FSWriteTextFileResult struct {
	BytesWritten int  `json:"bytesWritten"`
	Created      bool `json:"created"`
}

type TerminalCreateParams struct {
	SessionID string            `json:"sessionId"`
	Command   string            `json:"command"`
	Args      []string          `json:"args,omitempty"`
	CWD       string            `json:"cwd,omitempty"`
	Env       []EnvVariable     `json:"env,omitempty"`
	Timeout   int               `json:"timeout,omitempty"`
}

type TerminalCreateResult struct {
	TerminalID string `json:"terminalId"`
}

type TerminalIDParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}

type ExitStatus struct {
	ExitCode *int   `json:"exitCode"`
	Signal   string `json:"signal,omitempty"`
}

type TerminalOutputResult struct {
	Output     string      `json:"output"`
	Truncated  bool        `json:"truncated"`
	ExitStatus *ExitStatus `json:"exitStatus,omitempty"`
}

type TerminalWaitForExitParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
	Timeout    int    `json:"timeout,omitempty"`
}

type TerminalWaitForExitResult struct {
	ExitCode *int   `json:"exitCode"`
	Signal   string `json:"signal,omitempty"`
	TimedOut bool   `json:"timedOut,omitempty"`
}

type TerminalKillParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
	Signal     string `json:"signal,omitempty"`
}

type TerminalReleaseResult struct {
	Released bool `json:"released"`
}
