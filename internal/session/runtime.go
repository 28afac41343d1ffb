package session

import (
	"context"
	"time"

	"acpcore/internal/acp"
	"acpcore/internal/acperrors"
	"acpcore/internal/capability"
	"acpcore/internal/permission"
	"acpcore/internal/terminal"
	"acpcore/internal/toolcall"
)

// Engine is the subset of *acp.Engine the runtime needs: sending outbound
// notifications and making outbound calls (reverse RPCs). Kept as an
// interface so tests can substitute a fake transport-free engine.
type Engine interface {
	Notify(method string, params any) error
	Call(ctx context.Context, method string, params, result any) error
}

// Runtime exposes the per-session operations a prompt handler uses (spec
// §4.4): emitting updates and invoking reverse RPCs, all scoped to one
// session's data and cancellation flag. caps gates every operation that
// exercises a negotiated capability (spec §4.9): an operation the client
// never declared support for fails with capability_not_supported rather
// than being attempted over the wire.
type Runtime struct {
	data   *Data
	engine Engine
	caps   capability.Set
}

// NewRuntime binds a Runtime to one session's data, the shared engine, and
// the capability set negotiated at initialize.
func NewRuntime(data *Data, engine Engine, caps capability.Set) *Runtime {
	return &Runtime{data: data, engine: engine, caps: caps}
}

func (rt *Runtime) sessionUpdate(updateType string, data any) error {
	return rt.engine.Notify(acp.MethodSessionUpdate, acp.SessionUpdateParams{
		SessionID: rt.data.ID,
		Update: acp.SessionUpdate{
			Type:      updateType,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Data:      mustMarshal(data),
		},
	})
}

// SendAgentMessage emits an agent_message_chunk. If index is nil, the next
// monotone per-session index is allocated.
func (rt *Runtime) SendAgentMessage(text string, index *int, final *bool) error {
	i := 0
	if index != nil {
		i = *index
	} else {
		i = rt.data.nextAgentChunkIndex()
	}
	return rt.sessionUpdate(acp.UpdateTypeAgentMessageChunk, acp.MessageChunkData{Content: text, Index: i, Final: final})
}

// SendUserMessage emits a user_message_chunk (symmetric with agent/thought
// chunking; not named as a runtime op in the distilled spec but required
// by the user_message_chunk update type in the data model).
func (rt *Runtime) SendUserMessage(text string, index *int) error {
	i := 0
	if index != nil {
		i = *index
	} else {
		i = rt.data.nextUserChunkIndex()
	}
	return rt.sessionUpdate(acp.UpdateTypeUserMessageChunk, acp.MessageChunkData{Content: text, Index: i})
}

// SendThought emits a thought_message_chunk with its own counter.
func (rt *Runtime) SendThought(text string, index *int, visible *bool) error {
	i := 0
	if index != nil {
		i = *index
	} else {
		i = rt.data.nextThoughtChunkIndex()
	}
	return rt.sessionUpdate(acp.UpdateTypeThoughtChunk, acp.ThoughtChunkData{Content: text, Index: i, Visible: visible})
}

// SendPlan emits a plan update. No idempotence requirement (spec §4.4).
func (rt *Runtime) SendPlan(plan acp.PlanData) error {
	return rt.sessionUpdate(acp.UpdateTypePlan, plan)
}

// SetAvailableCommands emits available_commands, the supplemented feature
// from SPEC_FULL.md. It only notifies; the command list is not cached on
// the session.
func (rt *Runtime) SetAvailableCommands(commands []acp.AvailableCommand) error {
	return rt.sessionUpdate(acp.UpdateTypeAvailableCommands, acp.AvailableCommandsData{Commands: commands})
}

// toolCallSink adapts a Runtime to toolcall.Sink, routing the first send to
// a full tool_call update and subsequent sends to tool_call_update.
type toolCallSink struct{ rt *Runtime }

func (s toolCallSink) SendFull(tc toolcall.ToolCall) error {
	return s.rt.sessionUpdate(acp.UpdateTypeToolCall, toolCallWire(tc))
}

func (s toolCallSink) SendUpdate(u toolcall.Update) error {
	return s.rt.sessionUpdate(acp.UpdateTypeToolCallUpdate, toolCallUpdateWire(u))
}

// StartToolCall allocates a fresh tool-call id (a random prefix followed by
// the session's monotone tool-call counter) and returns a Builder whose first Send emits the full object
// and whose subsequent Sends emit updates (spec §4.3/§4.4).
func (rt *Runtime) StartToolCall(opts toolcall.Options) *toolcall.Builder {
	id := rt.data.nextToolCallID()
	return toolcall.NewBuilder(id, opts, toolCallSink{rt: rt})
}

// RequestPermission infers operation/resource from the tool call and input
// path, sends session/request_permission, and maps the response per spec
// §4.4's outcome table.
func (rt *Runtime) RequestPermission(ctx context.Context, tc toolcall.ToolCall, options []permission.Option, reason string) (permission.Result, error) {
	if err := rt.ThrowIfCancelled(); err != nil {
		return permission.Result{}, err
	}

	locationPath := ""
	if tc.Location != nil {
		locationPath = tc.Location.Path
	}
	op := permission.InferOperation(string(tc.Kind), tc.Name)
	resource := permission.InferResource(tc.Input, locationPath)

	wireOptions := make([]acp.PermissionOption, len(options))
	for i, o := range options {
		wireOptions[i] = acp.PermissionOption{ID: o.ID, Kind: o.Kind, Label: o.Label, Description: o.Description, IsDefault: o.IsDefault}
	}

	var resp acp.RequestPermissionResult
	err := rt.engine.Call(ctx, acp.MethodSessionRequestPerm, acp.RequestPermissionParams{
		SessionID:  rt.data.ID,
		Operation:  string(op),
		Resource:   resource,
		Reason:     reason,
		ToolCallID: tc.ID,
		Options:    wireOptions,
	}, &resp)
	if err != nil {
		if acperrors.IsCancelled(err) {
			return permission.MapDecision(permission.Decision{TimedOut: false}), err
		}
		return permission.Result{}, err
	}

	return permission.MapDecision(permission.Decision{
		Granted:          resp.Granted,
		Remember:         resp.Remember,
		Scope:            permission.Scope(resp.Scope),
		SelectedOptionID: resp.SelectedOptionID,
		Reason:           resp.Reason,
	}), nil
}

// ReadFile issues fs/read_text_file and returns the response's content.
func (rt *Runtime) ReadFile(ctx context.Context, path string, startLine, endLine *int) (string, error) {
	if err := rt.ThrowIfCancelled(); err != nil {
		return "", err
	}
	if err := rt.caps.Require(capability.FSRead); err != nil {
		return "", err
	}
	var result acp.FSReadTextFileResult
	err := rt.engine.Call(ctx, acp.MethodFSReadTextFile, acp.FSReadTextFileParams{Path: path, StartLine: startLine, EndLine: endLine}, &result)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// WriteFile issues fs/write_text_file.
func (rt *Runtime) WriteFile(ctx context.Context, path, contentStr string) error {
	if err := rt.ThrowIfCancelled(); err != nil {
		return err
	}
	if err := rt.caps.Require(capability.FSWrite); err != nil {
		return err
	}
	var result acp.FSWriteTextFileResult
	return rt.engine.Call(ctx, acp.MethodFSWriteTextFile, acp.FSWriteTextFileParams{Path: path, Content: contentStr}, &result)
}

// CreateTerminal issues terminal/create and returns a Handle bound to the
// returned terminal id.
func (rt *Runtime) CreateTerminal(ctx context.Context, command string, args []string, cwd string, env []acp.EnvVariable) (*terminal.Handle, error) {
	if err := rt.ThrowIfCancelled(); err != nil {
		return nil, err
	}
	if err := rt.caps.Require(capability.TerminalCreate); err != nil {
		return nil, err
	}
	var result acp.TerminalCreateResult
	err := rt.engine.Call(ctx, acp.MethodTerminalCreate, acp.TerminalCreateParams{
		SessionID: rt.data.ID,
		Command:   command,
		Args:      args,
		CWD:       cwd,
		Env:       env,
	}, &result)
	if err != nil {
		return nil, err
	}
	return terminal.NewHandle(rt.data.ID, result.TerminalID, rt.engine), nil
}

// SetMode switches the session's own mode on the agent's initiative,
// updating the cached mode and emitting current_mode_update with
// source="agent". (The Client -> Agent direction of session/set_mode is a
// request the agent answers directly; see agent.Agent's handler. This
// method is for an agent that decides to switch modes mid-turn.)
func (rt *Runtime) SetMode(mode string) error {
	if err := rt.ThrowIfCancelled(); err != nil {
		return err
	}
	if err := rt.caps.Require(capability.SetMode); err != nil {
		return err
	}
	rt.data.setMode(mode)
	return rt.sessionUpdate(acp.UpdateTypeCurrentModeUpdate, acp.CurrentModeUpdateData{Mode: mode, Source: acp.SourceAgent})
}

// SetConfigOption records a config option change the agent makes on its own
// initiative and emits config_option_update with source="agent" — the
// supplemented feature from SPEC_FULL.md.
func (rt *Runtime) SetConfigOption(key string, value any) error {
	if err := rt.ThrowIfCancelled(); err != nil {
		return err
	}
	if err := rt.caps.Require(capability.SetConfigOption); err != nil {
		return err
	}
	rt.data.setConfigOption(key, value)
	return rt.sessionUpdate(acp.UpdateTypeConfigOptionUpdate, acp.ConfigOptionUpdateData{Key: key, Value: value, Source: acp.SourceAgent})
}

// ApplyClientMode handles the Client -> Agent direction of session/set_mode:
// the client is dictating the mode; the agent applies it and notifies with
// source="user".
func (rt *Runtime) ApplyClientMode(mode string) error {
	rt.data.setMode(mode)
	return rt.sessionUpdate(acp.UpdateTypeCurrentModeUpdate, acp.CurrentModeUpdateData{Mode: mode, Source: acp.SourceUser})
}

// ApplyClientConfigOption handles the Client -> Agent direction of
// session/set_config_option.
func (rt *Runtime) ApplyClientConfigOption(key string, value any) error {
	rt.data.setConfigOption(key, value)
	return rt.sessionUpdate(acp.UpdateTypeConfigOptionUpdate, acp.ConfigOptionUpdateData{Key: key, Value: value, Source: acp.SourceUser})
}

// ThrowIfCancelled fails with cancelled (-32003) once the session's
// cancellation flag is set. Cooperative handlers call this at every
// suspension point (spec §4.4, §4.5's suspension-points list).
func (rt *Runtime) ThrowIfCancelled() error {
	if rt.data.Cancelled() {
		return acperrors.Cancelled()
	}
	return nil
}
