// Package client implements the Client role of the protocol (spec §2):
// it drives the Client -> Agent half of the handshake (initialize,
// session/new, session/prompt, session/cancel, session/set_mode,
// session/set_config_option) and answers the reverse RPCs an agent issues
// mid-turn (fs/*, terminal/*, session/request_permission), backed by the
// fsops and terminalhost reference implementations.
//
// Grounded in the teacher's internal/acp.Client, generalized from a
// single hardcoded onXxx callback per reverse method to the same
// capability-backed handler set used throughout this module, and
// retargeted from the teacher's *StdioTransport to the shared, transport
// agnostic *acp.Engine.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"acpcore/internal/acp"
	"acpcore/internal/acperrors"
	"acpcore/internal/content"
	"acpcore/internal/fsops"
	"acpcore/internal/terminalhost"
)

// PermissionPolicy decides how to answer a session/request_permission
// reverse RPC. The reference policy (AutoGrant) always grants the
// default option; a real client would prompt a human instead (spec
// §4.4's UI prompt capability).
type PermissionPolicy func(acp.RequestPermissionParams) acp.RequestPermissionResult

// AutoGrant grants the first option flagged IsDefault, or the first
// option if none is marked, remembering nothing.
func AutoGrant(p acp.RequestPermissionParams) acp.RequestPermissionResult {
	if len(p.Options) == 0 {
		return acp.RequestPermissionResult{Granted: true}
	}
	chosen := p.Options[0]
	for _, o := range p.Options {
		if o.IsDefault {
			chosen = o
			break
		}
	}
	return acp.RequestPermissionResult{Granted: true, SelectedOptionID: chosen.ID}
}

// Client binds an *acp.Engine to a terminal host and filesystem
// implementation and exposes the Client -> Agent outbound operations.
type Client struct {
	engine *acp.Engine
	log    *zap.Logger

	terminals *terminalhost.Host
	reader    fsops.Reader
	writer    *fsops.DiskWriter
	policy    PermissionPolicy

	terminalByteLimit int

	mu              sync.RWMutex
	onSessionUpdate func(acp.SessionUpdateParams)
}

// Options configures a new Client.
type Options struct {
	Logger            *zap.Logger
	TerminalByteLimit int
	Policy            PermissionPolicy
	Reader            fsops.Reader // defaults to fsops.DiskReader{}
}

// New constructs a Client bound to engine and registers every Agent ->
// Client reverse-RPC handler.
func New(engine *acp.Engine, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Policy == nil {
		opts.Policy = AutoGrant
	}
	if opts.Reader == nil {
		opts.Reader = fsops.DiskReader{}
	}
	c := &Client{
		engine:            engine,
		log:               opts.Logger,
		terminals:         terminalhost.NewHost(opts.Logger),
		reader:            opts.Reader,
		writer:            fsops.NewDiskWriter(),
		policy:            opts.Policy,
		terminalByteLimit: opts.TerminalByteLimit,
	}
	c.registerHandlers()
	return c
}

func (c *Client) registerHandlers() {
	c.engine.OnNotification(acp.MethodSessionUpdate, c.handleSessionUpdate)
	c.engine.OnRequest(acp.MethodSessionRequestPerm, c.handleRequestPermission)
	c.engine.OnRequest(acp.MethodFSReadTextFile, c.handleFSRead)
	c.engine.OnRequest(acp.MethodFSWriteTextFile, c.handleFSWrite)
	c.engine.OnRequest(acp.MethodTerminalCreate, c.handleTerminalCreate)
	c.engine.OnRequest(acp.MethodTerminalOutput, c.handleTerminalOutput)
	c.engine.OnRequest(acp.MethodTerminalWaitForExit, c.handleTerminalWait)
	c.engine.OnRequest(acp.MethodTerminalKill, c.handleTerminalKill)
	c.engine.OnRequest(acp.MethodTerminalRelease, c.handleTerminalRelease)
}

// OnSessionUpdate registers the callback invoked for every session/update
// notification; only one handler is kept, matching the teacher's Client.
func (c *Client) OnSessionUpdate(handler func(acp.SessionUpdateParams)) {
	c.mu.Lock()
	c.onSessionUpdate = handler
	c.mu.Unlock()
}

func (c *Client) handleSessionUpdate(raw json.RawMessage) {
	var params acp.SessionUpdateParams
	if err := json.Unmarshal(raw, &params); err != nil {
		c.log.Warn("client: malformed session/update", zap.Error(err))
		return
	}
	c.mu.RLock()
	handler := c.onSessionUpdate
	c.mu.RUnlock()
	if handler != nil {
		handler(params)
	}
}

// ---------------------------------------------------------------------
// Outbound: Client -> Agent
// ---------------------------------------------------------------------

// Initialize performs the handshake. It does not start the engine or its
// transport; the caller starts them first.
func (c *Client) Initialize(ctx context.Context, info acp.ImplementationInfo) (*acp.InitializeResult, error) {
	params := acp.InitializeParams{
		ProtocolVersion: 1,
		ClientInfo:      info,
		Capabilities: acp.ClientCapabilities{
			FS:       &acp.FSCapabilities{Read: true, Write: true},
			Terminal: &acp.TerminalCapabilities{Create: true},
		},
	}
	var result acp.InitializeResult
	if err := c.engine.Call(ctx, acp.MethodInitialize, params, &result); err != nil {
		return nil, fmt.Errorf("client: initialize: %w", err)
	}
	return &result, nil
}

// NewSession asks the agent to create a session.
func (c *Client) NewSession(ctx context.Context, workingDirectory string, mcpServers []acp.MCPServer) (string, error) {
	var result acp.SessionNewResult
	err := c.engine.Call(ctx, acp.MethodSessionNew, acp.SessionNewParams{
		WorkingDirectory: workingDirectory,
		MCPServers:       mcpServers,
	}, &result)
	if err != nil {
		return "", fmt.Errorf("client: session/new: %w", err)
	}
	return result.SessionID, nil
}

// Prompt sends prompt content and blocks until the agent reports its stop
// reason; session updates arrive via OnSessionUpdate concurrently.
func (c *Client) Prompt(ctx context.Context, sessionID string, blocks []content.Block) (*acp.SessionPromptResult, error) {
	var result acp.SessionPromptResult
	err := c.engine.Call(ctx, acp.MethodSessionPrompt, acp.SessionPromptParams{
		SessionID: sessionID,
		Content:   blocks,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("client: session/prompt: %w", err)
	}
	return &result, nil
}

// Cancel fires the session/cancel notification (fire-and-forget).
func (c *Client) Cancel(sessionID string) error {
	return c.engine.Notify(acp.MethodSessionCancel, acp.SessionCancelParams{SessionID: sessionID})
}

// SetMode asks the agent to switch the session's mode.
func (c *Client) SetMode(ctx context.Context, sessionID, mode string) error {
	return c.engine.Call(ctx, acp.MethodSessionSetMode, acp.SessionSetModeParams{SessionID: sessionID, Mode: mode}, &struct{}{})
}

// SetConfigOption asks the agent to change a config option.
func (c *Client) SetConfigOption(ctx context.Context, sessionID, key string, value any) error {
	return c.engine.Call(ctx, acp.MethodSessionSetConfigOpt, acp.SessionSetConfigOptionParams{SessionID: sessionID, Key: key, Value: value}, &struct{}{})
}

// Close tears down every live terminal and the engine.
func (c *Client) Close() error {
	c.terminals.CloseAll()
	return c.engine.Close()
}

// ---------------------------------------------------------------------
// Inbound: Agent -> Client reverse RPCs
// ---------------------------------------------------------------------

func (c *Client) handleRequestPermission(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.RequestPermissionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	return c.policy(params), nil
}

func (c *Client) handleFSRead(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.FSReadTextFileParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	text, total, truncated, err := fsops.ReadTextFile(c.reader, params.Path, params.StartLine, params.EndLine)
	if err != nil {
		return nil, acperrors.Internal(err.Error())
	}
	return acp.FSReadTextFileResult{Content: text, Encoding: "utf-8", TotalLines: &total, Truncated: truncated}, nil
}

func (c *Client) handleFSWrite(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.FSWriteTextFileParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	created, err := c.writer.Write(params.Path, params.Content)
	if err != nil {
		return nil, acperrors.Internal(err.Error())
	}
	return acp.FSWriteTextFileResult{BytesWritten: len(params.Content), Created: created}, nil
}

func (c *Client) handleTerminalCreate(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.TerminalCreateParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	env := make([]string, len(params.Env))
	for i, e := range params.Env {
		env[i] = e.Name + "=" + e.Value
	}
	id, err := c.terminals.Create(params.Command, params.Args, params.CWD, env, c.terminalByteLimit)
	if err != nil {
		return nil, acperrors.Internal(err.Error())
	}
	return acp.TerminalCreateResult{TerminalID: id}, nil
}

func (c *Client) handleTerminalOutput(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.TerminalIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	out, truncated, exit, err := c.terminals.Output(params.TerminalID)
	if err != nil {
		return nil, acperrors.Internal(err.Error())
	}
	result := acp.TerminalOutputResult{Output: out, Truncated: truncated}
	if exit != nil {
		result.ExitStatus = &acp.ExitStatus{ExitCode: exit.ExitCode, Signal: exit.Signal}
	}
	return result, nil
}

func (c *Client) handleTerminalWait(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.TerminalWaitForExitParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	timeout := time.Duration(params.Timeout) * time.Millisecond
	exit, timedOut, err := c.terminals.WaitForExit(params.TerminalID, timeout)
	if err != nil {
		return nil, acperrors.Internal(err.Error())
	}
	result := acp.TerminalWaitForExitResult{TimedOut: timedOut}
	if exit != nil {
		result.ExitCode = exit.ExitCode
		result.Signal = exit.Signal
	}
	return result, nil
}

func (c *Client) handleTerminalKill(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.TerminalKillParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	if err := c.terminals.Kill(params.TerminalID); err != nil {
		return nil, acperrors.Internal(err.Error())
	}
	return struct{}{}, nil
}

func (c *Client) handleTerminalRelease(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.TerminalIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	if err := c.terminals.Release(params.TerminalID); err != nil {
		return nil, acperrors.Internal(err.Error())
	}
	return acp.TerminalReleaseResult{Released: true}, nil
}
