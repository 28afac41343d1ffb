// Package agent wires the protocol engine, session registry, and runtime
// operations together into the Agent role described by spec §2: it
// registers the inbound request handlers for initialize, authenticate, and
// every session/* method, and drives prompt processing through a
// caller-supplied PromptHandler.
//
// Grounded in the teacher's internal/agent.Manager (connection lifecycle,
// config-driven identity), inverted from the Client role (which connects
// out to a subprocess agent) to the Agent role (which serves inbound
// requests from a client).
package agent

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"acpcore/internal/acp"
	"acpcore/internal/acperrors"
	"acpcore/internal/capability"
	"acpcore/internal/content"
	"acpcore/internal/session"
)

// Identity describes this agent for the initialize handshake.
type Identity struct {
	Name    string
	Version string
}

// PromptHandler processes one session/prompt call's content and returns the
// stop reason once it finishes (or is cancelled). Implementations drive the
// Runtime (send message/thought/plan chunks, start tool calls, request
// permission, read/write files, create terminals) and must call
// rt.ThrowIfCancelled() at their own suspension points (spec §4.5).
type PromptHandler func(ctx context.Context, rt *session.Runtime, content []content.Block) (stopReason string, usage *acp.Usage, err error)

// Agent binds an Engine to a session registry and dispatches the ACP
// method catalog's Client -> Agent half (spec §6).
type Agent struct {
	engine      *acp.Engine
	registry    *session.Registry
	identity    Identity
	caps        capability.Set
	authMethods []acp.AuthMethod
	prompt      PromptHandler
	log         *zap.Logger

	initialized   bool
	authenticated bool
}

// Options configure a new Agent.
type Options struct {
	Identity      Identity
	Capabilities  capability.Set
	AuthMethods   []acp.AuthMethod
	PromptHandler PromptHandler
	Logger        *zap.Logger
}

// New constructs an Agent bound to engine and registers all Client -> Agent
// handlers (spec §6's method catalog). The engine must not be started yet.
func New(engine *acp.Engine, registry *session.Registry, opts Options) *Agent {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &Agent{
		engine:      engine,
		registry:    registry,
		identity:    opts.Identity,
		caps:        opts.Capabilities,
		authMethods: opts.AuthMethods,
		prompt:      opts.PromptHandler,
		log:         opts.Logger,
	}
	a.registerHandlers()
	return a
}

func (a *Agent) registerHandlers() {
	a.engine.OnRequest(acp.MethodInitialize, a.handleInitialize)
	a.engine.OnRequest(acp.MethodAuthenticate, a.handleAuthenticate)
	a.engine.OnRequest(acp.MethodSessionNew, a.requireInit(a.handleSessionNew))
	a.engine.OnRequest(acp.MethodSessionLoad, a.requireInit(a.handleSessionLoad))
	a.engine.OnRequest(acp.MethodSessionPrompt, a.requireInit(a.handleSessionPrompt))
	a.engine.OnRequest(acp.MethodSessionSetMode, a.requireInit(a.handleSessionSetMode))
	a.engine.OnRequest(acp.MethodSessionSetConfigOpt, a.requireInit(a.handleSessionSetConfigOption))
	a.engine.OnNotification(acp.MethodSessionCancel, a.handleSessionCancel)
}

// requireInit enforces spec §4.9: prior to successful initialization,
// session methods fail with a precondition error. It also enforces spec
// §7's auth_required gate: once initialize has advertised one or more
// AuthMethods, every session method stays rejected until authenticate
// succeeds.
func (a *Agent) requireInit(h acp.RequestHandler) acp.RequestHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		if !a.initialized {
			return nil, acperrors.InvalidSessionState("initialize must complete before session methods")
		}
		if len(a.authMethods) > 0 && !a.authenticated {
			return nil, acperrors.AuthRequired("authenticate must complete before session methods")
		}
		return h(ctx, params)
	}
}

func (a *Agent) handleInitialize(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.InitializeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}

	if params.Capabilities.FS != nil {
		a.caps.FSRead = a.caps.FSRead && params.Capabilities.FS.Read
		a.caps.FSWrite = a.caps.FSWrite && params.Capabilities.FS.Write
	} else {
		a.caps.FSRead = false
		a.caps.FSWrite = false
	}
	a.caps.TerminalCreate = a.caps.TerminalCreate && params.Capabilities.Terminal != nil && params.Capabilities.Terminal.Create
	a.caps.UIPrompt = a.caps.UIPrompt && params.Capabilities.UI != nil && params.Capabilities.UI.Prompt

	a.initialized = true

	return acp.InitializeResult{
		ProtocolVersion: params.ProtocolVersion,
		AgentInfo:       acp.ImplementationInfo{Name: a.identity.Name, Version: a.identity.Version},
		AuthMethods:     a.authMethods,
		Capabilities: acp.AgentCapabilities{
			LoadSession: a.caps.LoadSession,
			MCPCapabilities: &acp.MCPCapabilities{
				HTTP: a.caps.MCPHTTP,
				SSE:  a.caps.MCPSSE,
			},
			PromptCapabilities: &acp.PromptCapabilities{
				Image:    a.caps.PromptImage,
				Audio:    a.caps.PromptAudio,
				Resource: a.caps.PromptResource,
			},
			SessionCapabilities: &acp.SessionCapabilities{
				SetMode:         a.caps.SetMode,
				SetConfigOption: a.caps.SetConfigOption,
			},
		},
	}, nil
}

func (a *Agent) handleAuthenticate(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.AuthenticateParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	// No external identity provider is wired up (MCP server authentication
	// is explicitly out of scope, spec §1); authenticate only validates the
	// method id against what initialize advertised and flips the gate.
	found := false
	for _, m := range a.authMethods {
		if m.ID == params.MethodID {
			found = true
			break
		}
	}
	if !found {
		return nil, acperrors.InvalidParams("unknown auth method: " + params.MethodID)
	}
	a.authenticated = true
	return struct{}{}, nil
}

func (a *Agent) handleSessionNew(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.SessionNewParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}

	servers := make([]session.MCPServer, len(params.MCPServers))
	for i, s := range params.MCPServers {
		servers[i] = session.MCPServer{Name: s.Name, Command: s.Command, Args: s.Args, URL: s.URL}
	}

	data := a.registry.Create(session.NewOptions{
		WorkingDirectory: params.WorkingDirectory,
		MCPServers:       servers,
		SystemPrompt:     params.SystemPrompt,
	})

	return acp.SessionNewResult{SessionID: data.ID, CreatedAt: data.CreatedAt.UTC().Format(time.RFC3339)}, nil
}

func (a *Agent) handleSessionLoad(_ context.Context, raw json.RawMessage) (any, error) {
	if err := a.caps.Require(capability.LoadSession); err != nil {
		return nil, err
	}
	var params acp.SessionLoadParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	if _, err := a.registry.Load(params.SessionID); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (a *Agent) handleSessionPrompt(ctx context.Context, raw json.RawMessage) (any, error) {
	var params acp.SessionPromptParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}

	data, err := a.registry.Load(params.SessionID)
	if err != nil {
		return nil, err
	}
	if data.Cancelled() {
		return nil, acperrors.Cancelled()
	}

	rt := session.NewRuntime(data, a.engine, a.caps)

	if a.prompt == nil {
		return nil, acperrors.Internal("no prompt handler configured")
	}

	stopReason, usage, err := a.prompt(ctx, rt, params.Content)
	if err != nil {
		if acperrors.IsCancelled(err) {
			return acp.SessionPromptResult{StopReason: "cancelled"}, nil
		}
		return nil, err
	}
	return acp.SessionPromptResult{StopReason: stopReason, Usage: usage}, nil
}

func (a *Agent) handleSessionCancel(raw json.RawMessage) {
	var params acp.SessionCancelParams
	if err := json.Unmarshal(raw, &params); err != nil {
		a.log.Warn("acp: invalid session/cancel params", zap.Error(err))
		return
	}
	if err := a.registry.Cancel(params.SessionID); err != nil {
		a.log.Debug("acp: cancel for unknown session", zap.String("sessionId", params.SessionID))
	}
}

func (a *Agent) handleSessionSetMode(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.SessionSetModeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	if err := a.caps.Require(capability.SetMode); err != nil {
		return nil, err
	}
	data, err := a.registry.Load(params.SessionID)
	if err != nil {
		return nil, err
	}
	rt := session.NewRuntime(data, a.engine, a.caps)
	if err := rt.ThrowIfCancelled(); err != nil {
		return nil, err
	}
	if err := rt.ApplyClientMode(params.Mode); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (a *Agent) handleSessionSetConfigOption(_ context.Context, raw json.RawMessage) (any, error) {
	var params acp.SessionSetConfigOptionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, acperrors.InvalidParams(err.Error())
	}
	if err := a.caps.Require(capability.SetConfigOption); err != nil {
		return nil, err
	}
	data, err := a.registry.Load(params.SessionID)
	if err != nil {
		return nil, err
	}
	rt := session.NewRuntime(data, a.engine, a.caps)
	if err := rt.ThrowIfCancelled(); err != nil {
		return nil, err
	}
	if err := rt.ApplyClientConfigOption(params.Key, params.Value); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}
