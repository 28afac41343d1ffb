package agent

import (
	"context"
	"strings"

	"acpcore/internal/acp"
	"acpcore/internal/content"
	"acpcore/internal/session"
)

// EchoPromptHandler is a minimal reference PromptHandler: it concatenates
// the prompt's text blocks and streams them back as a single
// agent_message_chunk, matching the end-to-end scenario in spec §8
// ("Session creation + echo prompt"). Choosing how an agent turns a prompt
// into actions is explicitly out of scope (spec §1's non-goals); this
// exists so the engine, session runtime, and transport can be exercised
// end-to-end without a real model behind them.
func EchoPromptHandler(ctx context.Context, rt *session.Runtime, blocks []content.Block) (string, *acp.Usage, error) {
	if err := rt.ThrowIfCancelled(); err != nil {
		return "", nil, err
	}

	var text strings.Builder
	for _, b := range blocks {
		if b.Type == content.TypeText {
			text.WriteString(b.Text)
		}
	}

	final := true
	if err := rt.SendAgentMessage("Echo: "+text.String(), nil, &final); err != nil {
		return "", nil, err
	}

	if err := rt.ThrowIfCancelled(); err != nil {
		return "", nil, err
	}

	return "end_turn", nil, nil
}
