// Command acp-agent serves the Agent Client Protocol over stdio: it reads
// newline-delimited JSON-RPC requests from stdin and writes responses and
// session updates to stdout, per spec §6's stdio transport contract.
package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"acpcore/internal/acp"
	"acpcore/internal/agent"
	"acpcore/internal/capability"
	"acpcore/internal/session"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging to stderr")
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	transport := acp.NewStdioTransport(os.Stdin, os.Stdout, logger)
	engine := acp.NewEngine(transport, logger)
	registry := session.NewRegistry(logger)

	agent.New(engine, registry, agent.Options{
		Identity: agent.Identity{Name: "acpcore-agent", Version: "0.1.0"},
		Capabilities: capability.Set{
			LoadSession:     true,
			SetMode:         true,
			SetConfigOption: true,
		},
		PromptHandler: agent.EchoPromptHandler,
		Logger:        logger,
	})

	if err := engine.Start(); err != nil {
		logger.Fatal("acp-agent: start engine", zap.Error(err))
	}

	<-engine.Done()
	registry.TeardownAll()
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}
