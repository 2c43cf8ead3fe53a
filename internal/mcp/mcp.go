// Package mcp provides the cmdsnap MCP server, exposing snapshot review as
// tools an agent can call.
package mcp

import (
	"context"
	_ "embed"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/cmdsnap"
	"github.com/deixis/cmdsnap/internal/config"
	"github.com/deixis/cmdsnap/internal/review"
	"github.com/deixis/cmdsnap/internal/runner"
	"github.com/deixis/cmdsnap/internal/snapshot"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *review.Engine
	runner *runner.Runner
}

// NewServer creates an MCP server with all cmdsnap tools registered.
// repoRoot is the module root found for workspace; client roots replace
// both once the session is initialized. An empty repoRoot means workspace.
// A nil logger discards.
func NewServer(cfg *config.Config, r *runner.Runner, store snapshot.Store, workspace, repoRoot string, logger *log.Logger) *mcp.Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if repoRoot == "" {
		repoRoot = workspace
	}
	h := &handler{
		engine: &review.Engine{
			Config:    cfg,
			Runner:    r,
			Store:     store,
			Logger:    logger,
			Workspace: workspace,
			RepoRoot:  repoRoot,
		},
		runner: r,
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "cmdsnap", Version: cmdsnap.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "snap_workspace",
		Description: "Summarise the snapshot setup: module, repository root, snapshot directory and update mode.",
	}, h.workspaceHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "snap_test",
		Description: `Run go test with CMDSNAP_UPDATE=new and list the snapshots left pending.

Use this after changing a command's behaviour. Failed snapshot assertions write
.snap.new files instead of failing silently; review them with snap_show and
accept or reject them. Set accept=true to accept every pending snapshot at once.`,
	}, h.testHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "snap_pending",
		Description: "List pending snapshots below the repository root, marking new ones.",
	}, h.pendingHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "snap_show",
		Description: `Show a pending snapshot as a unified diff against its baseline.

path may name either the .snap baseline or the .snap.new file.`,
	}, h.showHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "snap_accept",
		Description: "Accept pending snapshots, replacing their baselines. With no paths, accepts everything pending.",
	}, h.acceptHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "snap_reject",
		Description: "Reject pending snapshots, deleting the .snap.new files. With no paths, rejects everything pending.",
	}, h.rejectHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and points the
// engine at the first file root, reloading its configuration.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.engine.Logger.Warn("ignoring client root", "root", workspace, "err", err)
		return
	}
	h.engine.Config = loaded.Config
	h.engine.Workspace = workspace
	h.engine.RepoRoot = loaded.RepoRoot
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
