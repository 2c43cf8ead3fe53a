package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/cmdsnap/internal/config"
	"github.com/deixis/cmdsnap/internal/runner"
)

type workspaceParams struct{}

func (h *handler) workspaceHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ workspaceParams) (*sdkmcp.CallToolResult, any, error) {
	e := h.engine
	cfg := e.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	var b strings.Builder

	// Module info is best effort; the snapshot settings are still useful
	// outside a module.
	res, err := h.runner.Run(ctx, runner.Proc{
		Path: "go",
		Args: []string{"list", "-m", "-json"},
		Dir:  e.Workspace,
	}, nil)
	var mod moduleInfo
	switch {
	case err != nil:
		fmt.Fprintf(&b, "Module: (unavailable: %v)\n", err)
	case !res.Success:
		fmt.Fprintf(&b, "Module: (go list failed: %s)\n", strings.TrimSpace(string(res.Stderr)))
	case json.Unmarshal(res.Stdout, &mod) != nil:
		fmt.Fprintln(&b, "Module: (unparsable go list output)")
	default:
		fmt.Fprintf(&b, "Module: %s\n", mod.Path)
		if mod.GoVersion != "" {
			fmt.Fprintf(&b, "Go: %s\n", mod.GoVersion)
		}
	}

	fmt.Fprintf(&b, "Repository: %s\n", e.RepoRoot)
	fmt.Fprintf(&b, "Workspace: %s\n", e.Workspace)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Snapshot dir: %s (per package)\n", cfg.SnapshotDir())
	fmt.Fprintf(&b, "Bin dir: %s\n", cfg.BinDir())
	fmt.Fprintf(&b, "Update mode: %s\n", cfg.Update())
	if len(cfg.Test.Args) > 0 {
		fmt.Fprintf(&b, "Test args: %s\n", strings.Join(cfg.Test.Args, " "))
	}

	pending, err := e.Pending()
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to list pending snapshots: %v", err))
	}
	fmt.Fprintf(&b, "Pending snapshots: %d\n", len(pending))

	return textResult(b.String())
}

// moduleInfo holds the relevant fields from `go list -m -json`.
type moduleInfo struct {
	Path      string `json:"Path"`
	GoVersion string `json:"GoVersion"`
}
