package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/cmdsnap/internal/review"
)

type pendingParams struct{}

func (h *handler) pendingHandler(ctx context.Context, req *mcp.CallToolRequest, _ pendingParams) (*mcp.CallToolResult, any, error) {
	pending, err := h.engine.Pending()
	if err != nil {
		return errorResult(fmt.Sprintf("listing pending snapshots failed: %v", err))
	}
	return textResult(formatPending(pending))
}

func formatPending(pending []review.Pending) string {
	if len(pending) == 0 {
		return "No pending snapshots.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pending snapshots (%d):\n", len(pending))
	for _, p := range pending {
		status := "changed"
		if p.IsNew() {
			status = "new"
		}
		fmt.Fprintf(&b, "  %s (%s)\n", p.Target, status)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, `Show a diff with snap_show(path="<snapshot>").`)
	return b.String()
}

type showParams struct {
	Path string `json:"path" jsonschema:"Snapshot to show, either the .snap baseline or the .snap.new file, relative to the repository root or absolute."`
}

func (h *handler) showHandler(ctx context.Context, req *mcp.CallToolRequest, params showParams) (*mcp.CallToolResult, any, error) {
	if params.Path == "" {
		return errorResult("path is required")
	}
	p, err := h.engine.Show(params.Path)
	if err != nil {
		return errorResult(err.Error())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Snapshot: %s\n", p.Target)
	if src := p.New.Meta.Source; src != "" {
		fmt.Fprintf(&b, "Source: %s\n", src)
	}
	if expr := p.New.Meta.Expression; expr != "" {
		fmt.Fprintf(&b, "Command: %s\n", expr)
	}
	fmt.Fprintln(&b)
	if p.IsNew() {
		fmt.Fprintln(&b, "New snapshot:")
		fmt.Fprintln(&b, p.New.Body)
	} else {
		fmt.Fprint(&b, h.engine.Diff(p))
	}
	return textResult(b.String())
}

type decideParams struct {
	Paths []string `json:"paths,omitempty" jsonschema:"Snapshots to act on, relative to the repository root or absolute. Defaults to every pending snapshot."`
}

func (h *handler) acceptHandler(ctx context.Context, req *mcp.CallToolRequest, params decideParams) (*mcp.CallToolResult, any, error) {
	done, err := h.engine.Accept(params.Paths)
	return decided("Accepted", done, err)
}

func (h *handler) rejectHandler(ctx context.Context, req *mcp.CallToolRequest, params decideParams) (*mcp.CallToolResult, any, error) {
	done, err := h.engine.Reject(params.Paths)
	return decided("Rejected", done, err)
}

func decided(verb string, done []string, err error) (*mcp.CallToolResult, any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d snapshots.\n", verb, len(done))
	for _, t := range done {
		fmt.Fprintf(&b, "  %s\n", t)
	}
	if err != nil {
		fmt.Fprintf(&b, "\nStopped: %v\n", err)
		return errorResult(b.String())
	}
	return textResult(b.String())
}
