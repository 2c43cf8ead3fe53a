package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/cmdsnap/internal/review"
)

type testParams struct {
	Packages []string `json:"packages,omitempty" jsonschema:"Go import paths of packages to test (e.g. example.com/foo/bar/...) or absolute directory paths. Defaults to all packages in the workspace."`
	Accept   bool     `json:"accept,omitempty" jsonschema:"Accept every pending snapshot after the run. Default: false."`
}

func (h *handler) testHandler(ctx context.Context, req *mcp.CallToolRequest, params testParams) (*mcp.CallToolResult, any, error) {
	report, err := h.engine.Test(ctx, params.Packages, params.Accept)
	if err != nil {
		return errorResult(fmt.Sprintf("test failed: %v", err))
	}
	return textResult(formatTest(report))
}

func formatTest(r *review.TestReport) string {
	var b strings.Builder
	fmt.Fprint(&b, r.Summary.String())
	fmt.Fprintln(&b)

	if len(r.Accepted) > 0 {
		fmt.Fprintf(&b, "Accepted %d snapshots:\n", len(r.Accepted))
		for _, t := range r.Accepted {
			fmt.Fprintf(&b, "  %s\n", t)
		}
		fmt.Fprintln(&b)
	}
	fmt.Fprint(&b, formatPending(r.Pending))
	if len(r.Pending) > 0 {
		fmt.Fprintln(&b, "Then accept with snap_accept or discard with snap_reject.")
	}
	return b.String()
}
