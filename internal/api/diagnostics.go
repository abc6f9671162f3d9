package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kalambet/kbagent/internal/bridge"
)

// Bridge probe outcomes.
const (
	ProbeConnected      = "connected"
	ProbeNotFound       = "not_found"
	ProbeTimeout        = "timeout"
	ProbeMalformedReply = "malformed_reply"
	ProbeUnknownError   = "unknown_error"
)

const sampleTool = "list_agent_modes"

// ConnectionReport is the outcome of listing the bridge's tools.
type ConnectionReport struct {
	Status         string        `json:"status"`
	ServerStatus   string        `json:"mcp_server_status"`
	AvailableTools []string      `json:"available_tools,omitempty"`
	TotalTools     int           `json:"total_tools"`
	SampleTools    []bridge.Tool `json:"sample_tools,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// ToolReport is the outcome of calling one bridge tool.
type ToolReport struct {
	Status        string             `json:"status"`
	ToolName      string             `json:"tool_name"`
	ToolStatus    string             `json:"tool_status,omitempty"`
	Result        *bridge.ToolOutput `json:"result,omitempty"`
	ExecutionTime string             `json:"execution_time,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// BackendReport describes the facade itself.
type BackendReport struct {
	HTTPFacade string    `json:"http_facade"`
	Timestamp  time.Time `json:"timestamp"`
}

// StatusReport combines the connection and sample-tool probes.
type StatusReport struct {
	OverallStatus      string           `json:"overall_status"`
	Backend            BackendReport    `json:"backend"`
	MCPServer          ConnectionReport `json:"mcp_server"`
	SampleToolTest     *ToolReport      `json:"sample_tool_test"`
	IntegrationWorking bool             `json:"integration_working"`
	Recommendations    []string         `json:"recommendations"`
}

type toolTestRequest struct {
	ToolName string         `json:"tool_name"`
	ToolArgs map[string]any `json:"tool_args"`
}

func probeStatus(err error) string {
	switch {
	case errors.Is(err, bridge.ErrToolNotFound):
		return ProbeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ProbeTimeout
	case errors.Is(err, bridge.ErrMalformedReply):
		return ProbeMalformedReply
	default:
		return ProbeUnknownError
	}
}

func testConnection(ctx context.Context, deps Deps) ConnectionReport {
	if deps.Prober == nil {
		return ConnectionReport{Status: "error", ServerStatus: ProbeNotFound, Error: "tool bridge is not configured"}
	}

	tools, err := deps.Prober.ListTools(ctx)
	if err != nil {
		deps.Logger.Warn("bridge connection probe failed", "error", err)
		return ConnectionReport{Status: "error", ServerStatus: probeStatus(err), Error: err.Error()}
	}

	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	sample := tools
	if len(sample) > 3 {
		sample = sample[:3]
	}
	return ConnectionReport{
		Status:         "success",
		ServerStatus:   ProbeConnected,
		AvailableTools: names,
		TotalTools:     len(tools),
		SampleTools:    sample,
	}
}

func testTool(ctx context.Context, deps Deps, name string, args map[string]any) ToolReport {
	if deps.Prober == nil {
		return ToolReport{Status: "error", ToolName: name, ToolStatus: ProbeNotFound, Error: "tool bridge is not configured"}
	}

	start := time.Now()
	out, err := deps.Prober.CallTool(ctx, name, args)
	if err != nil {
		deps.Logger.Warn("bridge tool probe failed", "tool", name, "error", err)
		return ToolReport{Status: "error", ToolName: name, ToolStatus: probeStatus(err), Error: err.Error()}
	}
	return ToolReport{
		Status:        "success",
		ToolName:      name,
		Result:        &out,
		ExecutionTime: time.Since(start).Round(time.Millisecond).String(),
	}
}

// recommendations suggests next steps from the probe outcomes.
func recommendations(conn ConnectionReport, tool *ToolReport) []string {
	var recs []string

	if conn.Status != "success" {
		switch conn.ServerStatus {
		case ProbeNotFound:
			recs = append(recs,
				"Check the tool bridge is enabled for this server",
				"Ensure bridge.backend_url points at this API server",
			)
		case ProbeTimeout:
			recs = append(recs,
				"The tool bridge is responding slowly - check the server logs for errors",
				"Ensure the generation backend is reachable",
			)
		default:
			recs = append(recs,
				"Check the server logs for tool bridge errors",
				"Verify the configuration with `kbagent config show`",
			)
		}
	}

	if tool != nil && tool.Status != "success" {
		recs = append(recs,
			"MCP tools are not working properly",
			"Check the API server is reachable at bridge.backend_url",
		)
	}

	if len(recs) == 0 {
		recs = append(recs, "✅ All systems working perfectly!", "MCP integration is ready for use")
	}
	return recs
}

func handleTestConnection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, testConnection(r.Context(), deps))
	}
}

func handleTestTool(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toolTestRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ToolName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "tool_name is required")
			return
		}
		writeJSON(w, http.StatusOK, testTool(r.Context(), deps, req.ToolName, req.ToolArgs))
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn := testConnection(r.Context(), deps)

		var tool *ToolReport
		if conn.Status == "success" {
			t := testTool(r.Context(), deps, sampleTool, nil)
			tool = &t
		}

		overall := "issues_detected"
		if conn.Status == "success" {
			overall = "healthy"
		}

		writeJSON(w, http.StatusOK, StatusReport{
			OverallStatus:      overall,
			Backend:            BackendReport{HTTPFacade: "healthy", Timestamp: deps.Now().UTC()},
			MCPServer:          conn,
			SampleToolTest:     tool,
			IntegrationWorking: conn.Status == "success" && tool != nil && tool.Status == "success",
			Recommendations:    recommendations(conn, tool),
		})
	}
}
