package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/kbagent/internal/agent"
	"github.com/kalambet/kbagent/internal/bridge"
	"github.com/kalambet/kbagent/internal/engine"
	"github.com/kalambet/kbagent/internal/retrieval"
)

// --- mocks ---

type mockEngine struct {
	reply string
	err   error
}

func (m *mockEngine) Generate(_ context.Context, _ string, _ engine.GenerateOptions) (engine.Generation, error) {
	if m.err != nil {
		return engine.Generation{}, m.err
	}
	return engine.Generation{Text: m.reply}, nil
}

func (m *mockEngine) Name() string { return "mock" }

type mockRetriever struct {
	chunks []retrieval.ContextChunk
	err    error
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, _ int) ([]retrieval.ContextChunk, error) {
	return m.chunks, m.err
}

// --- helpers ---

func newTestHandler(t *testing.T, eng *mockEngine, ret *mockRetriever, mutate ...func(*Deps)) http.Handler {
	t.Helper()
	if eng == nil {
		eng = &mockEngine{reply: "answer"}
	}
	if ret == nil {
		ret = &mockRetriever{}
	}
	deps := Deps{Agent: agent.New(eng, ret, nil)}
	for _, m := range mutate {
		m(&deps)
	}
	return NewHandler(deps)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Message, body.Error.Type
}

// --- tests ---

func TestRoot(t *testing.T) {
	rr := do(t, newTestHandler(t, nil, nil), http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "AI Agent API is running") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestChat(t *testing.T) {
	h := newTestHandler(t, &mockEngine{reply: "Channels pass values."}, nil)

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"what is a channel?","agent_mode":"explainer"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp agent.ChatResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Response != "Channels pass values." {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.ConversationID == "" {
		t.Error("conversation_id is empty")
	}
	if resp.Metadata.ConversationLength != 2 {
		t.Errorf("conversation_length = %d, want 2", resp.Metadata.ConversationLength)
	}
}

func TestChat_Validation(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"message":`},
		{"empty message", `{"message":""}`},
		{"unknown mode", `{"message":"hi","agent_mode":"poet"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/chat", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if _, typ := decodeError(t, rr); typ != "invalid_request_error" {
				t.Errorf("type = %q", typ)
			}
		})
	}
}

func TestChat_GenerationFailure(t *testing.T) {
	h := newTestHandler(t, &mockEngine{err: errors.New("throttled")}, nil)

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	msg, typ := decodeError(t, rr)
	if typ != "api_error" || !strings.Contains(msg, "throttled") {
		t.Errorf("error = %q (%s)", msg, typ)
	}
}

func TestSummarize(t *testing.T) {
	h := newTestHandler(t, &mockEngine{reply: "tl;dr"}, nil)

	rr := do(t, h, http.MethodPost, "/summarize", `{"text":"a long text","summary_type":"detailed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp agent.SummaryResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Summary != "tl;dr" || resp.SummaryType != agent.SummaryDetailed {
		t.Errorf("response = %+v", resp)
	}
}

func TestQuiz_Validation(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rr := do(t, h, http.MethodPost, "/quiz", `{"topic":"Go","num_questions":21}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/quiz", `{"topic":"Go"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp agent.QuizResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.NumQuestions != 5 || resp.Difficulty != agent.DifficultyMedium {
		t.Errorf("defaults not applied: %+v", resp)
	}
}

func TestKnowledgeBaseQuery_Filters(t *testing.T) {
	ret := &mockRetriever{chunks: []retrieval.ContextChunk{
		{Content: "a", Score: 0.9},
		{Content: "b", Score: 0.5},
		{Content: "c", Score: 0.8},
	}}
	h := newTestHandler(t, nil, ret)

	rr := do(t, h, http.MethodPost, "/knowledge-base/query", `{"query":"bedrock","confidence_threshold":0.7}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp agent.KnowledgeBaseResult
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.TotalResults != 3 || resp.FilteredResults != 2 {
		t.Errorf("total = %d, filtered = %d", resp.TotalResults, resp.FilteredResults)
	}
	if len(resp.Results) != 2 || resp.Results[0].Score != 0.9 || resp.Results[1].Score != 0.8 {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestConversations_Lifecycle(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`)
	var chat agent.ChatResponse
	json.NewDecoder(rr.Body).Decode(&chat)

	rr = do(t, h, http.MethodGet, "/conversations", "")
	var list []agent.ConversationSummary
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 1 || list[0].ID != chat.ConversationID || list[0].MessageCount != 2 {
		t.Fatalf("list = %+v", list)
	}

	rr = do(t, h, http.MethodGet, "/conversations/"+chat.ConversationID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var conv agent.Conversation
	json.NewDecoder(rr.Body).Decode(&conv)
	if len(conv.Messages) != 2 || conv.Messages[0].Role != agent.RoleUser {
		t.Errorf("conversation = %+v", conv)
	}

	rr = do(t, h, http.MethodDelete, "/conversations/"+chat.ConversationID, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Conversation deleted successfully") {
		t.Fatalf("delete status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/conversations/"+chat.ConversationID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rr.Code)
	}
	if _, typ := decodeError(t, rr); typ != "not_found" {
		t.Errorf("type = %q", typ)
	}

	rr = do(t, h, http.MethodDelete, "/conversations/"+chat.ConversationID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
}

func TestConversations_EmptyList(t *testing.T) {
	rr := do(t, newTestHandler(t, nil, nil), http.MethodGet, "/conversations?limit=5", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &mockEngine{reply: "ok"}, nil)
	rr := do(t, h, http.MethodGet, "/health", "")
	var health agent.Health
	json.NewDecoder(rr.Body).Decode(&health)
	if health.Status != agent.StatusHealthy || health.BedrockConnection != "OK" {
		t.Errorf("health = %+v", health)
	}

	h = newTestHandler(t, &mockEngine{err: errors.New("no credentials")}, nil)
	rr = do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	json.NewDecoder(rr.Body).Decode(&health)
	if health.Status != agent.StatusUnhealthy || !strings.Contains(health.Error, "no credentials") {
		t.Errorf("health = %+v", health)
	}
}

func TestBearerAuth(t *testing.T) {
	h := newTestHandler(t, nil, nil, func(d *Deps) { d.Token = "s3cret" })

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if _, typ := decodeError(t, rr); typ != "authentication_error" {
		t.Errorf("type = %q", typ)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authorized status = %d", rr.Code)
	}

	if rr := do(t, h, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Errorf("Allow-Headers = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Allow-Origin %q for foreign origin", got)
	}
}

// --- diagnostics ---

type mockProber struct {
	tools   []bridge.Tool
	listErr error
	out     bridge.ToolOutput
	callErr error
	called  string
}

func (m *mockProber) ListTools(_ context.Context) ([]bridge.Tool, error) {
	return m.tools, m.listErr
}

func (m *mockProber) CallTool(_ context.Context, name string, _ map[string]any) (bridge.ToolOutput, error) {
	m.called = name
	return m.out, m.callErr
}

func allTools() []bridge.Tool {
	tools := make([]bridge.Tool, len(bridge.ToolNames))
	for i, n := range bridge.ToolNames {
		tools[i] = bridge.Tool{Name: n}
	}
	return tools
}

func TestProbeStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", bridge.ErrToolNotFound), ProbeNotFound},
		{fmt.Errorf("listing: %w", context.DeadlineExceeded), ProbeTimeout},
		{bridge.ErrMalformedReply, ProbeMalformedReply},
		{errors.New("boom"), ProbeUnknownError},
	}
	for _, tc := range tests {
		if got := probeStatus(tc.err); got != tc.want {
			t.Errorf("probeStatus(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestTestConnection(t *testing.T) {
	p := &mockProber{tools: allTools()}
	h := newTestHandler(t, nil, nil, func(d *Deps) { d.Prober = p })

	rr := do(t, h, http.MethodGet, "/test-mcp-connection", "")
	var report ConnectionReport
	json.NewDecoder(rr.Body).Decode(&report)
	if report.Status != "success" || report.ServerStatus != ProbeConnected {
		t.Fatalf("report = %+v", report)
	}
	if report.TotalTools != 7 || len(report.SampleTools) != 3 {
		t.Errorf("total = %d, sample = %d", report.TotalTools, len(report.SampleTools))
	}
}

func TestTestConnection_NoBridge(t *testing.T) {
	rr := do(t, newTestHandler(t, nil, nil), http.MethodGet, "/test-mcp-connection", "")
	var report ConnectionReport
	json.NewDecoder(rr.Body).Decode(&report)
	if report.Status != "error" || report.ServerStatus != ProbeNotFound {
		t.Errorf("report = %+v", report)
	}
}

func TestTestTool(t *testing.T) {
	p := &mockProber{out: bridge.ToolOutput{Text: "modes"}}
	h := newTestHandler(t, nil, nil, func(d *Deps) { d.Prober = p })

	rr := do(t, h, http.MethodPost, "/test-mcp-tool", `{"tool_name":"list_agent_modes","tool_args":{}}`)
	var report ToolReport
	json.NewDecoder(rr.Body).Decode(&report)
	if report.Status != "success" || report.Result == nil || report.Result.Text != "modes" {
		t.Errorf("report = %+v", report)
	}
	if p.called != "list_agent_modes" {
		t.Errorf("called = %q", p.called)
	}

	p.callErr = fmt.Errorf("%w: nope", bridge.ErrToolNotFound)
	rr = do(t, h, http.MethodPost, "/test-mcp-tool", `{"tool_name":"nope"}`)
	json.NewDecoder(rr.Body).Decode(&report)
	if report.Status != "error" || report.ToolStatus != ProbeNotFound {
		t.Errorf("report = %+v", report)
	}

	rr = do(t, h, http.MethodPost, "/test-mcp-tool", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing tool_name status = %d", rr.Code)
	}
}

func TestStatus(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("healthy", func(t *testing.T) {
		p := &mockProber{tools: allTools(), out: bridge.ToolOutput{Text: "modes"}}
		h := newTestHandler(t, nil, nil, func(d *Deps) { d.Prober = p; d.Now = func() time.Time { return now } })

		var report StatusReport
		json.NewDecoder(do(t, h, http.MethodGet, "/mcp-status", "").Body).Decode(&report)
		if report.OverallStatus != "healthy" || !report.IntegrationWorking {
			t.Errorf("report = %+v", report)
		}
		if p.called != sampleTool {
			t.Errorf("sample tool = %q", p.called)
		}
		if !report.Backend.Timestamp.Equal(now) {
			t.Errorf("timestamp = %v", report.Backend.Timestamp)
		}
		if report.Recommendations[0] != "✅ All systems working perfectly!" {
			t.Errorf("recommendations = %v", report.Recommendations)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		p := &mockProber{listErr: context.DeadlineExceeded}
		h := newTestHandler(t, nil, nil, func(d *Deps) { d.Prober = p })

		var report StatusReport
		json.NewDecoder(do(t, h, http.MethodGet, "/mcp-status", "").Body).Decode(&report)
		if report.OverallStatus != "issues_detected" || report.IntegrationWorking {
			t.Errorf("report = %+v", report)
		}
		if report.SampleToolTest != nil {
			t.Error("sample tool must not run when the connection fails")
		}
		if report.MCPServer.ServerStatus != ProbeTimeout {
			t.Errorf("server status = %q", report.MCPServer.ServerStatus)
		}
	})

	t.Run("tool failure", func(t *testing.T) {
		p := &mockProber{tools: allTools(), callErr: bridge.ErrMalformedReply}
		h := newTestHandler(t, nil, nil, func(d *Deps) { d.Prober = p })

		var report StatusReport
		json.NewDecoder(do(t, h, http.MethodGet, "/mcp-status", "").Body).Decode(&report)
		if report.OverallStatus != "healthy" || report.IntegrationWorking {
			t.Errorf("report = %+v", report)
		}
		if len(report.Recommendations) != 2 || report.Recommendations[0] != "MCP tools are not working properly" {
			t.Errorf("recommendations = %v", report.Recommendations)
		}
	})
}

// TestDiagnostics_InProcessBridge runs the real bridge against the facade
// through the in-process prober.
func TestDiagnostics_InProcessBridge(t *testing.T) {
	var facade http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		facade.ServeHTTP(w, r)
	}))
	defer srv.Close()

	mcpSrv := bridge.NewServer(bridge.Deps{Backend: bridge.NewClient(srv.URL, 5*time.Second)})
	facade = newTestHandler(t, &mockEngine{reply: "ok"}, nil, func(d *Deps) {
		d.Prober = bridge.NewProber(mcpSrv)
	})

	var conn ConnectionReport
	json.NewDecoder(do(t, facade, http.MethodGet, "/test-mcp-connection", "").Body).Decode(&conn)
	if conn.Status != "success" || conn.TotalTools != len(bridge.ToolNames) {
		t.Fatalf("connection = %+v", conn)
	}

	var tool ToolReport
	rr := do(t, facade, http.MethodPost, "/test-mcp-tool", `{"tool_name":"check_system_health"}`)
	json.NewDecoder(rr.Body).Decode(&tool)
	if tool.Status != "success" || tool.Result == nil || !strings.Contains(tool.Result.Text, "All systems operational") {
		t.Fatalf("tool = %+v", tool)
	}

	rr = do(t, facade, http.MethodPost, "/test-mcp-tool", `{"tool_name":"does_not_exist"}`)
	json.NewDecoder(rr.Body).Decode(&tool)
	if tool.ToolStatus != ProbeNotFound {
		t.Errorf("unknown tool status = %q, want not_found", tool.ToolStatus)
	}
}
