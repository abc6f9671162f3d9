// Package api is the HTTP facade over the agent service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/kbagent/internal/agent"
	"github.com/kalambet/kbagent/internal/bridge"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Agent is the service surface the facade exposes.
type Agent interface {
	ProcessChat(ctx context.Context, req agent.ChatRequest) (agent.ChatResponse, error)
	Summarize(ctx context.Context, req agent.SummaryRequest) (agent.SummaryResponse, error)
	CreateQuiz(ctx context.Context, req agent.QuizRequest) (agent.QuizResponse, error)
	QueryKnowledgeBase(ctx context.Context, q agent.KnowledgeBaseQuery) (agent.KnowledgeBaseResult, error)
	Conversation(ctx context.Context, id string) (agent.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	Conversations(ctx context.Context, limit, offset int) ([]agent.ConversationSummary, error)
	Health(ctx context.Context) agent.Health
}

// Prober reaches the tool bridge for the diagnostic endpoints.
type Prober interface {
	ListTools(ctx context.Context) ([]bridge.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (bridge.ToolOutput, error)
}

// Instrumentation records request metrics and serves them.
type Instrumentation interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Deps struct {
	Agent       Agent
	Prober      Prober          // optional; nil reports the bridge as not_found
	Metrics     Instrumentation // optional; nil disables /metrics
	Token       string          // optional bearer token for agent routes
	CORSOrigins []string
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewHandler returns the facade router. /, /health and /metrics are always
// open; every other route sits behind BearerAuth when a token is set.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CORSOrigins == nil {
		deps.CORSOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.CORSOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat", handleChat(deps))
		r.Post("/summarize", handleSummarize(deps))
		r.Post("/quiz", handleQuiz(deps))
		r.Post("/knowledge-base/query", handleKnowledgeBaseQuery(deps))

		r.Get("/conversations", handleListConversations(deps))
		r.Get("/conversations/{id}", handleGetConversation(deps))
		r.Delete("/conversations/{id}", handleDeleteConversation(deps))

		r.Get("/test-mcp-connection", handleTestConnection(deps))
		r.Post("/test-mcp-tool", handleTestTool(deps))
		r.Get("/mcp-status", handleStatus(deps))
	})

	return r
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AI Agent API is running"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
