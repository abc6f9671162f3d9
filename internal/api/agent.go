package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kalambet/kbagent/internal/agent"
)

// decodeBody reads a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// agentError maps service errors onto status codes.
func agentError(w http.ResponseWriter, deps Deps, op string, err error) {
	switch {
	case errors.Is(err, agent.ErrInvalidRequest):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, agent.ErrConversationNotFound):
		httpError(w, http.StatusNotFound, "not_found", "conversation not found")
	case errors.Is(err, agent.ErrGeneration):
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	default:
		deps.Logger.Error("request failed", "op", op, "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "%s failed: %v", op, err)
	}
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req agent.ChatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := deps.Agent.ProcessChat(r.Context(), req)
		if err != nil {
			agentError(w, deps, "chat", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSummarize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req agent.SummaryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := deps.Agent.Summarize(r.Context(), req)
		if err != nil {
			agentError(w, deps, "summarize", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleQuiz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req agent.QuizRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := deps.Agent.CreateQuiz(r.Context(), req)
		if err != nil {
			agentError(w, deps, "quiz", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleKnowledgeBaseQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q agent.KnowledgeBaseQuery
		if !decodeBody(w, r, &q) {
			return
		}
		resp, err := deps.Agent.QueryKnowledgeBase(r.Context(), q)
		if err != nil {
			agentError(w, deps, "knowledge base query", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Agent.Health(r.Context()))
	}
}
