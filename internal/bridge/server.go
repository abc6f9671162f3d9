// Package bridge exposes the agent operations as MCP tools. Each tool is a
// thin HTTP call to the facade rendered as Markdown text.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/kbagent/internal/agent"
)

const (
	ServerName    = "AI Agent Assistant"
	ServerVersion = "1.0.0"

	ResourceConversations = "ai-agent://conversations"
	ResourceKnowledgeBase = "ai-agent://knowledge-base"
	ResourceHealth        = "ai-agent://health"
)

// ToolNames lists the registered tools in registration order.
var ToolNames = []string{
	"chat_with_agent",
	"summarize_text",
	"create_quiz",
	"query_knowledge_base",
	"get_conversation",
	"list_agent_modes",
	"check_system_health",
}

// Backend is the facade surface the tools call.
type Backend interface {
	Chat(ctx context.Context, req agent.ChatRequest) (agent.ChatResponse, error)
	Summarize(ctx context.Context, req agent.SummaryRequest) (agent.SummaryResponse, error)
	Quiz(ctx context.Context, req agent.QuizRequest) (agent.QuizResponse, error)
	QueryKnowledgeBase(ctx context.Context, q agent.KnowledgeBaseQuery) (agent.KnowledgeBaseResult, error)
	Conversation(ctx context.Context, id string) (agent.Conversation, error)
	Health(ctx context.Context) (agent.Health, error)
	BaseURL() string
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Backend Backend
	Logger  *slog.Logger
}

// NewServer creates the MCP server with every tool and resource registered.
func NewServer(deps Deps) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Interface to the AI agent: chat in four modes, summarize, build quizzes and search the knowledge base."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat_with_agent",
			mcp.WithDescription("Send a message to the AI agent with the specified mode."),
			mcp.WithString("message", mcp.Description("Message to send to the AI agent"), mcp.Required()),
			mcp.WithString("agent_mode",
				mcp.Description("AI agent mode (summarizer, router, explainer, quizzer)"),
				mcp.Enum("summarizer", "router", "explainer", "quizzer"),
				mcp.DefaultString(string(agent.ModeExplainer)),
			),
			mcp.WithString("conversation_id", mcp.Description("Conversation ID to continue an existing conversation")),
			mcp.WithString("context", mcp.Description("Additional context for the query")),
		),
		toolChat(deps),
	)

	s.AddTool(
		mcp.NewTool("summarize_text",
			mcp.WithDescription("Generate a summary of the provided text using the summarizer agent."),
			mcp.WithString("text", mcp.Description("Text to summarize"), mcp.Required()),
			mcp.WithString("summary_type",
				mcp.Description("Type of summary (brief, detailed, bullet_points)"),
				mcp.Enum("brief", "detailed", "bullet_points"),
				mcp.DefaultString(string(agent.SummaryBrief)),
			),
			mcp.WithNumber("max_length", mcp.Description("Maximum length of the summary in words")),
		),
		toolSummarize(deps),
	)

	s.AddTool(
		mcp.NewTool("create_quiz",
			mcp.WithDescription("Generate a quiz on a topic using the quizzer agent."),
			mcp.WithString("topic", mcp.Description("Topic for the quiz"), mcp.Required()),
			mcp.WithString("difficulty",
				mcp.Description("Difficulty level (easy, medium, hard)"),
				mcp.Enum("easy", "medium", "hard"),
				mcp.DefaultString(string(agent.DifficultyMedium)),
			),
			mcp.WithNumber("num_questions", mcp.Description("Number of questions to generate (1-20)"), mcp.DefaultNumber(5)),
			mcp.WithString("question_type",
				mcp.Description("Type of questions (multiple_choice, true_false, short_answer)"),
				mcp.Enum("multiple_choice", "true_false", "short_answer"),
				mcp.DefaultString(string(agent.QuestionMultipleChoice)),
			),
		),
		toolQuiz(deps),
	)

	s.AddTool(
		mcp.NewTool("query_knowledge_base",
			mcp.WithDescription("Query the agent's knowledge base for relevant information."),
			mcp.WithString("query", mcp.Description("Search query for the knowledge base"), mcp.Required()),
			mcp.WithNumber("max_results", mcp.Description("Maximum number of results to return (1-20)"), mcp.DefaultNumber(5)),
			mcp.WithNumber("confidence_threshold", mcp.Description("Minimum confidence threshold (0.0-1.0)"), mcp.DefaultNumber(0.7)),
		),
		toolQueryKnowledgeBase(deps),
	)

	s.AddTool(
		mcp.NewTool("get_conversation",
			mcp.WithDescription("Retrieve conversation history by ID."),
			mcp.WithString("conversation_id", mcp.Description("ID of the conversation to retrieve"), mcp.Required()),
		),
		toolGetConversation(deps),
	)

	s.AddTool(
		mcp.NewTool("list_agent_modes",
			mcp.WithDescription("List available AI agent modes and their descriptions."),
		),
		toolListModes(),
	)

	s.AddTool(
		mcp.NewTool("check_system_health",
			mcp.WithDescription("Check the health status of the AI agent system."),
		),
		toolHealth(deps),
	)

	s.AddResource(
		mcp.NewResource(ResourceConversations, "Conversations",
			mcp.WithResourceDescription("Conversation management endpoints"),
			mcp.WithMIMEType("application/json"),
		),
		staticResource(conversationsCatalog),
	)

	s.AddResource(
		mcp.NewResource(ResourceKnowledgeBase, "Knowledge Base",
			mcp.WithResourceDescription("What the knowledge base contains and how to query it"),
			mcp.WithMIMEType("application/json"),
		),
		staticResource(knowledgeBaseCatalog),
	)

	s.AddResource(
		mcp.NewResource(ResourceHealth, "System Health",
			mcp.WithResourceDescription("Live health snapshot of the agent backend"),
			mcp.WithMIMEType("application/json"),
		),
		resourceHealth(deps),
	)

	return s
}

func toolChat(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("❌ message is required"), nil
		}
		resp, err := deps.Backend.Chat(ctx, agent.ChatRequest{
			Message:        message,
			AgentMode:      agent.Mode(req.GetString("agent_mode", string(agent.ModeExplainer))),
			ConversationID: req.GetString("conversation_id", ""),
			Context:        req.GetString("context", ""),
		})
		if err != nil {
			deps.Logger.Warn("chat_with_agent failed", "error", err)
			return mcpError(fmt.Sprintf("❌ Error communicating with AI agent: %v", err)), nil
		}
		return mcpText(formatChat(resp)), nil
	}
}

func toolSummarize(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("❌ text is required"), nil
		}
		resp, err := deps.Backend.Summarize(ctx, agent.SummaryRequest{
			Text:        text,
			SummaryType: agent.SummaryType(req.GetString("summary_type", string(agent.SummaryBrief))),
			MaxLength:   req.GetInt("max_length", 0),
		})
		if err != nil {
			deps.Logger.Warn("summarize_text failed", "error", err)
			return mcpError(fmt.Sprintf("❌ Error generating summary: %v", err)), nil
		}
		return mcpText(formatSummary(resp)), nil
	}
}

func toolQuiz(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("❌ topic is required"), nil
		}
		resp, err := deps.Backend.Quiz(ctx, agent.QuizRequest{
			Topic:        topic,
			Difficulty:   agent.Difficulty(req.GetString("difficulty", string(agent.DifficultyMedium))),
			NumQuestions: req.GetInt("num_questions", 5),
			QuestionType: agent.QuestionType(req.GetString("question_type", string(agent.QuestionMultipleChoice))),
		})
		if err != nil {
			deps.Logger.Warn("create_quiz failed", "error", err)
			return mcpError(fmt.Sprintf("❌ Error creating quiz: %v", err)), nil
		}
		return mcpText(formatQuiz(resp)), nil
	}
}

func toolQueryKnowledgeBase(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("❌ query is required"), nil
		}
		threshold := req.GetFloat("confidence_threshold", 0.7)
		resp, err := deps.Backend.QueryKnowledgeBase(ctx, agent.KnowledgeBaseQuery{
			Query:               query,
			MaxResults:          req.GetInt("max_results", 5),
			ConfidenceThreshold: &threshold,
		})
		if err != nil {
			deps.Logger.Warn("query_knowledge_base failed", "error", err)
			return mcpError(fmt.Sprintf("❌ Error querying knowledge base: %v", err)), nil
		}
		return mcpText(formatKnowledge(resp)), nil
	}
}

func toolGetConversation(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("conversation_id")
		if err != nil {
			return mcpError("❌ conversation_id is required"), nil
		}
		conv, err := deps.Backend.Conversation(ctx, id)
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return mcpError(fmt.Sprintf("❌ Conversation not found: %s", id)), nil
		}
		if err != nil {
			deps.Logger.Warn("get_conversation failed", "conversation_id", id, "error", err)
			return mcpError(fmt.Sprintf("❌ Error retrieving conversation: %v", err)), nil
		}
		return mcpText(formatConversation(conv)), nil
	}
}

func toolListModes() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpText(formatModes()), nil
	}
}

func toolHealth(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h, err := deps.Backend.Health(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("❌ Cannot connect to AI Agent backend: %v\n\nMake sure the API server is running on %s",
				err, deps.Backend.BaseURL())), nil
		}
		return mcpText(formatHealth(h)), nil
	}
}

var conversationsCatalog = map[string]any{
	"description": "Conversation management endpoints",
	"available_endpoints": []string{
		"GET /conversations - List conversations",
		"GET /conversations/{id} - Retrieve specific conversation",
		"DELETE /conversations/{id} - Delete conversation",
	},
	"tools": []string{"get_conversation - Retrieve conversation by ID"},
}

var knowledgeBaseCatalog = map[string]any{
	"description": "AI Agent Knowledge Base",
	"content":     "Contains information about AI, machine learning, and AWS Bedrock",
	"tools":       []string{"query_knowledge_base - Search the knowledge base"},
	"supported_queries": []string{
		"Technical questions about AI/ML",
		"AWS Bedrock information",
		"Machine learning concepts",
	},
}

func staticResource(v any) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal resource: %w", err)
		}
		return jsonContents(req.Params.URI, b), nil
	}
}

func resourceHealth(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var v any
		h, err := deps.Backend.Health(ctx)
		if err != nil {
			v = map[string]string{"error": fmt.Sprintf("Failed to fetch health status: %v", err)}
		} else {
			v = h
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health: %w", err)
		}
		return jsonContents(req.Params.URI, b), nil
	}
}

func jsonContents(uri string, b []byte) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// ServeStdio runs the server over stdin/stdout until ctx ends.
func ServeStdio(ctx context.Context, s *server.MCPServer, logger *slog.Logger) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
