package bridge

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kalambet/kbagent/internal/agent"
)

const maxResultContent = 500

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func formatChat(resp agent.ChatResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Agent Mode:** %s\n\n", titleCase(string(resp.AgentMode)))
	fmt.Fprintf(&b, "**Response:**\n%s\n\n", resp.Response)
	fmt.Fprintf(&b, "**Conversation ID:** %s\n", resp.ConversationID)
	fmt.Fprintf(&b, "**Knowledge Base Results Used:** %d\n", resp.Metadata.KBResultsCount)
	return b.String()
}

func formatSummary(resp agent.SummaryResponse) string {
	return fmt.Sprintf("**Summary Type:** %s\n\n**Summary:**\n%s", titleCase(string(resp.SummaryType)), resp.Summary)
}

func formatQuiz(resp agent.QuizResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Quiz Topic:** %s\n", resp.Topic)
	fmt.Fprintf(&b, "**Difficulty:** %s\n", titleCase(string(resp.Difficulty)))
	fmt.Fprintf(&b, "**Question Type:** %s\n", titleCase(strings.ReplaceAll(string(resp.QuestionType), "_", " ")))
	fmt.Fprintf(&b, "**Number of Questions:** %d\n\n", resp.NumQuestions)
	b.WriteString("**Quiz Content:**\n")
	b.WriteString(resp.QuizContent)
	return b.String()
}

func formatKnowledge(resp agent.KnowledgeBaseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Knowledge Base Query:** '%s'\n", resp.Query)
	fmt.Fprintf(&b, "**Results Found:** %d (of %d total)\n\n", resp.FilteredResults, resp.TotalResults)
	if len(resp.Results) == 0 {
		b.WriteString("No results found matching your query and confidence threshold.")
		return b.String()
	}
	for i, item := range resp.Results {
		fmt.Fprintf(&b, "**Result %d** (Score: %.3f):\n", i+1, item.Score)
		fmt.Fprintf(&b, "%s\n\n", truncate(item.Content, maxResultContent))
	}
	return b.String()
}

func formatConversation(conv agent.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Conversation ID:** %s\n", conv.ID)
	fmt.Fprintf(&b, "**Total Messages:** %d\n\n", len(conv.Messages))
	for i, m := range conv.Messages {
		ts := "Unknown time"
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.Format("2006-01-02T15:04:05.000000")
		}
		fmt.Fprintf(&b, "**Message %d** [%s]\n", i+1, ts)
		fmt.Fprintf(&b, "**%s:** %s\n\n", titleCase(string(m.Role)), m.Content)
	}
	return b.String()
}

var modeDetails = []struct {
	mode agent.Mode
	desc string
}{
	{agent.ModeSummarizer, "Creates concise summaries of text content. Supports brief, detailed, and bullet-point formats."},
	{agent.ModeRouter, "Analyzes queries and determines the best response strategy. Routes requests appropriately."},
	{agent.ModeExplainer, "Provides detailed explanations of complex topics. Breaks down concepts into digestible parts."},
	{agent.ModeQuizzer, "Generates educational quizzes and questions on specified topics. Supports multiple question types."},
}

func formatModes() string {
	var b strings.Builder
	b.WriteString("**Available AI Agent Modes:**\n\n")
	for _, m := range modeDetails {
		fmt.Fprintf(&b, "🤖 **%s:**\n   %s\n\n", titleCase(string(m.mode)), m.desc)
	}
	b.WriteString("💡 **Usage:** Use the `chat_with_agent` tool with the `agent_mode` parameter to specify which mode to use.")
	return b.String()
}

func formatHealth(h agent.Health) string {
	var b strings.Builder
	b.WriteString("**System Health Check:**\n\n")
	fmt.Fprintf(&b, "**Status:** %s\n", orUnknown(h.Status))
	fmt.Fprintf(&b, "**Bedrock Connection:** %s\n", orUnknown(h.BedrockConnection))
	if h.Backend != "" {
		fmt.Fprintf(&b, "**Backend:** %s\n", h.Backend)
	}
	ts := "Unknown"
	if !h.Timestamp.IsZero() {
		ts = h.Timestamp.Format("2006-01-02T15:04:05Z07:00")
	}
	fmt.Fprintf(&b, "**Timestamp:** %s\n", ts)
	if h.Status == agent.StatusHealthy {
		b.WriteString("\n✅ All systems operational!")
	} else {
		fmt.Fprintf(&b, "\n⚠️ System issues detected: %s", orDefault(h.Error, "Unknown error"))
	}
	return b.String()
}

func orUnknown(s string) string { return orDefault(s, "Unknown") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
