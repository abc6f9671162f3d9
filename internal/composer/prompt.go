package composer

import (
	"fmt"
	"strings"
)

const defaultHistoryWindow = 5

// Turn is one message of conversation history as the prompt renders it.
type Turn struct {
	Role    string
	Content string
}

// ChatInput is everything a chat prompt is assembled from. History holds
// the whole conversation including the current user turn as its last
// element.
type ChatInput struct {
	Mode      Mode
	Knowledge string
	Extra     string
	History   []Turn
	Message   string
}

// Composer assembles single-string prompts for the text-generation backend.
type Composer struct {
	// HistoryWindow is how many trailing turns, current one included, are
	// considered for the history block.
	HistoryWindow int
}

// New creates a Composer. If historyWindow <= 0, the default (5) is used.
func New(historyWindow int) *Composer {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &Composer{HistoryWindow: historyWindow}
}

// Chat builds the prompt for a conversational turn. Blocks are separated by
// a blank line; empty knowledge, extra context and history are omitted.
func (c *Composer) Chat(in ChatInput) string {
	parts := []string{in.Mode.Instruction()}

	if in.Knowledge != "" {
		parts = append(parts, "Relevant knowledge base context:\n"+in.Knowledge)
	}
	if in.Extra != "" {
		parts = append(parts, "Additional context:\n"+in.Extra)
	}
	if h := c.history(in.History); h != "" {
		parts = append(parts, "Conversation history:\n"+h)
	}

	parts = append(parts,
		"User query: "+in.Message,
		fmt.Sprintf("Respond as a %s:", in.Mode),
	)
	return strings.Join(parts, "\n\n")
}

// history renders the window minus its last (current) turn.
func (c *Composer) history(turns []Turn) string {
	window := c.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	if len(turns) <= 1 {
		return ""
	}

	lines := make([]string, 0, len(turns)-1)
	for _, t := range turns[:len(turns)-1] {
		lines = append(lines, t.Role+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// Summary builds the summarizer prompt. maxWords <= 0 omits the length line.
func (c *Composer) Summary(text, summaryType string, maxWords int) string {
	var sb strings.Builder
	sb.WriteString(ModeSummarizer.Instruction())
	sb.WriteString("\n\n")
	sb.WriteString("Text to summarize:\n" + text + "\n\n")
	sb.WriteString("Summary type: " + summaryType + "\n")
	if maxWords > 0 {
		fmt.Fprintf(&sb, "Maximum length: approximately %d words\n", maxWords)
	}
	sb.WriteString("Please provide the summary:")
	return sb.String()
}

// Quiz builds the quizzer prompt.
func (c *Composer) Quiz(topic, difficulty string, numQuestions int, questionType string) string {
	var sb strings.Builder
	sb.WriteString(ModeQuizzer.Instruction())
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Topic: %s\n", topic)
	fmt.Fprintf(&sb, "Difficulty: %s\n", difficulty)
	fmt.Fprintf(&sb, "Number of questions: %d\n", numQuestions)
	fmt.Fprintf(&sb, "Question type: %s\n\n", questionType)
	sb.WriteString("Please create the quiz in a structured format with questions, options (if applicable), and correct answers with explanations.")
	return sb.String()
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
