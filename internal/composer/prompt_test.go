package composer

import (
	"strings"
	"testing"
)

func turns(pairs ...string) []Turn {
	var out []Turn
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Turn{Role: pairs[i], Content: pairs[i+1]})
	}
	return out
}

func TestChat_MinimalPrompt(t *testing.T) {
	c := New(0)
	got := c.Chat(ChatInput{
		Mode:    ModeExplainer,
		History: turns("user", "what is RAG?"),
		Message: "what is RAG?",
	})

	want := ModeExplainer.Instruction() + "\n\nUser query: what is RAG?\n\nRespond as a explainer:"
	if got != want {
		t.Errorf("prompt =\n%q\nwant\n%q", got, want)
	}
	if strings.Contains(got, "Conversation history") {
		t.Error("history block present without prior turns")
	}
}

func TestChat_AllBlocksInOrder(t *testing.T) {
	c := New(0)
	got := c.Chat(ChatInput{
		Mode:      ModeRouter,
		Knowledge: "kb line 1\nkb line 2",
		Extra:     "I am a student",
		History:   turns("user", "hi", "assistant", "hello", "user", "route this"),
		Message:   "route this",
	})

	order := []string{
		"You are an intelligent router.",
		"Relevant knowledge base context:\nkb line 1\nkb line 2",
		"Additional context:\nI am a student",
		"Conversation history:\nuser: hi\nassistant: hello",
		"User query: route this",
		"Respond as a router:",
	}
	pos := -1
	for _, s := range order {
		i := strings.Index(got, s)
		if i < 0 {
			t.Fatalf("missing %q in\n%s", s, got)
		}
		if i <= pos {
			t.Errorf("%q out of order", s)
		}
		pos = i
	}
	if strings.Contains(got, "user: route this") {
		t.Error("current turn rendered in history")
	}
}

func TestChat_HistoryWindow(t *testing.T) {
	c := New(0)
	history := turns(
		"user", "m1", "assistant", "r1",
		"user", "m2", "assistant", "r2",
		"user", "m3", "assistant", "r3",
		"user", "m4",
	)
	got := c.Chat(ChatInput{Mode: ModeExplainer, History: history, Message: "m4"})

	want := "Conversation history:\nuser: m2\nassistant: r2\nuser: m3\nassistant: r3\n\n"
	if !strings.Contains(got, want) {
		t.Errorf("history block should hold exactly the last 4 prior turns, got\n%s", got)
	}
	if strings.Contains(got, "r1") {
		t.Error("turn outside the window rendered")
	}
}

func TestSummary(t *testing.T) {
	c := New(0)
	got := c.Summary("long text", "bullet_points", 50)
	if !strings.HasPrefix(got, ModeSummarizer.Instruction()+"\n\nText to summarize:\nlong text\n\n") {
		t.Errorf("unexpected prefix:\n%s", got)
	}
	if !strings.HasSuffix(got, "Summary type: bullet_points\nMaximum length: approximately 50 words\nPlease provide the summary:") {
		t.Errorf("unexpected suffix:\n%s", got)
	}

	got = c.Summary("t", "brief", 0)
	if strings.Contains(got, "Maximum length") {
		t.Error("length line present without max length")
	}
}

func TestQuiz(t *testing.T) {
	got := New(0).Quiz("photosynthesis", "hard", 3, "true_false")
	for _, s := range []string{
		"Topic: photosynthesis\n",
		"Difficulty: hard\n",
		"Number of questions: 3\n",
		"Question type: true_false\n\n",
		"correct answers with explanations.",
	} {
		if !strings.Contains(got, s) {
			t.Errorf("quiz prompt missing %q", s)
		}
	}
}

func TestModes(t *testing.T) {
	for _, m := range Modes {
		if !m.Valid() || m.Instruction() == "" || m.Description() == "" {
			t.Errorf("mode %s incomplete", m)
		}
	}
	if Mode("poet").Valid() {
		t.Error("unknown mode reported valid")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Errorf("EstimateTokens = %d, want 2", got)
	}
}
