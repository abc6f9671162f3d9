package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/kbagent/internal/composer"
	"github.com/kalambet/kbagent/internal/retrieval"
)

var (
	// ErrInvalidRequest wraps every request validation failure.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConversationNotFound is returned for unknown conversation ids.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrGeneration wraps failures of the text-generation backend.
	ErrGeneration = errors.New("generation failed")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Mode is the agent persona a chat turn runs under.
type Mode = composer.Mode

const (
	ModeSummarizer = composer.ModeSummarizer
	ModeRouter     = composer.ModeRouter
	ModeExplainer  = composer.ModeExplainer
	ModeQuizzer    = composer.ModeQuizzer
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the full history of one conversation id.
type Conversation struct {
	ID       string    `json:"conversation_id"`
	Messages []Message `json:"messages"`
}

// ConversationSummary describes a stored conversation without its messages.
type ConversationSummary struct {
	ID           string    `json:"conversation_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	AgentMode      Mode   `json:"agent_mode,omitempty"`
	Context        string `json:"context,omitempty"`
}

func (r *ChatRequest) normalize() error {
	if r.Message == "" {
		return invalid("message is required")
	}
	if r.AgentMode == "" {
		r.AgentMode = ModeExplainer
	}
	if !r.AgentMode.Valid() {
		return invalid("unknown agent_mode %q", r.AgentMode)
	}
	return nil
}

type ChatMetadata struct {
	KBResultsCount     int `json:"kb_results_count"`
	ConversationLength int `json:"conversation_length"`
}

type ChatResponse struct {
	Response       string       `json:"response"`
	ConversationID string       `json:"conversation_id"`
	AgentMode      Mode         `json:"agent_mode"`
	Metadata       ChatMetadata `json:"metadata"`
}

// SummaryType controls summary style.
type SummaryType string

const (
	SummaryBrief        SummaryType = "brief"
	SummaryDetailed     SummaryType = "detailed"
	SummaryBulletPoints SummaryType = "bullet_points"
)

func (t SummaryType) Valid() bool {
	return t == SummaryBrief || t == SummaryDetailed || t == SummaryBulletPoints
}

type SummaryRequest struct {
	Text        string      `json:"text"`
	SummaryType SummaryType `json:"summary_type,omitempty"`
	MaxLength   int         `json:"max_length,omitempty"`
}

func (r *SummaryRequest) normalize() error {
	if r.Text == "" {
		return invalid("text is required")
	}
	if r.SummaryType == "" {
		r.SummaryType = SummaryBrief
	}
	if !r.SummaryType.Valid() {
		return invalid("unknown summary_type %q", r.SummaryType)
	}
	if r.MaxLength < 0 {
		return invalid("max_length must be positive")
	}
	return nil
}

type SummaryResponse struct {
	Summary     string      `json:"summary"`
	SummaryType SummaryType `json:"summary_type"`
}

// Difficulty is the quiz difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// QuestionType is the quiz question format.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

func (q QuestionType) Valid() bool {
	return q == QuestionMultipleChoice || q == QuestionTrueFalse || q == QuestionShortAnswer
}

const (
	defaultNumQuestions = 5
	maxNumQuestions     = 20
	defaultMaxResults   = 5
	maxMaxResults       = 20
	defaultThreshold    = 0.7
)

type QuizRequest struct {
	Topic        string       `json:"topic"`
	Difficulty   Difficulty   `json:"difficulty,omitempty"`
	NumQuestions int          `json:"num_questions,omitempty"`
	QuestionType QuestionType `json:"question_type,omitempty"`
}

func (r *QuizRequest) normalize() error {
	if r.Topic == "" {
		return invalid("topic is required")
	}
	if r.Difficulty == "" {
		r.Difficulty = DifficultyMedium
	}
	if !r.Difficulty.Valid() {
		return invalid("unknown difficulty %q", r.Difficulty)
	}
	if r.NumQuestions == 0 {
		r.NumQuestions = defaultNumQuestions
	}
	if r.NumQuestions < 1 || r.NumQuestions > maxNumQuestions {
		return invalid("num_questions must be between 1 and %d", maxNumQuestions)
	}
	if r.QuestionType == "" {
		r.QuestionType = QuestionMultipleChoice
	}
	if !r.QuestionType.Valid() {
		return invalid("unknown question_type %q", r.QuestionType)
	}
	return nil
}

type QuizResponse struct {
	QuizContent  string       `json:"quiz_content"`
	Topic        string       `json:"topic"`
	Difficulty   Difficulty   `json:"difficulty"`
	NumQuestions int          `json:"num_questions"`
	QuestionType QuestionType `json:"question_type"`
}

// KnowledgeBaseQuery asks the index directly. A nil ConfidenceThreshold
// means 0.7.
type KnowledgeBaseQuery struct {
	Query               string   `json:"query"`
	MaxResults          int      `json:"max_results,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

func (q *KnowledgeBaseQuery) normalize() error {
	if q.Query == "" {
		return invalid("query is required")
	}
	if q.MaxResults == 0 {
		q.MaxResults = defaultMaxResults
	}
	if q.MaxResults < 1 || q.MaxResults > maxMaxResults {
		return invalid("max_results must be between 1 and %d", maxMaxResults)
	}
	if q.ConfidenceThreshold == nil {
		t := defaultThreshold
		q.ConfidenceThreshold = &t
	}
	if t := *q.ConfidenceThreshold; t < 0 || t > 1 {
		return invalid("confidence_threshold must be between 0 and 1")
	}
	return nil
}

type KnowledgeBaseResult struct {
	Query           string                   `json:"query"`
	Results         []retrieval.ContextChunk `json:"results"`
	TotalResults    int                      `json:"total_results"`
	FilteredResults int                      `json:"filtered_results"`
}

// Health is the result of a generation-backend probe.
type Health struct {
	Status            string    `json:"status"`
	BedrockConnection string    `json:"bedrock_connection,omitempty"`
	Backend           string    `json:"backend,omitempty"`
	KnowledgeBase     string    `json:"knowledge_base,omitempty"`
	Error             string    `json:"error,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)
