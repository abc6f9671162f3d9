// Package agent runs the agent modes: chat with per-conversation history,
// summarization, quiz generation and direct knowledge-base queries.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/kbagent/internal/composer"
	"github.com/kalambet/kbagent/internal/engine"
	"github.com/kalambet/kbagent/internal/retrieval"
)

const (
	chatMaxTokens  = 2000
	quizMaxTokens  = 3000
	contextChunks  = 3
	defaultTemp    = 0.7
	defaultTopP    = 0.9
	opChat         = "chat"
	opSummarize    = "summarize"
	opQuiz         = "quiz"
	opHealth       = "health"
	opKnowledge    = "knowledge_base"
	opChatRetrieve = "chat_retrieve"
)

// Observer receives timing for backend calls. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveGeneration(op string, d time.Duration, gen engine.Generation, err error)
	ObserveRetrieval(op string, d time.Duration, results int, err error)
}

// Service implements the agent operations over a generation backend, a
// retriever and a conversation store.
type Service struct {
	engine    engine.Engine
	retriever retrieval.Retriever
	store     Store
	composer  *composer.Composer
	locks     *keyLocks
	observer  Observer
	logger    *slog.Logger

	temperature float64
	topP        float64
	now         func() time.Time
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithSampling overrides the default temperature (0.7) and top-p (0.9).
func WithSampling(temperature, topP float64) Option {
	return func(s *Service) {
		s.temperature = temperature
		s.topP = topP
	}
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. A nil retriever disables knowledge-base context;
// a nil store uses a MemoryStore.
func New(eng engine.Engine, retriever retrieval.Retriever, store Store, opts ...Option) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Service{
		engine:      eng,
		retriever:   retriever,
		store:       store,
		composer:    composer.New(0),
		locks:       newKeyLocks(),
		logger:      slog.Default(),
		temperature: defaultTemp,
		topP:        defaultTopP,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessChat runs one conversational turn. Turns on the same conversation
// are serialized.
func (s *Service) ProcessChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := req.normalize(); err != nil {
		return ChatResponse{}, err
	}
	id := req.ConversationID
	if id == "" {
		id = s.newID()
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	history, err := s.store.Append(ctx, id, Message{Role: RoleUser, Content: req.Message, Timestamp: s.now()})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("recording user turn: %w", err)
	}

	chunks := s.retrieve(ctx, opChatRetrieve, req.Message, retrieval.DefaultTopK)

	turns := make([]composer.Turn, len(history))
	for i, m := range history {
		turns[i] = composer.Turn{Role: string(m.Role), Content: m.Content}
	}
	prompt := s.composer.Chat(composer.ChatInput{
		Mode:      req.AgentMode,
		Knowledge: retrieval.JoinTop(chunks, contextChunks),
		Extra:     req.Context,
		History:   turns,
		Message:   req.Message,
	})

	gen, err := s.generate(ctx, opChat, prompt, chatMaxTokens)
	if err != nil {
		return ChatResponse{}, err
	}

	history, err = s.store.Append(ctx, id, Message{Role: RoleAssistant, Content: gen.Text, Timestamp: s.now()})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("recording assistant turn: %w", err)
	}

	return ChatResponse{
		Response:       gen.Text,
		ConversationID: id,
		AgentMode:      req.AgentMode,
		Metadata: ChatMetadata{
			KBResultsCount:     len(chunks),
			ConversationLength: len(history),
		},
	}, nil
}

// Summarize condenses text in the requested style.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (SummaryResponse, error) {
	if err := req.normalize(); err != nil {
		return SummaryResponse{}, err
	}
	prompt := s.composer.Summary(req.Text, string(req.SummaryType), req.MaxLength)
	gen, err := s.generate(ctx, opSummarize, prompt, chatMaxTokens)
	if err != nil {
		return SummaryResponse{}, err
	}
	return SummaryResponse{Summary: gen.Text, SummaryType: req.SummaryType}, nil
}

// CreateQuiz generates a quiz on a topic.
func (s *Service) CreateQuiz(ctx context.Context, req QuizRequest) (QuizResponse, error) {
	if err := req.normalize(); err != nil {
		return QuizResponse{}, err
	}
	prompt := s.composer.Quiz(req.Topic, string(req.Difficulty), req.NumQuestions, string(req.QuestionType))
	gen, err := s.generate(ctx, opQuiz, prompt, quizMaxTokens)
	if err != nil {
		return QuizResponse{}, err
	}
	return QuizResponse{
		QuizContent:  gen.Text,
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		NumQuestions: req.NumQuestions,
		QuestionType: req.QuestionType,
	}, nil
}

// QueryKnowledgeBase retrieves passages and keeps those at or above the
// confidence threshold. Retrieval errors yield an empty result.
func (s *Service) QueryKnowledgeBase(ctx context.Context, q KnowledgeBaseQuery) (KnowledgeBaseResult, error) {
	if err := q.normalize(); err != nil {
		return KnowledgeBaseResult{}, err
	}
	chunks := s.retrieve(ctx, opKnowledge, q.Query, q.MaxResults)
	filtered := retrieval.FilterByScore(chunks, *q.ConfidenceThreshold)
	return KnowledgeBaseResult{
		Query:           q.Query,
		Results:         filtered,
		TotalResults:    len(chunks),
		FilteredResults: len(filtered),
	}, nil
}

// Conversation returns the full history of id.
func (s *Service) Conversation(ctx context.Context, id string) (Conversation, error) {
	msgs, err := s.store.Messages(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	return Conversation{ID: id, Messages: msgs}, nil
}

// DeleteConversation removes id and its history.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.store.Delete(ctx, id)
}

// Conversations lists stored conversations, most recent first.
func (s *Service) Conversations(ctx context.Context, limit, offset int) ([]ConversationSummary, error) {
	return s.store.List(ctx, limit, offset)
}

// Health probes the generation backend with a minimal request.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Backend: s.engine.Name(), Timestamp: s.now().UTC()}
	if kb, ok := s.retriever.(interface{ ID() string }); ok {
		h.KnowledgeBase = kb.ID()
	}

	start := time.Now()
	err := engine.Probe(ctx, s.engine)
	if s.observer != nil {
		s.observer.ObserveGeneration(opHealth, time.Since(start), engine.Generation{}, err)
	}
	if err != nil {
		s.logger.Warn("health probe failed", "backend", h.Backend, "error", err)
		h.Status = StatusUnhealthy
		h.Error = err.Error()
		return h
	}
	h.Status = StatusHealthy
	h.BedrockConnection = "OK"
	return h
}

func (s *Service) generate(ctx context.Context, op, prompt string, maxTokens int) (engine.Generation, error) {
	start := time.Now()
	gen, err := s.engine.Generate(ctx, prompt, engine.GenerateOptions{
		MaxTokens:   maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
	})
	d := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveGeneration(op, d, gen, err)
	}
	if err != nil {
		s.logger.Error("generation failed", "op", op, "backend", s.engine.Name(), "error", err)
		return engine.Generation{}, fmt.Errorf("%s: %w: %w", op, ErrGeneration, err)
	}
	s.logger.Debug("generation done", "op", op, "duration", d,
		"prompt_tokens", composer.EstimateTokens(prompt), "output_tokens", gen.OutputTokens)
	return gen, nil
}

// retrieve never fails: errors are logged and degrade to no context.
func (s *Service) retrieve(ctx context.Context, op, query string, topK int) []retrieval.ContextChunk {
	if s.retriever == nil {
		return nil
	}
	start := time.Now()
	chunks, err := s.retriever.Retrieve(ctx, query, topK)
	if s.observer != nil {
		s.observer.ObserveRetrieval(op, time.Since(start), len(chunks), err)
	}
	if err != nil {
		s.logger.Warn("knowledge base retrieval failed", "op", op, "error", err)
		return nil
	}
	return chunks
}
