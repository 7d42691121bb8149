package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"rag-chat/internal/domain"
	"rag-chat/internal/metrics"
	"rag-chat/internal/repository"
)

// DefaultSessionID es la sesión usada cuando el cliente no indica ninguna.
const DefaultSessionID = "default"

var (
	ErrChatServiceNotConfigured = errors.New("chat service not configured")
	ErrMessageInvalidInput      = errors.New("message invalid input")
	ErrMessageEmpty             = fmt.Errorf("%w: message is empty", ErrMessageInvalidInput)
	ErrMessageTooLong           = fmt.Errorf("%w: message too long", ErrMessageInvalidInput)
	ErrSessionNotFound          = errors.New("session not found")
)

// TurnOptions controla cuánto historial y cuánto contexto se inyecta en el prompt.
type TurnOptions struct {
	HistoryWindow int
	ContextLimit  int
}

func DefaultTurnOptions() TurnOptions {
	return TurnOptions{HistoryWindow: 5, ContextLimit: 3}
}

// Turn es el resultado de un turno: mensaje del usuario, respuesta y diagnóstico de degradación.
type Turn struct {
	SessionID         string            `json:"session_id"`
	UserMessage       domain.Message    `json:"user_message"`
	AssistantMessage  domain.Message    `json:"assistant_message"`
	HistoryMessages   int               `json:"history_messages"`
	ContextChunks     int               `json:"context_chunks"`
	ContextFallback   bool              `json:"context_fallback,omitempty"`
	RetrievalFailure  RetrievalFailure  `json:"retrieval_failure,omitempty"`
	CompletionFailure CompletionFailure `json:"completion_failure,omitempty"`
}

// ChatService orquesta recuperación, historial y generación, y persiste ambos mensajes del turno.
type ChatService struct {
	sessions         repository.SessionStore
	retriever        ContextRetriever
	generator        ResponseGenerator
	prompts          ChatPromptBuilder
	maxMessageLength int
	logger           *zap.Logger
}

func NewChatService(
	sessions repository.SessionStore,
	retriever ContextRetriever,
	generator ResponseGenerator,
	maxMessageLength int,
	logger *zap.Logger,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		sessions:         sessions,
		retriever:        retriever,
		generator:        generator,
		prompts:          ChatPromptBuilder{},
		maxMessageLength: maxMessageLength,
		logger:           logger,
	}
}

// ValidateMessage normaliza el mensaje y verifica su largo, sin I/O.
func (s *ChatService) ValidateMessage(userMessage string) (string, error) {
	msg := strings.TrimSpace(userMessage)
	if msg == "" {
		return "", ErrMessageEmpty
	}
	if s.maxMessageLength > 0 && utf8.RuneCountInString(msg) > s.maxMessageLength {
		return "", ErrMessageTooLong
	}
	return msg, nil
}

// HandleTurn ejecuta un turno completo. Solo devuelve error por validación o falta de configuración;
// las fallas de recuperación y generación quedan etiquetadas en el Turn.
func (s *ChatService) HandleTurn(ctx context.Context, sessionID, userMessage string, opts TurnOptions) (Turn, error) {
	if s == nil || s.sessions == nil || s.generator == nil {
		return Turn{}, ErrChatServiceNotConfigured
	}
	msg, err := s.ValidateMessage(userMessage)
	if err != nil {
		return Turn{}, err
	}
	sessionID = normalizeSessionID(sessionID)
	if opts.HistoryWindow < 0 {
		opts.HistoryWindow = 0
	}
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = defaultContextLimit
	}

	start := time.Now()
	defer func() { metrics.TurnDuration.Observe(time.Since(start).Seconds()) }()

	// El historial se toma antes de agregar el mensaje del turno actual.
	history := s.sessions.RecentHistory(sessionID, opts.HistoryWindow)

	retrieval := RetrievalResult{Chunks: []domain.Chunk{}, Failure: RetrievalStoreUnavailable}
	if s.retriever != nil {
		retrieval = s.retriever.Search(ctx, msg, opts.ContextLimit)
	}

	prompt := s.prompts.BuildUserPrompt(history, msg, retrieval.ContextBlock())

	userMsg := s.sessions.AppendUserMessage(sessionID, msg)

	completion := s.generator.Complete(ctx, prompt, SystemPrompt)

	assistantMsg := s.sessions.AppendAssistantMessage(sessionID, completion.Text)

	s.logger.Info("chat turn handled",
		zap.String("session_id", sessionID),
		zap.Int("history", len(history)),
		zap.Int("context_chunks", len(retrieval.Chunks)),
		zap.String("retrieval_failure", string(retrieval.Failure)),
		zap.String("completion_failure", string(completion.Failure)),
	)

	return Turn{
		SessionID:         sessionID,
		UserMessage:       userMsg,
		AssistantMessage:  assistantMsg,
		HistoryMessages:   len(history),
		ContextChunks:     len(retrieval.Chunks),
		ContextFallback:   retrieval.Fallback,
		RetrievalFailure:  retrieval.Failure,
		CompletionFailure: completion.Failure,
	}, nil
}

// History devuelve la sesión completa, creándola si no existía.
func (s *ChatService) History(sessionID string) (domain.Session, error) {
	if s == nil || s.sessions == nil {
		return domain.Session{}, ErrChatServiceNotConfigured
	}
	return s.sessions.GetOrCreate(normalizeSessionID(sessionID)), nil
}

// Clear vacía la sesión; ErrSessionNotFound si nunca existió. No toca el vector store.
func (s *ChatService) Clear(sessionID string) error {
	if s == nil || s.sessions == nil {
		return ErrChatServiceNotConfigured
	}
	if !s.sessions.Clear(normalizeSessionID(sessionID)) {
		return ErrSessionNotFound
	}
	return nil
}

func normalizeSessionID(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}
