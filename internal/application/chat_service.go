package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/example/taskplanner/internal/persistence"
)

// Assistant is the language model collaborator used by chat and AI search.
type Assistant interface {
	// Ask answers a chat prompt, optionally grounded on extra context.
	Ask(ctx context.Context, prompt, chatContext string) (string, error)
	// Search analyses data for the query.
	Search(ctx context.Context, query, data string) (string, error)
}

// DefaultChatHistoryLimit is the number of messages returned by History.
const DefaultChatHistoryLimit = 50

var errAssistantNotConfigured = errors.New("assistant not configured")

// ChatService relays chat turns to the assistant and keeps the history.
type ChatService struct {
	store     persistence.Store
	assistant Assistant
	logger    *slog.Logger
}

// NewChatService constructs a ChatService. assistant may be nil, in which case
// Send fails with ErrDependency.
func NewChatService(store persistence.Store, assistant Assistant, logger *slog.Logger) *ChatService {
	return &ChatService{store: store, assistant: assistant, logger: defaultLogger(logger)}
}

func (s *ChatService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ChatService", operation, attrs...)
}

// Send stores the user message, asks the assistant and stores its answer.
func (s *ChatService) Send(ctx context.Context, principal Principal, params ChatParams) (reply ChatReply, err error) {
	logger := s.loggerWith(ctx, "Send", "principal", principal.Label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "chat turn failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "chat turn answered", "response_length", len(reply.Response))
	}()

	if err = Authorize(principal, RoleMember); err != nil {
		return
	}
	if strings.TrimSpace(params.Message) == "" {
		err = &ValidationError{FieldErrors: map[string]string{"message": "is required"}}
		return
	}

	if _, err = s.save(ctx, "user", params.Message); err != nil {
		return
	}

	if s.assistant == nil {
		err = dependencyError("assistant", errAssistantNotConfigured)
		return
	}
	answer, askErr := s.assistant.Ask(ctx, params.Message, params.Context)
	if askErr != nil {
		err = dependencyError("assistant", askErr)
		return
	}

	var saved persistence.Record
	if saved, err = s.save(ctx, "assistant", answer); err != nil {
		return
	}
	reply = ChatReply{Response: answer, CreatedAt: saved.String(persistence.FieldCreatedAt)}
	return
}

func (s *ChatService) save(ctx context.Context, role, content string) (persistence.Record, error) {
	fields, err := ChatMessageSchema.Validate(map[string]any{"role": role, "content": content}, ModeCreate)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Create(ctx, EntityChatHistory, fields)
	if err != nil {
		return nil, fmt.Errorf("save %s message: %w", role, err)
	}
	return rec, nil
}

// History returns the newest messages in chronological order.
func (s *ChatService) History(ctx context.Context, principal Principal, skip, limit int) ([]persistence.Record, error) {
	if err := Authorize(principal, RoleMember); err != nil {
		return nil, err
	}
	messages, err := s.store.GetAll(ctx, EntityChatHistory)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultChatHistoryLimit
	}
	slices.Reverse(messages)
	page := slices.Clone(Paginate(messages, skip, limit))
	slices.Reverse(page)
	return page, nil
}

// Clear deletes the whole chat history and reports how many messages were removed.
func (s *ChatService) Clear(ctx context.Context, principal Principal) (removed int, err error) {
	logger := s.loggerWith(ctx, "Clear", "principal", principal.Label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to clear chat history", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "chat history cleared", "removed", removed)
	}()

	if err = Authorize(principal, RoleMember); err != nil {
		return
	}
	var messages []persistence.Record
	if messages, err = s.store.GetAll(ctx, EntityChatHistory); err != nil {
		return
	}
	for _, msg := range messages {
		id, ok := msg.ID()
		if !ok {
			continue
		}
		var deleted bool
		if deleted, err = s.store.Delete(ctx, EntityChatHistory, id); err != nil {
			return
		}
		if deleted {
			removed++
		}
	}
	return
}
