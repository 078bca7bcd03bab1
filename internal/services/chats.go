package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"inksink-backend/internal/logger"
	"inksink-backend/internal/models"
	"inksink-backend/internal/repository"
)

const recentChatsLimit = 10

type ChatStore interface {
	Create(ctx context.Context, c *models.Chat) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	MostRecentByDocument(ctx context.Context, userID, documentID uuid.UUID) (*models.Chat, error)
	ListMetadataByDocument(ctx context.Context, userID, documentID uuid.UUID, limit int) ([]*models.ChatMetadata, error)
	UpdateMessages(ctx context.Context, id, userID uuid.UUID, messages []models.ChatMessage) (*models.Chat, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// ChatService owns chat persistence for the authenticated user and announces
// saved chats to the user's other sessions.
type ChatService struct {
	chats     ChatStore
	publisher UpdatePublisher
	log       *logger.Logger
}

func NewChatService(chats ChatStore, publisher UpdatePublisher, log *logger.Logger) *ChatService {
	return &ChatService{chats: chats, publisher: publisher, log: log.With("component", "chats")}
}

// LatestForDocument returns the most recent chat or nil when the document has
// none yet.
func (s *ChatService) LatestForDocument(ctx context.Context, userID, documentID uuid.UUID) (*models.Chat, error) {
	chat, err := s.chats.MostRecentByDocument(ctx, userID, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest chat: %w", err)
	}
	return chat, nil
}

func (s *ChatService) ListRecent(ctx context.Context, userID, documentID uuid.UUID) ([]*models.ChatMetadata, error) {
	chats, err := s.chats.ListMetadataByDocument(ctx, userID, documentID, recentChatsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

func (s *ChatService) Get(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Chat not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if chat.UserID != userID {
		return nil, &ForbiddenError{Message: "You do not have access to this chat"}
	}
	return chat, nil
}

func (s *ChatService) Create(ctx context.Context, userID uuid.UUID, req models.CreateChatRequest) (*models.Chat, error) {
	if req.DocumentID == uuid.Nil {
		return nil, &ValidationError{Message: "document_id required"}
	}
	if len(req.Messages) == 0 {
		return nil, &ValidationError{Message: "messages required"}
	}

	chat := &models.Chat{
		UserID:     userID,
		DocumentID: req.DocumentID,
		Title:      req.Title,
		Messages:   req.Messages,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	s.announce(ctx, chat)
	return chat, nil
}

func (s *ChatService) Update(ctx context.Context, userID, chatID uuid.UUID, req models.UpdateChatRequest) (*models.Chat, error) {
	chat, err := s.chats.UpdateMessages(ctx, chatID, userID, req.Messages)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Chat not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update chat: %w", err)
	}

	s.announce(ctx, chat)
	return chat, nil
}

func (s *ChatService) Delete(ctx context.Context, userID, chatID uuid.UUID) error {
	err := s.chats.Delete(ctx, chatID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Chat not found"}
	}
	return err
}

func (s *ChatService) announce(ctx context.Context, chat *models.Chat) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishUpdate(ctx, chat.UserID, models.WSMessage{
		Type: models.WSChatSaved,
		Payload: models.ChatSavedEvent{
			ChatID:     chat.ID,
			DocumentID: chat.DocumentID,
			Title:      chat.Title,
		},
	})
	if err != nil {
		s.log.Warn("Failed to publish chat update", "chat_id", chat.ID.String(), "error", err)
	}
}
