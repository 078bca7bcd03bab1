package chatclient

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"inksink-backend/internal/logger"
	"inksink-backend/internal/models"
	"inksink-backend/internal/sse"
	"inksink-backend/internal/transcript"
)

const (
	defaultChatTitle = "New Chat"
	recentChatLimit  = 10
)

// Backend is the server surface a Session needs. APIClient implements it.
type Backend interface {
	StreamChat(ctx context.Context, messages []models.ChatMessage, content string, fn func(sse.Frame) error) error
	GenerateTitle(ctx context.Context, message string) (string, error)
	LatestChat(ctx context.Context, documentID uuid.UUID) (*models.Chat, error)
	ListChats(ctx context.Context, documentID uuid.UUID) ([]*models.ChatMetadata, error)
	GetChat(ctx context.Context, chatID uuid.UUID) (*models.Chat, error)
	CreateChat(ctx context.Context, req models.CreateChatRequest) (*models.Chat, error)
	UpdateChat(ctx context.Context, chatID uuid.UUID, req models.UpdateChatRequest) (*models.Chat, error)
	DeleteChat(ctx context.Context, chatID uuid.UUID) error
	Credits(ctx context.Context) (int, error)
}

// Cache is an optional local copy of saved chats. BoltStore implements it.
type Cache interface {
	SaveChat(chat *models.Chat) error
	LatestChat(documentID uuid.UUID) (*models.Chat, error)
	DeleteChat(chatID uuid.UUID) error
}

// StreamError is a turn that ended on an error frame or a failed request.
// The partial reply stays in the transcript.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }

// Session is one chat panel bound to a document: the visible transcript,
// the chat record it is saved to and the user's cached credit balance.
// All methods are safe for concurrent use.
type Session struct {
	backend Backend
	cache   Cache
	log     *logger.Logger

	mu         sync.Mutex
	tr         *transcript.Transcript
	documentID uuid.UUID
	content    string
	current    *models.Chat
	recent     []*models.ChatMetadata
	credits    int
	sending    bool
	turn       uint64
	cancel     context.CancelFunc
	onChange   func()
}

// NewSession builds a session. cache may be nil.
func NewSession(backend Backend, cache Cache, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		backend: backend,
		cache:   cache,
		log:     log.With("component", "chat-session"),
		tr:      transcript.New(),
	}
}

// SetContent sets the document snapshot sent with each turn.
func (s *Session) SetContent(content string) {
	s.mu.Lock()
	s.content = content
	s.mu.Unlock()
}

// OnChange registers fn to run after every frame applied to the transcript.
// fn runs without the session lock held and may call the accessors.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Send runs one turn. It is a no-op while another turn is in flight.
// A Stop during the turn makes it return nil. Stream and request failures
// return a *StreamError and are also kept in Error. The transcript is saved
// and a credit spent only after a turn that completed without error.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil
	}
	s.sending = true
	s.turn++
	turn := s.turn
	s.tr.BeginTurn(text)
	history := s.tr.Messages()
	content := s.content
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	// After a Stop the guard belongs to whatever turn comes next.
	defer func() {
		s.mu.Lock()
		if s.turn == turn {
			s.sending = false
		}
		s.mu.Unlock()
	}()

	err := s.backend.StreamChat(streamCtx, history, content, func(f sse.Frame) error {
		s.mu.Lock()
		if s.turn != turn {
			s.mu.Unlock()
			return context.Canceled
		}
		s.tr.Apply(f)
		onChange := s.onChange
		s.mu.Unlock()

		if onChange != nil {
			onChange()
		}
		return nil
	})
	cancel()

	s.mu.Lock()
	if s.turn != turn {
		s.mu.Unlock()
		return nil
	}
	s.cancel = nil
	s.tr.EndTurn()

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.Canceled) {
			msg = "Request cancelled"
		}
		s.tr.SetErr(msg)
		documentID := s.documentID
		s.mu.Unlock()
		s.log.Warn("Chat turn failed", "document_id", documentID, "error", err)
		return &StreamError{Message: msg}
	}
	if msg := s.tr.Err(); msg != "" {
		s.mu.Unlock()
		return &StreamError{Message: msg}
	}

	documentID := s.documentID
	current := s.current
	final := s.tr.Messages()
	s.mu.Unlock()

	s.persist(context.WithoutCancel(ctx), turn, documentID, current, final)
	return nil
}

// persist saves the finished transcript and spends a local credit. Failures
// are logged and swallowed.
func (s *Session) persist(ctx context.Context, turn uint64, documentID uuid.UUID, current *models.Chat, messages []models.ChatMessage) {
	if documentID == uuid.Nil || len(messages) == 0 {
		return
	}
	log := s.log.With("document_id", documentID, "message_count", len(messages))

	var saved *models.Chat
	var err error
	if current != nil {
		saved, err = s.backend.UpdateChat(ctx, current.ID, models.UpdateChatRequest{Messages: messages})
		if err != nil {
			log.Error("Failed to save messages", "chat_id", current.ID, "error", err)
			return
		}
	} else {
		title := defaultChatTitle
		if first := firstUserMessage(messages); first != "" {
			generated, err := s.backend.GenerateTitle(ctx, first)
			if err != nil {
				log.Error("Failed to generate chat title", "error", err)
			} else if generated != "" {
				title = generated
			}
		}

		saved, err = s.backend.CreateChat(ctx, models.CreateChatRequest{
			DocumentID: documentID,
			Title:      title,
			Messages:   messages,
		})
		if err != nil {
			log.Error("Failed to save messages", "error", err)
			return
		}
	}

	s.mu.Lock()
	// The user may have switched chats while the save was in flight.
	if s.turn == turn && s.documentID == documentID {
		s.current = saved
	}
	if s.credits > 0 {
		s.credits--
	}
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveChat(saved); err != nil {
			log.Warn("Failed to cache chat", "chat_id", saved.ID, "error", err)
		}
	}
	if current == nil {
		s.refreshRecent(ctx, documentID)
	}
}

// Stop aborts the in-flight turn, if any, and clears the loading and
// thinking flags. Text received so far stays.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.turn++
	s.sending = false
	s.tr.EndTurn()
}

// Reset stops any turn and clears the transcript and error. The session
// stays bound to its current chat record.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.tr.Reset()
}

// NewChat is Reset plus detaching from the current chat, so the next
// completed turn creates a new record.
func (s *Session) NewChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.tr.Reset()
	s.current = nil
}

// LoadDocument binds the session to documentID and opens its most recent
// chat, falling back to the local cache when the server cannot be reached.
// A document without chats starts empty.
func (s *Session) LoadDocument(ctx context.Context, documentID uuid.UUID) error {
	s.mu.Lock()
	s.stopLocked()
	s.documentID = documentID
	s.current = nil
	s.recent = nil
	s.tr.Reset()
	s.mu.Unlock()

	if documentID == uuid.Nil {
		return nil
	}

	chat, err := s.backend.LatestChat(ctx, documentID)
	if err != nil {
		s.log.Error("Failed to load most recent chat", "document_id", documentID, "error", err)
		if s.cache == nil {
			return err
		}
		cached, cacheErr := s.cache.LatestChat(documentID)
		if cacheErr != nil || cached == nil {
			return err
		}
		chat = cached
	}

	s.mu.Lock()
	if s.documentID == documentID && chat != nil {
		s.current = chat
		s.tr.Replace(chat.Messages)
	}
	s.mu.Unlock()

	s.refreshRecent(ctx, documentID)
	return nil
}

// SelectChat replaces the transcript with a stored chat.
func (s *Session) SelectChat(ctx context.Context, chatID uuid.UUID) error {
	chat, err := s.backend.GetChat(ctx, chatID)
	if err != nil {
		s.log.Error("Failed to select chat", "chat_id", chatID, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.current = chat
	s.tr.Replace(chat.Messages)
	return nil
}

// DeleteChat removes a stored chat; deleting the open one clears the panel.
func (s *Session) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	if err := s.backend.DeleteChat(ctx, chatID); err != nil {
		s.log.Error("Failed to delete chat", "chat_id", chatID, "error", err)
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteChat(chatID); err != nil {
			s.log.Warn("Failed to drop cached chat", "chat_id", chatID, "error", err)
		}
	}

	s.mu.Lock()
	if s.current != nil && s.current.ID == chatID {
		s.stopLocked()
		s.current = nil
		s.tr.Reset()
	}
	documentID := s.documentID
	s.mu.Unlock()

	s.refreshRecent(ctx, documentID)
	return nil
}

// RefreshCredits reloads the balance from the server.
func (s *Session) RefreshCredits(ctx context.Context) (int, error) {
	credits, err := s.backend.Credits(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.credits = credits
	s.mu.Unlock()
	return credits, nil
}

func (s *Session) refreshRecent(ctx context.Context, documentID uuid.UUID) {
	if documentID == uuid.Nil {
		return
	}
	chats, err := s.backend.ListChats(ctx, documentID)
	if err != nil {
		s.log.Error("Failed to load recent chats", "document_id", documentID, "error", err)
		return
	}
	if len(chats) > recentChatLimit {
		chats = chats[:recentChatLimit]
	}

	s.mu.Lock()
	if s.documentID == documentID {
		s.recent = chats
	}
	s.mu.Unlock()
}

func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Messages()
}

func (s *Session) Thinking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Thinking()
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Loading()
}

// Error is the last turn's error message, empty when there is none.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Err()
}

func (s *Session) Credits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits
}

// Current is the chat record the transcript is saved to, nil before the
// first save.
func (s *Session) Current() *models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) RecentChats() []*models.ChatMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.ChatMetadata(nil), s.recent...)
}

func firstUserMessage(messages []models.ChatMessage) string {
	for _, m := range messages {
		if m.Role == models.RoleUser {
			return m.Content
		}
	}
	return ""
}
