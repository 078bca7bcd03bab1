package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inksink-backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

const chatColumns = `id, user_id, document_id, title, messages, created_at, updated_at`

func (r *ChatRepo) Create(ctx context.Context, c *models.Chat) error {
	c.ID = uuid.New()
	if c.Title == "" {
		c.Title = "New Chat"
	}
	raw, err := marshalMessages(c.Messages)
	if err != nil {
		return err
	}

	query := `INSERT INTO chat (id, user_id, document_id, title, messages)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		c.ID, c.UserID, c.DocumentID, c.Title, raw,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chat WHERE id = $1`, id)
	return scanChat(row)
}

// MostRecentByDocument returns the last updated chat of a document for the
// given user.
func (r *ChatRepo) MostRecentByDocument(ctx context.Context, userID, documentID uuid.UUID) (*models.Chat, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chat
		WHERE user_id = $1 AND document_id = $2
		ORDER BY updated_at DESC LIMIT 1`, userID, documentID)
	return scanChat(row)
}

func (r *ChatRepo) ListMetadataByDocument(ctx context.Context, userID, documentID uuid.UUID, limit int) ([]*models.ChatMetadata, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, document_id, title, created_at, updated_at FROM chat
		WHERE user_id = $1 AND document_id = $2
		ORDER BY updated_at DESC LIMIT $3`, userID, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*models.ChatMetadata
	for rows.Next() {
		m := &models.ChatMetadata{}
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Title, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, m)
	}
	return chats, rows.Err()
}

// UpdateMessages replaces the stored transcript of a chat owned by userID.
func (r *ChatRepo) UpdateMessages(ctx context.Context, id, userID uuid.UUID, messages []models.ChatMessage) (*models.Chat, error) {
	raw, err := marshalMessages(messages)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `UPDATE chat SET messages = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING `+chatColumns, raw, id, userID)
	return scanChat(row)
}

func (r *ChatRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM chat WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanChat(row pgx.Row) (*models.Chat, error) {
	c := &models.Chat{}
	var raw []byte
	err := row.Scan(&c.ID, &c.UserID, &c.DocumentID, &c.Title, &raw, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages of chat %s: %w", c.ID, err)
	}
	return c, nil
}

func marshalMessages(messages []models.ChatMessage) ([]byte, error) {
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}
	return raw, nil
}
