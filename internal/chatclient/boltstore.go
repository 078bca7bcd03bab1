package chatclient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"inksink-backend/internal/models"
)

var (
	chatsBucket     = []byte("chats")
	documentsBucket = []byte("documents")
)

// BoltStore keeps the last saved chat per document on disk so a document
// can still be opened when the server is unreachable.
type BoltStore struct {
	db        *bolt.DB
	closeOnce sync.Once
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open chat cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{chatsBucket, documentsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

// SaveChat stores chat and marks it as its document's latest.
func (s *BoltStore) SaveChat(chat *models.Chat) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		id := []byte(chat.ID.String())
		if err := tx.Bucket(chatsBucket).Put(id, data); err != nil {
			return err
		}
		return tx.Bucket(documentsBucket).Put([]byte(chat.DocumentID.String()), id)
	})
}

// LatestChat returns nil when nothing is cached for documentID.
func (s *BoltStore) LatestChat(documentID uuid.UUID) (*models.Chat, error) {
	var chat *models.Chat
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(documentsBucket).Get([]byte(documentID.String()))
		if id == nil {
			return nil
		}
		data := tx.Bucket(chatsBucket).Get(id)
		if data == nil {
			return nil
		}
		chat = &models.Chat{}
		return json.Unmarshal(data, chat)
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// DeleteChat drops chatID and clears its document pointer if it was the latest.
func (s *BoltStore) DeleteChat(chatID uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		id := []byte(chatID.String())
		chats := tx.Bucket(chatsBucket)

		data := chats.Get(id)
		if data == nil {
			return nil
		}
		var chat models.Chat
		if err := json.Unmarshal(data, &chat); err == nil {
			docs := tx.Bucket(documentsBucket)
			docKey := []byte(chat.DocumentID.String())
			if string(docs.Get(docKey)) == string(id) {
				if err := docs.Delete(docKey); err != nil {
					return err
				}
			}
		}
		return chats.Delete(id)
	})
}
