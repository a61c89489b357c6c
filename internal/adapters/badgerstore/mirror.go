package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/samber/lo"
)

// Mirror is a write-only copy of coordinator state. Ended conversations are
// kept with their end stamp.
type Mirror struct {
	db *badger.DB
}

func NewMirror(db *badger.DB) *Mirror {
	return &Mirror{db: db}
}

func (m *Mirror) UpsertParticipant(ctx context.Context, p domain.Participant) error {
	return m.put(ctx, participantPrefix+string(p.ID), p)
}

func (m *Mirror) DeleteParticipant(ctx context.Context, id domain.ParticipantID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(participantPrefix + string(id)))
	})
}

func (m *Mirror) PutConversation(ctx context.Context, c domain.Conversation) error {
	return m.put(ctx, conversationPrefix+string(c.ID), c)
}

// EndConversation stamps the mirrored record. A conversation that was never
// mirrored is written with what is known.
func (m *Mirror) EndConversation(ctx context.Context, id domain.ConversationID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(conversationPrefix + string(id))
	return m.db.Update(func(txn *badger.Txn) error {
		c := domain.Conversation{ID: id}
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &c) }); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		c.EndedAt = &at
		c.IsRecording = false
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// PruneParticipants deletes mirrored participants missing from keep.
func (m *Mirror) PruneParticipants(ctx context.Context, keep []domain.ParticipantID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	live := lo.SliceToMap(keep, func(id domain.ParticipantID) (string, struct{}) {
		return participantPrefix + string(id), struct{}{}
	})

	var stale [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(participantPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := live[string(key)]; !ok {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return 0, err
	}

	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Participants lists mirrored participants.
func (m *Mirror) Participants() ([]domain.Participant, error) {
	return scan[domain.Participant](m.db, participantPrefix)
}

// Conversation returns the mirrored record of a conversation.
func (m *Mirror) Conversation(id domain.ConversationID) (domain.Conversation, error) {
	var c domain.Conversation
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(conversationPrefix + string(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &c) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return c, domain.ErrNotFound
	}
	return c, err
}

func (m *Mirror) put(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func scan[T any](db *badger.DB, prefix string) ([]T, error) {
	var out []T
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var v T
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}
