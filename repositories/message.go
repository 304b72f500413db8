//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"

	"duochat/domain"
	"duochat/errors"
)

type IMessageRepository interface {
	StoreMessage(sender domain.Identity, body string, reply *domain.ReplySnapshot) (domain.Message, error)
	GetAllMessages() ([]domain.Message, error)
	GetMessage(id int64) (domain.Message, error)
	ToggleReaction(id int64, user, emoji string) ([]domain.Reaction, error)
	Close() error
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

// NewMessageRepository opens the message id sequence on top of an already
// opened BadgerDB handle. The sequence is persistent: ids survive restarts
// and are never reused.
func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 1)
	if err != nil {
		return nil, fmt.Errorf("open message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the unused tail of the id sequence. The DB handle itself
// is owned and closed by the caller.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// diskMessage is the persisted row shape. The reply snapshot is stored
// denormalized next to the message and never updated afterwards.
type diskMessage struct {
	ID            int64             `cbor:"id"`
	Sender        string            `cbor:"sender"`
	Message       string            `cbor:"message"`
	Timestamp     time.Time         `cbor:"timestamp"`
	ReplyToID     *int64            `cbor:"reply_to_id"`
	ReplyToSender *string           `cbor:"reply_to_sender"`
	ReplyToText   *string           `cbor:"reply_to_text"`
	Reactions     []domain.Reaction `cbor:"reactions"`
}

// messageKey formats the row key as "msg:{id_padded}". The 19-digit zero
// padding makes lexicographical key order equal to id order, so a plain
// forward iteration returns messages oldest first.
func messageKey(id int64) []byte {
	return []byte(fmt.Sprintf("msg:%019d", id))
}

// StoreMessage persists a message in BadgerDB, assigning the id and the
// authoritative timestamp. Ids come from a persistent sequence and are
// strictly increasing across restarts.
func (m *MessageRepository) StoreMessage(sender domain.Identity, body string, reply *domain.ReplySnapshot) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}
	// The sequence starts at 0; the wire treats id 0 as "not persisted".
	id := int64(next) + 1

	row := diskMessage{
		ID:        id,
		Sender:    sender.String(),
		Message:   body,
		Timestamp: time.Now().UTC(),
		Reactions: []domain.Reaction{},
	}
	if reply != nil {
		row.ReplyToID = lo.ToPtr(reply.ID)
		row.ReplyToSender = lo.ToPtr(reply.Sender)
		row.ReplyToText = lo.ToPtr(reply.Text)
	}

	bytes, err := cbor.Marshal(row)
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(id), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toDomainMessage(row), nil
}

// GetAllMessages returns the whole log, oldest first. No pagination: the
// entire backlog is refetched on every authenticated connection.
func (m *MessageRepository) GetAllMessages() ([]domain.Message, error) {
	var rows []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row diskMessage
			err := it.Item().Value(func(value []byte) error {
				return cbor.Unmarshal(value, &row)
			})
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(row diskMessage, _ int) domain.Message {
		return toDomainMessage(row)
	}), nil
}

func (m *MessageRepository) GetMessage(id int64) (domain.Message, error) {
	var row diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return cbor.Unmarshal(value, &row)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	return toDomainMessage(row), nil
}

// ToggleReaction flips the presence of the (user, emoji) pair on a message.
// The read-modify-write runs inside a single Update transaction; when two
// concurrent toggles on the same message collide, Badger aborts one with
// ErrConflict and the loop re-reads and re-applies it, so no toggle is lost.
func (m *MessageRepository) ToggleReaction(id int64, user, emoji string) ([]domain.Reaction, error) {
	for {
		updated, err := m.toggleReactionOnce(id, user, emoji)
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		return updated, err
	}
}

func (m *MessageRepository) toggleReactionOnce(id int64, user, emoji string) ([]domain.Reaction, error) {
	var updated []domain.Reaction
	err := m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(id))
		if err != nil {
			return err
		}
		var row diskMessage
		if err = item.Value(func(value []byte) error {
			return cbor.Unmarshal(value, &row)
		}); err != nil {
			return err
		}

		match := func(r domain.Reaction) bool {
			return r.User == user && r.Emoji == emoji
		}
		if lo.SomeBy(row.Reactions, match) {
			row.Reactions = lo.Reject(row.Reactions, func(r domain.Reaction, _ int) bool {
				return match(r)
			})
		} else {
			row.Reactions = append(row.Reactions, domain.Reaction{User: user, Emoji: emoji})
		}
		if row.Reactions == nil {
			row.Reactions = []domain.Reaction{}
		}
		updated = row.Reactions

		bytes, err := cbor.Marshal(row)
		if err != nil {
			return err
		}
		return txn.Set(messageKey(id), bytes)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func toDomainMessage(row diskMessage) domain.Message {
	message := domain.Message{
		ID:        row.ID,
		Sender:    domain.Identity(row.Sender),
		Body:      row.Message,
		CreatedAt: row.Timestamp,
		Reactions: row.Reactions,
	}
	// A snapshot is only surfaced when the stored reference carries a
	// positive id; anything else stays null on the wire.
	if row.ReplyToID != nil && *row.ReplyToID > 0 {
		message.ReplyTo = &domain.ReplySnapshot{
			ID:     *row.ReplyToID,
			Sender: lo.FromPtr(row.ReplyToSender),
			Text:   lo.FromPtr(row.ReplyToText),
		}
	}
	return message
}
