package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/internal/store"
)

// HistoryLimit caps conversation and unread queries.
const HistoryLimit = 1000

type Messages struct {
	base
}

// Draft carries the caller-supplied parts of a new chat message.
type Draft struct {
	FromUserID   string
	FromUsername string
	ToUserID     string
	Message      string

	FileURL  string
	FileType string
	FileName string

	ReplyToID       string
	ReplyToText     string
	ReplyToUsername string
}

// Compose builds a new unread message with a fresh id and timestamp. It is
// not stored; see Create.
func (m *Messages) Compose(d Draft) *models.Message {
	return &models.Message{
		ID:              uuid.NewString(),
		FromUserID:      d.FromUserID,
		FromUsername:    d.FromUsername,
		ToUserID:        d.ToUserID,
		Message:         d.Message,
		Timestamp:       m.clock.Now(),
		FileURL:         d.FileURL,
		FileType:        d.FileType,
		FileName:        d.FileName,
		Reactions:       models.Reactions{},
		ReplyToID:       d.ReplyToID,
		ReplyToText:     d.ReplyToText,
		ReplyToUsername: d.ReplyToUsername,
	}
}

// CallLog builds a call-log entry from the user who triggered it.
func (m *Messages) CallLog(fromUserID, fromUsername, toUserID, status string, duration int64) *models.Message {
	msg := m.Compose(Draft{FromUserID: fromUserID, FromUsername: fromUsername, ToUserID: toUserID})
	msg.Type = models.MessageTypeCallLog
	msg.CallStatus = status
	msg.Duration = duration
	return msg
}

func (m *Messages) Create(ctx context.Context, msg *models.Message) error {
	ctx, cancel := m.bound(ctx)
	defer cancel()
	return m.coll(store.Messages).InsertOne(ctx, messageDocument(msg))
}

func (m *Messages) Get(ctx context.Context, id string) (*models.Message, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	doc, err := m.coll(store.Messages).FindOne(ctx, store.Where(store.Eq("id", id)))
	if err != nil {
		return nil, err
	}
	return messageFromDocument(doc), nil
}

// Conversation returns the messages exchanged between a and b in either
// direction, oldest first.
func (m *Messages) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	return m.list(ctx, store.AnyOf{
		store.Where(store.Eq("from_user_id", a), store.Eq("to_user_id", b)),
		store.Where(store.Eq("from_user_id", b), store.Eq("to_user_id", a)),
	})
}

// Unread returns messages addressed to userID that have not been read,
// oldest first.
func (m *Messages) Unread(ctx context.Context, userID string) ([]models.Message, error) {
	return m.list(ctx, store.Where(store.Eq("to_user_id", userID), store.Eq("read", false)))
}

func (m *Messages) list(ctx context.Context, f store.Filter) ([]models.Message, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	docs, err := m.coll(store.Messages).Find(ctx, f).
		Sort("timestamp", store.Ascending).
		ToList(ctx, HistoryLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, len(docs))
	for i, d := range docs {
		out[i] = *messageFromDocument(d)
	}
	return out, nil
}

func (m *Messages) MarkRead(ctx context.Context, id string) error {
	return m.update(ctx, id, store.Set{"read": true})
}

func (m *Messages) Edit(ctx context.Context, id, text, editedAt string) error {
	return m.update(ctx, id, store.Set{"message": text, "edited_at": editedAt})
}

func (m *Messages) SoftDelete(ctx context.Context, id string) error {
	return m.update(ctx, id, store.Set{"deleted": true})
}

// ToggleReaction adds or removes userID from emoji's reactors on message id
// and returns the resulting reactions.
func (m *Messages) ToggleReaction(ctx context.Context, id, emoji, userID string) (models.Reactions, error) {
	msg, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reactions := msg.Reactions.Toggle(emoji, userID)
	if err := m.SetReactions(ctx, id, reactions); err != nil {
		return nil, err
	}
	return reactions, nil
}

// SetReactions replaces the reactions stored on message id.
func (m *Messages) SetReactions(ctx context.Context, id string, reactions models.Reactions) error {
	return m.update(ctx, id, store.Set{"reactions": map[string][]string(reactions.Clone())})
}

func (m *Messages) update(ctx context.Context, id string, set store.Set) error {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	n, err := m.coll(store.Messages).UpdateOne(ctx, store.Where(store.Eq("id", id)), set)
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Count returns the number of stored messages.
func (m *Messages) Count(ctx context.Context) (int, error) {
	return count(ctx, m.base, store.Messages)
}

func messageDocument(msg *models.Message) store.Document {
	doc := store.Document{
		"id":            msg.ID,
		"from_user_id":  msg.FromUserID,
		"from_username": msg.FromUsername,
		"to_user_id":    msg.ToUserID,
		"message":       msg.Message,
		"timestamp":     msg.Timestamp,
		"read":          msg.Read,
		"deleted":       msg.Deleted,
		"reactions":     map[string][]string(msg.Reactions.Clone()),
	}
	optional := map[string]string{
		"file_url":          msg.FileURL,
		"file_type":         msg.FileType,
		"file_name":         msg.FileName,
		"reply_to_id":       msg.ReplyToID,
		"reply_to_text":     msg.ReplyToText,
		"reply_to_username": msg.ReplyToUsername,
		"type":              msg.Type,
		"call_status":       msg.CallStatus,
	}
	for k, v := range optional {
		if v != "" {
			doc[k] = v
		}
	}
	if msg.EditedAt != nil {
		doc["edited_at"] = *msg.EditedAt
	}
	if msg.Type == models.MessageTypeCallLog {
		doc["duration"] = msg.Duration
	}
	return doc
}

func messageFromDocument(d store.Document) *models.Message {
	return &models.Message{
		ID:              d.String("id"),
		FromUserID:      d.String("from_user_id"),
		FromUsername:    d.String("from_username"),
		ToUserID:        d.String("to_user_id"),
		Message:         d.String("message"),
		Timestamp:       d.String("timestamp"),
		Read:            d.Bool("read"),
		Deleted:         d.Bool("deleted"),
		EditedAt:        d.StringPtr("edited_at"),
		FileURL:         d.String("file_url"),
		FileType:        d.String("file_type"),
		FileName:        d.String("file_name"),
		Reactions:       models.Reactions(d.StringLists("reactions")).Clone(),
		ReplyToID:       d.String("reply_to_id"),
		ReplyToText:     d.String("reply_to_text"),
		ReplyToUsername: d.String("reply_to_username"),
		Type:            d.String("type"),
		CallStatus:      d.String("call_status"),
		Duration:        d.Int64("duration"),
	}
}
