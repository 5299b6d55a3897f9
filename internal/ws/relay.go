package ws

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/metrics"
	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/internal/persist"
	"github.com/4xmen/peyvand/internal/service"
)

// Notifier alerts a user who was offline when a message arrived.
type Notifier interface {
	NotifyMessage(ctx context.Context, msg *models.Message) error
}

// Relay runs the per-connection envelope loop. Store work goes through the
// persistence queue keyed by message id and never blocks the loop.
type Relay struct {
	registry *Registry
	svc      *service.Service
	queue    *persist.Queue
	notifier Notifier
	logger   *zap.Logger
}

// NewRelay builds a relay. notifier may be nil.
func NewRelay(registry *Registry, svc *service.Service, queue *persist.Queue, notifier Notifier, logger *zap.Logger) *Relay {
	return &Relay{
		registry: registry,
		svc:      svc,
		queue:    queue,
		notifier: notifier,
		logger:   logger,
	}
}

// Serve registers t as userID's connection and handles its envelopes in
// order until the transport fails or an envelope is malformed. Either way
// the user is deregistered and the roster rebroadcast.
func (r *Relay) Serve(ctx context.Context, t Transport, userID, username string) {
	r.registry.Connect(t, userID, username)
	defer func() {
		r.registry.Release(userID, t)
		r.registry.BroadcastPresence()
		t.Close()
	}()

	for ctx.Err() == nil {
		data, err := t.Receive()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Debug("connection closed", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}
		if err := r.Dispatch(ctx, userID, username, data); err != nil {
			metrics.ProtocolErrors.Inc()
			r.logger.Warn("closing connection", zap.String("user_id", userID), zap.Error(err))
			return
		}
	}
}

// Dispatch handles one envelope received on userID's connection. It only
// returns protocol errors; store failures are logged.
func (r *Relay) Dispatch(ctx context.Context, userID, username string, data []byte) error {
	env, err := decode(data)
	if err != nil {
		return err
	}
	from, fromName := env.FromUserID, env.FromUsername
	if from == "" {
		from = userID
	}
	if fromName == "" {
		fromName = username
	}

	switch env.Type {
	case "send-message":
		if err := env.require("to_user_id", "message"); err != nil {
			return err
		}
		r.sendMessage(env, from, fromName)

	case "typing":
		if err := env.require("to_user_id"); err != nil {
			return err
		}
		r.registry.SendPersonal(env.ToUserID, fromEvent{Type: "typing", FromUserID: from, FromUsername: fromName})

	case "stop-typing":
		if err := env.require("to_user_id"); err != nil {
			return err
		}
		r.registry.SendPersonal(env.ToUserID, fromEvent{Type: "stop-typing", FromUserID: from})

	case "message-read":
		if err := env.require("to_user_id", "message_id"); err != nil {
			return err
		}
		id := env.MessageID
		r.queue.Submit(id, "mark-read", func(ctx context.Context) error {
			return r.svc.Messages.MarkRead(ctx, id)
		})
		r.registry.SendPersonal(env.ToUserID, messageEvent{Type: "message-read", MessageID: id, FromUserID: from})

	case "delete-message":
		if err := env.require("to_user_id", "message_id"); err != nil {
			return err
		}
		id := env.MessageID
		r.queue.Submit(id, "delete-message", func(ctx context.Context) error {
			return r.svc.Messages.SoftDelete(ctx, id)
		})
		r.sendBoth(env.ToUserID, from, messageEvent{Type: "delete-message", MessageID: id, FromUserID: from})

	case "edit-message":
		if err := env.require("to_user_id", "message_id", "new_message"); err != nil {
			return err
		}
		id, text, editedAt := env.MessageID, *env.NewMessage, r.svc.Clock.Now()
		r.queue.Submit(id, "edit-message", func(ctx context.Context) error {
			return r.svc.Messages.Edit(ctx, id, text, editedAt)
		})
		r.sendBoth(env.ToUserID, from, editEvent{
			Type:       "edit-message",
			MessageID:  id,
			NewMessage: text,
			EditedAt:   editedAt,
			FromUserID: from,
		})

	case "react-message":
		if err := env.require("to_user_id", "message_id", "emoji"); err != nil {
			return err
		}
		r.react(env, from)

	case "call-user":
		if err := env.require("to_user_id"); err != nil {
			return err
		}
		r.callUser(env.ToUserID, from, fromName)

	case "accept-call":
		if err := env.require("to_user_id"); err != nil {
			return err
		}
		r.registry.SendPersonal(env.ToUserID, fromEvent{Type: "call-accepted", FromUserID: from})

	case "reject-call":
		if err := env.require("to_user_id"); err != nil {
			return err
		}
		r.registry.SendPersonal(env.ToUserID, fromEvent{Type: "call-rejected", FromUserID: from})
		r.logCall(env.ToUserID, from, fromName, models.CallRejected, 0)

	case "offer":
		if err := env.require("to_user_id", "offer"); err != nil {
			return err
		}
		r.registry.SendPersonal(env.ToUserID, signalEvent{Type: "offer", Offer: env.Offer, FromUserID: from})

	case "answer":
		if err := env.require("to_user_id", "answer"); err != nil {
			return err
		}
		r.registry.SendPersonal(env.ToUserID, signalEvent{Type: "answer", Answer: env.Answer, FromUserID: from})

	case "ice-candidate":
		if err := env.require("to_user_id", "candidate"); err != nil {
			return err
		}
		r.registry.SendPersonal(env.ToUserID, signalEvent{Type: "ice-candidate", Candidate: env.Candidate, FromUserID: from})

	case "end-call":
		if err := env.require("to_user_id"); err != nil {
			return err
		}
		duration, err := env.callDuration()
		if err != nil {
			return err
		}
		r.registry.SendPersonal(env.ToUserID, fromEvent{Type: "call-ended", FromUserID: from})
		r.logCall(env.ToUserID, from, fromName, models.CallCompleted, duration)

	default:
		return errs.Protocol("unknown envelope type %q", env.Type)
	}

	metrics.Envelopes.WithLabelValues(env.Type).Inc()
	return nil
}

func (r *Relay) sendBoth(to, from string, v any) {
	r.registry.SendPersonal(to, v)
	r.registry.SendPersonal(from, v)
}

func (r *Relay) sendMessage(env *inbound, from, fromName string) {
	msg := r.svc.Messages.Compose(service.Draft{
		FromUserID:      from,
		FromUsername:    fromName,
		ToUserID:        env.ToUserID,
		Message:         *env.Message,
		FileURL:         env.FileURL,
		FileType:        env.FileType,
		FileName:        env.FileName,
		ReplyToID:       env.ReplyToID,
		ReplyToText:     env.ReplyToText,
		ReplyToUsername: env.ReplyToUsername,
	})
	r.queue.Submit(msg.ID, "insert-message", func(ctx context.Context) error {
		return r.svc.Messages.Create(ctx, msg)
	})

	out := receiveMessage{Type: "receive-message", Message: msg}
	delivered := r.registry.SendPersonal(env.ToUserID, out)
	r.registry.SendPersonal(from, out)

	if !delivered && r.notifier != nil {
		r.queue.Submit("push:"+msg.ID, "push-notify", func(ctx context.Context) error {
			return r.notifier.NotifyMessage(ctx, msg)
		})
	}
}

// react toggles the reaction on the message's persistence lane, after the
// message's own insert and any earlier reaction to it. Both parties are
// notified as soon as the new reactions are known; the write follows.
func (r *Relay) react(env *inbound, from string) {
	id, emoji, to := env.MessageID, env.Emoji, env.ToUserID
	r.queue.Submit(id, "react-message", func(ctx context.Context) error {
		msg, err := r.svc.Messages.Get(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			r.logger.Info("reaction to unknown message", zap.String("message_id", id))
			return nil
		}
		if err != nil {
			return err
		}
		reactions := msg.Reactions.Toggle(emoji, from)
		r.sendBoth(to, from, reactionEvent{Type: "message-reaction", MessageID: id, Reactions: reactions})
		return r.svc.Messages.SetReactions(ctx, id, reactions)
	})
}

// callUser rings an online recipient. A call to an offline user is
// recorded as missed instead.
func (r *Relay) callUser(to, from, fromName string) {
	if !r.registry.IsOnline(to) {
		r.logCall(to, from, fromName, models.CallMissed, 0)
		return
	}
	entry := r.svc.Messages.CallLog(from, fromName, to, models.CallOngoing, 0)
	r.sendBoth(to, from, receiveMessage{Type: "receive-message", Message: entry})
	r.registry.SendPersonal(to, fromEvent{Type: "incoming-call", FromUserID: from, FromUsername: fromName})
}

// logCall persists a call-log entry and shows it to both parties.
func (r *Relay) logCall(to, from, fromName, status string, duration int64) {
	entry := r.svc.Messages.CallLog(from, fromName, to, status, duration)
	r.queue.Submit(entry.ID, "insert-call-log", func(ctx context.Context) error {
		return r.svc.Messages.Create(ctx, entry)
	})
	r.sendBoth(to, from, receiveMessage{Type: "receive-message", Message: entry})
}
