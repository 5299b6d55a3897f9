// Package push delivers Web Push notifications to users who were offline
// when a message reached them.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/metrics"
	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/internal/service"
	"github.com/4xmen/peyvand/internal/store"
)

// Options configures a Notifier.
type Options struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	// Timeout bounds each store call and each delivery.
	Timeout time.Duration
	// HTTPClient overrides the client used to reach push services.
	HTTPClient webpush.HTTPClient
}

// Notifier sends Web Push notifications to subscribed users.
type Notifier struct {
	subs   store.Collection
	clock  *service.Clock
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewNotifier creates a push Notifier. Returns nil if VAPID keys are empty.
func NewNotifier(s store.Store, clock *service.Clock, opts Options, logger *zap.Logger) *Notifier {
	if opts.VAPIDPublicKey == "" || opts.VAPIDPrivateKey == "" {
		return nil
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Notifier{
		subs:   s.Collection(store.PushSubscriptions),
		clock:  clock,
		opts:   opts,
		logger: logger,
	}
}

// VAPIDPublicKey returns the public VAPID key for the frontend.
func (n *Notifier) VAPIDPublicKey() string {
	return n.opts.VAPIDPublicKey
}

// Subscribe stores a subscription for userID. An endpoint that is already
// known is reassigned to userID and reactivated.
func (n *Notifier) Subscribe(ctx context.Context, userID, endpoint, p256dh, auth string) (*models.PushSubscription, error) {
	if userID == "" || endpoint == "" || p256dh == "" || auth == "" {
		return nil, errs.Invalid("incomplete subscription")
	}
	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()

	byEndpoint := store.Where(store.Eq("endpoint", endpoint))
	doc, err := n.subs.FindOne(ctx, byEndpoint)
	switch {
	case err == nil:
		_, err = n.subs.UpdateOne(ctx, byEndpoint, store.Set{
			"user_id":    userID,
			"p256dh":     p256dh,
			"auth":       auth,
			"revoked_at": nil,
		})
		if err != nil {
			return nil, err
		}
		sub := subscriptionFromDocument(doc)
		sub.UserID, sub.KeyP256dh, sub.KeyAuth, sub.RevokedAt = userID, p256dh, auth, ""
		return sub, nil
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	sub := &models.PushSubscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Endpoint:  endpoint,
		KeyP256dh: p256dh,
		KeyAuth:   auth,
		CreatedAt: n.clock.Now(),
	}
	err = n.subs.InsertOne(ctx, store.Document{
		"id":         sub.ID,
		"user_id":    sub.UserID,
		"endpoint":   sub.Endpoint,
		"p256dh":     sub.KeyP256dh,
		"auth":       sub.KeyAuth,
		"created_at": sub.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe revokes userID's subscription for endpoint.
func (n *Notifier) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()

	c, err := n.subs.UpdateOne(ctx, store.Where(
		store.Eq("user_id", userID),
		store.Eq("endpoint", endpoint),
		store.Eq("revoked_at", nil),
	), store.Set{"revoked_at": n.clock.Now()})
	if err != nil {
		return err
	}
	if c == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Subscriptions returns userID's active subscriptions.
func (n *Notifier) Subscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()

	docs, err := n.subs.Find(ctx, store.Where(
		store.Eq("user_id", userID),
		store.Eq("revoked_at", nil),
	)).ToList(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.PushSubscription, len(docs))
	for i, d := range docs {
		out[i] = *subscriptionFromDocument(d)
	}
	return out, nil
}

// payload is the JSON structure sent inside the push notification.
type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Tag   string `json:"tag,omitempty"`
}

// NotifyMessage looks up the recipient's subscriptions and delivers to each
// in the background. It returns once the deliveries have been started.
func (n *Notifier) NotifyMessage(ctx context.Context, msg *models.Message) error {
	if n == nil {
		return nil
	}

	subs, err := n.Subscriptions(ctx, msg.ToUserID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		n.logger.Debug("no active push subscriptions", zap.String("user_id", msg.ToUserID))
		return nil
	}

	data, err := json.Marshal(payload{
		Title: "پیام جدید",
		Body:  "پیام جدید از " + msg.FromUsername,
		URL:   "/",
		Tag:   msg.FromUserID,
	})
	if err != nil {
		return err
	}

	n.logger.Info("sending push notification",
		zap.String("user_id", msg.ToUserID), zap.Int("subscriptions", len(subs)))
	for _, sub := range subs {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.send(sub, data)
		}()
	}
	return nil
}

// Wait blocks until every delivery started so far has finished.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

func (n *Notifier) send(sub models.PushSubscription, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), n.opts.Timeout)
	defer cancel()

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.KeyP256dh,
			Auth:   sub.KeyAuth,
		},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, data, s, &webpush.Options{
		HTTPClient:      n.opts.HTTPClient,
		VAPIDPublicKey:  n.opts.VAPIDPublicKey,
		VAPIDPrivateKey: n.opts.VAPIDPrivateKey,
		Subscriber:      n.opts.Subscriber,
		TTL:             86400,
	})
	if err != nil {
		metrics.PushSent.WithLabelValues("error").Inc()
		n.logger.Warn("push delivery failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// 410 Gone or 404 means the subscription is expired
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		metrics.PushSent.WithLabelValues("expired").Inc()
		_, err := n.subs.UpdateOne(ctx, store.Where(store.Eq("id", sub.ID)), store.Set{"revoked_at": n.clock.Now()})
		if err != nil {
			n.logger.Error("failed to revoke subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
			return
		}
		n.logger.Info("removed expired subscription", zap.String("endpoint", sub.Endpoint), zap.Int("status", resp.StatusCode))
		return
	}
	if resp.StatusCode >= 300 {
		metrics.PushSent.WithLabelValues("error").Inc()
		n.logger.Warn("push service rejected notification",
			zap.String("endpoint", sub.Endpoint), zap.Int("status", resp.StatusCode))
		return
	}
	metrics.PushSent.WithLabelValues("ok").Inc()
}

func subscriptionFromDocument(d store.Document) *models.PushSubscription {
	return &models.PushSubscription{
		ID:        d.String("id"),
		UserID:    d.String("user_id"),
		Endpoint:  d.String("endpoint"),
		KeyP256dh: d.String("p256dh"),
		KeyAuth:   d.String("auth"),
		CreatedAt: d.String("created_at"),
		RevokedAt: d.String("revoked_at"),
	}
}
