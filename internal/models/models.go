package models

import "slices"

type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	HashedPassword string `json:"-"`
	CreatedAt      string `json:"created_at"`
}

// Message types. An empty Type is an ordinary chat message.
const (
	MessageTypeCallLog = "call-log"
)

// Call-log statuses.
const (
	CallOngoing   = "ongoing"
	CallMissed    = "missed"
	CallRejected  = "rejected"
	CallCompleted = "completed"
)

type Message struct {
	ID           string    `json:"id"`
	FromUserID   string    `json:"from_user_id"`
	FromUsername string    `json:"from_username"`
	ToUserID     string    `json:"to_user_id"`
	Message      string    `json:"message"`
	Timestamp    string    `json:"timestamp"`
	Read         bool      `json:"read"`
	Deleted      bool      `json:"deleted"`
	EditedAt     *string   `json:"edited_at"`
	FileURL      string    `json:"file_url,omitempty"`
	FileType     string    `json:"file_type,omitempty"`
	FileName     string    `json:"file_name,omitempty"`
	Reactions    Reactions `json:"reactions"`

	ReplyToID       string `json:"reply_to_id,omitempty"`
	ReplyToText     string `json:"reply_to_text,omitempty"`
	ReplyToUsername string `json:"reply_to_username,omitempty"`

	Type       string `json:"type,omitempty"`
	CallStatus string `json:"call_status,omitempty"`
	Duration   int64  `json:"duration,omitempty"`
}

// Reactions maps an emoji to the ids of the users who reacted with it.
// A key is never present with an empty list.
type Reactions map[string][]string

// Toggle adds userID to emoji's reactors, or removes it when already present.
// The receiver is left untouched; the updated copy is returned.
func (r Reactions) Toggle(emoji, userID string) Reactions {
	out := r.Clone()
	users := out[emoji]
	if i := slices.Index(users, userID); i >= 0 {
		users = slices.Delete(users, i, i+1)
	} else {
		users = append(users, userID)
	}
	if len(users) == 0 {
		delete(out, emoji)
	} else {
		out[emoji] = users
	}
	return out
}

func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, users := range r {
		var uniq []string
		for _, u := range users {
			if !slices.Contains(uniq, u) {
				uniq = append(uniq, u)
			}
		}
		if len(uniq) > 0 {
			out[emoji] = uniq
		}
	}
	return out
}

// Friend relation statuses.
const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
	FriendBlocked  = "blocked"
)

// Friend is a directed relation from UserID to FriendID.
type Friend struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	FriendID       string `json:"friend_id"`
	FriendUsername string `json:"friend_username"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// FriendView is an accepted relation seen from one side.
type FriendView struct {
	FriendID       string `json:"friend_id"`
	FriendUsername string `json:"friend_username"`
	IsOnline       bool   `json:"is_online"`
}

// Presence is a currently-connected user.
type Presence struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	ConnectedAt string `json:"connected_at"`
}

// PushSubscription is a stored Web Push endpoint for a user.
type PushSubscription struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Endpoint  string `json:"endpoint"`
	KeyP256dh string `json:"p256dh"`
	KeyAuth   string `json:"auth"`
	CreatedAt string `json:"created_at"`
	RevokedAt string `json:"revoked_at,omitempty"`
}
