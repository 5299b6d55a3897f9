package ws

import (
	"encoding/json"
	"math"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/models"
)

// inbound is every field any client envelope may carry.
type inbound struct {
	Type         string `json:"type"`
	FromUserID   string `json:"from_user_id"`
	FromUsername string `json:"from_username"`
	ToUserID     string `json:"to_user_id"`

	Message    *string `json:"message"`
	MessageID  string  `json:"message_id"`
	NewMessage *string `json:"new_message"`
	Emoji      string  `json:"emoji"`

	FileURL         string `json:"file_url"`
	FileType        string `json:"file_type"`
	FileName        string `json:"file_name"`
	ReplyToID       string `json:"reply_to_id"`
	ReplyToText     string `json:"reply_to_text"`
	ReplyToUsername string `json:"reply_to_username"`

	Duration float64 `json:"duration"`

	// WebRTC payloads are relayed verbatim.
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
}

func decode(data []byte) (*inbound, error) {
	var env inbound
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errs.Protocol("decode envelope: %v", err)
	}
	if env.Type == "" {
		return nil, errs.Protocol("envelope without type")
	}
	return &env, nil
}

// require reports the first named field that is missing from env.
func (env *inbound) require(fields ...string) error {
	for _, f := range fields {
		var missing bool
		switch f {
		case "to_user_id":
			missing = env.ToUserID == ""
		case "message":
			missing = env.Message == nil
		case "message_id":
			missing = env.MessageID == ""
		case "new_message":
			missing = env.NewMessage == nil
		case "emoji":
			missing = env.Emoji == ""
		case "offer":
			missing = len(env.Offer) == 0
		case "answer":
			missing = len(env.Answer) == 0
		case "candidate":
			missing = len(env.Candidate) == 0
		}
		if missing {
			return errs.Protocol("%s: missing %s", env.Type, f)
		}
	}
	return nil
}

// maxCallDuration is the longest end-call duration accepted, in seconds.
const maxCallDuration = 7 * 24 * 60 * 60

// callDuration returns the end-call duration in whole seconds. Fractions are
// truncated; negative and implausibly large values are protocol errors.
func (env *inbound) callDuration() (int64, error) {
	d := env.Duration
	if math.IsNaN(d) || d < 0 || d > maxCallDuration {
		return 0, errs.Protocol("%s: duration %v out of range", env.Type, d)
	}
	return int64(d), nil
}

type usersUpdate struct {
	Type  string            `json:"type"`
	Users []models.Presence `json:"users"`
}

type receiveMessage struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

type fromEvent struct {
	Type         string `json:"type"`
	FromUserID   string `json:"from_user_id"`
	FromUsername string `json:"from_username,omitempty"`
}

type messageEvent struct {
	Type       string `json:"type"`
	MessageID  string `json:"message_id"`
	FromUserID string `json:"from_user_id"`
}

type editEvent struct {
	Type       string `json:"type"`
	MessageID  string `json:"message_id"`
	NewMessage string `json:"new_message"`
	EditedAt   string `json:"edited_at"`
	FromUserID string `json:"from_user_id"`
}

type reactionEvent struct {
	Type      string           `json:"type"`
	MessageID string           `json:"message_id"`
	Reactions models.Reactions `json:"reactions"`
}

type signalEvent struct {
	Type       string          `json:"type"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	FromUserID string          `json:"from_user_id"`
}
