// Package messengertest provides a recording messenger for handler tests.
package messengertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"tg_support_bot/internal/messenger"
)

// Message is one recorded SendText call.
type Message struct {
	ChatID   int64
	Text     string
	Keyboard messenger.Keyboard
	ReplyTo  int
}

// Restriction is one recorded RestrictMember call.
type Restriction struct {
	ChatID int64
	UserID int64
	Until  time.Time
}

// MemberAction is one recorded membership call (kick, ban, unban, lift,
// approve).
type MemberAction struct {
	Op     string
	ChatID int64
	UserID int64
}

// Recorder records every outbound call. Errors keyed by operation name
// ("send", "delete", "restrict", "kick", "ban", "unban", "lift", "answer",
// "approve") are returned instead of recording. SendErrByChat fails sends to
// specific chats only.
type Recorder struct {
	mu sync.Mutex

	Messages     []Message
	Deleted      [][2]int64
	Restrictions []Restriction
	Members      []MemberAction
	Answers      []string

	Errors        map[string]error
	SendErrByChat map[int64]error

	nextID int
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{
		Errors:        make(map[string]error),
		SendErrByChat: make(map[int64]error),
	}
}

func (r *Recorder) SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Errors["send"]; err != nil {
		return 0, err
	}
	if err := r.SendErrByChat[chatID]; err != nil {
		return 0, err
	}

	o := messenger.Apply(opts...)
	r.nextID++
	r.Messages = append(r.Messages, Message{ChatID: chatID, Text: text, Keyboard: o.Keyboard, ReplyTo: o.ReplyTo})

	return r.nextID, nil
}

func (r *Recorder) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Errors["delete"]; err != nil {
		return err
	}
	r.Deleted = append(r.Deleted, [2]int64{chatID, int64(messageID)})
	return nil
}

func (r *Recorder) RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Errors["restrict"]; err != nil {
		return err
	}
	r.Restrictions = append(r.Restrictions, Restriction{ChatID: chatID, UserID: userID, Until: until})
	return nil
}

func (r *Recorder) LiftRestrictions(ctx context.Context, chatID, userID int64) error {
	return r.member("lift", chatID, userID)
}

func (r *Recorder) KickMember(ctx context.Context, chatID, userID int64) error {
	return r.member("kick", chatID, userID)
}

func (r *Recorder) BanMember(ctx context.Context, chatID, userID int64) error {
	return r.member("ban", chatID, userID)
}

func (r *Recorder) UnbanMember(ctx context.Context, chatID, userID int64) error {
	return r.member("unban", chatID, userID)
}

func (r *Recorder) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	return r.member("approve", chatID, userID)
}

func (r *Recorder) AnswerCallback(ctx context.Context, callbackID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Errors["answer"]; err != nil {
		return err
	}
	r.Answers = append(r.Answers, callbackID)
	return nil
}

func (r *Recorder) member(op string, chatID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Errors[op]; err != nil {
		return err
	}
	r.Members = append(r.Members, MemberAction{Op: op, ChatID: chatID, UserID: userID})
	return nil
}

// To returns the messages sent to chatID in order.
func (r *Recorder) To(chatID int64) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Message
	for _, m := range r.Messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message, or the zero value.
func (r *Recorder) Last() Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Messages) == 0 {
		return Message{}
	}
	return r.Messages[len(r.Messages)-1]
}

// Contains reports whether any message to chatID contains substr.
func (r *Recorder) Contains(chatID int64, substr string) bool {
	for _, m := range r.To(chatID) {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Messages = nil
	r.Deleted = nil
	r.Restrictions = nil
	r.Members = nil
	r.Answers = nil
}
