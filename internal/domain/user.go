package domain

import (
	"strings"
	"time"
)

// User represents a Telegram user who interacted with the bot.
type User struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	Username  string    `bson:"username,omitempty" json:"username,omitempty"`
	FirstName string    `bson:"first_name" json:"first_name"`
	LastName  string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Mention renders @username when available, falling back to the full name.
func (u User) Mention() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if name := u.FullName(); name != "" {
		return name
	}

	return "user"
}
