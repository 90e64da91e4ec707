package domain

import (
	"strings"
	"time"
)

// WarningReason classifies a moderation strike.
type WarningReason string

const (
	ReasonBannedWord WarningReason = "banned_word"
	ReasonLink       WarningReason = "link"

	// Reasons written by earlier deployments into the same warnings table.
	legacyReasonBannedWord WarningReason = "Used banned word"
	legacyReasonLink       WarningReason = "Posted unauthorized link"
)

// Canonical maps legacy reasons onto their current value.
func (r WarningReason) Canonical() WarningReason {
	switch r {
	case legacyReasonBannedWord:
		return ReasonBannedWord
	case legacyReasonLink:
		return ReasonLink
	default:
		return r
	}
}

// Default group policy used whenever settings are missing or unreadable.
const (
	DefaultMaxWarnings         = 3
	DefaultMuteDurationMinutes = 60

	// MaxMuteDurationMinutes is 366 days. Telegram treats a restriction
	// ending later than that as permanent.
	MaxMuteDurationMinutes = 366 * 24 * 60
)

// BannedWord is a lowercase term that is not allowed in the group.
type BannedWord struct {
	Word      string    `bson:"word" json:"word"`
	CreatedAt time.Time `bson:"created_at" json:"created_at,omitempty"`
}

// AutoResponse maps a lowercase trigger phrase to a canned reply.
type AutoResponse struct {
	Trigger   string    `bson:"trigger" json:"trigger"`
	Response  string    `bson:"response" json:"response"`
	CreatedAt time.Time `bson:"created_at" json:"created_at,omitempty"`
}

// Warning is one entry in the append-only strike log of a user.
type Warning struct {
	UserID    int64         `bson:"user_id" json:"user_id"`
	Reason    WarningReason `bson:"reason" json:"reason"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}

// GroupSettings is the singleton moderation policy of the group.
type GroupSettings struct {
	IsClosed            bool      `bson:"is_closed" json:"is_closed"`
	MaxWarnings         int       `bson:"max_warnings" json:"max_warnings"`
	MuteDurationMinutes int       `bson:"mute_duration_minutes" json:"mute_duration_minutes"`
	UpdatedAt           time.Time `bson:"updated_at" json:"updated_at,omitempty"`
}

// DefaultGroupSettings returns the policy applied when nothing is stored.
func DefaultGroupSettings() GroupSettings {
	return GroupSettings{
		MaxWarnings:         DefaultMaxWarnings,
		MuteDurationMinutes: DefaultMuteDurationMinutes,
	}
}

// Normalize replaces non-positive limits with their defaults and caps the mute
// duration at MaxMuteDurationMinutes.
func (s GroupSettings) Normalize() GroupSettings {
	if s.MaxWarnings <= 0 {
		s.MaxWarnings = DefaultMaxWarnings
	}
	if s.MuteDurationMinutes <= 0 {
		s.MuteDurationMinutes = DefaultMuteDurationMinutes
	}
	if s.MuteDurationMinutes > MaxMuteDurationMinutes {
		s.MuteDurationMinutes = MaxMuteDurationMinutes
	}

	return s
}

// MuteDuration converts the configured minutes to a duration.
func (s GroupSettings) MuteDuration() time.Duration {
	return time.Duration(s.Normalize().MuteDurationMinutes) * time.Minute
}

// NormalizeTerm lowercases and trims a banned word or trigger phrase so it
// can be used as a unique key.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
