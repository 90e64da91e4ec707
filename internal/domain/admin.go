// Package domain defines the support bot's entities and the data store contract.
package domain

// Admin identifies the single configured support administrator. Every
// admin-only action is gated through IsAdmin.
type Admin int64

// IsAdmin reports whether userID belongs to the configured administrator.
func (a Admin) IsAdmin(userID int64) bool {
	return a != 0 && int64(a) == userID
}

// ID returns the administrator's Telegram user id.
func (a Admin) ID() int64 {
	return int64(a)
}
