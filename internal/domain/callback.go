package domain

// Callback is an inline keyboard press routed to a feature handler.
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	From      User
	Data      string
}
