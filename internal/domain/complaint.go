package domain

import "time"

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

const (
	ComplaintPending ComplaintStatus = "pending"
	ComplaintClosed  ComplaintStatus = "closed"
)

// NoUsername is stored as the username snapshot when the sender has none.
const NoUsername = "No username"

// Complaint is a private message submitted to support. The only permitted
// mutation is pending -> closed.
type Complaint struct {
	ID        int64           `bson:"id" json:"id,omitempty"`
	UserID    int64           `bson:"user_id" json:"user_id"`
	Username  string          `bson:"username" json:"username"`
	Message   string          `bson:"message" json:"message"`
	Status    ComplaintStatus `bson:"status" json:"status"`
	CreatedAt time.Time       `bson:"created_at" json:"created_at"`
}

// ComplaintFilter narrows ListComplaints. Zero values mean "any".
type ComplaintFilter struct {
	UserID int64
	Status ComplaintStatus
	Limit  int
}

// Label renders the status for chat listings.
func (s ComplaintStatus) Label() string {
	switch s {
	case ComplaintPending:
		return "⏳ Pending"
	case ComplaintClosed:
		return "✅ Closed"
	default:
		return string(s)
	}
}

// Excerpt returns at most n runes of the message, marking truncation.
func (c Complaint) Excerpt(n int) string {
	runes := []rune(c.Message)
	if n <= 0 || len(runes) <= n {
		return c.Message
	}
	return string(runes[:n]) + "…"
}
