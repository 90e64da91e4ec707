package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by gateways when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Gateway is the complete data store contract. Implementations are thin
// request/response adapters: they hold no business rules and always return
// either data or an error, leaving fallback policy to callers.
type Gateway interface {
	UpsertUser(ctx context.Context, user User) (bool, error)
	GetUser(ctx context.Context, userID int64) (User, error)
	CountUsers(ctx context.Context) (int64, error)

	AddComplaint(ctx context.Context, complaint Complaint) (int64, error)
	GetComplaint(ctx context.Context, id int64) (Complaint, error)
	UpdateComplaintStatus(ctx context.Context, id int64, status ComplaintStatus) error
	ListComplaints(ctx context.Context, filter ComplaintFilter) ([]Complaint, error)
	CountComplaints(ctx context.Context, status ComplaintStatus) (int64, error)

	AddBannedWord(ctx context.Context, word string) error
	RemoveBannedWord(ctx context.Context, word string) (bool, error)
	ListBannedWords(ctx context.Context) ([]BannedWord, error)

	AddAutoResponse(ctx context.Context, trigger, response string) error
	RemoveAutoResponse(ctx context.Context, trigger string) (bool, error)
	ListAutoResponses(ctx context.Context) ([]AutoResponse, error)

	AddWarning(ctx context.Context, warning Warning) error
	ListWarnings(ctx context.Context, userID int64) ([]Warning, error)
	ClearWarnings(ctx context.Context, userID int64) error

	GetGroupSettings(ctx context.Context) (GroupSettings, error)
	UpdateGroupSettings(ctx context.Context, settings GroupSettings) error

	Ping(ctx context.Context) error
}
