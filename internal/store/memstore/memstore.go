// Package memstore is an in-process implementation of domain.Gateway. It
// backs STORE_BACKEND=memory for local development and doubles as the shared
// fixture for workflow tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tg_support_bot/internal/domain"
)

// Store keeps every entity in mutex-guarded maps and slices. Slices preserve
// insertion order, which is the store order the matcher relies on.
type Store struct {
	mu sync.Mutex

	users         map[int64]domain.User
	complaints    map[int64]domain.Complaint
	nextComplaint int64
	bannedWords   []domain.BannedWord
	autoResponses []domain.AutoResponse
	warnings      []domain.Warning
	settings      *domain.GroupSettings

	now func() time.Time

	// fail maps an operation name to an injected error.
	fail map[string]error
}

var _ domain.Gateway = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:      make(map[int64]domain.User),
		complaints: make(map[int64]domain.Complaint),
		now: func() time.Time {
			return time.Now().UTC()
		},
		fail: make(map[string]error),
	}
}

// FailOn makes the named operation (e.g. "AddComplaint") fail with err until
// cleared with a nil error.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

func (s *Store) failure(op string) error {
	if err, ok := s.fail[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.failure("Ping")
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) (bool, error) {
	if user.UserID == 0 {
		return false, errors.New("user_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("UpsertUser"); err != nil {
		return false, err
	}

	now := s.now()
	existing, ok := s.users[user.UserID]
	if ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.UserID] = user

	return !ok, nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GetUser"); err != nil {
		return domain.User{}, err
	}

	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CountUsers"); err != nil {
		return 0, err
	}
	return int64(len(s.users)), nil
}

func (s *Store) AddComplaint(ctx context.Context, complaint domain.Complaint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("AddComplaint"); err != nil {
		return 0, err
	}

	s.nextComplaint++
	complaint.ID = s.nextComplaint
	if complaint.Status == "" {
		complaint.Status = domain.ComplaintPending
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = s.now()
	}
	s.complaints[complaint.ID] = complaint

	return complaint.ID, nil
}

func (s *Store) GetComplaint(ctx context.Context, id int64) (domain.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GetComplaint"); err != nil {
		return domain.Complaint{}, err
	}

	complaint, ok := s.complaints[id]
	if !ok {
		return domain.Complaint{}, domain.ErrNotFound
	}
	return complaint, nil
}

func (s *Store) UpdateComplaintStatus(ctx context.Context, id int64, status domain.ComplaintStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("UpdateComplaintStatus"); err != nil {
		return err
	}

	complaint, ok := s.complaints[id]
	if !ok {
		return domain.ErrNotFound
	}
	complaint.Status = status
	s.complaints[id] = complaint

	return nil
}

func (s *Store) ListComplaints(ctx context.Context, filter domain.ComplaintFilter) ([]domain.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ListComplaints"); err != nil {
		return nil, err
	}

	out := make([]domain.Complaint, 0, len(s.complaints))
	for _, c := range s.complaints {
		if filter.UserID != 0 && c.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) CountComplaints(ctx context.Context, status domain.ComplaintStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CountComplaints"); err != nil {
		return 0, err
	}

	var n int64
	for _, c := range s.complaints {
		if status == "" || c.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) AddBannedWord(ctx context.Context, word string) error {
	word = domain.NormalizeTerm(word)
	if word == "" {
		return errors.New("word is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("AddBannedWord"); err != nil {
		return err
	}

	for _, w := range s.bannedWords {
		if w.Word == word {
			return nil
		}
	}
	s.bannedWords = append(s.bannedWords, domain.BannedWord{Word: word, CreatedAt: s.now()})

	return nil
}

func (s *Store) RemoveBannedWord(ctx context.Context, word string) (bool, error) {
	word = domain.NormalizeTerm(word)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("RemoveBannedWord"); err != nil {
		return false, err
	}

	for i, w := range s.bannedWords {
		if w.Word == word {
			s.bannedWords = append(s.bannedWords[:i], s.bannedWords[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListBannedWords(ctx context.Context) ([]domain.BannedWord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ListBannedWords"); err != nil {
		return nil, err
	}
	return append([]domain.BannedWord(nil), s.bannedWords...), nil
}

func (s *Store) AddAutoResponse(ctx context.Context, trigger, response string) error {
	trigger = domain.NormalizeTerm(trigger)
	if trigger == "" {
		return errors.New("trigger is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("AddAutoResponse"); err != nil {
		return err
	}

	for i, r := range s.autoResponses {
		if r.Trigger == trigger {
			s.autoResponses[i].Response = response
			return nil
		}
	}
	s.autoResponses = append(s.autoResponses, domain.AutoResponse{Trigger: trigger, Response: response, CreatedAt: s.now()})

	return nil
}

func (s *Store) RemoveAutoResponse(ctx context.Context, trigger string) (bool, error) {
	trigger = domain.NormalizeTerm(trigger)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("RemoveAutoResponse"); err != nil {
		return false, err
	}

	for i, r := range s.autoResponses {
		if r.Trigger == trigger {
			s.autoResponses = append(s.autoResponses[:i], s.autoResponses[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListAutoResponses(ctx context.Context) ([]domain.AutoResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ListAutoResponses"); err != nil {
		return nil, err
	}
	return append([]domain.AutoResponse(nil), s.autoResponses...), nil
}

func (s *Store) AddWarning(ctx context.Context, warning domain.Warning) error {
	if warning.UserID == 0 {
		return errors.New("user_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("AddWarning"); err != nil {
		return err
	}

	if warning.CreatedAt.IsZero() {
		warning.CreatedAt = s.now()
	}
	s.warnings = append(s.warnings, warning)

	return nil
}

func (s *Store) ListWarnings(ctx context.Context, userID int64) ([]domain.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ListWarnings"); err != nil {
		return nil, err
	}

	var out []domain.Warning
	for _, w := range s.warnings {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) ClearWarnings(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ClearWarnings"); err != nil {
		return err
	}

	kept := s.warnings[:0]
	for _, w := range s.warnings {
		if w.UserID != userID {
			kept = append(kept, w)
		}
	}
	s.warnings = kept

	return nil
}

func (s *Store) GetGroupSettings(ctx context.Context) (domain.GroupSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GetGroupSettings"); err != nil {
		return domain.GroupSettings{}, err
	}
	if s.settings == nil {
		return domain.GroupSettings{}, domain.ErrNotFound
	}
	return *s.settings, nil
}

func (s *Store) UpdateGroupSettings(ctx context.Context, settings domain.GroupSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("UpdateGroupSettings"); err != nil {
		return err
	}

	settings.UpdatedAt = s.now()
	s.settings = &settings

	return nil
}
