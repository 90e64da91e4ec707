// Package supabase implements domain.Gateway against a Supabase project
// through its PostgREST interface (/rest/v1/<table>).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
)

// Table names, shared with the SQL schema of the Supabase project.
const (
	TableUsers         = "users"
	TableComplaints    = "complaints"
	TableBannedWords   = "banned_words"
	TableAutoResponses = "auto_responses"
	TableWarnings      = "user_warnings"
	TableGroupSettings = "group_settings"
)

const (
	groupSettingsRowID = 1
	maxErrorBody       = 512
)

// Gateway talks to PostgREST with a retrying HTTP client.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
	logger  *logrus.Entry
	now     func() time.Time
}

var _ domain.Gateway = (*Gateway)(nil)

// Option customizes the gateway.
type Option func(*Gateway)

// WithLogger routes gateway and retry logs to the entry.
func WithLogger(logger *logrus.Entry) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRetryPolicy overrides the retry budget and backoff bounds.
func WithRetryPolicy(retries int, minWait, maxWait time.Duration) Option {
	return func(g *Gateway) {
		g.client.RetryMax = retries
		g.client.RetryWaitMin = minWait
		g.client.RetryWaitMax = maxWait
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.client.HTTPClient.Timeout = timeout
	}
}

// New builds a gateway for the project at baseURL authenticated with apiKey.
func New(baseURL, apiKey string, opts ...Option) (*Gateway, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("supabase url is required")
	}
	if apiKey == "" {
		return nil, errors.New("supabase key is required")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second

	g := &Gateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		logger:  logging.Logger().WithField("component", "supabase"),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.client.Logger = retryablehttp.LeveledLogger(leveledLogrus{g.logger})

	return g, nil
}

// leveledLogrus adapts logrus to retryablehttp.LeveledLogger.
type leveledLogrus struct {
	inner *logrus.Entry
}

// Error is rewritten to WARN because the client retries.
func (l leveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.inner.WithFields(kvFields(keysAndValues)).Warn(msg)
}

func (l leveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.WithFields(kvFields(keysAndValues)).Warn(msg)
}

func (l leveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.inner.WithFields(kvFields(keysAndValues)).Info(msg)
}

func (l leveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func kvFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

type request struct {
	method string
	table  string
	query  url.Values
	body   interface{}
	prefer []string
}

type response struct {
	status  int
	header  http.Header
	payload []byte
}

func (g *Gateway) do(ctx context.Context, r request) (response, error) {
	if ctx == nil {
		return response{}, errors.New("context is required")
	}

	endpoint := g.baseURL + "/rest/v1/" + r.table
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var body interface{}
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return response{}, fmt.Errorf("encode %s payload: %w", r.table, err)
		}
		body = raw
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return response{}, fmt.Errorf("build %s request: %w", r.table, err)
	}
	req.Header.Set("apikey", g.apiKey)
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", r.method, r.table, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read %s response: %w", r.table, err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet := string(payload)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return response{}, fmt.Errorf("%s %s: status %d: %s", r.method, r.table, resp.StatusCode, snippet)
	}

	return response{status: resp.StatusCode, header: resp.Header, payload: payload}, nil
}

func decodeRows(resp response, out interface{}) error {
	if len(bytes.TrimSpace(resp.payload)) == 0 {
		return nil
	}
	return json.Unmarshal(resp.payload, out)
}

func eq(value interface{}) string {
	return "eq." + fmt.Sprint(value)
}

// Ping issues a minimal read against the users table.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := g.do(ctx, request{
		method: http.MethodGet,
		table:  TableUsers,
		query:  url.Values{"select": {"user_id"}, "limit": {"1"}},
	})
	if err != nil {
		return fmt.Errorf("ping supabase: %w", err)
	}
	return nil
}

// UpsertUser inserts the user if missing, otherwise refreshes the profile
// fields. created_at is only written on insert.
func (g *Gateway) UpsertUser(ctx context.Context, user domain.User) (bool, error) {
	if user.UserID == 0 {
		return false, errors.New("user_id is required")
	}

	now := g.now()
	resp, err := g.do(ctx, request{
		method: http.MethodPost,
		table:  TableUsers,
		query:  url.Values{"on_conflict": {"user_id"}},
		body: map[string]interface{}{
			"user_id":    user.UserID,
			"username":   user.Username,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"created_at": now,
			"updated_at": now,
		},
		prefer: []string{"resolution=ignore-duplicates", "return=representation"},
	})
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}

	var inserted []domain.User
	if err := decodeRows(resp, &inserted); err != nil {
		return false, fmt.Errorf("decode user: %w", err)
	}
	if len(inserted) > 0 {
		return true, nil
	}

	_, err = g.do(ctx, request{
		method: http.MethodPatch,
		table:  TableUsers,
		query:  url.Values{"user_id": {eq(user.UserID)}},
		body: map[string]interface{}{
			"username":   user.Username,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"updated_at": now,
		},
	})
	if err != nil {
		return false, fmt.Errorf("refresh user: %w", err)
	}

	return false, nil
}

func (g *Gateway) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	var users []domain.User
	if err := g.selectRows(ctx, TableUsers, url.Values{"user_id": {eq(userID)}, "limit": {"1"}}, &users); err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 {
		return domain.User{}, fmt.Errorf("get user: %w", domain.ErrNotFound)
	}
	return users[0], nil
}

func (g *Gateway) CountUsers(ctx context.Context) (int64, error) {
	count, err := g.count(ctx, TableUsers, url.Values{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// AddComplaint inserts a complaint and returns the id assigned by the
// table's identity column.
func (g *Gateway) AddComplaint(ctx context.Context, complaint domain.Complaint) (int64, error) {
	if complaint.Status == "" {
		complaint.Status = domain.ComplaintPending
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = g.now()
	}

	resp, err := g.do(ctx, request{
		method: http.MethodPost,
		table:  TableComplaints,
		body: map[string]interface{}{
			"user_id":    complaint.UserID,
			"username":   complaint.Username,
			"message":    complaint.Message,
			"status":     complaint.Status,
			"created_at": complaint.CreatedAt,
		},
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return 0, fmt.Errorf("insert complaint: %w", err)
	}

	var rows []domain.Complaint
	if err := decodeRows(resp, &rows); err != nil {
		return 0, fmt.Errorf("decode complaint: %w", err)
	}
	if len(rows) == 0 || rows[0].ID == 0 {
		return 0, errors.New("insert complaint: no id returned")
	}

	return rows[0].ID, nil
}

func (g *Gateway) GetComplaint(ctx context.Context, id int64) (domain.Complaint, error) {
	var rows []domain.Complaint
	if err := g.selectRows(ctx, TableComplaints, url.Values{"id": {eq(id)}, "limit": {"1"}}, &rows); err != nil {
		return domain.Complaint{}, fmt.Errorf("get complaint: %w", err)
	}
	if len(rows) == 0 {
		return domain.Complaint{}, fmt.Errorf("get complaint: %w", domain.ErrNotFound)
	}
	return rows[0], nil
}

func (g *Gateway) UpdateComplaintStatus(ctx context.Context, id int64, status domain.ComplaintStatus) error {
	resp, err := g.do(ctx, request{
		method: http.MethodPatch,
		table:  TableComplaints,
		query:  url.Values{"id": {eq(id)}},
		body:   map[string]interface{}{"status": status},
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return fmt.Errorf("update complaint status: %w", err)
	}

	var rows []domain.Complaint
	if err := decodeRows(resp, &rows); err != nil {
		return fmt.Errorf("decode complaint: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("update complaint status: %w", domain.ErrNotFound)
	}
	return nil
}

func (g *Gateway) ListComplaints(ctx context.Context, filter domain.ComplaintFilter) ([]domain.Complaint, error) {
	query := url.Values{"order": {"id.desc"}}
	if filter.UserID != 0 {
		query.Set("user_id", eq(filter.UserID))
	}
	if filter.Status != "" {
		query.Set("status", eq(filter.Status))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var rows []domain.Complaint
	if err := g.selectRows(ctx, TableComplaints, query, &rows); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return rows, nil
}

func (g *Gateway) CountComplaints(ctx context.Context, status domain.ComplaintStatus) (int64, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", eq(status))
	}

	count, err := g.count(ctx, TableComplaints, query)
	if err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return count, nil
}

func (g *Gateway) AddBannedWord(ctx context.Context, word string) error {
	word = domain.NormalizeTerm(word)
	if word == "" {
		return errors.New("word is required")
	}

	_, err := g.do(ctx, request{
		method: http.MethodPost,
		table:  TableBannedWords,
		query:  url.Values{"on_conflict": {"word"}},
		body:   map[string]interface{}{"word": word, "created_at": g.now()},
		prefer: []string{"resolution=ignore-duplicates"},
	})
	if err != nil {
		return fmt.Errorf("add banned word: %w", err)
	}
	return nil
}

func (g *Gateway) RemoveBannedWord(ctx context.Context, word string) (bool, error) {
	removed, err := g.deleteRows(ctx, TableBannedWords, url.Values{"word": {eq(domain.NormalizeTerm(word))}})
	if err != nil {
		return false, fmt.Errorf("remove banned word: %w", err)
	}
	return removed > 0, nil
}

func (g *Gateway) ListBannedWords(ctx context.Context) ([]domain.BannedWord, error) {
	var rows []domain.BannedWord
	if err := g.selectRows(ctx, TableBannedWords, url.Values{"order": {"created_at.asc,id.asc"}}, &rows); err != nil {
		return nil, fmt.Errorf("list banned words: %w", err)
	}
	return rows, nil
}

// AddAutoResponse creates the trigger or replaces its response.
func (g *Gateway) AddAutoResponse(ctx context.Context, trigger, response string) error {
	trigger = domain.NormalizeTerm(trigger)
	if trigger == "" {
		return errors.New("trigger is required")
	}

	resp, err := g.do(ctx, request{
		method: http.MethodPatch,
		table:  TableAutoResponses,
		query:  url.Values{"trigger": {eq(trigger)}},
		body:   map[string]interface{}{"response": response},
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return fmt.Errorf("update auto response: %w", err)
	}

	var rows []domain.AutoResponse
	if err := decodeRows(resp, &rows); err != nil {
		return fmt.Errorf("decode auto response: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}

	_, err = g.do(ctx, request{
		method: http.MethodPost,
		table:  TableAutoResponses,
		body:   map[string]interface{}{"trigger": trigger, "response": response, "created_at": g.now()},
	})
	if err != nil {
		return fmt.Errorf("add auto response: %w", err)
	}
	return nil
}

func (g *Gateway) RemoveAutoResponse(ctx context.Context, trigger string) (bool, error) {
	removed, err := g.deleteRows(ctx, TableAutoResponses, url.Values{"trigger": {eq(domain.NormalizeTerm(trigger))}})
	if err != nil {
		return false, fmt.Errorf("remove auto response: %w", err)
	}
	return removed > 0, nil
}

func (g *Gateway) ListAutoResponses(ctx context.Context) ([]domain.AutoResponse, error) {
	var rows []domain.AutoResponse
	if err := g.selectRows(ctx, TableAutoResponses, url.Values{"order": {"created_at.asc,id.asc"}}, &rows); err != nil {
		return nil, fmt.Errorf("list auto responses: %w", err)
	}
	return rows, nil
}

func (g *Gateway) AddWarning(ctx context.Context, warning domain.Warning) error {
	if warning.UserID == 0 {
		return errors.New("user_id is required")
	}
	if warning.CreatedAt.IsZero() {
		warning.CreatedAt = g.now()
	}

	_, err := g.do(ctx, request{
		method: http.MethodPost,
		table:  TableWarnings,
		body: map[string]interface{}{
			"user_id":    warning.UserID,
			"reason":     warning.Reason,
			"created_at": warning.CreatedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("add warning: %w", err)
	}
	return nil
}

func (g *Gateway) ListWarnings(ctx context.Context, userID int64) ([]domain.Warning, error) {
	var rows []domain.Warning
	query := url.Values{"user_id": {eq(userID)}, "order": {"created_at.asc"}}
	if err := g.selectRows(ctx, TableWarnings, query, &rows); err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	return rows, nil
}

func (g *Gateway) ClearWarnings(ctx context.Context, userID int64) error {
	if _, err := g.deleteRows(ctx, TableWarnings, url.Values{"user_id": {eq(userID)}}); err != nil {
		return fmt.Errorf("clear warnings: %w", err)
	}
	return nil
}

func (g *Gateway) GetGroupSettings(ctx context.Context) (domain.GroupSettings, error) {
	var rows []domain.GroupSettings
	if err := g.selectRows(ctx, TableGroupSettings, url.Values{"id": {eq(groupSettingsRowID)}, "limit": {"1"}}, &rows); err != nil {
		return domain.GroupSettings{}, fmt.Errorf("get group settings: %w", err)
	}
	if len(rows) == 0 {
		return domain.GroupSettings{}, fmt.Errorf("get group settings: %w", domain.ErrNotFound)
	}
	return rows[0], nil
}

func (g *Gateway) UpdateGroupSettings(ctx context.Context, settings domain.GroupSettings) error {
	_, err := g.do(ctx, request{
		method: http.MethodPost,
		table:  TableGroupSettings,
		query:  url.Values{"on_conflict": {"id"}},
		body: map[string]interface{}{
			"id":                    groupSettingsRowID,
			"is_closed":             settings.IsClosed,
			"max_warnings":          settings.MaxWarnings,
			"mute_duration_minutes": settings.MuteDurationMinutes,
			"updated_at":            g.now(),
		},
		prefer: []string{"resolution=merge-duplicates"},
	})
	if err != nil {
		return fmt.Errorf("update group settings: %w", err)
	}
	return nil
}

func (g *Gateway) selectRows(ctx context.Context, table string, query url.Values, out interface{}) error {
	if query.Get("select") == "" {
		query.Set("select", "*")
	}

	resp, err := g.do(ctx, request{method: http.MethodGet, table: table, query: query})
	if err != nil {
		return err
	}
	if err := decodeRows(resp, out); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

func (g *Gateway) deleteRows(ctx context.Context, table string, query url.Values) (int, error) {
	resp, err := g.do(ctx, request{
		method: http.MethodDelete,
		table:  table,
		query:  query,
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return 0, err
	}

	var rows []json.RawMessage
	if err := decodeRows(resp, &rows); err != nil {
		return 0, fmt.Errorf("decode %s: %w", table, err)
	}
	return len(rows), nil
}

// count reads the total from the Content-Range header ("0-0/42" or "*/0").
func (g *Gateway) count(ctx context.Context, table string, query url.Values) (int64, error) {
	query.Set("select", "*")
	query.Set("limit", "1")

	resp, err := g.do(ctx, request{
		method: http.MethodGet,
		table:  table,
		query:  query,
		prefer: []string{"count=exact"},
	})
	if err != nil {
		return 0, err
	}

	contentRange := resp.header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 {
		return 0, fmt.Errorf("missing count in content-range %q", contentRange)
	}

	total, err := strconv.ParseInt(contentRange[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse content-range %q: %w", contentRange, err)
	}
	return total, nil
}
